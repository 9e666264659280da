package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"simcheck/api"
	"simcheck/config"
	"simcheck/corpus"
	"simcheck/docsource"
	"simcheck/events"
	"simcheck/fingerprint"
	"simcheck/index"
	"simcheck/scheduler"
	"simcheck/scoring"
	"simcheck/semantic"
	"simcheck/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	port := flag.String("port", cfg.Port, "HTTP port")
	rebuildOnStart := flag.Bool("rebuild", false, "Rebuild the similarity index from the archive before serving")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Result store
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open result store: %v", err)
	}
	defer st.Close()
	log.Printf("✅ Result store ready at %s", st.Path())

	// Document archive
	archive, err := initializeArchive(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize document archive: %v", err)
	}

	// Similarity index
	idx, err := initializeIndex(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize similarity index: %v", err)
	}
	defer idx.Close()

	gen := fingerprint.NewGenerator(fingerprint.Options{
		ShingleSize:      cfg.Fingerprint.ShingleSize,
		MinTokens:        cfg.Fingerprint.MinTokens,
		MaxTokens:        cfg.Fingerprint.MaxTokens,
		MinHashEnabled:   cfg.Fingerprint.MinHashEnabled,
		MinHashFunctions: cfg.Fingerprint.MinHashFunctions,
	})
	scorer := scoring.NewScorer(scoring.Config{
		ShingleSize:     cfg.Fingerprint.ShingleSize,
		ReportThreshold: cfg.Scoring.ReportThreshold,
		MergeGap:        cfg.Scoring.MergeGap,
		ConfidenceScale: cfg.Scoring.ConfidenceScale,
		MaxSegments:     cfg.Scoring.MaxSegments,
	})
	indexer := corpus.NewIndexer(archive, archive, idx, gen, cfg.Scheduler.IndexWorkers)

	deps := scheduler.Deps{
		Store:      st,
		Source:     archive,
		Authorizer: docsource.NewMetaAuthorizer(archive, cfg.AdminIDs),
		Index:      idx,
		Generator:  gen,
		Scorer:     scorer,
	}

	// Optional semantic cross-check
	if cfg.CohereAPIKey != "" {
		deps.Semantic = semantic.NewScorer(semantic.NewCohere(cfg.CohereAPIKey, cfg.CohereModel), 0)
		log.Printf("✅ Semantic cross-check enabled (model %s)", cfg.CohereModel)
	} else {
		log.Println("Warning: COHERE_API_KEY not set, semantic cross-check disabled")
	}

	// Optional Kafka wiring
	var consumer *events.Consumer
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.ResultTopic)
		if err != nil {
			log.Printf("Warning: result events disabled: %v", err)
		} else {
			defer producer.Close()
			deps.Publisher = producer
		}

		consumer, err = events.NewConsumer(events.ConsumerConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.DocumentTopic,
			GroupID: cfg.Kafka.GroupID,
			Handler: events.NewDocumentEventHandler(indexer),
		})
		if err != nil {
			log.Printf("Warning: document events disabled: %v", err)
			consumer = nil
		}
	}

	if *rebuildOnStart {
		if _, err := indexer.Rebuild(ctx); err != nil {
			log.Fatalf("Failed to rebuild index: %v", err)
		}
	}

	sched := scheduler.New(scheduler.Config{
		Workers:        cfg.Scheduler.Workers,
		QueueSize:      cfg.Scheduler.QueueSize,
		JobTimeout:     cfg.Scheduler.JobTimeout,
		CallTimeout:    cfg.Scheduler.CallTimeout,
		MaxAttempts:    cfg.Scheduler.MaxAttempts,
		RetryBaseDelay: cfg.Scheduler.RetryBaseDelay,
		MinShared:      cfg.Scoring.MinShared,
	}, deps)
	if _, _, err := sched.Recover(ctx); err != nil {
		log.Fatalf("Failed to recover jobs: %v", err)
	}
	sched.Start(ctx)

	if consumer != nil {
		if err := consumer.Start(ctx); err != nil {
			log.Printf("Warning: Kafka consumer did not start: %v", err)
		}
		defer consumer.Close()
	}

	server := api.NewServer(&api.Handlers{
		Jobs:    sched,
		Results: st,
		Corpus:  indexer,
		Index:   idx,
		Archive: archive,
		Health:  st.Ping,
	}, sched, *port)
	if err := server.StartCron(cfg.Scheduler.SweepSchedule, cfg.Scheduler.RebuildSchedule); err != nil {
		log.Fatalf("Failed to schedule maintenance: %v", err)
	}
	if err := server.Start(); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	<-ctx.Done()
	log.Println("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Warning: server shutdown: %v", err)
	}
	sched.Stop()
}

// initializeArchive uses S3 when a bucket is configured and an in-process
// archive otherwise.
func initializeArchive(ctx context.Context, cfg *config.Config) (docsource.Archive, error) {
	if cfg.S3.Bucket == "" {
		log.Println("Warning: S3_BUCKET not set, documents are kept in memory")
		return docsource.NewMemory(), nil
	}
	client, err := docsource.NewS3(ctx, docsource.S3Config{
		Region:       cfg.S3.Region,
		Profile:      cfg.S3.Profile,
		UsePathStyle: cfg.S3.UsePathStyle,
	})
	if err != nil {
		return nil, err
	}
	log.Printf("✅ Document archive: s3://%s/%s", cfg.S3.Bucket, cfg.S3.Prefix)
	return docsource.NewS3Source(client, cfg.S3.Bucket, cfg.S3.Prefix, config.MaxContentBytes), nil
}

func initializeIndex(ctx context.Context, cfg *config.Config) (index.Index, error) {
	if cfg.Index.Backend != "redis" {
		return index.NewMemory(), nil
	}
	rc := index.RedisConfig{
		Addr:      cfg.Index.RedisAddr,
		Password:  cfg.Index.RedisPassword,
		DB:        cfg.Index.RedisDB,
		KeyPrefix: cfg.Index.KeyPrefix,
	}
	if cfg.Index.BloomEnabled {
		rc.Bloom = &index.BloomConfig{Capacity: cfg.Index.BloomCapacity, ErrorRate: cfg.Index.BloomError}
	}
	idx, err := index.NewRedis(ctx, rc)
	if err != nil {
		return nil, err
	}
	log.Printf("✅ Similarity index: redis %s", cfg.Index.RedisAddr)
	return idx, nil
}
