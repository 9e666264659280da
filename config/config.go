package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full runtime configuration, read from the environment.
type Config struct {
	Port   string
	DBPath string

	Fingerprint FingerprintConfig
	Scoring     ScoringConfig
	Scheduler   SchedulerConfig
	Index       IndexConfig
	S3          S3Config
	Kafka       KafkaConfig

	// AdminIDs may request detection on any document.
	AdminIDs []string

	// CohereAPIKey enables the semantic cross-check when set.
	CohereAPIKey string
	CohereModel  string
}

// FingerprintConfig controls normalization and shingling.
type FingerprintConfig struct {
	ShingleSize      int
	MinTokens        int
	MaxTokens        int
	MinHashEnabled   bool
	MinHashFunctions int
}

// ScoringConfig controls the pairwise scorer.
type ScoringConfig struct {
	ReportThreshold float64
	MergeGap        int
	ConfidenceScale float64
	MaxSegments     int
	MinShared       int
}

// SchedulerConfig controls the job scheduler.
type SchedulerConfig struct {
	Workers         int
	QueueSize       int
	JobTimeout      time.Duration
	CallTimeout     time.Duration
	MaxAttempts     int
	RetryBaseDelay  time.Duration
	SweepSchedule   string
	RebuildSchedule string
	IndexWorkers    int
}

// IndexConfig selects the index backend.
type IndexConfig struct {
	Backend       string // "memory" or "redis"
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	KeyPrefix     string
	BloomEnabled  bool
	BloomCapacity int
	BloomError    float64
}

// S3Config locates the document archive. An empty Bucket disables it.
type S3Config struct {
	Bucket       string
	Prefix       string
	Region       string
	Profile      string
	UsePathStyle bool
}

// KafkaConfig wires document events and result publishing. Empty Brokers disables both.
type KafkaConfig struct {
	Brokers       []string
	DocumentTopic string
	ResultTopic   string
	GroupID       string
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:   getEnvOrDefault("PORT", "8080"),
		DBPath: getEnvOrDefault("DB_PATH", DefaultDBPath),
		Fingerprint: FingerprintConfig{
			ShingleSize:      getIntOrDefault("SHINGLE_SIZE", DefaultShingleSize),
			MinTokens:        getIntOrDefault("MIN_TOKENS", DefaultMinTokens),
			MaxTokens:        getIntOrDefault("MAX_TOKENS", DefaultMaxTokens),
			MinHashEnabled:   getBoolOrDefault("MINHASH_ENABLED", false),
			MinHashFunctions: getIntOrDefault("MINHASH_FUNCTIONS", DefaultMinHashFunctions),
		},
		Scoring: ScoringConfig{
			ReportThreshold: getFloatOrDefault("REPORT_THRESHOLD", DefaultReportThreshold),
			MergeGap:        getIntOrDefault("MERGE_GAP", DefaultMergeGap),
			ConfidenceScale: getFloatOrDefault("CONFIDENCE_SCALE", DefaultConfidenceScale),
			MaxSegments:     getIntOrDefault("MAX_SEGMENTS", DefaultMaxSegments),
			MinShared:       getIntOrDefault("MIN_SHARED_FINGERPRINTS", DefaultMinSharedFingerprints),
		},
		Scheduler: SchedulerConfig{
			Workers:         getIntOrDefault("WORKERS", runtime.NumCPU()),
			QueueSize:       getIntOrDefault("QUEUE_SIZE", DefaultQueueSize),
			JobTimeout:      getDurationOrDefault("JOB_TIMEOUT", DefaultJobTimeout),
			CallTimeout:     getDurationOrDefault("CALL_TIMEOUT", DefaultCallTimeout),
			MaxAttempts:     getIntOrDefault("MAX_ATTEMPTS", DefaultMaxAttempts),
			RetryBaseDelay:  getDurationOrDefault("RETRY_BASE_DELAY", DefaultRetryBaseDelay),
			SweepSchedule:   getEnvOrDefault("SWEEP_SCHEDULE", DefaultSweepSchedule),
			RebuildSchedule: os.Getenv("REBUILD_SCHEDULE"),
			IndexWorkers:    getIntOrDefault("INDEX_WORKERS", DefaultIndexWorkers),
		},
		Index: IndexConfig{
			Backend:       getEnvOrDefault("INDEX_BACKEND", "memory"),
			RedisAddr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			RedisPassword: os.Getenv("REDIS_PASS"),
			RedisDB:       getIntOrDefault("REDIS_DB", 0),
			KeyPrefix:     getEnvOrDefault("REDIS_KEY_PREFIX", DefaultRedisKeyPrefix),
			BloomEnabled:  getBoolOrDefault("BLOOM_ENABLED", false),
			BloomCapacity: getIntOrDefault("BLOOM_CAPACITY", 1000000),
			BloomError:    getFloatOrDefault("BLOOM_ERROR_RATE", 0.001),
		},
		S3: S3Config{
			Bucket:       os.Getenv("S3_BUCKET"),
			Prefix:       getEnvOrDefault("S3_PREFIX", DefaultDocumentPrefix),
			Region:       os.Getenv("AWS_REGION"),
			Profile:      os.Getenv("AWS_PROFILE"),
			UsePathStyle: getBoolOrDefault("S3_USE_PATH_STYLE", false),
		},
		Kafka: KafkaConfig{
			Brokers:       splitList(os.Getenv("KAFKA_BROKERS")),
			DocumentTopic: getEnvOrDefault("KAFKA_DOCUMENT_TOPIC", DefaultDocumentTopic),
			ResultTopic:   getEnvOrDefault("KAFKA_RESULT_TOPIC", DefaultResultTopic),
			GroupID:       getEnvOrDefault("KAFKA_GROUP_ID", DefaultConsumerGroup),
		},
		AdminIDs:     splitList(os.Getenv("ADMIN_IDS")),
		CohereAPIKey: os.Getenv("COHERE_API_KEY"),
		CohereModel:  getEnvOrDefault("COHERE_MODEL", "embed-english-v3.0"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Fingerprint.ShingleSize < 1:
		return fmt.Errorf("SHINGLE_SIZE must be positive, got %d", c.Fingerprint.ShingleSize)
	case c.Fingerprint.MinTokens < c.Fingerprint.ShingleSize:
		return fmt.Errorf("MIN_TOKENS (%d) must be at least SHINGLE_SIZE (%d)", c.Fingerprint.MinTokens, c.Fingerprint.ShingleSize)
	case c.Scoring.ReportThreshold < 0 || c.Scoring.ReportThreshold > 1:
		return fmt.Errorf("REPORT_THRESHOLD must be within [0,1], got %f", c.Scoring.ReportThreshold)
	case c.Scheduler.Workers < 1:
		return fmt.Errorf("WORKERS must be positive, got %d", c.Scheduler.Workers)
	case c.Scheduler.MaxAttempts < 1:
		return fmt.Errorf("MAX_ATTEMPTS must be positive, got %d", c.Scheduler.MaxAttempts)
	case c.Index.Backend != "memory" && c.Index.Backend != "redis":
		return fmt.Errorf("INDEX_BACKEND must be memory or redis, got %q", c.Index.Backend)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

// getDurationOrDefault accepts Go durations ("90s") or plain seconds ("90").
func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
