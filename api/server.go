package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"

	"simcheck/corpus"
)

// Sweeper fails jobs abandoned by dead workers.
type Sweeper interface {
	SweepStale(ctx context.Context) (int, error)
}

// Server is the detection HTTP server plus its maintenance schedule.
type Server struct {
	httpServer *http.Server
	cron       *cron.Cron
	sweeper    Sweeper
	corpus     Corpus
	timeout    time.Duration
}

// NewServer creates a server for h listening on port.
func NewServer(h *Handlers, sweeper Sweeper, port string) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              ":" + port,
			Handler:           NewRouter(h),
			ReadHeaderTimeout: 10 * time.Second,
		},
		cron:    cron.New(),
		sweeper: sweeper,
		corpus:  h.Corpus,
		timeout: 30 * time.Minute,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	log.Printf("Starting detection server on %s", s.httpServer.Addr)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()
	return nil
}

// StartCron schedules the stale-job sweep and the index rebuild. An empty
// schedule disables that task.
func (s *Server) StartCron(sweepSchedule, rebuildSchedule string) error {
	if sweepSchedule != "" {
		if _, err := s.cron.AddFunc(sweepSchedule, s.sweep); err != nil {
			return fmt.Errorf("failed to add sweep job: %w", err)
		}
		log.Printf("Stale-job sweep scheduled: %s", sweepSchedule)
	}
	if rebuildSchedule != "" {
		if _, err := s.cron.AddFunc(rebuildSchedule, s.rebuild); err != nil {
			return fmt.Errorf("failed to add rebuild job: %w", err)
		}
		log.Printf("Index rebuild scheduled: %s", rebuildSchedule)
	}
	s.cron.Start()
	return nil
}

func (s *Server) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if _, err := s.sweeper.SweepStale(ctx); err != nil {
		log.Printf("Cron sweep error: %v", err)
	}
}

func (s *Server) rebuild() {
	log.Println("Cron triggered: rebuilding similarity index")
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, err := s.corpus.Rebuild(ctx); err != nil {
		if errors.Is(err, corpus.ErrRebuildRunning) {
			log.Println("Cron skipped: rebuild already running")
			return
		}
		log.Printf("Cron rebuild error: %v", err)
	}
}

// Shutdown stops the schedule and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down detection server...")
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		log.Println("Warning: scheduled task still running at shutdown")
	}
	return s.httpServer.Shutdown(ctx)
}
