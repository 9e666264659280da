// Package scheduler runs detection jobs: it enforces one active job per
// document, queues jobs FIFO for a bounded worker pool, and records every
// job's terminal state.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"simcheck/docsource"
	"simcheck/fingerprint"
	"simcheck/index"
	"simcheck/scoring"
	"simcheck/types"
)

// JobStore is the persistence the scheduler writes through.
type JobStore interface {
	CreateJob(ctx context.Context, job *types.DetectionJob) error
	MarkProcessing(ctx context.Context, jobID string, at time.Time) error
	CancelPending(ctx context.Context, jobID string, at time.Time) error
	Fail(ctx context.Context, jobID, detail string, at time.Time) error
	Complete(ctx context.Context, jobID string, results []types.MatchResult, at time.Time) error
	GetJob(ctx context.Context, jobID string) (*types.DetectionJob, error)
	JobsWithStatus(ctx context.Context, status types.JobStatus, before time.Time) ([]types.DetectionJob, error)
}

// Publisher announces finished jobs.
type Publisher interface {
	PublishJobCompleted(ctx context.Context, event types.JobCompletedEvent) error
}

// SemanticScorer produces an embedding similarity per matched text.
type SemanticScorer interface {
	Similarities(ctx context.Context, source string, matched []string) ([]float64, error)
}

// Config tunes the scheduler. Zero values fall back to defaults.
type Config struct {
	Workers        int
	QueueSize      int
	JobTimeout     time.Duration
	CallTimeout    time.Duration
	MaxAttempts    int
	RetryBaseDelay time.Duration
	MinShared      int
}

func applyConfigDefaults(cfg Config) Config {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 10 * time.Minute
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 30 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 200 * time.Millisecond
	}
	if cfg.MinShared <= 0 {
		cfg.MinShared = 1
	}
	return cfg
}

// Deps are the collaborators of a Scheduler. Semantic and Publisher are optional.
type Deps struct {
	Store      JobStore
	Source     docsource.Source
	Authorizer docsource.Authorizer
	Index      index.Index
	Generator  *fingerprint.Generator
	Scorer     *scoring.Scorer
	Semantic   SemanticScorer
	Publisher  Publisher
}

// runningJob is a job a local worker has picked up.
type runningJob struct {
	documentID string
	cancelled  atomic.Bool
}

// Scheduler accepts, queues and executes detection jobs.
type Scheduler struct {
	cfg  Config
	deps Deps

	// mu guards the active map, the running map and admission to the queue.
	mu      sync.Mutex
	active  map[string]string // document id -> active job id
	running map[string]*runningJob
	closed  bool

	queue chan types.DetectionJob
	wg    sync.WaitGroup
	stop  context.CancelFunc

	now func() time.Time
}

// New creates a scheduler. Call Start to launch its workers.
func New(cfg Config, deps Deps) *Scheduler {
	cfg = applyConfigDefaults(cfg)
	return &Scheduler{
		cfg:     cfg,
		deps:    deps,
		active:  make(map[string]string),
		running: make(map[string]*runningJob),
		queue:   make(chan types.DetectionJob, cfg.QueueSize),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Start launches the worker pool. Workers stop when ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.stop = cancel
	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}
	log.Printf("✅ Scheduler started (%d workers, queue %d, job timeout %s)", s.cfg.Workers, s.cfg.QueueSize, s.cfg.JobTimeout)
}

// Stop rejects new submissions and waits for the workers to exit. Jobs still
// queued stay PENDING and are picked up again by Recover.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	if s.stop != nil {
		s.stop()
	}
	s.wg.Wait()
	log.Println("Scheduler stopped")
}

// Submit authorizes and enqueues a detection job for documentID.
func (s *Scheduler) Submit(ctx context.Context, documentID, requesterID string) (string, error) {
	if documentID == "" || requesterID == "" {
		return "", fmt.Errorf("%w: document id and requester id are required", types.ErrInvalidInput)
	}

	ok, err := s.deps.Authorizer.CanRequestDetection(ctx, requesterID, documentID)
	if err != nil {
		return "", fmt.Errorf("authorizing %s on %s: %w", requesterID, documentID, err)
	}
	if !ok {
		return "", fmt.Errorf("%w: %s may not request detection on %s", types.ErrPermission, requesterID, documentID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", fmt.Errorf("scheduler: %w", types.ErrClosed)
	}
	if jobID, exists := s.active[documentID]; exists {
		return "", &types.DuplicateJobError{DocumentID: documentID, ActiveJobID: jobID}
	}
	if len(s.queue) >= cap(s.queue) {
		return "", types.ErrQueueFull
	}

	job := types.DetectionJob{
		ID:          uuid.NewString(),
		DocumentID:  documentID,
		RequesterID: requesterID,
		Status:      types.JobPending,
		CreatedAt:   s.now(),
	}
	if err := s.deps.Store.CreateJob(ctx, &job); err != nil {
		return "", err
	}

	s.active[documentID] = job.ID
	// Never blocks: only Submit and Recover send, both under mu after the capacity check.
	s.queue <- job
	log.Printf("📥 Queued job %s for document %s (requested by %s)", job.ID, documentID, requesterID)
	return job.ID, nil
}

// Cancel stops a job on behalf of actorID, who must be the requester or be
// authorized on the document. A PENDING job fails immediately with reason
// "cancelled". For a PROCESSING job cancellation is best effort: the flag is
// checked between candidates, and a job past its last check still completes.
func (s *Scheduler) Cancel(ctx context.Context, jobID, actorID string) error {
	job, err := s.deps.Store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return fmt.Errorf("%w: job %s is already %s", types.ErrInvalidTransition, jobID, job.Status)
	}

	if actorID != job.RequesterID {
		ok, err := s.deps.Authorizer.CanRequestDetection(ctx, actorID, job.DocumentID)
		if err != nil {
			return fmt.Errorf("authorizing cancel of %s: %w", jobID, err)
		}
		if !ok {
			return fmt.Errorf("%w: %s may not cancel job %s", types.ErrPermission, actorID, jobID)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if rj, ok := s.running[jobID]; ok {
		rj.cancelled.Store(true)
		log.Printf("Cancellation requested for running job %s", jobID)
		return nil
	}

	if err := s.deps.Store.CancelPending(ctx, jobID, s.now()); err != nil {
		return err
	}
	if s.active[job.DocumentID] == jobID {
		delete(s.active, job.DocumentID)
	}
	log.Printf("Cancelled pending job %s", jobID)
	return nil
}

// ActiveJob returns the active job of a document, if any.
func (s *Scheduler) ActiveJob(documentID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.active[documentID]
	return id, ok
}

// Stats is a point-in-time view of the scheduler.
type Stats struct {
	Workers    int `json:"workers"`
	Queued     int `json:"queued"`
	QueueSize  int `json:"queue_size"`
	Active     int `json:"active"`
	Processing int `json:"processing"`
}

// Stats reports queue and worker occupancy.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Workers:    s.cfg.Workers,
		Queued:     len(s.queue),
		QueueSize:  cap(s.queue),
		Active:     len(s.active),
		Processing: len(s.running),
	}
}

func (s *Scheduler) worker(ctx context.Context, id int) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-s.queue:
			s.process(ctx, id, job)
		}
	}
}

// release forgets a job once its terminal state is stored.
func (s *Scheduler) release(job types.DetectionJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active[job.DocumentID] == job.ID {
		delete(s.active, job.DocumentID)
	}
	delete(s.running, job.ID)
}

// failureDetail renders the reason stored on a FAILED job.
func failureDetail(err error) string {
	if errors.Is(err, types.ErrCancelled) {
		return types.ErrCancelled.Error()
	}
	return err.Error()
}
