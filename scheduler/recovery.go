package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"

	"simcheck/types"
)

// interruptedDetail is the failure reason of jobs whose worker went away.
const interruptedDetail = "interrupted"

// Recover restores scheduler state after a restart. PROCESSING jobs left by a
// previous process are failed as interrupted; PENDING jobs are registered as
// active and queued again in creation order. Call it before Start.
func (s *Scheduler) Recover(ctx context.Context) (requeued, failed int, err error) {
	now := s.now()

	stale, err := s.deps.Store.JobsWithStatus(ctx, types.JobProcessing, now)
	if err != nil {
		return 0, 0, fmt.Errorf("listing processing jobs: %w", err)
	}
	for _, job := range stale {
		if err := s.deps.Store.Fail(ctx, job.ID, interruptedDetail, now); err != nil {
			if errors.Is(err, types.ErrInvalidTransition) {
				continue
			}
			return 0, failed, fmt.Errorf("failing interrupted job %s: %w", job.ID, err)
		}
		failed++
	}

	pending, err := s.deps.Store.JobsWithStatus(ctx, types.JobPending, now)
	if err != nil {
		return 0, failed, fmt.Errorf("listing pending jobs: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range pending {
		if _, exists := s.active[job.DocumentID]; exists {
			continue
		}
		if len(s.queue) >= cap(s.queue) {
			log.Printf("Warning: queue full during recovery, %d pending jobs left for the next run", len(pending)-requeued)
			break
		}
		s.active[job.DocumentID] = job.ID
		s.queue <- job
		requeued++
	}

	if requeued > 0 || failed > 0 {
		log.Printf("🔁 Recovered jobs: %d re-queued, %d interrupted", requeued, failed)
	}
	return requeued, failed, nil
}

// SweepStale fails PROCESSING jobs that have outlived twice the job timeout
// and are not running in this process, which frees their documents for new
// submissions. It returns the number of jobs swept.
func (s *Scheduler) SweepStale(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-2 * s.cfg.JobTimeout)
	jobs, err := s.deps.Store.JobsWithStatus(ctx, types.JobProcessing, cutoff)
	if err != nil {
		return 0, fmt.Errorf("listing stale jobs: %w", err)
	}

	swept := 0
	for _, job := range jobs {
		if job.StartedAt != nil && job.StartedAt.After(cutoff) {
			continue
		}
		s.mu.Lock()
		_, local := s.running[job.ID]
		s.mu.Unlock()
		if local {
			continue
		}

		err := s.deps.Store.Fail(ctx, job.ID, interruptedDetail, s.now())
		if errors.Is(err, types.ErrInvalidTransition) {
			continue
		}
		if err != nil {
			return swept, fmt.Errorf("sweeping job %s: %w", job.ID, err)
		}
		s.release(job)
		swept++
		log.Printf("🧹 Swept stale job %s (document %s)", job.ID, job.DocumentID)
	}
	return swept, nil
}
