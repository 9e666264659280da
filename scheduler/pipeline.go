package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"simcheck/fingerprint"
	"simcheck/index"
	"simcheck/types"
)

// outcome is what a pipeline run hands back to its worker.
type outcome struct {
	results    []types.MatchResult
	candidates int
	skipped    int
	err        error
}

// process claims a queued job, runs it under the job timeout and records the
// terminal state.
func (s *Scheduler) process(ctx context.Context, workerID int, job types.DetectionJob) {
	if ctx.Err() != nil {
		// Shutting down: leave the job PENDING for the next Recover.
		return
	}
	rj := &runningJob{documentID: job.DocumentID}
	s.mu.Lock()
	s.running[job.ID] = rj
	s.mu.Unlock()

	started := s.now()
	err := retryDo(ctx, s.policy(), "claiming job "+job.ID, func(c context.Context) error {
		return s.deps.Store.MarkProcessing(c, job.ID, started)
	})
	if err != nil {
		if errors.Is(err, types.ErrInvalidTransition) {
			log.Printf("[Worker %d] Skipping job %s: no longer pending", workerID, job.ID)
			s.release(job)
			return
		}
		s.finish(job, outcome{err: fmt.Errorf("claiming job: %w", err)})
		return
	}
	log.Printf("[Worker %d] Processing job %s (document %s)", workerID, job.ID, job.DocumentID)

	jobCtx, cancel := context.WithTimeout(ctx, s.cfg.JobTimeout)
	defer cancel()

	// The pipeline never writes job state, so an abandoned run cannot
	// overwrite the terminal state recorded below.
	done := make(chan outcome, 1)
	go func() { done <- s.run(jobCtx, job, rj) }()

	var out outcome
	select {
	case out = <-done:
		if out.err != nil && jobCtx.Err() != nil && !errors.Is(out.err, types.ErrCancelled) {
			out = outcome{err: s.deadlineError(ctx)}
		}
	case <-jobCtx.Done():
		out = outcome{err: s.deadlineError(ctx)}
	}
	s.finish(job, out)
}

func (s *Scheduler) deadlineError(parent context.Context) error {
	if parent.Err() != nil {
		return errors.New("interrupted: scheduler shutting down")
	}
	return fmt.Errorf("%w: exceeded %s", types.ErrTimeout, s.cfg.JobTimeout)
}

// run fetches, fingerprints and scores the job's document against every candidate.
func (s *Scheduler) run(ctx context.Context, job types.DetectionJob, rj *runningJob) outcome {
	p := s.policy()

	if rj.cancelled.Load() {
		return outcome{err: types.ErrCancelled}
	}

	content, err := retry(ctx, p, "fetching document "+job.DocumentID, func(c context.Context) (string, error) {
		return s.deps.Source.GetContent(c, job.DocumentID)
	})
	if err != nil {
		return outcome{err: fmt.Errorf("fetching document: %w", err)}
	}

	target, err := s.deps.Generator.Prepare(job.DocumentID, content)
	if err != nil {
		return outcome{err: err}
	}

	candidates, err := retry(ctx, p, "querying index", func(c context.Context) ([]index.Candidate, error) {
		return s.candidates(c, target)
	})
	if err != nil {
		return outcome{err: fmt.Errorf("querying index: %w", err)}
	}

	out := outcome{candidates: len(candidates)}
	var (
		matchedTexts []string
		lastErr      error
	)
	for _, cand := range candidates {
		if rj.cancelled.Load() {
			return outcome{err: types.ErrCancelled}
		}
		if err := ctx.Err(); err != nil {
			return outcome{err: err}
		}

		text, err := retry(ctx, p, "fetching candidate "+cand.DocumentID, func(c context.Context) (string, error) {
			return s.deps.Source.GetContent(c, cand.DocumentID)
		})
		if err != nil {
			if ctx.Err() != nil {
				return outcome{err: ctx.Err()}
			}
			log.Printf("Warning: job %s skipping candidate %s: %v", job.ID, cand.DocumentID, err)
			out.skipped++
			lastErr = err
			continue
		}

		doc, err := s.deps.Generator.Prepare(cand.DocumentID, text)
		if err != nil {
			log.Printf("Warning: job %s skipping candidate %s: %v", job.ID, cand.DocumentID, err)
			out.skipped++
			lastErr = err
			continue
		}

		if res := s.deps.Scorer.Score(target, doc); res != nil {
			out.results = append(out.results, *res)
			matchedTexts = append(matchedTexts, strings.Join(doc.Tokens, " "))
		}
	}

	if out.candidates > 0 && out.skipped == out.candidates {
		return outcome{err: fmt.Errorf("all %d candidates failed: %w", out.candidates, lastErr)}
	}
	if rj.cancelled.Load() {
		return outcome{err: types.ErrCancelled}
	}

	s.annotateSemantic(ctx, job, strings.Join(target.Tokens, " "), out.results, matchedTexts)

	sort.SliceStable(out.results, func(i, j int) bool {
		if out.results[i].Similarity != out.results[j].Similarity {
			return out.results[i].Similarity > out.results[j].Similarity
		}
		return out.results[i].MatchedDocumentID < out.results[j].MatchedDocumentID
	})
	return out
}

func (s *Scheduler) candidates(ctx context.Context, target *fingerprint.Document) ([]index.Candidate, error) {
	found, err := s.deps.Index.Candidates(ctx, s.deps.Generator.IndexSet(target), s.cfg.MinShared, target.ID)
	if err != nil {
		return nil, err
	}
	out := found[:0]
	for _, c := range found {
		if c.DocumentID != target.ID {
			out = append(out, c)
		}
	}
	return out, nil
}

// annotateSemantic adds embedding similarities when a semantic scorer is
// configured. Failures only cost the extra signal.
func (s *Scheduler) annotateSemantic(ctx context.Context, job types.DetectionJob, source string, results []types.MatchResult, matched []string) {
	if s.deps.Semantic == nil || len(results) == 0 {
		return
	}
	sims, err := s.deps.Semantic.Similarities(ctx, source, matched)
	if err != nil {
		log.Printf("Warning: job %s semantic scoring skipped: %v", job.ID, err)
		return
	}
	for i := range results {
		v := sims[i]
		results[i].SemanticScore = &v
		results[i].DetectionMethod = types.MethodHybrid
	}
}

// finish stores the terminal state, releases the document and publishes the outcome.
func (s *Scheduler) finish(job types.DetectionJob, out outcome) {
	// The job context may already be gone; terminal writes get their own budget.
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(s.cfg.MaxAttempts+1)*s.cfg.CallTimeout)
	defer cancel()

	now := s.now()
	status := types.JobCompleted
	if out.err == nil {
		err := retryDo(ctx, s.policy(), "storing results of "+job.ID, func(c context.Context) error {
			return s.deps.Store.Complete(c, job.ID, out.results, now)
		})
		if errors.Is(err, types.ErrInvalidTransition) {
			log.Printf("Warning: job %s finished after leaving PROCESSING, results discarded", job.ID)
			s.release(job)
			return
		}
		if err != nil {
			out = outcome{err: fmt.Errorf("persisting results: %w", err)}
		}
	}

	detail := ""
	if out.err != nil {
		status = types.JobFailed
		detail = failureDetail(out.err)
		err := retryDo(ctx, s.policy(), "failing job "+job.ID, func(c context.Context) error {
			return s.deps.Store.Fail(c, job.ID, detail, now)
		})
		if err != nil && !errors.Is(err, types.ErrInvalidTransition) {
			log.Printf("❌ Could not record failure of job %s: %v", job.ID, err)
		}
		log.Printf("❌ Job %s failed: %s", job.ID, detail)
	} else {
		log.Printf("✅ Job %s completed: %d matches from %d candidates (%d skipped)",
			job.ID, len(out.results), out.candidates, out.skipped)
	}

	s.release(job)
	s.publish(ctx, job, status, detail, out.results, now)
}

func (s *Scheduler) publish(ctx context.Context, job types.DetectionJob, status types.JobStatus, detail string, results []types.MatchResult, at time.Time) {
	if s.deps.Publisher == nil {
		return
	}
	event := types.JobCompletedEvent{
		JobID:       job.ID,
		DocumentID:  job.DocumentID,
		RequesterID: job.RequesterID,
		Status:      status,
		MatchCount:  len(results),
		Error:       detail,
		CompletedAt: at,
	}
	if len(results) > 0 {
		event.TopSimilarity = results[0].Similarity
	}
	if err := s.deps.Publisher.PublishJobCompleted(ctx, event); err != nil {
		log.Printf("Warning: failed to publish completion of job %s: %v", job.ID, err)
	}
}
