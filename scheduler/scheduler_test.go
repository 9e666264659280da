package scheduler

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simcheck/docsource"
	"simcheck/fingerprint"
	"simcheck/index"
	"simcheck/scoring"
	"simcheck/store"
	"simcheck/types"
)

func words(prefix string, n int) string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return strings.Join(out, " ")
}

// faultySource wraps the in-memory archive with injectable failures.
type faultySource struct {
	*docsource.Memory

	mu        sync.Mutex
	transient map[string]int           // remaining transient failures per document
	gates     map[string]chan struct{} // fetch blocks until the gate closes
	fetched   chan string
}

func newFaultySource() *faultySource {
	return &faultySource{
		Memory:    docsource.NewMemory(),
		transient: make(map[string]int),
		gates:     make(map[string]chan struct{}),
		fetched:   make(chan string, 64),
	}
}

func (f *faultySource) failTimes(id string, n int) {
	f.mu.Lock()
	f.transient[id] = n
	f.mu.Unlock()
}

func (f *faultySource) gate(id string) chan struct{} {
	ch := make(chan struct{})
	f.mu.Lock()
	f.gates[id] = ch
	f.mu.Unlock()
	return ch
}

func (f *faultySource) GetContent(ctx context.Context, id string) (string, error) {
	f.mu.Lock()
	gate := f.gates[id]
	fail := f.transient[id] > 0
	if fail {
		f.transient[id]--
	}
	f.mu.Unlock()

	select {
	case f.fetched <- id:
	default:
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if fail {
		return "", types.Transient(errors.New("connection reset"))
	}
	return f.Memory.GetContent(ctx, id)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []types.JobCompletedEvent
}

func (p *recordingPublisher) PublishJobCompleted(_ context.Context, e types.JobCompletedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) all() []types.JobCompletedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]types.JobCompletedEvent(nil), p.events...)
}

type fixedSemantic struct{ score float64 }

func (f fixedSemantic) Similarities(_ context.Context, _ string, matched []string) ([]float64, error) {
	out := make([]float64, len(matched))
	for i := range out {
		out[i] = f.score
	}
	return out, nil
}

type harness struct {
	sched *Scheduler
	store *store.Store
	src   *faultySource
	idx   *index.Memory
	gen   *fingerprint.Generator
	pub   *recordingPublisher
}

func newHarness(t *testing.T, cfg Config, opts ...func(*Deps)) *harness {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	h := &harness{
		store: st,
		src:   newFaultySource(),
		idx:   index.NewMemory(),
		gen:   fingerprint.NewGenerator(fingerprint.Options{}),
		pub:   &recordingPublisher{},
	}
	if cfg.RetryBaseDelay == 0 {
		cfg.RetryBaseDelay = time.Millisecond
	}
	if cfg.Workers == 0 {
		cfg.Workers = 2
	}
	deps := Deps{
		Store:      st,
		Source:     h.src,
		Authorizer: docsource.NewMetaAuthorizer(h.src, []string{"admin"}),
		Index:      h.idx,
		Generator:  h.gen,
		Scorer:     scoring.NewScorer(scoring.Config{}),
		Publisher:  h.pub,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	h.sched = New(cfg, deps)
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	h.sched.Start(context.Background())
	t.Cleanup(h.sched.Stop)
}

// add archives and indexes a document owned by "owner".
func (h *harness) add(t *testing.T, id, text string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, h.src.PutDocument(ctx, &types.Document{
		DocumentMeta: types.DocumentMeta{ID: id, OwnerID: "owner"},
		Content:      text,
	}))
	if doc, err := h.gen.Prepare(id, text); err == nil {
		require.NoError(t, h.idx.Index(ctx, id, h.gen.IndexSet(doc)))
	}
}

// corpus stores a target sharing one passage with each of two candidates.
func (h *harness) corpus(t *testing.T) {
	h.add(t, "target", words("p", 100)+" "+words("q", 100)+" "+words("x", 100))
	h.add(t, "c1", words("p", 100)+" "+words("y", 100))
	h.add(t, "c2", words("q", 100)+" "+words("z", 100))
	h.add(t, "unrelated", words("u", 200))
}

func (h *harness) wait(t *testing.T, jobID string) *types.DetectionJob {
	t.Helper()
	var job *types.DetectionJob
	require.Eventually(t, func() bool {
		j, err := h.store.GetJob(context.Background(), jobID)
		require.NoError(t, err)
		job = j
		return j.Status.Terminal()
	}, 5*time.Second, 5*time.Millisecond)
	return job
}

func TestSubmitRunsDetection(t *testing.T) {
	h := newHarness(t, Config{})
	h.corpus(t)
	h.start(t)
	ctx := context.Background()

	jobID, err := h.sched.Submit(ctx, "target", "owner")
	require.NoError(t, err)

	job := h.wait(t, jobID)
	assert.Equal(t, types.JobCompleted, job.Status)
	assert.Empty(t, job.ErrorDetail)
	require.NotNil(t, job.StartedAt)
	require.NotNil(t, job.CompletedAt)

	results, err := h.store.GetResults(ctx, jobID)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, "target", r.SourceDocumentID)
		assert.NotEqual(t, "target", r.MatchedDocumentID)
		assert.GreaterOrEqual(t, r.Similarity, 0.05)
		assert.Equal(t, types.MethodShingleJaccard, r.DetectionMethod)
		assert.NotEmpty(t, r.Segments)
	}

	require.Eventually(t, func() bool { return len(h.pub.all()) == 1 }, time.Second, 5*time.Millisecond)
	event := h.pub.all()[0]
	assert.Equal(t, jobID, event.JobID)
	assert.Equal(t, types.JobCompleted, event.Status)
	assert.Equal(t, 2, event.MatchCount)
	assert.InDelta(t, results[0].Similarity, event.TopSimilarity, 1e-9)

	_, active := h.sched.ActiveJob("target")
	assert.False(t, active)
}

func TestDuplicateSubmissionRejected(t *testing.T) {
	h := newHarness(t, Config{})
	h.corpus(t)
	gate := h.src.gate("target")
	h.start(t)
	ctx := context.Background()

	first, err := h.sched.Submit(ctx, "target", "owner")
	require.NoError(t, err)

	_, err = h.sched.Submit(ctx, "target", "admin")
	require.ErrorIs(t, err, types.ErrDuplicateJob)
	var dup *types.DuplicateJobError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, first, dup.ActiveJobID)

	jobs, err := h.store.GetJobsForDocument(ctx, "target")
	require.NoError(t, err)
	assert.Len(t, jobs, 1)

	close(gate)
	assert.Equal(t, types.JobCompleted, h.wait(t, first).Status)

	third, err := h.sched.Submit(ctx, "target", "owner")
	require.NoError(t, err)
	assert.NotEqual(t, first, third)
	assert.Equal(t, types.JobCompleted, h.wait(t, third).Status)
}

func TestShortDocumentFails(t *testing.T) {
	h := newHarness(t, Config{})
	h.corpus(t)
	h.add(t, "short", words("s", 15))
	h.start(t)
	ctx := context.Background()

	jobID, err := h.sched.Submit(ctx, "short", "owner")
	require.NoError(t, err)

	job := h.wait(t, jobID)
	assert.Equal(t, types.JobFailed, job.Status)
	assert.Contains(t, job.ErrorDetail, types.ErrEmptyContent.Error())

	results, err := h.store.GetResults(ctx, jobID)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestCandidateDeletedMidJob(t *testing.T) {
	h := newHarness(t, Config{})
	h.corpus(t)
	gate := h.src.gate("target")
	h.start(t)
	ctx := context.Background()

	jobID, err := h.sched.Submit(ctx, "target", "owner")
	require.NoError(t, err)

	// The job has been claimed and is blocked on its first fetch. c1 leaves
	// the archive but stays in the index, as when the delete hook is missed.
	waitFetch(t, h.src, "target")
	running, err := h.store.GetJob(ctx, jobID)
	require.NoError(t, err)
	require.Equal(t, types.JobProcessing, running.Status)
	require.NoError(t, h.src.DeleteDocument(ctx, "c1"))
	close(gate)

	job := h.wait(t, jobID)
	require.Equal(t, types.JobCompleted, job.Status)

	results, err := h.store.GetResults(ctx, jobID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c2", results[0].MatchedDocumentID)
}

func TestAllCandidatesFailing(t *testing.T) {
	h := newHarness(t, Config{})
	h.corpus(t)
	ctx := context.Background()
	require.NoError(t, h.src.DeleteDocument(ctx, "c1"))
	require.NoError(t, h.src.DeleteDocument(ctx, "c2"))
	h.start(t)

	jobID, err := h.sched.Submit(ctx, "target", "owner")
	require.NoError(t, err)

	job := h.wait(t, jobID)
	assert.Equal(t, types.JobFailed, job.Status)
	assert.Contains(t, job.ErrorDetail, "all 2 candidates failed")
}

func TestNoCandidatesCompletesEmpty(t *testing.T) {
	h := newHarness(t, Config{})
	h.add(t, "lonely", words("l", 100))
	h.start(t)
	ctx := context.Background()

	jobID, err := h.sched.Submit(ctx, "lonely", "owner")
	require.NoError(t, err)
	assert.Equal(t, types.JobCompleted, h.wait(t, jobID).Status)

	results, err := h.store.GetResults(ctx, jobID)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSubmitAuthorization(t *testing.T) {
	h := newHarness(t, Config{})
	h.corpus(t)
	ctx := context.Background()

	_, err := h.sched.Submit(ctx, "target", "stranger")
	assert.ErrorIs(t, err, types.ErrPermission)

	_, err = h.sched.Submit(ctx, "missing", "owner")
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = h.sched.Submit(ctx, "", "owner")
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	_, err = h.sched.Submit(ctx, "target", "admin")
	assert.NoError(t, err)
}

func TestQueueFull(t *testing.T) {
	h := newHarness(t, Config{QueueSize: 1})
	h.corpus(t)
	ctx := context.Background()

	_, err := h.sched.Submit(ctx, "c1", "owner")
	require.NoError(t, err)
	_, err = h.sched.Submit(ctx, "c2", "owner")
	assert.ErrorIs(t, err, types.ErrQueueFull)

	jobs, err := h.store.GetJobsForDocument(ctx, "c2")
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestCancelPendingJob(t *testing.T) {
	h := newHarness(t, Config{})
	h.corpus(t)
	ctx := context.Background()

	jobID, err := h.sched.Submit(ctx, "target", "owner")
	require.NoError(t, err)

	assert.ErrorIs(t, h.sched.Cancel(ctx, jobID, "stranger"), types.ErrPermission)
	require.NoError(t, h.sched.Cancel(ctx, jobID, "owner"))

	job, err := h.store.GetJob(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, types.JobFailed, job.Status)
	assert.Equal(t, "cancelled", job.ErrorDetail)

	_, active := h.sched.ActiveJob("target")
	assert.False(t, active)
	assert.ErrorIs(t, h.sched.Cancel(ctx, jobID, "owner"), types.ErrInvalidTransition)

	// The stale queue entry is skipped once workers run.
	h.start(t)
	next, err := h.sched.Submit(ctx, "target", "owner")
	require.NoError(t, err)
	assert.Equal(t, types.JobCompleted, h.wait(t, next).Status)

	job, err = h.store.GetJob(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, types.JobFailed, job.Status)
}

func TestCancelRunningJob(t *testing.T) {
	h := newHarness(t, Config{})
	h.corpus(t)
	gate := h.src.gate("c1")
	h.start(t)
	ctx := context.Background()

	jobID, err := h.sched.Submit(ctx, "target", "owner")
	require.NoError(t, err)

	waitFetch(t, h.src, "c1")
	require.NoError(t, h.sched.Cancel(ctx, jobID, "admin"))
	close(gate)

	job := h.wait(t, jobID)
	assert.Equal(t, types.JobFailed, job.Status)
	assert.Equal(t, "cancelled", job.ErrorDetail)

	results, err := h.store.GetResults(ctx, jobID)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func waitFetch(t *testing.T, src *faultySource, id string) {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case got := <-src.fetched:
			if got == id {
				return
			}
		case <-timeout:
			t.Fatalf("document %s was never fetched", id)
		}
	}
}

func TestJobTimeout(t *testing.T) {
	h := newHarness(t, Config{JobTimeout: 100 * time.Millisecond})
	h.corpus(t)
	h.src.gate("target")
	h.start(t)
	ctx := context.Background()

	jobID, err := h.sched.Submit(ctx, "target", "owner")
	require.NoError(t, err)

	job := h.wait(t, jobID)
	assert.Equal(t, types.JobFailed, job.Status)
	assert.True(t, strings.HasPrefix(job.ErrorDetail, "timeout"), job.ErrorDetail)

	require.Eventually(t, func() bool {
		_, active := h.sched.ActiveJob("target")
		return !active
	}, time.Second, 5*time.Millisecond)
}

func TestTransientFailuresRetried(t *testing.T) {
	h := newHarness(t, Config{MaxAttempts: 3})
	h.corpus(t)
	h.src.failTimes("target", 2)
	h.src.failTimes("c2", 1)
	h.start(t)
	ctx := context.Background()

	jobID, err := h.sched.Submit(ctx, "target", "owner")
	require.NoError(t, err)
	assert.Equal(t, types.JobCompleted, h.wait(t, jobID).Status)

	results, err := h.store.GetResults(ctx, jobID)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestTransientFailuresExhausted(t *testing.T) {
	h := newHarness(t, Config{MaxAttempts: 3})
	h.corpus(t)
	h.src.failTimes("target", 3)
	h.start(t)

	jobID, err := h.sched.Submit(context.Background(), "target", "owner")
	require.NoError(t, err)

	job := h.wait(t, jobID)
	assert.Equal(t, types.JobFailed, job.Status)
	assert.Contains(t, job.ErrorDetail, "connection reset")
}

func TestSemanticAnnotation(t *testing.T) {
	h := newHarness(t, Config{}, func(d *Deps) { d.Semantic = fixedSemantic{score: 0.8} })
	h.corpus(t)
	h.start(t)
	ctx := context.Background()

	jobID, err := h.sched.Submit(ctx, "target", "owner")
	require.NoError(t, err)
	require.Equal(t, types.JobCompleted, h.wait(t, jobID).Status)

	results, err := h.store.GetResults(ctx, jobID)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, r := range results {
		require.NotNil(t, r.SemanticScore)
		assert.InDelta(t, 0.8, *r.SemanticScore, 1e-9)
		assert.Equal(t, types.MethodHybrid, r.DetectionMethod)
	}
}

func TestStopRejectsSubmissions(t *testing.T) {
	h := newHarness(t, Config{})
	h.corpus(t)
	h.sched.Start(context.Background())
	h.sched.Stop()

	_, err := h.sched.Submit(context.Background(), "target", "owner")
	assert.ErrorIs(t, err, types.ErrClosed)
}

func TestRecover(t *testing.T) {
	h := newHarness(t, Config{})
	h.corpus(t)
	ctx := context.Background()
	past := time.Now().UTC().Add(-time.Minute)

	pending := &types.DetectionJob{ID: "job-pending", DocumentID: "target", RequesterID: "owner", CreatedAt: past}
	require.NoError(t, h.store.CreateJob(ctx, pending))
	crashed := &types.DetectionJob{ID: "job-crashed", DocumentID: "c1", RequesterID: "owner", CreatedAt: past}
	require.NoError(t, h.store.CreateJob(ctx, crashed))
	require.NoError(t, h.store.MarkProcessing(ctx, crashed.ID, past))

	requeued, failed, err := h.sched.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, requeued)
	assert.Equal(t, 1, failed)

	job, err := h.store.GetJob(ctx, crashed.ID)
	require.NoError(t, err)
	assert.Equal(t, types.JobFailed, job.Status)
	assert.Equal(t, "interrupted", job.ErrorDetail)

	active, ok := h.sched.ActiveJob("target")
	require.True(t, ok)
	assert.Equal(t, pending.ID, active)

	h.start(t)
	assert.Equal(t, types.JobCompleted, h.wait(t, pending.ID).Status)
}

func TestSweepStale(t *testing.T) {
	h := newHarness(t, Config{JobTimeout: time.Minute})
	h.corpus(t)
	ctx := context.Background()
	old := time.Now().UTC().Add(-time.Hour)
	recent := time.Now().UTC().Add(-30 * time.Second)

	stale := &types.DetectionJob{ID: "job-stale", DocumentID: "c1", RequesterID: "owner", CreatedAt: old}
	require.NoError(t, h.store.CreateJob(ctx, stale))
	require.NoError(t, h.store.MarkProcessing(ctx, stale.ID, old))

	fresh := &types.DetectionJob{ID: "job-fresh", DocumentID: "c2", RequesterID: "owner", CreatedAt: recent}
	require.NoError(t, h.store.CreateJob(ctx, fresh))
	require.NoError(t, h.store.MarkProcessing(ctx, fresh.ID, recent))

	swept, err := h.sched.SweepStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	job, err := h.store.GetJob(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, types.JobFailed, job.Status)
	assert.Equal(t, "interrupted", job.ErrorDetail)

	job, err = h.store.GetJob(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, types.JobProcessing, job.Status)
}
