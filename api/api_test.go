package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simcheck/corpus"
	"simcheck/docsource"
	"simcheck/fingerprint"
	"simcheck/index"
	"simcheck/scheduler"
	"simcheck/scoring"
	"simcheck/store"
	"simcheck/types"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	router *gin.Engine
	sched  *scheduler.Scheduler
	store  *store.Store
	idx    *index.Memory
}

func setupTestEnv(t *testing.T, cfg scheduler.Config) *testEnv {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	archive := docsource.NewMemory()
	idx := index.NewMemory()
	gen := fingerprint.NewGenerator(fingerprint.Options{})
	cfg.RetryBaseDelay = time.Millisecond

	sched := scheduler.New(cfg, scheduler.Deps{
		Store:      st,
		Source:     archive,
		Authorizer: docsource.NewMetaAuthorizer(archive, []string{"admin"}),
		Index:      idx,
		Generator:  gen,
		Scorer:     scoring.NewScorer(scoring.Config{}),
	})

	h := &Handlers{
		Jobs:    sched,
		Results: st,
		Corpus:  corpus.NewIndexer(archive, archive, idx, gen, 2),
		Index:   idx,
		Archive: archive,
		Health:  st.Ping,
	}
	return &testEnv{router: NewRouter(h), sched: sched, store: st, idx: idx}
}

func (e *testEnv) start(t *testing.T) {
	e.sched.Start(context.Background())
	t.Cleanup(e.sched.Stop)
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func words(prefix string, n int) string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return strings.Join(out, " ")
}

// upload stores the same shared passage in "essay" and "copy".
func (e *testEnv) upload(t *testing.T) {
	t.Helper()
	docs := map[string]string{
		"essay": words("shared", 120) + " " + words("own", 80),
		"copy":  words("shared", 120) + " " + words("other", 80),
	}
	for id, content := range docs {
		w := e.do(t, http.MethodPut, "/api/documents/"+id, PutDocumentRequest{OwnerID: "alice", Content: content})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, true, decode[map[string]any](t, w)["indexed"])
	}
}

func (e *testEnv) submit(t *testing.T, doc, requester string) *httptest.ResponseRecorder {
	return e.do(t, http.MethodPost, "/api/jobs", SubmitJobRequest{DocumentID: doc, RequesterID: requester})
}

func TestSubmitJobErrors(t *testing.T) {
	env := setupTestEnv(t, scheduler.Config{})
	env.upload(t)

	w := env.submit(t, "essay", "alice")
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	jobID := decode[SubmitJobResponse](t, w).JobID
	require.NotEmpty(t, jobID)

	w = env.submit(t, "essay", "admin")
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, jobID, decode[map[string]any](t, w)["active_job_id"])

	assert.Equal(t, http.StatusForbidden, env.submit(t, "copy", "mallory").Code)
	assert.Equal(t, http.StatusNotFound, env.submit(t, "missing", "alice").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/jobs", map[string]string{"document_id": "essay"}).Code)
}

func TestQueueFullIsUnavailable(t *testing.T) {
	env := setupTestEnv(t, scheduler.Config{QueueSize: 1})
	env.upload(t)

	require.Equal(t, http.StatusAccepted, env.submit(t, "essay", "alice").Code)
	assert.Equal(t, http.StatusServiceUnavailable, env.submit(t, "copy", "alice").Code)
}

func TestCancelJob(t *testing.T) {
	env := setupTestEnv(t, scheduler.Config{})
	env.upload(t)
	jobID := decode[SubmitJobResponse](t, env.submit(t, "essay", "alice")).JobID

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodDelete, "/api/jobs/"+jobID, nil).Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodDelete, "/api/jobs/"+jobID+"?actor_id=mallory", nil).Code)
	w := env.do(t, http.MethodDelete, "/api/jobs/"+jobID+"?actor_id=alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, CancelJobResponse{JobID: jobID, Status: types.JobFailed, Cancelled: true}, decode[CancelJobResponse](t, w))

	w = env.do(t, http.MethodGet, "/api/jobs/"+jobID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	job := decode[types.DetectionJob](t, w)
	assert.Equal(t, types.JobFailed, job.Status)
	assert.Equal(t, "cancelled", job.ErrorDetail)

	assert.Equal(t, http.StatusConflict, env.do(t, http.MethodDelete, "/api/jobs/"+jobID+"?actor_id=alice", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, "/api/jobs/nope?actor_id=alice", nil).Code)
}

// acceptingJobs accepts every cancel without touching the store.
type acceptingJobs struct{ Jobs }

func (acceptingJobs) Cancel(context.Context, string, string) error { return nil }

func TestCancelReportsObservedStatus(t *testing.T) {
	env := setupTestEnv(t, scheduler.Config{})
	ctx := context.Background()
	now := time.Now()
	for _, id := range []string{"running", "finished"} {
		require.NoError(t, env.store.CreateJob(ctx, &types.DetectionJob{ID: id, DocumentID: "doc-" + id, RequesterID: "alice"}))
		require.NoError(t, env.store.MarkProcessing(ctx, id, now))
	}
	require.NoError(t, env.store.Complete(ctx, "finished", nil, now))

	router := NewRouter(&Handlers{Jobs: acceptingJobs{}, Results: env.store, Index: env.idx})
	cancel := func(id string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodDelete, "/api/jobs/"+id+"?actor_id=alice", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	w := cancel("running")
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, CancelJobResponse{JobID: "running", Status: types.JobProcessing}, decode[CancelJobResponse](t, w))

	// The job finished before it saw the flag.
	w = cancel("finished")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, CancelJobResponse{JobID: "finished", Status: types.JobCompleted}, decode[CancelJobResponse](t, w))
}

func TestJobResults(t *testing.T) {
	env := setupTestEnv(t, scheduler.Config{Workers: 1})
	env.upload(t)
	env.start(t)

	jobID := decode[SubmitJobResponse](t, env.submit(t, "essay", "alice")).JobID
	require.Eventually(t, func() bool {
		w := env.do(t, http.MethodGet, "/api/jobs/"+jobID, nil)
		return decode[types.DetectionJob](t, w).Status == types.JobCompleted
	}, 5*time.Second, 10*time.Millisecond)

	w := env.do(t, http.MethodGet, "/api/jobs/"+jobID+"/results", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[JobResultsResponse](t, w)
	assert.Equal(t, jobID, resp.Job.ID)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "copy", resp.Results[0].MatchedDocumentID)
	assert.Greater(t, resp.Results[0].Similarity, 0.05)

	w = env.do(t, http.MethodGet, "/api/documents/essay/jobs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	docJobs := decode[JobListResponse](t, w)
	assert.Equal(t, "essay", docJobs.DocumentID)
	require.Len(t, docJobs.Jobs, 1)
	assert.Equal(t, jobID, docJobs.Jobs[0].ID)

	w = env.do(t, http.MethodGet, "/api/users/alice/jobs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[JobListResponse](t, w).Jobs, 1)

	// A finished job can no longer be cancelled.
	w = env.do(t, http.MethodDelete, "/api/jobs/"+jobID+"?actor_id=alice", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/jobs/nope/results", nil).Code)
}

func TestIndexRoutes(t *testing.T) {
	env := setupTestEnv(t, scheduler.Config{})
	env.upload(t)
	ctx := context.Background()

	require.Equal(t, http.StatusOK, env.do(t, http.MethodDelete, "/api/index/documents/copy", nil).Code)
	n, err := env.idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/index/documents/copy", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/api/index/documents/missing", nil).Code)

	w := env.do(t, http.MethodPost, "/api/index/rebuild", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[corpus.RebuildStats](t, w)
	assert.Equal(t, 2, stats.Indexed)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodDelete, "/api/documents/copy", nil).Code)
	n, err = env.idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStatsAndHealth(t *testing.T) {
	env := setupTestEnv(t, scheduler.Config{Workers: 3})
	env.upload(t)
	require.Equal(t, http.StatusAccepted, env.submit(t, "essay", "alice").Code)

	w := env.do(t, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[StatsResponse](t, w)
	assert.Equal(t, 1, stats.Jobs[types.JobPending])
	assert.Equal(t, 2, stats.IndexedDocuments)
	assert.Equal(t, 3, stats.Scheduler.Workers)
	assert.Equal(t, 1, stats.Scheduler.Active)

	w = env.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUploadValidation(t *testing.T) {
	env := setupTestEnv(t, scheduler.Config{})
	w := env.do(t, http.MethodPut, "/api/documents/x", map[string]string{"content": "text"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Too short to fingerprint: archived, left out of the index.
	w = env.do(t, http.MethodPut, "/api/documents/x", PutDocumentRequest{OwnerID: "alice", Content: "a few words"})
	require.Equal(t, http.StatusOK, w.Code)
	n, err := env.idx.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

type stubSweeper struct{ calls int }

func (s *stubSweeper) SweepStale(context.Context) (int, error) {
	s.calls++
	return 0, nil
}

func TestServerCron(t *testing.T) {
	env := setupTestEnv(t, scheduler.Config{})
	sweeper := &stubSweeper{}
	srv := NewServer(&Handlers{
		Jobs:    env.sched,
		Results: env.store,
		Index:   env.idx,
		Corpus:  stubCorpus{},
	}, sweeper, "0")

	assert.Error(t, srv.StartCron("not a schedule", ""))
	require.NoError(t, srv.StartCron("", ""))
	srv.sweep()
	srv.rebuild()
	assert.Equal(t, 1, sweeper.calls)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, srv.Shutdown(ctx))
}

type stubCorpus struct{}

func (stubCorpus) OnDocumentCreated(context.Context, string) error { return nil }
func (stubCorpus) OnDocumentDeleted(context.Context, string) error { return nil }
func (stubCorpus) Rebuild(context.Context) (corpus.RebuildStats, error) {
	return corpus.RebuildStats{}, corpus.ErrRebuildRunning
}

func TestRespondWithErrorFallsBackTo500(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	respondWithError(c, errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "boom")
}
