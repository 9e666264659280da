// Package api exposes the detection service over HTTP with gin.
package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"simcheck/corpus"
	"simcheck/docsource"
	"simcheck/scheduler"
	"simcheck/types"
)

// Jobs is the scheduler surface the handlers use.
type Jobs interface {
	Submit(ctx context.Context, documentID, requesterID string) (string, error)
	Cancel(ctx context.Context, jobID, actorID string) error
	Stats() scheduler.Stats
}

// Results is the read side of the result store.
type Results interface {
	GetJob(ctx context.Context, jobID string) (*types.DetectionJob, error)
	GetResults(ctx context.Context, jobID string) ([]types.MatchResult, error)
	GetJobsForDocument(ctx context.Context, documentID string) ([]types.DetectionJob, error)
	JobsByRequester(ctx context.Context, requesterID string) ([]types.DetectionJob, error)
	CountByStatus(ctx context.Context) (map[types.JobStatus]int, error)
}

// Corpus keeps the index in step with the archive.
type Corpus interface {
	OnDocumentCreated(ctx context.Context, documentID string) error
	OnDocumentDeleted(ctx context.Context, documentID string) error
	Rebuild(ctx context.Context) (corpus.RebuildStats, error)
}

// Counter reports how many documents are indexed.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// Handlers carries the collaborators of every route. Archive is optional;
// without it the document upload routes are not registered.
type Handlers struct {
	Jobs    Jobs
	Results Results
	Corpus  Corpus
	Index   Counter
	Archive docsource.Writer
	Health  func(ctx context.Context) error

	started time.Time
}

// NewRouter constructs a Gin engine with registered routes.
func NewRouter(h *Handlers) *gin.Engine {
	if h.started.IsZero() {
		h.started = time.Now()
	}

	r := gin.New()
	r.Use(gin.Recovery())

	RegisterJobRoutes(r, h)
	RegisterDocumentRoutes(r, h)
	RegisterIndexRoutes(r, h)
	RegisterHealthRoutes(r, h)
	return r
}
