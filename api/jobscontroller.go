package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"simcheck/types"
)

// RegisterJobRoutes registers detection job endpoints.
func RegisterJobRoutes(r *gin.Engine, h *Handlers) {
	g := r.Group("/api/jobs")
	g.POST("", h.handleSubmitJob)
	g.GET("/:id", h.handleGetJob)
	g.DELETE("/:id", h.handleCancelJob)
	g.GET("/:id/results", h.handleGetResults)

	r.GET("/api/users/:id/jobs", h.handleGetUserJobs)
}

// SubmitJobRequest asks for a detection run on a document.
type SubmitJobRequest struct {
	DocumentID  string `json:"document_id" binding:"required"`
	RequesterID string `json:"requester_id" binding:"required"`
}

// SubmitJobResponse acknowledges a queued job.
type SubmitJobResponse struct {
	JobID  string          `json:"job_id"`
	Status types.JobStatus `json:"status"`
}

// JobResultsResponse is a job together with its matches.
type JobResultsResponse struct {
	Job     *types.DetectionJob `json:"job"`
	Results []types.MatchResult `json:"results"`
}

// handleSubmitJob handles POST /api/jobs
func (h *Handlers) handleSubmitJob(c *gin.Context) {
	var req SubmitJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	jobID, err := h.Jobs.Submit(c.Request.Context(), req.DocumentID, req.RequesterID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, SubmitJobResponse{JobID: jobID, Status: types.JobPending})
}

func (h *Handlers) handleGetJob(c *gin.Context) {
	job, err := h.Results.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// handleCancelJob handles DELETE /api/jobs/:id?actor_id=
func (h *Handlers) handleCancelJob(c *gin.Context) {
	actor := c.Query("actor_id")
	if actor == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "actor_id is required"})
		return
	}
	ctx := c.Request.Context()
	if err := h.Jobs.Cancel(ctx, c.Param("id"), actor); err != nil {
		respondWithError(c, err)
		return
	}

	// A running job only sees the request between candidates and may still
	// complete, so report what the store holds now.
	job, err := h.Results.GetJob(ctx, c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}
	resp := CancelJobResponse{JobID: job.ID, Status: job.Status}
	switch {
	case job.Status == types.JobFailed && job.ErrorDetail == "cancelled":
		resp.Cancelled = true
		c.JSON(http.StatusOK, resp)
	case job.Status.Terminal():
		c.JSON(http.StatusOK, resp)
	default:
		c.JSON(http.StatusAccepted, resp)
	}
}

// CancelJobResponse reports the job state observed after a cancel request.
// Cancelled is false while a running job has yet to notice the request, and
// when it finished first.
type CancelJobResponse struct {
	JobID     string          `json:"job_id"`
	Status    types.JobStatus `json:"status"`
	Cancelled bool            `json:"cancelled"`
}

// JobListResponse wraps a list of jobs.
type JobListResponse struct {
	DocumentID string               `json:"document_id,omitempty"`
	Jobs       []types.DetectionJob `json:"jobs"`
}

func (h *Handlers) handleGetResults(c *gin.Context) {
	ctx := c.Request.Context()
	job, err := h.Results.GetJob(ctx, c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}
	results, err := h.Results.GetResults(ctx, job.ID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if results == nil {
		results = []types.MatchResult{}
	}
	c.JSON(http.StatusOK, JobResultsResponse{Job: job, Results: results})
}

func (h *Handlers) handleGetUserJobs(c *gin.Context) {
	jobs, err := h.Results.JobsByRequester(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, JobListResponse{Jobs: nonNil(jobs)})
}

func nonNil(jobs []types.DetectionJob) []types.DetectionJob {
	if jobs == nil {
		return []types.DetectionJob{}
	}
	return jobs
}
