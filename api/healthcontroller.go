package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"simcheck/scheduler"
	"simcheck/types"
)

// RegisterHealthRoutes registers health and statistics endpoints.
func RegisterHealthRoutes(r *gin.Engine, h *Handlers) {
	r.GET("/api/health", h.handleHealth)
	r.GET("/api/stats", h.handleStats)
}

// StatsResponse summarizes the service.
type StatsResponse struct {
	Jobs             map[types.JobStatus]int `json:"jobs"`
	IndexedDocuments int                     `json:"indexed_documents"`
	Scheduler        scheduler.Stats         `json:"scheduler"`
	Uptime           string                  `json:"uptime"`
}

func (h *Handlers) handleHealth(c *gin.Context) {
	if h.Health != nil {
		if err := h.Health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handlers) handleStats(c *gin.Context) {
	ctx := c.Request.Context()
	counts, err := h.Results.CountByStatus(ctx)
	if err != nil {
		respondWithError(c, err)
		return
	}
	indexed, err := h.Index.Count(ctx)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, StatsResponse{
		Jobs:             counts,
		IndexedDocuments: indexed,
		Scheduler:        h.Jobs.Stats(),
		Uptime:           time.Since(h.started).Round(time.Second).String(),
	})
}
