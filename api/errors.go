package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"simcheck/corpus"
	"simcheck/types"
)

// respondWithError maps domain errors onto HTTP statuses.
func respondWithError(c *gin.Context, err error) {
	var dup *types.DuplicateJobError
	switch {
	case errors.As(err, &dup):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "active_job_id": dup.ActiveJobID})
	case errors.Is(err, types.ErrPermission):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, types.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, types.ErrInvalidInput), errors.Is(err, types.ErrEmptyContent):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, types.ErrInvalidTransition), errors.Is(err, corpus.ErrRebuildRunning):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, types.ErrQueueFull), errors.Is(err, types.ErrClosed), errors.Is(err, types.ErrTransientIO):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		log.Printf("❌ %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
