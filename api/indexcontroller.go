package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterIndexRoutes registers similarity index maintenance endpoints.
func RegisterIndexRoutes(r *gin.Engine, h *Handlers) {
	g := r.Group("/api/index")
	g.POST("/documents/:id", h.handleIndexDocument)
	g.DELETE("/documents/:id", h.handleUnindexDocument)
	g.POST("/rebuild", h.handleRebuild)
}

func (h *Handlers) handleIndexDocument(c *gin.Context) {
	if err := h.Corpus.OnDocumentCreated(c.Request.Context(), c.Param("id")); err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "indexed", "document_id": c.Param("id")})
}

func (h *Handlers) handleUnindexDocument(c *gin.Context) {
	if err := h.Corpus.OnDocumentDeleted(c.Request.Context(), c.Param("id")); err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "removed", "document_id": c.Param("id")})
}

// handleRebuild handles POST /api/index/rebuild
// The rebuild runs synchronously; large archives should rely on the cron schedule.
func (h *Handlers) handleRebuild(c *gin.Context) {
	stats, err := h.Corpus.Rebuild(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
