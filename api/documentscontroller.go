package api

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"simcheck/config"
	"simcheck/types"
)

// RegisterDocumentRoutes registers document archive endpoints.
func RegisterDocumentRoutes(r *gin.Engine, h *Handlers) {
	g := r.Group("/api/documents")
	g.GET("/:id/jobs", h.handleGetDocumentJobs)
	if h.Archive != nil {
		g.PUT("/:id", h.handlePutDocument)
		g.DELETE("/:id", h.handleDeleteDocument)
	}
}

// PutDocumentRequest uploads a document into the archive.
type PutDocumentRequest struct {
	OwnerID     string   `json:"owner_id" binding:"required"`
	IsPublic    bool     `json:"is_public"`
	Title       string   `json:"title"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	ContentType string   `json:"content_type"`
	Content     string   `json:"content" binding:"required"`
}

func (h *Handlers) handleGetDocumentJobs(c *gin.Context) {
	jobs, err := h.Results.GetJobsForDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, JobListResponse{DocumentID: c.Param("id"), Jobs: nonNil(jobs)})
}

// handlePutDocument handles PUT /api/documents/:id
// The document is archived and then indexed before the response.
func (h *Handlers) handlePutDocument(c *gin.Context) {
	var req PutDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Content) > config.MaxContentBytes {
		respondWithError(c, fmt.Errorf("%w: content exceeds %d bytes", types.ErrInvalidInput, config.MaxContentBytes))
		return
	}

	ctx := c.Request.Context()
	doc := &types.Document{
		DocumentMeta: types.DocumentMeta{
			ID:          c.Param("id"),
			OwnerID:     req.OwnerID,
			IsPublic:    req.IsPublic,
			Title:       req.Title,
			Category:    req.Category,
			Tags:        req.Tags,
			ContentType: req.ContentType,
			UpdatedAt:   time.Now().UTC(),
		},
		Content: req.Content,
	}
	if err := h.Archive.PutDocument(ctx, doc); err != nil {
		respondWithError(c, err)
		return
	}

	indexed := true
	if err := h.Corpus.OnDocumentCreated(ctx, doc.ID); err != nil {
		log.Printf("Warning: stored %s but indexing failed: %v", doc.ID, err)
		indexed = false
	}
	c.JSON(http.StatusOK, gin.H{"status": "stored", "document_id": doc.ID, "indexed": indexed})
}

func (h *Handlers) handleDeleteDocument(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if err := h.Corpus.OnDocumentDeleted(ctx, id); err != nil {
		respondWithError(c, err)
		return
	}
	if err := h.Archive.DeleteDocument(ctx, id); err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted", "document_id": id})
}
