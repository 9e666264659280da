package client

import (
	"context"
	"net/http"
	"net/url"
)

// Document is an upload into the archive.
type Document struct {
	OwnerID     string   `json:"owner_id"`
	IsPublic    bool     `json:"is_public"`
	Title       string   `json:"title,omitempty"`
	Category    string   `json:"category,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	ContentType string   `json:"content_type,omitempty"`
	Content     string   `json:"content"`
}

// PutResult reports whether an upload made it into the index.
type PutResult struct {
	DocumentID string `json:"document_id"`
	Indexed    bool   `json:"indexed"`
}

// Stats is the server's summary.
type Stats struct {
	Jobs             map[string]int `json:"jobs"`
	IndexedDocuments int            `json:"indexed_documents"`
	Scheduler        struct {
		Workers    int `json:"workers"`
		Queued     int `json:"queued"`
		QueueSize  int `json:"queue_size"`
		Active     int `json:"active"`
		Processing int `json:"processing"`
	} `json:"scheduler"`
	Uptime string `json:"uptime"`
}

// PutDocument uploads a document and indexes it.
func (c *Client) PutDocument(ctx context.Context, id string, doc Document) (*PutResult, error) {
	var res PutResult
	if err := c.doJSONRequest(ctx, http.MethodPut, "/api/documents/"+url.PathEscape(id), doc, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// DeleteDocument removes a document from the archive and the index.
func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	return c.doJSONRequest(ctx, http.MethodDelete, "/api/documents/"+url.PathEscape(id), nil, nil)
}

// RebuildIndex re-indexes the whole archive.
func (c *Client) RebuildIndex(ctx context.Context) error {
	return c.doJSONRequest(ctx, http.MethodPost, "/api/index/rebuild", nil, nil)
}

// Stats fetches job counts and scheduler occupancy.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	var s Stats
	if err := c.doJSONRequest(ctx, http.MethodGet, "/api/stats", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Health reports whether the server answers its health check.
func (c *Client) Health(ctx context.Context) error {
	return c.doJSONRequest(ctx, http.MethodGet, "/api/health", nil, nil)
}
