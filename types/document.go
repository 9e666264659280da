package types

import "time"

// DocumentMeta is the ownership and catalog metadata of an archived document.
type DocumentMeta struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	IsPublic    bool      `json:"is_public"`
	Title       string    `json:"title,omitempty"`
	Category    string    `json:"category,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

// Document is an archived document together with its extracted text.
type Document struct {
	DocumentMeta
	Content string `json:"content"`
}

// DocumentEvent announces corpus membership changes.
type DocumentEvent struct {
	Type       DocumentEventType `json:"type"`
	DocumentID string            `json:"document_id"`
	At         time.Time         `json:"at,omitempty"`
}

// DocumentEventType enumerates corpus membership changes.
type DocumentEventType string

const (
	DocumentCreated DocumentEventType = "created"
	DocumentUpdated DocumentEventType = "updated"
	DocumentDeleted DocumentEventType = "deleted"
)
