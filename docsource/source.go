// Package docsource provides access to archived documents and the
// permission checks guarding detection requests.
package docsource

import (
	"context"

	"simcheck/types"
)

// Source reads documents from the archive.
type Source interface {
	// GetContent returns the extracted text of a document.
	GetContent(ctx context.Context, documentID string) (string, error)
	// GetDocumentMeta returns ownership and catalog metadata.
	GetDocumentMeta(ctx context.Context, documentID string) (*types.DocumentMeta, error)
}

// Lister enumerates the documents that belong in the similarity index.
type Lister interface {
	ListIndexableDocuments(ctx context.Context) ([]string, error)
}

// Writer stores and deletes documents.
type Writer interface {
	PutDocument(ctx context.Context, doc *types.Document) error
	DeleteDocument(ctx context.Context, documentID string) error
}

// Archive is a full read/write document store.
type Archive interface {
	Source
	Lister
	Writer
}

// Authorizer decides who may request detection on a document.
type Authorizer interface {
	CanRequestDetection(ctx context.Context, userID, documentID string) (bool, error)
}
