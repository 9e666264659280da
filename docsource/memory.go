package docsource

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"

	"simcheck/types"
)

// Memory is an in-process archive used when no bucket is configured.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]types.Document
}

var _ Archive = (*Memory)(nil)

// NewMemory creates an empty archive.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string]types.Document)}
}

// GetContent returns the stored text, extracting HTML bodies.
func (m *Memory) GetContent(_ context.Context, documentID string) (string, error) {
	m.mu.RLock()
	doc, ok := m.docs[documentID]
	m.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("document %s: %w", documentID, types.ErrNotFound)
	}
	return extractText([]byte(doc.Content), doc.ContentType, &url.URL{Scheme: "memory", Path: "/" + documentID})
}

// GetDocumentMeta returns a copy of the stored metadata.
func (m *Memory) GetDocumentMeta(_ context.Context, documentID string) (*types.DocumentMeta, error) {
	m.mu.RLock()
	doc, ok := m.docs[documentID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("document %s: %w", documentID, types.ErrNotFound)
	}
	meta := doc.DocumentMeta
	meta.Tags = append([]string(nil), doc.Tags...)
	return &meta, nil
}

// ListIndexableDocuments returns every stored id in lexical order.
func (m *Memory) ListIndexableDocuments(context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.docs))
	for id := range m.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// PutDocument stores or replaces a document.
func (m *Memory) PutDocument(_ context.Context, doc *types.Document) error {
	if doc.ID == "" {
		return fmt.Errorf("%w: document id is required", types.ErrInvalidInput)
	}
	stored := *doc
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = time.Now().UTC()
	}
	m.mu.Lock()
	m.docs[doc.ID] = stored
	m.mu.Unlock()
	return nil
}

// DeleteDocument removes a document; deleting a missing one is a no-op.
func (m *Memory) DeleteDocument(_ context.Context, documentID string) error {
	m.mu.Lock()
	delete(m.docs, documentID)
	m.mu.Unlock()
	return nil
}
