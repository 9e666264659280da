// Package index maintains the inverted fingerprint index used to find
// candidate documents for pairwise scoring.
package index

import (
	"context"
	"sort"
	"sync"

	"simcheck/fingerprint"
)

// Candidate is an indexed document sharing fingerprints with a query.
type Candidate struct {
	DocumentID string `json:"document_id"`
	Shared     int    `json:"shared"`
}

// Index maps fingerprints to the documents containing them.
type Index interface {
	// Index replaces the postings of documentID with fps.
	Index(ctx context.Context, documentID string, fps fingerprint.Set) error
	// Remove drops every posting of documentID.
	Remove(ctx context.Context, documentID string) error
	// Candidates returns the documents sharing at least minShared
	// fingerprints with fps, never including excludeID.
	Candidates(ctx context.Context, fps fingerprint.Set, minShared int, excludeID string) ([]Candidate, error)
	// Count returns the number of indexed documents.
	Count(ctx context.Context) (int, error)
	// Documents returns the ids of every indexed document.
	Documents(ctx context.Context) ([]string, error)
	Close() error
}

// sortCandidates orders by shared count descending, then id.
func sortCandidates(c []Candidate) {
	sort.Slice(c, func(i, j int) bool {
		if c[i].Shared != c[j].Shared {
			return c[i].Shared > c[j].Shared
		}
		return c[i].DocumentID < c[j].DocumentID
	})
}

// keyedMutex serializes writers per document id.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedEntry)}
}

// Lock acquires the lock for key and returns its release function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// Memory is an in-process inverted index. Readers run concurrently; writers
// for the same document are serialized and never block readers for longer
// than the posting swap.
type Memory struct {
	writers *keyedMutex

	mu       sync.RWMutex
	postings map[uint64]map[string]struct{}
	docs     map[string][]uint64
}

// NewMemory creates an empty in-memory index.
func NewMemory() *Memory {
	return &Memory{
		writers:  newKeyedMutex(),
		postings: make(map[uint64]map[string]struct{}),
		docs:     make(map[string][]uint64),
	}
}

var _ Index = (*Memory)(nil)

// Index registers the document's fingerprints, replacing any previous ones.
func (m *Memory) Index(_ context.Context, documentID string, fps fingerprint.Set) error {
	unlock := m.writers.Lock(documentID)
	defer unlock()

	values := fps.Values()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(documentID)
	for _, fp := range values {
		docs, ok := m.postings[fp]
		if !ok {
			docs = make(map[string]struct{})
			m.postings[fp] = docs
		}
		docs[documentID] = struct{}{}
	}
	m.docs[documentID] = values
	return nil
}

// Remove unregisters a document. Removing an unknown document is a no-op.
func (m *Memory) Remove(_ context.Context, documentID string) error {
	unlock := m.writers.Lock(documentID)
	defer unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(documentID)
	return nil
}

func (m *Memory) removeLocked(documentID string) {
	for _, fp := range m.docs[documentID] {
		docs := m.postings[fp]
		delete(docs, documentID)
		if len(docs) == 0 {
			delete(m.postings, fp)
		}
	}
	delete(m.docs, documentID)
}

// Candidates counts shared fingerprints per indexed document.
func (m *Memory) Candidates(ctx context.Context, fps fingerprint.Set, minShared int, excludeID string) ([]Candidate, error) {
	if minShared < 1 {
		minShared = 1
	}

	counts := make(map[string]int)
	m.mu.RLock()
	for fp := range fps {
		for doc := range m.postings[fp] {
			if doc != excludeID {
				counts[doc]++
			}
		}
	}
	m.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]Candidate, 0, len(counts))
	for doc, n := range counts {
		if n >= minShared {
			out = append(out, Candidate{DocumentID: doc, Shared: n})
		}
	}
	sortCandidates(out)
	return out, nil
}

// Count returns the number of indexed documents.
func (m *Memory) Count(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs), nil
}

// Documents returns the indexed document ids in sorted order.
func (m *Memory) Documents(context.Context) ([]string, error) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.docs))
	for id := range m.docs {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	sort.Strings(ids)
	return ids, nil
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }
