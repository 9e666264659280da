// Package corpus keeps the similarity index in step with the document archive.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"simcheck/docsource"
	"simcheck/fingerprint"
	"simcheck/index"
	"simcheck/types"
)

// DefaultWorkers is the rebuild worker pool size when none is configured.
const DefaultWorkers = 5

// Indexer fingerprints archived documents into the index.
type Indexer struct {
	source  docsource.Source
	lister  docsource.Lister
	index   index.Index
	gen     *fingerprint.Generator
	workers int

	// rebuilding guards against overlapping rebuilds from cron and the API.
	rebuilding atomic.Bool
}

// NewIndexer creates an indexer. lister may be nil if Rebuild is never used.
func NewIndexer(source docsource.Source, lister docsource.Lister, idx index.Index, gen *fingerprint.Generator, workers int) *Indexer {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Indexer{source: source, lister: lister, index: idx, gen: gen, workers: workers}
}

// OnDocumentCreated indexes a new or updated document. Documents too short to
// fingerprint are removed from the index instead.
func (ix *Indexer) OnDocumentCreated(ctx context.Context, documentID string) error {
	content, err := ix.source.GetContent(ctx, documentID)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", documentID, err)
	}

	doc, err := ix.gen.Prepare(documentID, content)
	if errors.Is(err, types.ErrEmptyContent) {
		log.Printf("Warning: %s is too short to index, removing it", documentID)
		return ix.index.Remove(ctx, documentID)
	}
	if err != nil {
		return err
	}

	if err := ix.index.Index(ctx, documentID, ix.gen.IndexSet(doc)); err != nil {
		return fmt.Errorf("indexing %s: %w", documentID, err)
	}
	return nil
}

// OnDocumentDeleted drops a document from the index.
func (ix *Indexer) OnDocumentDeleted(ctx context.Context, documentID string) error {
	if err := ix.index.Remove(ctx, documentID); err != nil {
		return fmt.Errorf("removing %s: %w", documentID, err)
	}
	return nil
}

// HandleEvent applies a document change notification.
func (ix *Indexer) HandleEvent(ctx context.Context, event types.DocumentEvent) error {
	switch event.Type {
	case types.DocumentCreated, types.DocumentUpdated:
		return ix.OnDocumentCreated(ctx, event.DocumentID)
	case types.DocumentDeleted:
		return ix.OnDocumentDeleted(ctx, event.DocumentID)
	default:
		return fmt.Errorf("%w: unknown document event type %q", types.ErrInvalidInput, event.Type)
	}
}

// RebuildStats summarizes one rebuild.
type RebuildStats struct {
	Listed   int           `json:"listed"`
	Indexed  int           `json:"indexed"`
	Failed   int           `json:"failed"`
	Pruned   int           `json:"pruned"`
	Duration time.Duration `json:"duration"`
}

// ErrRebuildRunning is returned when a rebuild is already in progress.
var ErrRebuildRunning = errors.New("index rebuild already running")

// Rebuild re-indexes every listed document with a pool of workers and drops
// indexed documents the archive no longer lists. Failures of individual
// documents are logged and counted.
func (ix *Indexer) Rebuild(ctx context.Context) (RebuildStats, error) {
	if ix.lister == nil {
		return RebuildStats{}, fmt.Errorf("%w: no document lister configured", types.ErrInvalidInput)
	}
	if !ix.rebuilding.CompareAndSwap(false, true) {
		return RebuildStats{}, ErrRebuildRunning
	}
	defer ix.rebuilding.Store(false)

	start := time.Now()
	// Snapshot the index before listing so documents created in between
	// are never mistaken for stale entries.
	indexedIDs, err := ix.index.Documents(ctx)
	if err != nil {
		return RebuildStats{}, fmt.Errorf("listing indexed documents: %w", err)
	}
	ids, err := ix.lister.ListIndexableDocuments(ctx)
	if err != nil {
		return RebuildStats{}, fmt.Errorf("listing documents: %w", err)
	}
	pruned, err := ix.prune(ctx, indexedIDs, ids)
	if err != nil {
		return RebuildStats{}, err
	}

	var (
		wg      sync.WaitGroup
		indexed atomic.Int64
		failed  atomic.Int64
	)
	idChan := make(chan string)

	for i := 0; i < ix.workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for id := range idChan {
				if err := ix.OnDocumentCreated(ctx, id); err != nil {
					failed.Add(1)
					log.Printf("[Worker %d] Failed to index %s: %v", workerID, id, err)
					continue
				}
				indexed.Add(1)
			}
		}(i)
	}

feed:
	for _, id := range ids {
		select {
		case idChan <- id:
		case <-ctx.Done():
			break feed
		}
	}
	close(idChan)
	wg.Wait()

	stats := RebuildStats{
		Listed:   len(ids),
		Indexed:  int(indexed.Load()),
		Failed:   int(failed.Load()),
		Pruned:   pruned,
		Duration: time.Since(start),
	}
	if err := ctx.Err(); err != nil {
		return stats, err
	}
	log.Printf("✅ Index rebuilt: %d/%d documents in %s (%d failed, %d pruned)", stats.Indexed, stats.Listed, stats.Duration.Round(time.Millisecond), stats.Failed, stats.Pruned)
	return stats, nil
}

// prune removes indexed documents missing from the archive listing.
func (ix *Indexer) prune(ctx context.Context, indexedIDs, listed []string) (int, error) {
	keep := make(map[string]struct{}, len(listed))
	for _, id := range listed {
		keep[id] = struct{}{}
	}
	pruned := 0
	for _, id := range indexedIDs {
		if _, ok := keep[id]; ok {
			continue
		}
		if err := ix.index.Remove(ctx, id); err != nil {
			return pruned, fmt.Errorf("removing stale document %s: %w", id, err)
		}
		log.Printf("🧹 Removed %s from the index: no longer in the archive", id)
		pruned++
	}
	return pruned, nil
}
