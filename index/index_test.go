package index

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simcheck/fingerprint"
)

func set(fps ...uint64) fingerprint.Set { return fingerprint.NewSet(fps) }

// runIndexContract exercises behaviour every Index implementation must share.
func runIndexContract(t *testing.T, newIndex func(t *testing.T) Index) {
	ctx := context.Background()

	t.Run("candidates exclude the query document", func(t *testing.T) {
		idx := newIndex(t)
		require.NoError(t, idx.Index(ctx, "a", set(1, 2, 3)))
		require.NoError(t, idx.Index(ctx, "b", set(2, 3, 4)))
		require.NoError(t, idx.Index(ctx, "c", set(9)))

		got, err := idx.Candidates(ctx, set(1, 2, 3), 1, "a")
		require.NoError(t, err)
		assert.Equal(t, []Candidate{{DocumentID: "b", Shared: 2}}, got)
	})

	t.Run("min shared filters and orders", func(t *testing.T) {
		idx := newIndex(t)
		require.NoError(t, idx.Index(ctx, "x", set(1, 2, 3)))
		require.NoError(t, idx.Index(ctx, "y", set(1, 2)))
		require.NoError(t, idx.Index(ctx, "z", set(1)))

		got, err := idx.Candidates(ctx, set(1, 2, 3), 2, "")
		require.NoError(t, err)
		assert.Equal(t, []Candidate{{"x", 3}, {"y", 2}}, got)
	})

	t.Run("reindex is idempotent and replaces postings", func(t *testing.T) {
		idx := newIndex(t)
		require.NoError(t, idx.Index(ctx, "d", set(1, 2)))
		require.NoError(t, idx.Index(ctx, "d", set(1, 2)))

		got, err := idx.Candidates(ctx, set(1, 2), 1, "")
		require.NoError(t, err)
		assert.Equal(t, []Candidate{{"d", 2}}, got)

		require.NoError(t, idx.Index(ctx, "d", set(7)))
		got, err = idx.Candidates(ctx, set(1, 2), 1, "")
		require.NoError(t, err)
		assert.Empty(t, got)

		n, err := idx.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("remove", func(t *testing.T) {
		idx := newIndex(t)
		require.NoError(t, idx.Index(ctx, "d", set(1, 2)))
		require.NoError(t, idx.Remove(ctx, "d"))
		require.NoError(t, idx.Remove(ctx, "never-indexed"))

		got, err := idx.Candidates(ctx, set(1, 2), 1, "")
		require.NoError(t, err)
		assert.Empty(t, got)

		n, err := idx.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("documents lists indexed ids", func(t *testing.T) {
		idx := newIndex(t)
		require.NoError(t, idx.Index(ctx, "q", set(1)))
		require.NoError(t, idx.Index(ctx, "p", set(2)))
		require.NoError(t, idx.Index(ctx, "r", set(3)))
		require.NoError(t, idx.Remove(ctx, "r"))

		ids, err := idx.Documents(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"p", "q"}, ids)
	})
}

func TestMemoryIndex(t *testing.T) {
	runIndexContract(t, func(t *testing.T) Index { return NewMemory() })
}

func TestMemoryConcurrentReadersAndWriters(t *testing.T) {
	ctx := context.Background()
	idx := NewMemory()
	require.NoError(t, idx.Index(ctx, "stable", set(100, 101, 102)))

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				id := fmt.Sprintf("doc-%d", i%10)
				assert.NoError(t, idx.Index(ctx, id, set(uint64(i), 100)))
				if i%7 == 0 {
					assert.NoError(t, idx.Remove(ctx, id))
				}
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				got, err := idx.Candidates(ctx, set(100, 101, 102), 3, "")
				assert.NoError(t, err)
				assert.Equal(t, []Candidate{{"stable", 3}}, got)
			}
		}()
	}
	wg.Wait()

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.LessOrEqual(t, n, 11)
}

func TestKeyedMutexReleasesEntries(t *testing.T) {
	k := newKeyedMutex()
	unlock := k.Lock("a")
	unlock()
	assert.Empty(t, k.locks)
}
