package fingerprint

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func words(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return out
}

func TestShingles(t *testing.T) {
	tokens := words("w", 10)

	got := Shingles(tokens, 5)
	assert.Len(t, got, 6)
	assert.Equal(t, got, Shingles(tokens, 5), "shingling must be deterministic")

	// Same window at a different position hashes identically.
	shifted := append([]string{"x"}, tokens...)
	assert.Equal(t, got[0], Shingles(shifted, 5)[1])
}

func TestShinglesShortInput(t *testing.T) {
	assert.Len(t, Shingles([]string{"a", "b"}, 5), 1)
	assert.Nil(t, Shingles(nil, 5))
}

func TestShinglesTokenBoundaries(t *testing.T) {
	a := Shingles([]string{"ab", "c"}, 2)
	b := Shingles([]string{"a", "bc"}, 2)
	assert.NotEqual(t, a, b)
}

func TestSetIntersect(t *testing.T) {
	a := NewSet([]uint64{1, 2, 3, 4})
	b := NewSet([]uint64{3, 4, 5})
	assert.Equal(t, 2, a.Intersect(b))
	assert.Equal(t, 2, b.Intersect(a))
	assert.ElementsMatch(t, []uint64{3, 4, 5}, b.Values())
}

func TestGeneratorPrepare(t *testing.T) {
	g := NewGenerator(Options{})
	text := strings.Join(words("t", 30), " ")

	doc, err := g.Prepare("doc-1", text)
	require.NoError(t, err)
	assert.Equal(t, "doc-1", doc.ID)
	assert.Len(t, doc.Tokens, 30)
	assert.Len(t, doc.Shingles, 26)
	assert.Len(t, doc.Set, 26)
	assert.Equal(t, doc.Set, g.IndexSet(doc))
	assert.Equal(t, 5, g.ShingleSize())

	again, err := g.Prepare("doc-1", text)
	require.NoError(t, err)
	assert.Equal(t, doc.Set, again.Set)
}

func TestGeneratorMinHashIndexSet(t *testing.T) {
	g := NewGenerator(Options{MinHashEnabled: true, MinHashFunctions: 32})
	doc, err := g.Prepare("d", strings.Join(words("t", 200), " "))
	require.NoError(t, err)

	keys := g.IndexSet(doc)
	assert.LessOrEqual(t, len(keys), 32)
	assert.Equal(t, keys, g.IndexSet(doc))
}
