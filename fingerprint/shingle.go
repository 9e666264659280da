package fingerprint

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Set is an unordered set of shingle fingerprints.
type Set map[uint64]struct{}

// NewSet builds a set from a list of fingerprints.
func NewSet(fps []uint64) Set {
	s := make(Set, len(fps))
	for _, fp := range fps {
		s[fp] = struct{}{}
	}
	return s
}

// Values returns the fingerprints in unspecified order.
func (s Set) Values() []uint64 {
	out := make([]uint64, 0, len(s))
	for fp := range s {
		out = append(out, fp)
	}
	return out
}

// Intersect counts the fingerprints present in both sets.
func (s Set) Intersect(other Set) int {
	small, large := s, other
	if len(small) > len(large) {
		small, large = large, small
	}
	n := 0
	for fp := range small {
		if _, ok := large[fp]; ok {
			n++
		}
	}
	return n
}

// shingleSep separates tokens inside a shingle so that ("ab","c") and ("a","bc") differ.
const shingleSep = "\x1f"

// Shingles hashes every window of k consecutive tokens. Element i covers
// tokens[i:i+k]. Inputs shorter than k yield one shingle over all tokens.
func Shingles(tokens []string, k int) []uint64 {
	if len(tokens) == 0 || k < 1 {
		return nil
	}
	if len(tokens) < k {
		k = len(tokens)
	}

	out := make([]uint64, 0, len(tokens)-k+1)
	d := xxhash.New()
	for i := 0; i+k <= len(tokens); i++ {
		d.Reset()
		for j := i; j < i+k; j++ {
			if j > i {
				_, _ = d.WriteString(shingleSep)
			}
			_, _ = d.WriteString(tokens[j])
		}
		out = append(out, d.Sum64())
	}
	return out
}

// Document is a normalized, shingled document ready for indexing or scoring.
type Document struct {
	ID     string
	Tokens []string
	// Shingles holds one fingerprint per token position.
	Shingles []uint64
	Set      Set
}

// Options configures a Generator. Zero values fall back to defaults.
type Options struct {
	ShingleSize      int
	MinTokens        int
	MaxTokens        int
	MinHashEnabled   bool
	MinHashFunctions int
}

func applyOptionDefaults(o Options) Options {
	if o.ShingleSize <= 0 {
		o.ShingleSize = 5
	}
	if o.MinTokens <= 0 {
		o.MinTokens = 20
	}
	if o.MinHashFunctions <= 0 {
		o.MinHashFunctions = 64
	}
	return o
}

// Generator bundles normalization, shingling and the optional min-hash sketch.
// It is immutable and safe for concurrent use.
type Generator struct {
	normalizer Normalizer
	k          int
	minhash    *MinHasher
}

// NewGenerator creates a generator from opts.
func NewGenerator(opts Options) *Generator {
	opts = applyOptionDefaults(opts)
	g := &Generator{
		normalizer: Normalizer{MinTokens: opts.MinTokens, MaxTokens: opts.MaxTokens},
		k:          opts.ShingleSize,
	}
	if opts.MinHashEnabled {
		g.minhash = NewMinHasher(opts.MinHashFunctions)
	}
	return g
}

// ShingleSize returns k.
func (g *Generator) ShingleSize() int { return g.k }

// Prepare normalizes raw text and computes its shingles.
func (g *Generator) Prepare(id, raw string) (*Document, error) {
	tokens, err := g.normalizer.Normalize(raw)
	if err != nil {
		return nil, fmt.Errorf("document %s: %w", id, err)
	}
	shingles := Shingles(tokens, g.k)
	return &Document{
		ID:       id,
		Tokens:   tokens,
		Shingles: shingles,
		Set:      NewSet(shingles),
	}, nil
}

// IndexSet returns the representation stored in the similarity index: the
// min-hash sketch when enabled, otherwise the full shingle set.
func (g *Generator) IndexSet(doc *Document) Set {
	if g.minhash == nil {
		return doc.Set
	}
	return NewSet(g.minhash.SketchKeys(doc.Set))
}
