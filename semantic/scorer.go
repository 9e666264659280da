package semantic

import (
	"context"
	"fmt"
)

const (
	// maxBatch is Cohere's limit on texts per embed call.
	maxBatch = 96
	// DefaultMaxChars truncates texts before embedding.
	DefaultMaxChars = 6000
)

// Scorer compares a source text with matched texts in embedding space.
type Scorer struct {
	embedder Embedder
	maxChars int
}

// NewScorer wraps an embedder. maxChars <= 0 uses DefaultMaxChars.
func NewScorer(embedder Embedder, maxChars int) *Scorer {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &Scorer{embedder: embedder, maxChars: maxChars}
}

// Model returns the underlying embedding model name.
func (s *Scorer) Model() string { return s.embedder.ModelName() }

// Similarities returns one cosine similarity per matched text.
func (s *Scorer) Similarities(ctx context.Context, source string, matched []string) ([]float64, error) {
	if len(matched) == 0 {
		return nil, nil
	}

	texts := make([]string, 0, len(matched)+1)
	texts = append(texts, s.truncate(source))
	for _, m := range matched {
		texts = append(texts, s.truncate(m))
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatch {
		end := min(start+maxBatch, len(texts))
		batch, err := s.embedder.EmbedTexts(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embedding batch %d-%d: %w", start, end, err)
		}
		vectors = append(vectors, batch...)
	}

	out := make([]float64, len(matched))
	for i := range matched {
		out[i] = Cosine(vectors[0], vectors[i+1])
	}
	return out, nil
}

// truncate cuts text to maxChars bytes on a rune boundary.
func (s *Scorer) truncate(text string) string {
	if len(text) <= s.maxChars {
		return text
	}
	cut := s.maxChars
	for cut > 0 && !utf8RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

func utf8RuneStart(b byte) bool { return b&0xC0 != 0x80 }
