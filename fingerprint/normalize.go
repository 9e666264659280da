package fingerprint

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"simcheck/types"
)

var (
	// [12], [3, 4], [5-7]
	numericCitation = regexp.MustCompile(`\[\d+(?:\s*[,\-–]\s*\d+)*\]`)
	// (Smith et al., 2019), (2020)
	yearCitation = regexp.MustCompile(`\([^()]*\d{4}[^()]*\)`)
	apostrophes  = strings.NewReplacer("'", "", "’", "", "`", "")
)

// Normalizer turns raw document text into a comparable token sequence.
type Normalizer struct {
	MinTokens int
	MaxTokens int
}

// Normalize case-folds text, drops citation markers and punctuation, and
// splits it into word tokens. It fails with types.ErrEmptyContent when fewer
// than MinTokens tokens remain.
func (n Normalizer) Normalize(raw string) ([]string, error) {
	text := norm.NFKC.String(raw)
	text = numericCitation.ReplaceAllString(text, " ")
	text = yearCitation.ReplaceAllString(text, " ")
	text = apostrophes.Replace(text)
	text = cases.Fold().String(text)

	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	if len(tokens) < n.MinTokens {
		return nil, fmt.Errorf("%w: %d tokens, need at least %d", types.ErrEmptyContent, len(tokens), n.MinTokens)
	}
	if n.MaxTokens > 0 && len(tokens) > n.MaxTokens {
		tokens = tokens[:n.MaxTokens]
	}
	return tokens, nil
}
