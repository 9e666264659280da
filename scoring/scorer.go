// Package scoring compares two fingerprinted documents and explains the
// overlap as aligned passages.
package scoring

import (
	"math"

	"simcheck/fingerprint"
	"simcheck/types"
)

// Config tunes the scorer. Zero values fall back to defaults.
type Config struct {
	ShingleSize     int
	ReportThreshold float64
	MergeGap        int
	ConfidenceScale float64
	MaxSegments     int
}

func applyConfigDefaults(cfg Config) Config {
	if cfg.ShingleSize <= 0 {
		cfg.ShingleSize = 5
	}
	if cfg.ReportThreshold <= 0 {
		cfg.ReportThreshold = 0.05
	}
	if cfg.MergeGap <= 0 {
		cfg.MergeGap = 2
	}
	if cfg.ConfidenceScale <= 0 {
		cfg.ConfidenceScale = 25
	}
	if cfg.MaxSegments <= 0 {
		cfg.MaxSegments = 100
	}
	return cfg
}

// Scorer is stateless apart from its configuration and safe for concurrent use.
type Scorer struct {
	cfg Config
}

// NewScorer creates a scorer.
func NewScorer(cfg Config) *Scorer {
	return &Scorer{cfg: applyConfigDefaults(cfg)}
}

// Score compares target against candidate. It returns nil when the
// similarity is below the report threshold.
func (s *Scorer) Score(target, candidate *fingerprint.Document) *types.MatchResult {
	shared := target.Set.Intersect(candidate.Set)
	if shared == 0 {
		return nil
	}
	sim := jaccard(shared, len(target.Set), len(candidate.Set))
	if sim < s.cfg.ReportThreshold {
		return nil
	}

	return &types.MatchResult{
		SourceDocumentID:  target.ID,
		MatchedDocumentID: candidate.ID,
		Similarity:        sim,
		Confidence:        Confidence(shared, len(target.Set), len(candidate.Set), s.cfg.ConfidenceScale),
		SharedShingles:    shared,
		DetectionMethod:   types.MethodShingleJaccard,
		Segments:          Segments(target, candidate, s.cfg.ShingleSize, s.cfg.MergeGap, s.cfg.MaxSegments),
	}
}

// Jaccard returns |a ∩ b| / |a ∪ b|, or 0 when both sets are empty.
func Jaccard(a, b fingerprint.Set) float64 {
	return jaccard(a.Intersect(b), len(a), len(b))
}

func jaccard(shared, sizeA, sizeB int) float64 {
	union := sizeA + sizeB - shared
	if union <= 0 {
		return 0
	}
	return float64(shared) / float64(union)
}

// Confidence rates how much a match should be trusted, independently of its
// similarity. It grows with the absolute number of shared shingles and with
// the share of the shorter document they cover:
//
//	(1 - e^(-shared/scale)) * (0.5 + 0.5*sqrt(shared/min(sizeA, sizeB)))
//
// A handful of shared shingles between two long documents scores near zero;
// a long copied passage scores above 0.5 even when it is a small part of both.
func Confidence(shared, sizeA, sizeB int, scale float64) float64 {
	if shared <= 0 || sizeA <= 0 || sizeB <= 0 {
		return 0
	}
	if scale <= 0 {
		scale = 25
	}
	volume := 1 - math.Exp(-float64(shared)/scale)
	coverage := math.Min(1, float64(shared)/float64(min(sizeA, sizeB)))
	return volume * (0.5 + 0.5*math.Sqrt(coverage))
}
