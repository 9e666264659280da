package scoring

import (
	"sort"
	"strings"

	"simcheck/fingerprint"
	"simcheck/types"
)

// maxOccurrences skips shingles repeated more often than this in the
// candidate, which keeps boilerplate from exploding the alignment.
const maxOccurrences = 64

// run is a maximal diagonal of consecutive shared shingles.
type run struct {
	srcStart, srcLast   int
	candStart, candLast int
}

// span is a token range pair; End is exclusive.
type span struct {
	srcStart, srcEnd   int
	candStart, candEnd int
}

// Segments aligns the shared shingles of target and candidate into passages.
// Consecutive shingles on the same diagonal form a run; runs whose token gap
// is below mergeGap in both documents are merged. The limit longest segments
// are kept and returned in source order.
func Segments(target, candidate *fingerprint.Document, k, mergeGap, limit int) []types.Segment {
	positions := make(map[uint64][]int)
	for j, h := range candidate.Shingles {
		if _, ok := target.Set[h]; ok {
			positions[h] = append(positions[h], j)
		}
	}
	if len(positions) == 0 {
		return nil
	}

	var runs []*run
	active := make(map[int]*run)
	for i, h := range target.Shingles {
		js := positions[h]
		if len(js) > maxOccurrences {
			continue
		}
		for _, j := range js {
			d := j - i
			if r, ok := active[d]; ok && r.srcLast == i-1 {
				r.srcLast, r.candLast = i, j
				continue
			}
			r := &run{srcStart: i, srcLast: i, candStart: j, candLast: j}
			active[d] = r
			runs = append(runs, r)
		}
	}

	spans := make([]span, 0, len(runs))
	for _, r := range runs {
		spans = append(spans, span{
			srcStart:  r.srcStart,
			srcEnd:    min(r.srcLast+k, len(target.Tokens)),
			candStart: r.candStart,
			candEnd:   min(r.candLast+k, len(candidate.Tokens)),
		})
	}
	merged := mergeSpans(spans, mergeGap)

	if limit > 0 && len(merged) > limit {
		sort.SliceStable(merged, func(a, b int) bool {
			return merged[a].srcEnd-merged[a].srcStart > merged[b].srcEnd-merged[b].srcStart
		})
		merged = merged[:limit]
	}
	sort.Slice(merged, func(a, b int) bool {
		if merged[a].srcStart != merged[b].srcStart {
			return merged[a].srcStart < merged[b].srcStart
		}
		return merged[a].candStart < merged[b].candStart
	})

	out := make([]types.Segment, len(merged))
	for i, s := range merged {
		out[i] = types.Segment{
			SourceStart:  s.srcStart,
			SourceEnd:    s.srcEnd,
			MatchedStart: s.candStart,
			MatchedEnd:   s.candEnd,
			SourceText:   strings.Join(target.Tokens[s.srcStart:s.srcEnd], " "),
			MatchedText:  strings.Join(candidate.Tokens[s.candStart:s.candEnd], " "),
		}
	}
	return out
}

// mergeSpans folds each span into an earlier one that it follows within
// gap tokens in both documents.
func mergeSpans(spans []span, gap int) []span {
	sort.Slice(spans, func(a, b int) bool {
		if spans[a].srcStart != spans[b].srcStart {
			return spans[a].srcStart < spans[b].srcStart
		}
		return spans[a].candStart < spans[b].candStart
	})

	var out []span
	for _, s := range spans {
		joined := false
		for i := len(out) - 1; i >= 0; i-- {
			m := &out[i]
			if s.srcStart < m.srcStart || s.candStart < m.candStart {
				continue
			}
			if s.srcStart-m.srcEnd < gap && s.candStart-m.candEnd < gap {
				m.srcEnd = max(m.srcEnd, s.srcEnd)
				m.candEnd = max(m.candEnd, s.candEnd)
				joined = true
				break
			}
		}
		if !joined {
			out = append(out, s)
		}
	}
	return out
}
