package types

import "time"

// Detection method identifiers recorded on each match.
const (
	MethodShingleJaccard = "shingle-jaccard"
	MethodHybrid         = "shingle-jaccard+semantic"
)

// Segment is an aligned passage shared by the source and the matched document.
// Offsets are token positions; End is exclusive.
type Segment struct {
	SourceStart  int    `json:"source_start"`
	SourceEnd    int    `json:"source_end"`
	MatchedStart int    `json:"matched_start"`
	MatchedEnd   int    `json:"matched_end"`
	SourceText   string `json:"source_text"`
	MatchedText  string `json:"matched_text"`
}

// Len returns the number of source tokens covered by the segment.
func (s Segment) Len() int { return s.SourceEnd - s.SourceStart }

// MatchResult is a similarity finding between a job's document and one corpus document.
type MatchResult struct {
	ID                string    `json:"id"`
	JobID             string    `json:"job_id"`
	SourceDocumentID  string    `json:"source_document_id"`
	MatchedDocumentID string    `json:"matched_document_id"`
	Similarity        float64   `json:"similarity"`
	Confidence        float64   `json:"confidence"`
	SharedShingles    int       `json:"shared_shingles"`
	SemanticScore     *float64  `json:"semantic_score,omitempty"`
	DetectionMethod   string    `json:"detection_method"`
	Segments          []Segment `json:"segments"`
	CreatedAt         time.Time `json:"created_at"`
}
