package types

import "time"

// JobStatus is the lifecycle state of a detection job.
type JobStatus string

const (
	JobPending    JobStatus = "PENDING"
	JobProcessing JobStatus = "PROCESSING"
	JobCompleted  JobStatus = "COMPLETED"
	JobFailed     JobStatus = "FAILED"
)

// Terminal reports whether no further transition is allowed from s.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Active reports whether a job in state s blocks new submissions for its document.
func (s JobStatus) Active() bool {
	return s == JobPending || s == JobProcessing
}

// Valid reports whether s is one of the known states.
func (s JobStatus) Valid() bool {
	switch s {
	case JobPending, JobProcessing, JobCompleted, JobFailed:
		return true
	}
	return false
}

// DetectionJob is one request to compare a document against the corpus.
type DetectionJob struct {
	ID          string     `json:"id"`
	DocumentID  string     `json:"document_id"`
	RequesterID string     `json:"requester_id"`
	Status      JobStatus  `json:"status"`
	ErrorDetail string     `json:"error_detail,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// JobCompletedEvent is published once a job reaches a terminal state.
type JobCompletedEvent struct {
	JobID         string    `json:"job_id"`
	DocumentID    string    `json:"document_id"`
	RequesterID   string    `json:"requester_id"`
	Status        JobStatus `json:"status"`
	MatchCount    int       `json:"match_count"`
	TopSimilarity float64   `json:"top_similarity"`
	Error         string    `json:"error,omitempty"`
	CompletedAt   time.Time `json:"completed_at"`
}
