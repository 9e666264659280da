package tui

import (
	"time"

	"simcheck/client"
	"simcheck/types"
)

// JobsUpdateMsg carries the document's job list.
type JobsUpdateMsg struct {
	Jobs []types.DetectionJob
	Err  error
}

// ResultsMsg carries the matches of a finished job.
type ResultsMsg struct {
	Results *client.JobResults
	Err     error
}

// SubmittedMsg is sent after a submit request returns.
type SubmittedMsg struct {
	JobID string
	Err   error
}

// CancelledMsg is sent after a cancel request returns.
type CancelledMsg struct {
	JobID  string
	Result *client.CancelResult
	Err    error
}

// TickMsg is sent periodically to trigger polling
type TickMsg struct {
	Time time.Time
}
