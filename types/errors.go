package types

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateJob is returned when a document already has an active job.
	ErrDuplicateJob = errors.New("detection already in progress for document")

	// ErrEmptyContent is returned when normalized text is too short to fingerprint.
	ErrEmptyContent = errors.New("empty content")

	// ErrPermission is returned when the requester may not act on the document.
	ErrPermission = errors.New("permission denied")

	// ErrNotFound is returned when a document or job does not exist.
	ErrNotFound = errors.New("not found")

	// ErrTransientIO marks retryable storage or network faults.
	ErrTransientIO = errors.New("transient io failure")

	// ErrTimeout is the failure reason for jobs exceeding their deadline.
	ErrTimeout = errors.New("timeout")

	// ErrCancelled is the failure reason for cancelled jobs.
	ErrCancelled = errors.New("cancelled")

	// ErrQueueFull is returned when the job queue has no free slot.
	ErrQueueFull = errors.New("job queue is full")

	// ErrInvalidInput is returned for malformed requests.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidTransition is returned when a job is not in the state an update expects.
	ErrInvalidTransition = errors.New("invalid job state transition")

	// ErrClosed is returned by components used after shutdown.
	ErrClosed = errors.New("closed")
)

// DuplicateJobError carries the job already running for a document.
type DuplicateJobError struct {
	DocumentID  string
	ActiveJobID string
}

func (e *DuplicateJobError) Error() string {
	return fmt.Sprintf("%v %s (job %s)", ErrDuplicateJob, e.DocumentID, e.ActiveJobID)
}

func (e *DuplicateJobError) Unwrap() error { return ErrDuplicateJob }

// Transient wraps err so that errors.Is(err, ErrTransientIO) holds.
func Transient(err error) error {
	if err == nil || errors.Is(err, ErrTransientIO) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransientIO, err)
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransientIO)
}
