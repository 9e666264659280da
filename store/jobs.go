package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"simcheck/types"
)

const jobColumns = `id, document_id, requester_id, status, error_detail, created_at, started_at, completed_at`

// CreateJob inserts a PENDING job. A second active job for the same document
// is rejected with *types.DuplicateJobError.
func (s *Store) CreateJob(ctx context.Context, job *types.DetectionJob) error {
	if job.Status == "" {
		job.Status = types.JobPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO detection_jobs (id, document_id, requester_id, status, error_detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, job.ID, job.DocumentID, job.RequesterID, string(job.Status), job.ErrorDetail, toNanos(job.CreatedAt))
	if err != nil {
		if isActiveDocumentConflict(err) {
			active, _ := s.activeJobID(ctx, job.DocumentID)
			return &types.DuplicateJobError{DocumentID: job.DocumentID, ActiveJobID: active}
		}
		return classify(fmt.Errorf("creating job: %w", err))
	}
	return nil
}

func (s *Store) activeJobID(ctx context.Context, documentID string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM detection_jobs
		WHERE document_id = ? AND status IN ('PENDING', 'PROCESSING')
	`, documentID).Scan(&id)
	return id, err
}

// MarkProcessing claims a PENDING job for a worker.
func (s *Store) MarkProcessing(ctx context.Context, jobID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE detection_jobs SET status = 'PROCESSING', started_at = ?
		WHERE id = ? AND status = 'PENDING'
	`, toNanos(at), jobID)
	if err != nil {
		return classify(fmt.Errorf("claiming job %s: %w", jobID, err))
	}
	return s.checkTransition(ctx, res, jobID)
}

// CancelPending fails a job that no worker has claimed yet.
func (s *Store) CancelPending(ctx context.Context, jobID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE detection_jobs SET status = 'FAILED', error_detail = ?, completed_at = ?
		WHERE id = ? AND status = 'PENDING'
	`, types.ErrCancelled.Error(), toNanos(at), jobID)
	if err != nil {
		return classify(fmt.Errorf("cancelling job %s: %w", jobID, err))
	}
	return s.checkTransition(ctx, res, jobID)
}

// Fail moves an active job to FAILED with the given detail.
func (s *Store) Fail(ctx context.Context, jobID, detail string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE detection_jobs SET status = 'FAILED', error_detail = ?, completed_at = ?
		WHERE id = ? AND status IN ('PENDING', 'PROCESSING')
	`, detail, toNanos(at), jobID)
	if err != nil {
		return classify(fmt.Errorf("failing job %s: %w", jobID, err))
	}
	return s.checkTransition(ctx, res, jobID)
}

// checkTransition turns a zero-row conditional update into ErrNotFound or
// ErrInvalidTransition.
func (s *Store) checkTransition(ctx context.Context, res sql.Result, jobID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return classify(err)
	}
	if n > 0 {
		return nil
	}
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: job %s is %s", types.ErrInvalidTransition, jobID, job.Status)
}

// GetJob returns a job by id.
func (s *Store) GetJob(ctx context.Context, jobID string) (*types.DetectionJob, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM detection_jobs WHERE id = ?`, jobID)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", jobID, types.ErrNotFound)
	}
	if err != nil {
		return nil, classify(fmt.Errorf("getting job %s: %w", jobID, err))
	}
	return job, nil
}

// GetJobsForDocument returns every job of a document, newest first.
func (s *Store) GetJobsForDocument(ctx context.Context, documentID string) ([]types.DetectionJob, error) {
	return s.queryJobs(ctx, `
		SELECT `+jobColumns+` FROM detection_jobs
		WHERE document_id = ?
		ORDER BY created_at DESC, rowid DESC
	`, documentID)
}

// JobsByRequester returns the jobs a user submitted, newest first.
func (s *Store) JobsByRequester(ctx context.Context, requesterID string) ([]types.DetectionJob, error) {
	return s.queryJobs(ctx, `
		SELECT `+jobColumns+` FROM detection_jobs
		WHERE requester_id = ?
		ORDER BY created_at DESC, rowid DESC
	`, requesterID)
}

// JobsWithStatus returns jobs in status created before the cutoff, oldest first.
func (s *Store) JobsWithStatus(ctx context.Context, status types.JobStatus, before time.Time) ([]types.DetectionJob, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown job status %q", types.ErrInvalidInput, status)
	}
	return s.queryJobs(ctx, `
		SELECT `+jobColumns+` FROM detection_jobs
		WHERE status = ? AND created_at < ?
		ORDER BY created_at ASC, rowid ASC
	`, string(status), toNanos(before))
}

// CountByStatus returns the number of jobs per status.
func (s *Store) CountByStatus(ctx context.Context) (map[types.JobStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM detection_jobs GROUP BY status`)
	if err != nil {
		return nil, classify(fmt.Errorf("counting jobs: %w", err))
	}
	defer rows.Close()

	counts := map[types.JobStatus]int{
		types.JobPending:    0,
		types.JobProcessing: 0,
		types.JobCompleted:  0,
		types.JobFailed:     0,
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning count: %w", err)
		}
		counts[types.JobStatus(status)] = n
	}
	return counts, rows.Err()
}

func (s *Store) queryJobs(ctx context.Context, query string, args ...any) ([]types.DetectionJob, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(fmt.Errorf("querying jobs: %w", err))
	}
	defer rows.Close()

	jobs := []types.DetectionJob{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*types.DetectionJob, error) {
	var (
		job                  types.DetectionJob
		status               string
		createdAt            int64
		startedAt, completed sql.NullInt64
	)
	if err := row.Scan(&job.ID, &job.DocumentID, &job.RequesterID, &status, &job.ErrorDetail,
		&createdAt, &startedAt, &completed); err != nil {
		return nil, err
	}
	job.Status = types.JobStatus(status)
	job.CreatedAt = fromNanos(createdAt)
	job.StartedAt = fromNullNanos(startedAt)
	job.CompletedAt = fromNullNanos(completed)
	return &job, nil
}

func toNanos(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func fromNullNanos(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromNanos(n.Int64)
	return &t
}
