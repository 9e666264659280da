package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"simcheck/types"
)

// Complete writes the results and marks the job COMPLETED in one
// transaction. Nothing is written unless the job is still PROCESSING.
func (s *Store) Complete(ctx context.Context, jobID string, results []types.MatchResult, at time.Time) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(fmt.Errorf("beginning transaction: %w", err))
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
		UPDATE detection_jobs SET status = 'COMPLETED', error_detail = '', completed_at = ?
		WHERE id = ? AND status = 'PROCESSING'
	`, toNanos(at), jobID)
	if err != nil {
		return classify(fmt.Errorf("completing job %s: %w", jobID, err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var status string
		qerr := tx.QueryRowContext(ctx, `SELECT status FROM detection_jobs WHERE id = ?`, jobID).Scan(&status)
		if qerr == sql.ErrNoRows {
			return fmt.Errorf("job %s: %w", jobID, types.ErrNotFound)
		}
		return fmt.Errorf("%w: job %s is %s", types.ErrInvalidTransition, jobID, status)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO match_results (id, job_id, source_document_id, matched_document_id, similarity,
			confidence, shared_shingles, semantic_score, detection_method, segments, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return classify(fmt.Errorf("preparing result insert: %w", err))
	}
	defer stmt.Close()

	for i := range results {
		r := &results[i]
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		r.JobID = jobID
		if r.CreatedAt.IsZero() {
			r.CreatedAt = at
		}
		segments := r.Segments
		if segments == nil {
			segments = []types.Segment{}
		}
		segJSON, err := json.Marshal(segments)
		if err != nil {
			return fmt.Errorf("marshalling segments: %w", err)
		}

		var semantic sql.NullFloat64
		if r.SemanticScore != nil {
			semantic = sql.NullFloat64{Float64: *r.SemanticScore, Valid: true}
		}

		if _, err := stmt.ExecContext(ctx, r.ID, jobID, r.SourceDocumentID, r.MatchedDocumentID,
			r.Similarity, r.Confidence, r.SharedShingles, semantic, r.DetectionMethod,
			string(segJSON), toNanos(r.CreatedAt)); err != nil {
			return classify(fmt.Errorf("inserting result for %s: %w", r.MatchedDocumentID, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return classify(fmt.Errorf("committing job %s: %w", jobID, err))
	}
	return nil
}

// GetResults returns the results of a job, most similar first.
func (s *Store) GetResults(ctx context.Context, jobID string) ([]types.MatchResult, error) {
	if _, err := s.GetJob(ctx, jobID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, job_id, source_document_id, matched_document_id, similarity, confidence,
			shared_shingles, semantic_score, detection_method, segments, created_at
		FROM match_results
		WHERE job_id = ?
		ORDER BY similarity DESC, matched_document_id ASC
	`, jobID)
	if err != nil {
		return nil, classify(fmt.Errorf("querying results: %w", err))
	}
	defer rows.Close()

	results := []types.MatchResult{}
	for rows.Next() {
		var (
			r         types.MatchResult
			semantic  sql.NullFloat64
			segJSON   string
			createdAt int64
		)
		if err := rows.Scan(&r.ID, &r.JobID, &r.SourceDocumentID, &r.MatchedDocumentID, &r.Similarity,
			&r.Confidence, &r.SharedShingles, &semantic, &r.DetectionMethod, &segJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning result: %w", err)
		}
		if semantic.Valid {
			v := semantic.Float64
			r.SemanticScore = &v
		}
		if err := json.Unmarshal([]byte(segJSON), &r.Segments); err != nil {
			return nil, fmt.Errorf("unmarshalling segments: %w", err)
		}
		r.CreatedAt = fromNanos(createdAt)
		results = append(results, r)
	}
	return results, rows.Err()
}
