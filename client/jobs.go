package client

import (
	"context"
	"net/http"
	"net/url"

	"simcheck/types"
)

type submitRequest struct {
	DocumentID  string `json:"document_id"`
	RequesterID string `json:"requester_id"`
}

type submitResponse struct {
	JobID string `json:"job_id"`
}

// JobResults is a job with its matches.
type JobResults struct {
	Job     types.DetectionJob  `json:"job"`
	Results []types.MatchResult `json:"results"`
}

type jobList struct {
	Jobs []types.DetectionJob `json:"jobs"`
}

// SubmitJob requests detection on documentID and returns the new job id.
func (c *Client) SubmitJob(ctx context.Context, documentID, requesterID string) (string, error) {
	var resp submitResponse
	err := c.doJSONRequest(ctx, http.MethodPost, "/api/jobs", submitRequest{DocumentID: documentID, RequesterID: requesterID}, &resp)
	return resp.JobID, err
}

// CancelResult is the job state the server observed after a cancel.
// Cancelled is false while a running job has not yet stopped.
type CancelResult struct {
	JobID     string          `json:"job_id"`
	Status    types.JobStatus `json:"status"`
	Cancelled bool            `json:"cancelled"`
}

// CancelJob cancels jobID on behalf of actorID.
func (c *Client) CancelJob(ctx context.Context, jobID, actorID string) (*CancelResult, error) {
	path := "/api/jobs/" + url.PathEscape(jobID) + "?actor_id=" + url.QueryEscape(actorID)
	var result CancelResult
	if err := c.doJSONRequest(ctx, http.MethodDelete, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetJob fetches one job.
func (c *Client) GetJob(ctx context.Context, jobID string) (*types.DetectionJob, error) {
	var job types.DetectionJob
	if err := c.doJSONRequest(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(jobID), nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// GetResults fetches a job and its matches.
func (c *Client) GetResults(ctx context.Context, jobID string) (*JobResults, error) {
	var res JobResults
	if err := c.doJSONRequest(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(jobID)+"/results", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// DocumentJobs lists the jobs of a document, newest first.
func (c *Client) DocumentJobs(ctx context.Context, documentID string) ([]types.DetectionJob, error) {
	var list jobList
	err := c.doJSONRequest(ctx, http.MethodGet, "/api/documents/"+url.PathEscape(documentID)+"/jobs", nil, &list)
	return list.Jobs, err
}

// UserJobs lists the jobs a user requested, newest first.
func (c *Client) UserJobs(ctx context.Context, userID string) ([]types.DetectionJob, error) {
	var list jobList
	err := c.doJSONRequest(ctx, http.MethodGet, "/api/users/"+url.PathEscape(userID)+"/jobs", nil, &list)
	return list.Jobs, err
}
