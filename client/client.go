// Package client is a Go client for the detection HTTP API.
package client

import (
	"net/http"
	"strings"
	"time"

	"simcheck/types"
)

// Client talks to a detection server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for baseURL.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// BaseURL returns the server address.
func (c *Client) BaseURL() string { return c.baseURL }

// APIError is a non-2xx response.
type APIError struct {
	StatusCode  int
	Message     string
	ActiveJobID string
}

func (e *APIError) Error() string {
	if e.ActiveJobID != "" {
		return e.Message + " (active job " + e.ActiveJobID + ")"
	}
	return e.Message
}

// Unwrap maps the status code back onto the domain errors, so callers can
// use errors.Is as they would in-process.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusConflict:
		if e.ActiveJobID != "" {
			return types.ErrDuplicateJob
		}
		return types.ErrInvalidTransition
	case http.StatusForbidden:
		return types.ErrPermission
	case http.StatusNotFound:
		return types.ErrNotFound
	case http.StatusBadRequest:
		return types.ErrInvalidInput
	case http.StatusServiceUnavailable:
		return types.ErrQueueFull
	default:
		return nil
	}
}
