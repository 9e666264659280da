package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"simcheck/client"
)

const requestTimeout = 10 * time.Second

func pollJobs(c *client.Client, documentID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		jobs, err := c.DocumentJobs(ctx, documentID)
		return JobsUpdateMsg{Jobs: jobs, Err: err}
	}
}

func fetchResults(c *client.Client, jobID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		res, err := c.GetResults(ctx, jobID)
		return ResultsMsg{Results: res, Err: err}
	}
}

func submitJob(c *client.Client, documentID, userID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		id, err := c.SubmitJob(ctx, documentID, userID)
		return SubmittedMsg{JobID: id, Err: err}
	}
}

func cancelJob(c *client.Client, jobID, userID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		res, err := c.CancelJob(ctx, jobID, userID)
		return CancelledMsg{JobID: jobID, Result: res, Err: err}
	}
}

// tickCmd creates a command that ticks every second for polling
func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}
