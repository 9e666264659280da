package tui

import (
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"simcheck/client"
	"simcheck/types"
)

// Update implements tea.Model interface
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	case TickMsg:
		return m, tea.Batch(pollJobs(m.Client, m.DocumentID), tickCmd())
	case JobsUpdateMsg:
		return m.handleJobsUpdate(msg)
	case ResultsMsg:
		return m.handleResults(msg)
	case SubmittedMsg:
		return m.handleSubmitted(msg)
	case CancelledMsg:
		return m.handleCancelled(msg)
	}
	return m, nil
}

// handleKeyPress processes keyboard input
func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "s", "S":
		if job := m.activeJob(); job != nil {
			m = m.AddLog(fmt.Sprintf("Job %s is still running", shortID(job.ID)))
			return m, nil
		}
		m = m.AddLog("Submitting detection for " + m.DocumentID)
		return m, submitJob(m.Client, m.DocumentID, m.UserID)
	case "c", "C":
		job := m.activeJob()
		if job == nil {
			m = m.AddLog("Nothing to cancel")
			return m, nil
		}
		m = m.AddLog(fmt.Sprintf("Cancelling job %s", shortID(job.ID)))
		return m, cancelJob(m.Client, job.ID, m.UserID)
	case "r", "R":
		return m, pollJobs(m.Client, m.DocumentID)
	}
	return m, nil
}

func (m Model) handleJobsUpdate(msg JobsUpdateMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.Connected = false
		m.Err = msg.Err
		return m, nil
	}
	m.Connected = true
	m.Err = nil
	m.Jobs = msg.Jobs

	// Fetch matches once per finished job.
	done := m.latestFinished()
	if done != nil && done.Status == types.JobCompleted && (m.Latest == nil || m.Latest.Job.ID != done.ID) {
		return m, fetchResults(m.Client, done.ID)
	}
	return m, nil
}

func (m Model) handleResults(msg ResultsMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.Err = msg.Err
		return m, nil
	}
	m.Latest = msg.Results
	m = m.AddLog(fmt.Sprintf("Job %s found %d matches", shortID(msg.Results.Job.ID), len(msg.Results.Results)))
	return m, nil
}

func (m Model) handleSubmitted(msg SubmittedMsg) (tea.Model, tea.Cmd) {
	var apiErr *client.APIError
	switch {
	case errors.Is(msg.Err, types.ErrDuplicateJob) && errors.As(msg.Err, &apiErr):
		m = m.AddLog(fmt.Sprintf("Already running as job %s", shortID(apiErr.ActiveJobID)))
	case msg.Err != nil:
		m.Err = msg.Err
		m = m.AddLog("Submit failed: " + msg.Err.Error())
		return m, nil
	default:
		m = m.AddLog(fmt.Sprintf("Queued job %s", shortID(msg.JobID)))
	}
	return m, pollJobs(m.Client, m.DocumentID)
}

func (m Model) handleCancelled(msg CancelledMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m = m.AddLog("Cancel failed: " + msg.Err.Error())
		return m, nil
	}
	switch {
	case msg.Result == nil:
		m = m.AddLog(fmt.Sprintf("Cancellation requested for %s", shortID(msg.JobID)))
	case msg.Result.Cancelled:
		m = m.AddLog(fmt.Sprintf("Cancelled %s", shortID(msg.JobID)))
	case msg.Result.Status.Terminal():
		m = m.AddLog(fmt.Sprintf("%s already %s", shortID(msg.JobID), msg.Result.Status))
	default:
		m = m.AddLog(fmt.Sprintf("Cancellation requested for %s, still %s", shortID(msg.JobID), msg.Result.Status))
	}
	return m, pollJobs(m.Client, m.DocumentID)
}
