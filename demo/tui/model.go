package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"simcheck/client"
	"simcheck/types"
)

const maxLogs = 8

// Model is the job monitor state for one document.
type Model struct {
	Client     *client.Client
	DocumentID string
	UserID     string

	Jobs      []types.DetectionJob
	Latest    *client.JobResults
	Logs      []string
	Err       error
	Connected bool
}

// NewModel creates a monitor for documentID acting as userID.
func NewModel(serverURL, documentID, userID string) Model {
	return Model{
		Client:     client.NewClient(serverURL),
		DocumentID: documentID,
		UserID:     userID,
	}
}

// Init implements tea.Model interface
func (m Model) Init() tea.Cmd {
	return tea.Batch(pollJobs(m.Client, m.DocumentID), tickCmd())
}

// AddLog appends a timestamped activity line, keeping the most recent few.
func (m Model) AddLog(msg string) Model {
	line := fmt.Sprintf("%s %s", time.Now().Format("15:04:05"), msg)
	m.Logs = append(m.Logs, line)
	if len(m.Logs) > maxLogs {
		m.Logs = m.Logs[len(m.Logs)-maxLogs:]
	}
	return m
}

// activeJob returns the document's PENDING or PROCESSING job, if any.
func (m Model) activeJob() *types.DetectionJob {
	for i := range m.Jobs {
		if m.Jobs[i].Status.Active() {
			return &m.Jobs[i]
		}
	}
	return nil
}

// latestFinished returns the newest terminal job.
func (m Model) latestFinished() *types.DetectionJob {
	for i := range m.Jobs {
		if m.Jobs[i].Status.Terminal() {
			return &m.Jobs[i]
		}
	}
	return nil
}

func (m Model) getStateText() string {
	if !m.Connected {
		return errorStyle.Render("❌ Not connected to " + m.Client.BaseURL())
	}
	if job := m.activeJob(); job != nil {
		if job.Status == types.JobPending {
			return jobStatusStyle(job.Status).Render(fmt.Sprintf("⏳ Job %s queued", shortID(job.ID)))
		}
		return jobStatusStyle(job.Status).Render(fmt.Sprintf("🔍 Job %s scanning the corpus...", shortID(job.ID)))
	}
	if job := m.latestFinished(); job != nil {
		if job.Status == types.JobFailed {
			return jobStatusStyle(job.Status).Render(fmt.Sprintf("❌ Last job failed: %s", job.ErrorDetail))
		}
		return jobStatusStyle(job.Status).Render("✅ Last job completed")
	}
	return "👋 No detection run yet\n\n" + mutedStyle.Render(TextStartInstruction)
}

// formatResults renders the matches of the latest finished job.
func (m Model) formatResults() string {
	res := m.Latest
	var b strings.Builder

	b.WriteString(matchesTitleStyle.Render(fmt.Sprintf("Matches for job %s", shortID(res.Job.ID))))
	b.WriteString("\n\n")
	if len(res.Results) == 0 {
		b.WriteString(mutedStyle.Render("No similar documents found."))
		return b.String()
	}

	for i, r := range res.Results {
		if i == 10 {
			b.WriteString(mutedStyle.Render(fmt.Sprintf("… and %d more\n", len(res.Results)-10)))
			break
		}
		b.WriteString(fmt.Sprintf("%-24s %s  confidence %.2f  %d passages",
			r.MatchedDocumentID, similarityStyle(r.Similarity).Render(fmt.Sprintf("%5.1f%%", r.Similarity*100)), r.Confidence, len(r.Segments)))
		if r.SemanticScore != nil {
			b.WriteString(fmt.Sprintf("  semantic %.2f", *r.SemanticScore))
		}
		b.WriteString("\n")
		if len(r.Segments) > 0 && r.Segments[0].SourceText != "" {
			b.WriteString("   " + quoteStyle.Render("“"+preview(r.Segments[0].SourceText, 70)+"”"))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
