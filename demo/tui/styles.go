package tui

import (
	"github.com/charmbracelet/lipgloss"

	"simcheck/types"
)

// Similarity bands used to color match percentages.
const (
	similarityNotable = 0.15
	similarityHigh    = 0.40
)

var (
	headerStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#2E86AB")).
		MarginTop(1)

	mutedStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#8A8A8A"))

	errorStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#D7263D"))

	matchesStyle = lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), false, false, false, true).
		BorderForeground(lipgloss.Color("#2E86AB")).
		PaddingLeft(2)

	matchesTitleStyle = lipgloss.NewStyle().
		Bold(true).
		Underline(true)

	quoteStyle = lipgloss.NewStyle().
		Italic(true).
		Foreground(lipgloss.Color("#8A8A8A"))
)

var jobStatusColors = map[types.JobStatus]lipgloss.Color{
	types.JobPending:    lipgloss.Color("#F6AE2D"),
	types.JobProcessing: lipgloss.Color("#2E86AB"),
	types.JobCompleted:  lipgloss.Color("#3BB273"),
	types.JobFailed:     lipgloss.Color("#D7263D"),
}

// jobStatusStyle colors a line by the state of the job it describes.
func jobStatusStyle(status types.JobStatus) lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(jobStatusColors[status])
}

// similarityStyle grades a match: muted below the notable band, amber up to
// the high band, red above it.
func similarityStyle(similarity float64) lipgloss.Style {
	switch {
	case similarity >= similarityHigh:
		return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#D7263D"))
	case similarity >= similarityNotable:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#F6AE2D"))
	default:
		return mutedStyle
	}
}
