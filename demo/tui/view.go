package tui

import (
	"fmt"
	"strings"
)

// View implements tea.Model interface
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("🔎 Similarity Detection Monitor"))
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render(fmt.Sprintf("Document: %s   User: %s", m.DocumentID, m.UserID)))
	b.WriteString("\n\n")

	b.WriteString(m.getStateText())
	b.WriteString("\n\n")

	if len(m.Jobs) > 0 {
		b.WriteString(mutedStyle.Render(fmt.Sprintf("📊 Jobs for this document: %d", len(m.Jobs))))
		b.WriteString("\n\n")
	}

	if len(m.Logs) > 0 {
		b.WriteString(mutedStyle.Render("📝 Recent Activity:"))
		b.WriteString("\n")
		for _, line := range m.Logs {
			b.WriteString(mutedStyle.Render("   " + line))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if m.Latest != nil {
		b.WriteString(matchesStyle.Render(m.formatResults()))
		b.WriteString("\n\n")
	}

	if m.Err != nil && m.Connected {
		b.WriteString(errorStyle.Render("Error: " + m.Err.Error()))
		b.WriteString("\n")
	}

	if m.activeJob() != nil {
		b.WriteString(mutedStyle.Render(TextFooterRunning))
	} else {
		b.WriteString(mutedStyle.Render(TextFooterIdle))
	}
	return b.String()
}
