package cli

import (
	"github.com/charmbracelet/lipgloss"
)

// Output styles shared across commands.
var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#A6E3A1"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F9E2AF"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8"))
	scoreStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#06B6D4"))
)

// statusStyle picks a colour for an embedding or job status.
func statusStyle(status string) lipgloss.Style {
	switch status {
	case "completed":
		return successStyle
	case "failed":
		return errorStyle
	case "processing":
		return warnStyle
	default:
		return mutedStyle
	}
}
