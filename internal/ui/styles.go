// Package ui renders tasks for the terminal and reads interactive input.
package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/dohr-michael/taskflow/internal/tasks"
)

// =============================================================================
// Color Palette
// =============================================================================

const (
	ColorPrimary   = "#7C3AED" // Violet - headings
	ColorSecondary = "#10B981" // Green - success, completed
	ColorAccent    = "#60A5FA" // Blue - in progress, labels
	ColorWarning   = "#F59E0B" // Amber - high priority, warnings
	ColorError     = "#EF4444" // Red - errors, critical, overdue
	ColorMuted     = "#6B7280" // Gray - hints, cancelled
	ColorText      = "#E5E7EB"
)

var (
	Primary   = lipgloss.Color(ColorPrimary)
	Secondary = lipgloss.Color(ColorSecondary)
	Accent    = lipgloss.Color(ColorAccent)
	Warning   = lipgloss.Color(ColorWarning)
	Error     = lipgloss.Color(ColorError)
	Muted     = lipgloss.Color(ColorMuted)
	Text      = lipgloss.Color(ColorText)
)

// =============================================================================
// Styles
// =============================================================================

var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true)

	LabelStyle = lipgloss.NewStyle().
			Foreground(Accent).
			Bold(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(Secondary)

	WarningStyle = lipgloss.NewStyle().
			Foreground(Warning)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)

	MutedStyle = lipgloss.NewStyle().
			Foreground(Muted)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Primary).
			Padding(0, 1)
)

// StatusIcon returns the glyph shown next to a status.
func StatusIcon(s tasks.Status) string {
	switch s {
	case tasks.StatusTodo:
		return "○"
	case tasks.StatusInProgress:
		return "◐"
	case tasks.StatusCompleted:
		return "●"
	case tasks.StatusCancelled:
		return "✕"
	}
	return "?"
}

// StatusStyle colors a status label.
func StatusStyle(s tasks.Status) lipgloss.Style {
	switch s {
	case tasks.StatusInProgress:
		return lipgloss.NewStyle().Foreground(Accent)
	case tasks.StatusCompleted:
		return SuccessStyle
	case tasks.StatusCancelled:
		return MutedStyle
	}
	return lipgloss.NewStyle().Foreground(Text)
}

// PriorityStyle colors a priority label.
func PriorityStyle(p tasks.Priority) lipgloss.Style {
	switch p {
	case tasks.PriorityCritical:
		return ErrorStyle
	case tasks.PriorityHigh:
		return WarningStyle
	case tasks.PriorityLow:
		return MutedStyle
	}
	return lipgloss.NewStyle().Foreground(Text)
}
