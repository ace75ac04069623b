package ui

import "github.com/charmbracelet/lipgloss"

var (
	colorMuted = lipgloss.Color("#6C757D")
	colorState = lipgloss.Color("#0055FF")

	// Help text style
	helpStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	// weather state shown next to the help line
	stateStyle = lipgloss.NewStyle().
			Foreground(colorState).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(colorMuted)
)
