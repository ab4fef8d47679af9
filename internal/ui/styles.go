package ui

import "github.com/charmbracelet/lipgloss"

var (
	headerStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#7D56F4")).
			Foreground(lipgloss.Color("#FFFFFF")).
			Bold(true)

	offsetStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#555555"))

	cursorStyle = lipgloss.NewStyle().Reverse(true)

	dirtyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F87")).
			Reverse(true)

	unreadableStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#9E6A03"))

	statusStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#333333")).
			Foreground(lipgloss.Color("#AAAAAA"))

	modeStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#7D56F4")).
			Foreground(lipgloss.Color("#FFFFFF")).
			Bold(true)

	promptBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#1E1E1E")).
			Foreground(lipgloss.Color("#FFFFFF"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555")).
			Bold(true)
)
