package ui

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/lipgloss"
)

const helpIntro = `hexit: edit any file byte by byte.

In HEX mode type 0-9 a-f to change the nibble under the cursor.
In ASCII mode type any printable character.
Edits stay in memory until you save.`

var (
	helpStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")).
			Padding(1, 3)

	helpTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4")).
			Bold(true)
)

// RenderHelp returns the full key reference centred in a width x height
// area.
func RenderHelp(width, height int, h help.Model, keys KeyMap) string {
	h.ShowAll = true
	body := lipgloss.JoinVertical(lipgloss.Left,
		helpTitleStyle.Render("Keys"),
		"",
		helpIntro,
		"",
		h.FullHelpView(keys.FullHelp()),
	)
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, helpStyle.Render(body))
}
