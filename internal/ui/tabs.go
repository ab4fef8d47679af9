package ui

import (
	"fmt"
	"path"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"hexit/internal/config"
)

const maxTabTitle = 24

// Tab is one open buffer in the tab bar.
type Tab struct {
	Title    string
	Dirty    bool
	ReadOnly bool
}

var (
	tabActiveStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 2)

	tabInactiveStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#888888")).
				Background(lipgloss.Color("#1A1A1A")).
				Padding(0, 2)

	tabBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#0F0F0F"))
)

// RenderTabBar renders tabs with active highlighted, cut to width.
func RenderTabBar(tabs []Tab, active int, width int) string {
	parts := make([]string, 0, len(tabs))
	for i, tab := range tabs {
		marker := "○ "
		if tab.Dirty {
			marker = "● "
		}
		label := marker + tab.Title
		if tab.ReadOnly {
			label += " [ro]"
		}
		if i == active {
			parts = append(parts, tabActiveStyle.Render(label))
		} else {
			parts = append(parts, tabInactiveStyle.Render(label))
		}
	}

	bar := strings.Join(parts, " ")
	if lipgloss.Width(bar) > width {
		bar = ansi.Truncate(bar, width, "")
	}
	return tabBarStyle.Width(width).Render(bar)
}

// TabTitle shortens a buffer name for the tab bar: the base name for local
// files, host:base for remote ones.
func TabTitle(name string, index int) string {
	if name == "" {
		return fmt.Sprintf("Buffer %d", index+1)
	}
	title := path.Base(name)
	if rp, ok := config.ParseRemotePath(name); ok {
		title = rp.Host + ":" + path.Base(rp.Path)
	}
	return ansi.Truncate(title, maxTabTitle, "…")
}
