package tui

import "github.com/charmbracelet/lipgloss"

type theme struct {
	accent     lipgloss.Color
	muted      lipgloss.Color
	selectedFg lipgloss.Color
	danger     lipgloss.Color
	base       lipgloss.Style
}

var (
	darkTheme = theme{
		accent:     lipgloss.Color("57"),
		muted:      lipgloss.Color("240"),
		selectedFg: lipgloss.Color("229"),
		danger:     lipgloss.Color("160"),
	}
	lightTheme = theme{
		accent:     lipgloss.Color("25"),
		muted:      lipgloss.Color("244"),
		selectedFg: lipgloss.Color("231"),
		danger:     lipgloss.Color("124"),
	}
)

func themeFor(dark bool) theme {
	t := lightTheme
	if dark {
		t = darkTheme
	}
	t.base = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(t.muted)
	return t
}
