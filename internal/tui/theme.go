package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/hlsget/hlsget/internal/config"
)

// ApplyTheme switches the palette for light terminals. ThemeAdaptive asks
// the terminal; explicit settings win. Call before the program starts.
func ApplyTheme(theme int) {
	dark := true
	switch theme {
	case config.ThemeLight:
		dark = false
	case config.ThemeDark:
		dark = true
	default:
		dark = termenv.HasDarkBackground()
	}
	if dark {
		return
	}

	ColorText = lipgloss.Color("#282a36")
	ColorSubtext = lipgloss.Color("#6272a4")
	ColorPrimary = lipgloss.Color("#7c3aed")
	rebuildStyles()
}

func rebuildStyles() {
	AppStyle = lipgloss.NewStyle().
		Padding(DefaultPaddingY, DefaultPaddingX).
		Foreground(ColorText)
	TitleStyle = lipgloss.NewStyle().
		Foreground(ColorPrimary).
		Bold(true).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorPrimary).
		Padding(DefaultPaddingY, DefaultPaddingX)
	SubtextStyle = lipgloss.NewStyle().Foreground(ColorSubtext)
	HelpStyle = lipgloss.NewStyle().Foreground(ColorSubtext).Italic(true)
}
