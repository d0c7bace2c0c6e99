package tui

import "github.com/charmbracelet/lipgloss"

var (
	// Colors
	ColorPrimary = lipgloss.Color("#bd93f9") // Dracula Purple
	ColorSuccess = lipgloss.Color("#50fa7b") // Dracula Green
	ColorError   = lipgloss.Color("#ff5555") // Dracula Red
	ColorWarning = lipgloss.Color("#ffb86c") // Dracula Orange
	ColorText    = lipgloss.Color("#f8f8f2") // Dracula Foreground
	ColorSubtext = lipgloss.Color("#6272a4") // Dracula Comment

	AppStyle = lipgloss.NewStyle().
			Padding(DefaultPaddingY, DefaultPaddingX).
			Foreground(ColorText)

	TitleStyle = lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorPrimary).
			Padding(DefaultPaddingY, DefaultPaddingX)

	SuccessStyle = lipgloss.NewStyle().Foreground(ColorSuccess).Bold(true)
	ErrorStyle   = lipgloss.NewStyle().Foreground(ColorError).Bold(true)
	WarningStyle = lipgloss.NewStyle().Foreground(ColorWarning)
	SubtextStyle = lipgloss.NewStyle().Foreground(ColorSubtext)
	HelpStyle    = lipgloss.NewStyle().Foreground(ColorSubtext).Italic(true)
)
