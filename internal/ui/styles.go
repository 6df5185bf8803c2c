package ui

import "github.com/charmbracelet/lipgloss"

// Colors used throughout the TUI.
var (
	ColorRed     = lipgloss.Color("#FF5F5F")
	ColorGreen   = lipgloss.Color("#00FF87")
	ColorYellow  = lipgloss.Color("#FFFF00")
	ColorCyan    = lipgloss.Color("#00FFFF")
	ColorBlue    = lipgloss.Color("#5FAFFF")
	ColorGray    = lipgloss.Color("#666666")
	ColorDimGray = lipgloss.Color("#444444")
	ColorWhite   = lipgloss.Color("#FFFFFF")
	ColorMagenta = lipgloss.Color("#FF00FF")
	ColorTeal    = lipgloss.Color("#5FD7D7")
)

// Base styles reused by UI components.
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorCyan)

	StatusStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorRed).
			Bold(true)

	ErrorTextStyle = lipgloss.NewStyle().
			Foreground(ColorRed)

	TimestampStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	DimStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	FooterKeyStyle = lipgloss.NewStyle().
			Foreground(ColorYellow).
			Bold(true)

	FooterDescStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	DividerStyle = lipgloss.NewStyle().
			Foreground(ColorDimGray)

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(ColorMagenta)

	PendingBadgeStyle = lipgloss.NewStyle().
				Foreground(ColorYellow).
				Bold(true)

	ReadyBadgeStyle = lipgloss.NewStyle().
			Foreground(ColorGreen).
			Bold(true)
)

// Conversation entry styles.
var (
	UserLabelStyle = lipgloss.NewStyle().
			Foreground(ColorBlue).
			Bold(true)

	AssistantLabelStyle = lipgloss.NewStyle().
				Foreground(ColorMagenta).
				Bold(true)

	UserTextStyle = lipgloss.NewStyle().
			Foreground(ColorWhite)

	InfoStyle = lipgloss.NewStyle().
			Foreground(ColorTeal).
			Italic(true)

	MediaTimestampStyle = lipgloss.NewStyle().
				Foreground(ColorYellow)

	MediaURLStyle = lipgloss.NewStyle().
			Foreground(ColorGray).
			Underline(true)

	InputPromptStyle = lipgloss.NewStyle().
				Foreground(ColorCyan).
				Bold(true)
)
