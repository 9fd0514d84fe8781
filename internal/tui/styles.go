package tui

import "github.com/charmbracelet/lipgloss"

var (
	accent  = lipgloss.Color("#004880")
	dimGray = lipgloss.Color("#6B7280")
	white   = lipgloss.Color("#F9FAFB")
	red     = lipgloss.Color("#EF4444")
	amber   = lipgloss.Color("#E5A00D")
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(white).
			Background(accent).
			Bold(true).
			Padding(0, 1)

	dimStyle = lipgloss.NewStyle().
			Foreground(dimGray)

	selectedStyle = lipgloss.NewStyle().
			Foreground(white).
			Background(accent)

	errorStyle = lipgloss.NewStyle().
			Foreground(red)

	noticeStyle = lipgloss.NewStyle().
			Foreground(amber)

	pickerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 1)
)
