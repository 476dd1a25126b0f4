package ui

import "github.com/charmbracelet/lipgloss"

var (
	cyan   = lipgloss.Color("#00D7D7")
	green  = lipgloss.Color("#5FD75F")
	yellow = lipgloss.Color("#FFD75F")
	orange = lipgloss.Color("#FF8700")
	red    = lipgloss.Color("#FF5F5F")
	grey   = lipgloss.Color("#8A8A8A")

	titleStyle = lipgloss.NewStyle().
			Foreground(cyan).
			Bold(true)

	bannerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(cyan).
			Padding(0, 2)

	labelStyle = lipgloss.NewStyle().
			Foreground(cyan).
			Bold(true)

	valueStyle = lipgloss.NewStyle().
			Foreground(yellow)

	successStyle = lipgloss.NewStyle().
			Foreground(green).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(orange).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(red).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(grey)

	barStyle = lipgloss.NewStyle().
			Foreground(green)

	barEmptyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#444444"))
)

// Color helpers for inline use
func Cyan(s string) string   { return labelStyle.Render(s) }
func Yellow(s string) string { return valueStyle.Render(s) }
func Green(s string) string  { return successStyle.Render(s) }
func Red(s string) string    { return errorStyle.Render(s) }
func Orange(s string) string { return warningStyle.Render(s) }
func Dim(s string) string    { return dimStyle.Render(s) }

// barStyleFor colours a progress bar by completion percentage
func barStyleFor(percentage float64) lipgloss.Style {
	switch {
	case percentage >= 80:
		return barStyle.Foreground(green)
	case percentage >= 40:
		return barStyle.Foreground(yellow)
	default:
		return barStyle.Foreground(cyan)
	}
}
