package cli

import "github.com/charmbracelet/lipgloss"

// Theme defines the color scheme for styled terminal output.
type Theme struct {
	Primary lipgloss.Color // Main accent color
	Dim     lipgloss.Color // Dimmed/help text color
	Error   lipgloss.Color
}

// DefaultTheme is the default bright green theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Dim:     lipgloss.Color("#6e7681"),
	Error:   lipgloss.Color("#ff6b6b"),
}

// Styles holds all styles derived from a theme.
type Styles struct {
	Title lipgloss.Style
	Label lipgloss.Style
	Dim   lipgloss.Style
	Error lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Title: lipgloss.NewStyle().Bold(true).Foreground(t.Primary).Padding(0, 1),
		Label: lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Dim:   lipgloss.NewStyle().Foreground(t.Dim),
		Error: lipgloss.NewStyle().Bold(true).Foreground(t.Error),
	}
}

// DefaultStyles are the styles derived from DefaultTheme.
var DefaultStyles = NewStyles(DefaultTheme)
