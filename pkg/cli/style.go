package cli

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme defines the color scheme for text output.
type Theme struct {
	Fake    lipgloss.Color // label color for fake verdicts
	Real    lipgloss.Color // label color for real verdicts
	Primary lipgloss.Color // headings
	Dim     lipgloss.Color // secondary details
}

// DefaultTheme is the default theme.
var DefaultTheme = Theme{
	Fake:    lipgloss.Color("#ff5f5f"),
	Real:    lipgloss.Color("#00ff9f"),
	Primary: lipgloss.Color("#5fafff"),
	Dim:     lipgloss.Color("#6e7681"),
}

// Styles holds all styles derived from a theme.
type Styles struct {
	Fake  lipgloss.Style
	Real  lipgloss.Style
	Title lipgloss.Style
	Label lipgloss.Style
	Dim   lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Fake:  lipgloss.NewStyle().Bold(true).Foreground(t.Fake),
		Real:  lipgloss.NewStyle().Bold(true).Foreground(t.Real),
		Title: lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Label: lipgloss.NewStyle().Foreground(t.Primary),
		Dim:   lipgloss.NewStyle().Foreground(t.Dim),
	}
}

// DefaultStyles returns NewStyles(DefaultTheme).
func DefaultStyles() Styles {
	return NewStyles(DefaultTheme)
}

// PlainStyles renders text without any decoration.
func PlainStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{Fake: plain, Real: plain, Title: plain, Label: plain, Dim: plain}
}
