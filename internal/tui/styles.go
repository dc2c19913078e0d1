package tui

import (
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/wms-platform/production-tracking/internal/domain"
)

// Shop floor palette: high contrast for TVs seen from across the room.
var (
	ColorGreen  = lipgloss.Color("#8ec07c")
	ColorYellow = lipgloss.Color("#fabd2f")
	ColorRed    = lipgloss.Color("#fb4934")
	ColorBlue   = lipgloss.Color("#83a598")
	ColorDim    = lipgloss.Color("#928374")
	ColorFg     = lipgloss.Color("#ebdbb2")
	ColorHeader = lipgloss.Color("#fe8019")
)

var (
	StyleGreen  = lipgloss.NewStyle().Foreground(ColorGreen)
	StyleYellow = lipgloss.NewStyle().Foreground(ColorYellow)
	StyleRed    = lipgloss.NewStyle().Foreground(ColorRed).Bold(true)
	StyleBlue   = lipgloss.NewStyle().Foreground(ColorBlue)
	StyleDim    = lipgloss.NewStyle().Foreground(ColorDim)
	StyleFg     = lipgloss.NewStyle().Foreground(ColorFg)
	StyleHeader = lipgloss.NewStyle().Foreground(ColorHeader).Bold(true)

	StyleBucket = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorDim).
			Padding(0, 1)
	StyleStatusBar = lipgloss.NewStyle().Foreground(ColorDim).MarginTop(1)
)

// LevelStyle returns the style for an urgency level
func LevelStyle(level domain.UrgencyLevel) lipgloss.Style {
	switch level {
	case domain.UrgencyLate:
		return StyleRed
	case domain.UrgencyWarning:
		return StyleYellow
	case domain.UrgencyNormal:
		return StyleGreen
	default:
		return StyleDim
	}
}

// LevelIndicator renders "● LATE" and friends
func LevelIndicator(level domain.UrgencyLevel) string {
	if level == "" {
		return StyleDim.Render("●  -")
	}
	return LevelStyle(level).Render("● " + string(level))
}

func formTheme() *huh.Theme {
	t := huh.ThemeBase()

	t.Focused.Title = lipgloss.NewStyle().Foreground(ColorHeader).Bold(true)
	t.Focused.SelectSelector = lipgloss.NewStyle().Foreground(ColorHeader)
	t.Focused.SelectedOption = lipgloss.NewStyle().Foreground(ColorGreen)
	t.Focused.UnselectedOption = lipgloss.NewStyle().Foreground(ColorFg)
	t.Focused.FocusedButton = lipgloss.NewStyle().Foreground(ColorFg).Background(ColorHeader).Padding(0, 1)
	t.Focused.BlurredButton = lipgloss.NewStyle().Foreground(ColorDim).Padding(0, 1)
	t.Focused.TextInput.Prompt = lipgloss.NewStyle().Foreground(ColorHeader)
	t.Focused.TextInput.Placeholder = lipgloss.NewStyle().Foreground(ColorDim)
	t.Focused.Description = lipgloss.NewStyle().Foreground(ColorDim)
	t.Focused.ErrorMessage = lipgloss.NewStyle().Foreground(ColorRed)

	t.Blurred = t.Focused
	t.Blurred.Title = lipgloss.NewStyle().Foreground(ColorDim)
	return t
}
