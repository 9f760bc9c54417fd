package tui

import "github.com/charmbracelet/lipgloss"

// Theme is a color palette for the chat screen.
type Theme struct {
	Name       string
	Background lipgloss.Color
	Foreground lipgloss.Color
	Accent     lipgloss.Color
	Muted      lipgloss.Color
	Own        lipgloss.Color
	Other      lipgloss.Color
	System     lipgloss.Color
	Error      lipgloss.Color
}

var (
	// Synth is the default neon theme.
	Synth = Theme{
		Name:       "synth",
		Background: lipgloss.Color("#1a0b2e"),
		Foreground: lipgloss.Color("#f5e6ff"),
		Accent:     lipgloss.Color("#ff2a6d"),
		Muted:      lipgloss.Color("#7a5c99"),
		Own:        lipgloss.Color("#05d9e8"),
		Other:      lipgloss.Color("#d16bff"),
		System:     lipgloss.Color("#f9c80e"),
		Error:      lipgloss.Color("#ff3864"),
	}

	// Horror is the alternate theme toggled by the void command.
	Horror = Theme{
		Name:       "horror",
		Background: lipgloss.Color("#000000"),
		Foreground: lipgloss.Color("#d8d8d8"),
		Accent:     lipgloss.Color("#b00000"),
		Muted:      lipgloss.Color("#5c0000"),
		Own:        lipgloss.Color("#ff1a1a"),
		Other:      lipgloss.Color("#8a0303"),
		System:     lipgloss.Color("#ff4d4d"),
		Error:      lipgloss.Color("#ff0000"),
	}
)

// ThemeFor returns the palette for the alternate-theme flag.
func ThemeFor(alternate bool) Theme {
	if alternate {
		return Horror
	}
	return Synth
}

type styles struct {
	app     lipgloss.Style
	title   lipgloss.Style
	muted   lipgloss.Style
	own     lipgloss.Style
	other   lipgloss.Style
	system  lipgloss.Style
	text    lipgloss.Style
	link    lipgloss.Style
	input   lipgloss.Style
	status  lipgloss.Style
	failure lipgloss.Style
}

func newStyles(t Theme) styles {
	return styles{
		app:     lipgloss.NewStyle().Background(t.Background).Foreground(t.Foreground),
		title:   lipgloss.NewStyle().Bold(true).Foreground(t.Accent),
		muted:   lipgloss.NewStyle().Foreground(t.Muted),
		own:     lipgloss.NewStyle().Bold(true).Foreground(t.Own),
		other:   lipgloss.NewStyle().Bold(true).Foreground(t.Other),
		system:  lipgloss.NewStyle().Bold(true).Italic(true).Foreground(t.System),
		text:    lipgloss.NewStyle().Foreground(t.Foreground),
		link:    lipgloss.NewStyle().Underline(true).Foreground(t.Own),
		input:   lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(t.Accent),
		status:  lipgloss.NewStyle().Foreground(t.Muted),
		failure: lipgloss.NewStyle().Bold(true).Foreground(t.Error),
	}
}
