package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/cultcreative/deck/internal/localstate"
)

const themeKey = "ui.theme"

// Theme is a named palette. Badges colors upload statuses and task
// priorities by lowercase name.
type Theme struct {
	Name string

	Base    string
	Panel   string
	Line    string
	LineHot string
	Fg      string
	FgDim   string
	FgFaint string
	Pick    string
	PickFg  string
	Accent  string
	Good    string
	Caution string
	Bad     string
	Note    string
	Badges  map[string]string
}

// Styles holds the rendered styles for one theme.
type Styles struct {
	Text        lipgloss.Style
	MutedText   lipgloss.Style
	FaintText   lipgloss.Style
	AccentText  lipgloss.Style
	SuccessText lipgloss.Style
	WarningText lipgloss.Style
	DangerText  lipgloss.Style
	InfoText    lipgloss.Style

	Header      lipgloss.Style
	Logo        lipgloss.Style
	Column      lipgloss.Style
	ColumnFocus lipgloss.Style
	Selected    lipgloss.Style

	badges   map[string]string
	badgeFg  string
	fallback string
}

func fg(c string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(c))
}

func (t Theme) Styles() Styles {
	panel := func(border string) lipgloss.Style {
		return lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(border)).
			Padding(0, 1)
	}
	return Styles{
		Text:        fg(t.Fg),
		MutedText:   fg(t.FgDim),
		FaintText:   fg(t.FgFaint),
		AccentText:  fg(t.Accent),
		SuccessText: fg(t.Good).Bold(true),
		WarningText: fg(t.Caution),
		DangerText:  fg(t.Bad).Bold(true),
		InfoText:    fg(t.Note),

		Header:      fg(t.Fg).Background(lipgloss.Color(t.Panel)).Padding(0, 1),
		Logo:        fg(t.Accent).Bold(true),
		Column:      panel(t.Line),
		ColumnFocus: panel(t.LineHot),
		Selected:    fg(t.PickFg).Background(lipgloss.Color(t.Pick)),

		badges:   t.Badges,
		badgeFg:  t.Base,
		fallback: t.FgDim,
	}
}

// StatusStyle returns the badge for an upload status or task priority.
// Unknown names get a muted badge.
func (s Styles) StatusStyle(name string) lipgloss.Style {
	c, ok := s.badges[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		c = s.fallback
	}
	return fg(s.badgeFg).Background(lipgloss.Color(c)).Padding(0, 1)
}

var themeList = []Theme{tokyoTheme(), gruvboxTheme(), mochaTheme()}

// GetTheme returns the theme called name, or the first theme.
func GetTheme(name string) Theme {
	for _, t := range themeList {
		if t.Name == name {
			return t
		}
	}
	return themeList[0]
}

// NextTheme returns the theme after current, wrapping around.
func NextTheme(current string) string {
	for i, t := range themeList {
		if t.Name == current {
			return themeList[(i+1)%len(themeList)].Name
		}
	}
	return themeList[0].Name
}

func ThemeNames() []string {
	names := make([]string, len(themeList))
	for i, t := range themeList {
		names[i] = t.Name
	}
	return names
}

// loadTheme returns the theme saved in state. state may be nil.
func loadTheme(state *localstate.Store) Theme {
	var name string
	state.Get(themeKey, &name)
	return GetTheme(name)
}

func saveTheme(state *localstate.Store, t Theme) {
	state.Set(themeKey, t.Name)
}

// badges maps upload statuses and task priorities onto a palette.
func badges(active, busy, good, bad, warn, off string) map[string]string {
	return map[string]string{
		"uploading":  active,
		"processing": busy,
		"done":       good,
		"cancelled":  off,
		"failed":     bad,
		"urgent":     bad,
		"high":       bad,
		"medium":     warn,
		"low":        good,
	}
}

func tokyoTheme() Theme {
	// https://github.com/folke/tokyonight.nvim (night)
	return Theme{
		Name:    "Tokyo",
		Base:    "#1a1b26",
		Panel:   "#24283b",
		Line:    "#3b4261",
		LineHot: "#7aa2f7",
		Fg:      "#c0caf5",
		FgDim:   "#a9b1d6",
		FgFaint: "#565f89",
		Pick:    "#283457",
		PickFg:  "#c0caf5",
		Accent:  "#7aa2f7",
		Good:    "#9ece6a",
		Caution: "#e0af68",
		Bad:     "#f7768e",
		Note:    "#7dcfff",
		Badges:  badges("#7aa2f7", "#bb9af7", "#9ece6a", "#f7768e", "#e0af68", "#565f89"),
	}
}

func gruvboxTheme() Theme {
	// https://github.com/morhetz/gruvbox (dark, medium)
	return Theme{
		Name:    "Gruvbox",
		Base:    "#282828",
		Panel:   "#3c3836",
		Line:    "#504945",
		LineHot: "#fabd2f",
		Fg:      "#ebdbb2",
		FgDim:   "#bdae93",
		FgFaint: "#928374",
		Pick:    "#665c54",
		PickFg:  "#fbf1c7",
		Accent:  "#83a598",
		Good:    "#b8bb26",
		Caution: "#fabd2f",
		Bad:     "#fb4934",
		Note:    "#8ec07c",
		Badges:  badges("#83a598", "#d3869b", "#b8bb26", "#fb4934", "#fabd2f", "#928374"),
	}
}

func mochaTheme() Theme {
	// https://github.com/catppuccin/catppuccin (mocha)
	return Theme{
		Name:    "Mocha",
		Base:    "#1e1e2e",
		Panel:   "#313244",
		Line:    "#45475a",
		LineHot: "#cba6f7",
		Fg:      "#cdd6f4",
		FgDim:   "#bac2de",
		FgFaint: "#6c7086",
		Pick:    "#585b70",
		PickFg:  "#cdd6f4",
		Accent:  "#89b4fa",
		Good:    "#a6e3a1",
		Caution: "#f9e2af",
		Bad:     "#f38ba8",
		Note:    "#94e2d5",
		Badges:  badges("#89b4fa", "#cba6f7", "#a6e3a1", "#f38ba8", "#f9e2af", "#6c7086"),
	}
}
