package workspace

import "slices"

// Theme is a named color scheme.
type Theme string

const (
	ThemeRoyalPurple Theme = "royal-purple"
	ThemeForestGreen Theme = "forest-green"
	ThemeDarkMode    Theme = "dark-mode"
)

// Themes lists the selectable themes.
var Themes = []Theme{ThemeRoyalPurple, ThemeForestGreen, ThemeDarkMode}

// Valid reports whether t is a known theme.
func (t Theme) Valid() bool {
	return slices.Contains(Themes, t)
}
