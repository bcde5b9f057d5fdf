// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package theme

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/pterm/pterm"
)

// Theme names the colors used by the local console
type Theme struct {
	HeaderColor   string `json:"header_color"`
	PromptColor   string `json:"prompt_color"`
	ReplyColor    string `json:"reply_color"`
	StatusColor   string `json:"status_color"`
	DocumentColor string `json:"document_color"`
	ErrorColor    string `json:"error_color"`
}

// ColorScheme provides pterm and color styles based on theme
type ColorScheme struct {
	Header   *pterm.Style
	Prompt   *color.Color
	Reply    *color.Color
	Status   *pterm.Style
	Document *color.Color
	Error    *color.Color
}

// DefaultTheme returns a theme with default values
func DefaultTheme() *Theme {
	return &Theme{
		HeaderColor:   "light-magenta",
		PromptColor:   "cyan",
		ReplyColor:    "white",
		StatusColor:   "yellow",
		DocumentColor: "green",
		ErrorColor:    "red",
	}
}

// LoadTheme loads theme configuration from a JSON file
func LoadTheme(filepath string) (*Theme, error) {
	theme := DefaultTheme()

	// If theme file doesn't exist, return default theme
	if _, err := os.Stat(filepath); os.IsNotExist(err) {
		return theme, nil
	}

	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(data, theme); err != nil {
		return nil, err
	}

	return theme, nil
}

// Load reads and validates the theme at filepath and returns its color
// scheme. NO_COLOR disables all colors.
func Load(filepath string) (*ColorScheme, error) {
	theme, err := LoadTheme(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to load theme: %w", err)
	}
	if err := ValidateTheme(theme); err != nil {
		return nil, fmt.Errorf("invalid theme: %w", err)
	}
	if os.Getenv("NO_COLOR") != "" {
		return DisabledColorScheme(), nil
	}
	return theme.ToColorScheme(), nil
}

// ToColorScheme converts theme to pterm/color styles. Names must have passed
// ValidateTheme.
func (t *Theme) ToColorScheme() *ColorScheme {
	return &ColorScheme{
		Header:   pterm.NewStyle(palette[t.HeaderColor].pterm, pterm.Bold),
		Prompt:   color.New(palette[t.PromptColor].fg, color.Bold),
		Reply:    color.New(palette[t.ReplyColor].fg),
		Status:   pterm.NewStyle(palette[t.StatusColor].pterm),
		Document: color.New(palette[t.DocumentColor].fg),
		Error:    color.New(palette[t.ErrorColor].fg, color.Bold),
	}
}

// DisabledColorScheme returns a color scheme with all colors disabled (for NO_COLOR).
func DisabledColorScheme() *ColorScheme {
	// Disable color output for fatih/color
	color.NoColor = true

	return &ColorScheme{
		Header:   pterm.NewStyle(),
		Prompt:   color.New(),
		Reply:    color.New(),
		Status:   pterm.NewStyle(),
		Document: color.New(),
		Error:    color.New(),
	}
}
