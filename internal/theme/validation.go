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
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/pterm/pterm"
)

var (
	// ErrEmptyColor is returned when a theme color is not set.
	ErrEmptyColor = errors.New("color cannot be empty")
	// ErrInvalidColor is returned for color names outside the palette.
	ErrInvalidColor = errors.New("invalid color")
)

type paletteEntry struct {
	fg    color.Attribute
	pterm pterm.Color
}

var palette = map[string]paletteEntry{
	"black":         {color.FgBlack, pterm.FgBlack},
	"red":           {color.FgRed, pterm.FgRed},
	"green":         {color.FgGreen, pterm.FgGreen},
	"yellow":        {color.FgYellow, pterm.FgYellow},
	"blue":          {color.FgBlue, pterm.FgBlue},
	"magenta":       {color.FgMagenta, pterm.FgMagenta},
	"cyan":          {color.FgCyan, pterm.FgCyan},
	"white":         {color.FgWhite, pterm.FgWhite},
	"gray":          {color.FgHiBlack, pterm.FgGray},
	"light-red":     {color.FgHiRed, pterm.FgLightRed},
	"light-green":   {color.FgHiGreen, pterm.FgLightGreen},
	"light-yellow":  {color.FgHiYellow, pterm.FgLightYellow},
	"light-blue":    {color.FgHiBlue, pterm.FgLightBlue},
	"light-magenta": {color.FgHiMagenta, pterm.FgLightMagenta},
	"light-cyan":    {color.FgHiCyan, pterm.FgLightCyan},
	"light-white":   {color.FgHiWhite, pterm.FgLightWhite},
}

// ColorNames lists the accepted color names in sorted order.
func ColorNames() []string {
	names := make([]string, 0, len(palette))
	for name := range palette {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateTheme validates all theme color values.
func ValidateTheme(t *Theme) error {
	if t == nil {
		return fmt.Errorf("theme is nil")
	}

	fields := []struct {
		name  string
		value string
	}{
		{"header_color", t.HeaderColor},
		{"prompt_color", t.PromptColor},
		{"reply_color", t.ReplyColor},
		{"status_color", t.StatusColor},
		{"document_color", t.DocumentColor},
		{"error_color", t.ErrorColor},
	}

	for _, f := range fields {
		if err := ValidateColor(f.value); err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
	}

	return nil
}

// ValidateColor validates a single color name.
func ValidateColor(name string) error {
	if name == "" {
		return ErrEmptyColor
	}
	if _, ok := palette[name]; !ok {
		return fmt.Errorf("%w: %q (expected one of %s)", ErrInvalidColor, name, strings.Join(ColorNames(), ", "))
	}
	return nil
}
