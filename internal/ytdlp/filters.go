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

package ytdlp

import (
	"regexp"
	"strings"
)

// Limits bounds what the runner keeps from a download's output streams.
type Limits struct {
	// MaxCaptureBytes caps the stderr tail retained for logging.
	MaxCaptureBytes int
	// MaxErrorChars caps the error line surfaced to the chat.
	MaxErrorChars int
}

const (
	defaultMaxCaptureBytes = 64 * 1024
	defaultMaxErrorChars   = 500
)

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[A-Za-z]|\x1b\][^\x1b]*(?:\x07|\x1b\\)`)

// DefaultLimits returns the default capture limits.
func DefaultLimits() Limits {
	return Limits{
		MaxCaptureBytes: defaultMaxCaptureBytes,
		MaxErrorChars:   defaultMaxErrorChars,
	}
}

func normalizeLimits(l Limits) Limits {
	if l.MaxCaptureBytes <= 0 {
		l.MaxCaptureBytes = defaultMaxCaptureBytes
	}
	if l.MaxErrorChars <= 0 {
		l.MaxErrorChars = defaultMaxErrorChars
	}
	return l
}

// sanitizeLine strips terminal escapes and control characters from a line of
// yt-dlp output and truncates it to max runes.
func sanitizeLine(line string, max int) string {
	sanitized := ansiPattern.ReplaceAllString(line, "")
	sanitized = stripControlChars(sanitized)
	sanitized = strings.TrimSpace(sanitized)
	truncated, _ := truncateString(sanitized, max)
	return truncated
}

func stripControlChars(input string) string {
	var builder strings.Builder
	builder.Grow(len(input))
	for _, r := range input {
		if r == '\t' {
			builder.WriteRune(r)
			continue
		}
		if r < 0x20 || r == 0x7f {
			continue
		}
		builder.WriteRune(r)
	}
	return builder.String()
}

func truncateString(input string, max int) (string, bool) {
	if max <= 0 || len(input) <= max {
		return input, false
	}
	runes := []rune(input)
	if len(runes) <= max {
		return input, false
	}
	return string(runes[:max]), true
}
