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
	"bytes"
	"strings"
	"sync"
)

// lineWriter is an io.Writer that hands complete lines to fn. Progress output
// uses carriage returns, so both '\n' and '\r' end a line. An unterminated run
// longer than limit bytes is emitted in limit-sized pieces.
type lineWriter struct {
	mu      sync.Mutex
	limit   int
	partial []byte
	fn      func(line string)
}

func newLineWriter(limit int, fn func(line string)) *lineWriter {
	if limit <= 0 {
		limit = DefaultLimits().MaxCaptureBytes
	}
	return &lineWriter{limit: limit, fn: fn}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	data := append(w.partial, p...)
	for {
		i := bytes.IndexAny(data, "\r\n")
		if i < 0 {
			break
		}
		w.emit(data[:i])
		data = data[i+1:]
	}
	w.partial = append(w.partial[:0], data...)
	for len(w.partial) > w.limit {
		w.fn(string(w.partial[:w.limit]))
		w.partial = append(w.partial[:0], w.partial[w.limit:]...)
	}
	return len(p), nil
}

func (w *lineWriter) emit(line []byte) {
	for len(line) > w.limit {
		w.fn(string(line[:w.limit]))
		line = line[w.limit:]
	}
	if len(line) > 0 {
		w.fn(string(line))
	}
}

// Flush emits any trailing text that was not terminated by a newline.
func (w *lineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.partial) > 0 {
		w.fn(string(w.partial))
		w.partial = w.partial[:0]
	}
}

// stderrCapture keeps the first "ERROR:" line seen and a bounded tail of the
// stream. Older tail lines are dropped once maxBytes is exceeded.
type stderrCapture struct {
	mu        sync.Mutex
	maxBytes  int
	size      int
	lines     []string
	errorLine string
}

func newStderrCapture(maxBytes int) *stderrCapture {
	return &stderrCapture{maxBytes: maxBytes}
}

func (c *stderrCapture) add(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.errorLine == "" && strings.Contains(line, "ERROR:") {
		c.errorLine = line
	}

	c.lines = append(c.lines, line)
	c.size += len(line) + 1
	for c.size > c.maxBytes && len(c.lines) > 1 {
		c.size -= len(c.lines[0]) + 1
		c.lines = c.lines[1:]
	}
}

// ErrorLine returns the first line that contained "ERROR:", if any.
func (c *stderrCapture) ErrorLine() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errorLine
}

// Tail returns the retained stderr text.
func (c *stderrCapture) Tail() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strings.Join(c.lines, "\n")
}
