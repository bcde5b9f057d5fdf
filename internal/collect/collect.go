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

// Package collect works out which files in the shared output directory were
// produced by the download that just finished.
//
// yt-dlp names files from remote metadata, so the caller cannot predict them.
// Instead, every complete, visible file modified within a short window before
// the collection moment is attributed to the invocation. This only holds while
// downloads into one directory do not overlap in time.
package collect

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	apperrors "ytrelay/internal/errors"
)

// DefaultWindow is how far back a file's modification time may lie and still
// count as produced by the current invocation.
const DefaultWindow = 60 * time.Second

// PartialSuffix marks files yt-dlp is still writing.
const PartialSuffix = ".part"

// inProgressSuffixes are artifacts of unfinished downloads.
var inProgressSuffixes = []string{PartialSuffix, ".ytdl"}

type candidate struct {
	path    string
	modTime time.Time
}

// Collect returns the absolute paths of files in dir modified within window of
// now, newest first. It fails with a no_results error when the directory is
// empty, when only partial or hidden entries remain, or when nothing is recent.
func Collect(dir string, now time.Time, window time.Duration) ([]string, error) {
	if window <= 0 {
		window = DefaultWindow
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeIO, "invalid output directory", err)
	}

	entries, err := os.ReadDir(absDir)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeIO, "failed to list output directory", err)
	}
	if len(entries) == 0 {
		return nil, apperrors.New(apperrors.CodeNoResults, "no files found in output directory after download")
	}

	var candidates []candidate
	for _, entry := range entries {
		name := entry.Name()
		if !IsCandidateName(name) || entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Removed between listing and stat.
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}
		candidates = append(candidates, candidate{path: filepath.Join(absDir, name), modTime: info.ModTime()})
	}
	if len(candidates) == 0 {
		return nil, apperrors.New(apperrors.CodeNoResults, "no complete files found (only partial or hidden entries)")
	}

	var recent []candidate
	for _, c := range candidates {
		// Future mtimes (clock skew, preserved upload dates) count as out of window.
		if d := now.Sub(c.modTime); d <= window && d >= -window {
			recent = append(recent, c)
		}
	}
	if len(recent) == 0 {
		return nil, apperrors.New(apperrors.CodeNoResults, fmt.Sprintf("no files modified within the last %s", window))
	}

	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].modTime.After(recent[j].modTime)
	})

	paths := make([]string, len(recent))
	for i, c := range recent {
		paths[i] = c.path
	}
	return paths, nil
}

// IsCandidateName reports whether a directory entry name can be a finished download.
func IsCandidateName(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	for _, suffix := range inProgressSuffixes {
		if strings.HasSuffix(name, suffix) {
			return false
		}
	}
	return true
}
