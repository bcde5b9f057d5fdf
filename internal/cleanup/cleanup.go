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

// Package cleanup removes delivered downloads and sweeps stale files out of
// the output directory.
package cleanup

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"ytrelay/internal/collect"
)

// Remove deletes path and its ".part" sibling. Files that do not exist are
// not an error.
func Remove(path string) error {
	var errs []error
	for _, candidate := range []string{path, path + collect.PartialSuffix} {
		if err := os.Remove(candidate); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("failed to remove %s: %w", candidate, err))
		}
	}
	return errors.Join(errs...)
}

// RemoveAll removes every path, logging failures instead of returning them.
func RemoveAll(paths []string, logger zerolog.Logger) {
	for _, path := range paths {
		if err := Remove(path); err != nil {
			logger.Error().Err(err).Str("path", path).Msg("Cleanup failed")
			continue
		}
		logger.Debug().Str("path", path).Msg("Removed delivered file")
	}
}

// Sweep deletes entries of dir whose modification time is more than ttl
// before now and returns the removed paths. A directory is aged by the newest
// modification time found anywhere inside it, so an arena with a download
// still writing into it is kept. Per-entry failures are logged and
// do not stop the sweep; a missing directory is not an error.
func Sweep(dir string, ttl time.Duration, now time.Time, logger zerolog.Logger) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Error().Err(err).Str("dir", dir).Msg("Background cleanup failed")
		}
		return nil
	}

	var removed []string
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				logger.Warn().Err(err).Str("path", path).Msg("Failed to stat entry")
			}
			continue
		}
		modTime := info.ModTime()
		if entry.IsDir() {
			modTime = newestModTime(path, modTime)
		}
		if now.Sub(modTime) <= ttl {
			continue
		}

		if entry.IsDir() {
			err = os.RemoveAll(path)
		} else {
			err = os.Remove(path)
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Error().Err(err).Str("path", path).Msg("Failed to remove old entry")
			continue
		}
		logger.Info().Str("path", path).Dur("age", now.Sub(modTime)).Msg("Cleaned up old file")
		removed = append(removed, path)
	}
	return removed
}

// newestModTime returns the latest modification time of root and everything
// below it, starting from the given root time.
func newestModTime(root string, newest time.Time) time.Time {
	_ = filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().After(newest) {
			newest = info.ModTime()
		}
		return nil
	})
	return newest
}
