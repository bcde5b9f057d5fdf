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
	"context"
	"fmt"
	"os/exec"

	goytdlp "github.com/lrstanley/go-ytdlp"
	"github.com/rs/zerolog"

	apperrors "ytrelay/internal/errors"
)

// installFunc is replaced in tests.
var installFunc = func(ctx context.Context) (string, error) {
	resolved, err := goytdlp.Install(ctx, nil)
	if err != nil {
		return "", err
	}
	return resolved.Executable, nil
}

// ResolveExecutable locates the yt-dlp binary. A bare name is looked up in
// PATH; a path must point at an executable file. When the binary is missing
// and autoInstall is set, a cached copy is downloaded and used instead.
func ResolveExecutable(ctx context.Context, executable string, autoInstall bool, logger zerolog.Logger) (string, error) {
	if executable == "" {
		executable = DefaultExecutable
	}

	path, lookErr := exec.LookPath(executable)
	if lookErr == nil {
		logger.Debug().Str("executable", path).Msg("Resolved yt-dlp")
		return path, nil
	}

	if !autoInstall {
		return "", apperrors.Wrap(apperrors.CodeConfig, fmt.Sprintf("yt-dlp executable %q not found", executable), lookErr)
	}

	logger.Warn().Err(lookErr).Str("executable", executable).Msg("yt-dlp not found, installing a cached copy")
	installed, err := installFunc(ctx)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeConfig, "failed to install yt-dlp", err)
	}
	logger.Info().Str("executable", installed).Msg("Installed yt-dlp")
	return installed, nil
}
