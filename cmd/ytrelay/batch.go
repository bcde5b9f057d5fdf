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

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"
)

// runBatchMode executes one command per line of in, printing replies to out.
func runBatchMode(ctx context.Context, opts *rootOptions, in io.Reader, out io.Writer) error {
	logger, closer, err := initLogger(opts.debug, opts.logFile, nil)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}
	logger.Debug().Msg("Running in batch mode")

	local, err := setupLocal(ctx, opts, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Batch setup failed")
		return err
	}
	replier := &consoleReplier{out: out, saveDir: local.saveDir, colors: local.colors, logger: logger}
	return runBatch(ctx, in, local.dispatcher, replier, logger)
}

func runBatch(ctx context.Context, in io.Reader, h handler, r *consoleReplier, logger zerolog.Logger) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := sanitizeInputLine(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		if isQuitCommand(line) {
			break
		}
		logger.Info().Str("input", line).Msg("Command received")
		h.Handle(ctx, consoleChatID, line, r)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	return nil
}
