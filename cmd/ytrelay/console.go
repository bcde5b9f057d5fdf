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
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/rs/zerolog"

	"ytrelay/internal/cleanup"
	"ytrelay/internal/config"
	"ytrelay/internal/paths"
	"ytrelay/internal/relay"
	"ytrelay/internal/theme"
)

// consoleChatID identifies the local console to the dispatcher's per-chat
// rate limiter.
const consoleChatID int64 = 0

// handler is the dispatcher as seen by the local front ends.
type handler interface {
	Handle(ctx context.Context, chatID int64, text string, r relay.Replier)
}

// localRelay is the dispatcher stack shared by console and batch mode.
type localRelay struct {
	cfg        *config.Config
	dispatcher *relay.Dispatcher
	sweeper    *cleanup.Sweeper
	colors     *theme.ColorScheme
	saveDir    string
	executable string
}

func setupLocal(ctx context.Context, opts *rootOptions, logger zerolog.Logger) (*localRelay, error) {
	cfg, err := config.LoadConsoleConfig(opts.configPath)
	if err != nil {
		return nil, err
	}
	reportWarnings(cfg, logger)
	if err := cfg.EnsureOutputDir(); err != nil {
		return nil, err
	}
	saveDir, err := paths.EnsureDir(cfg.SaveDir)
	if err != nil {
		return nil, fmt.Errorf("save directory unusable: %w", err)
	}
	colors, err := theme.Load(cfg.ThemeFile)
	if err != nil {
		return nil, err
	}

	runner := newRunner(ctx, cfg, logger)
	return &localRelay{
		cfg:        cfg,
		dispatcher: relay.NewDispatcher(runner, cfg.DispatcherOptions(), logger.With().Str("component", "relay").Logger()),
		sweeper:    cleanup.NewSweeper(cfg.OutputDir, cfg.SweepTTL(), cfg.SweepInterval(), logger.With().Str("component", "sweeper").Logger()),
		colors:     colors,
		saveDir:    saveDir,
		executable: runner.Executable(),
	}, nil
}

func runConsole(ctx context.Context, opts *rootOptions) error {
	// Logs would interleave with the prompt, so they only go to --log-file.
	logger, closer, err := initLogger(opts.debug, opts.logFile, nil)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}
	logger.Debug().Msg("Running in console mode")

	local, err := setupLocal(ctx, opts, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Console setup failed")
		return err
	}
	local.sweeper.Start(ctx)
	defer local.sweeper.Stop()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:              local.colors.Prompt.Sprint("ytrelay❯ "),
		HistoryFile:         local.cfg.CommandHistoryFile,
		AutoComplete:        getCommandCompleter(),
		InterruptPrompt:     "^C",
		EOFPrompt:           "exit",
		FuncFilterInputRune: filterInterruptRune,
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize readline")
		return err
	}
	defer rl.Close()

	out := rl.Stdout()
	fmt.Fprint(out, local.colors.Header.Sprintln("ytrelay console"))
	fmt.Fprintf(out, "Using %s, saving files to %s\n", local.executable, local.saveDir)
	fmt.Fprintln(out, "Type /start for usage, Ctrl+C cancels a download, Ctrl+D or /quit exits")
	fmt.Fprintln(out)

	// Ctrl-C reaches readline as a key while it reads, and as SIGINT while a
	// command runs.
	canceler := &operationCanceler{}
	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	defer signal.Stop(interrupts)
	done := make(chan struct{})
	defer close(done)
	go forwardInterrupts(interrupts, done, canceler, func() {
		logger.Info().Msg("Operation canceled by user")
	})

	replier := &consoleReplier{out: out, saveDir: local.saveDir, colors: local.colors, logger: logger}

	for {
		line, err := rl.Readline()
		if err != nil {
			switch classifyReadlineError(line, err) {
			case readlineContinue:
				continue
			case readlineExit:
				logger.Info().Msg("Session ended")
				return nil
			default:
				return err
			}
		}

		line = sanitizeInputLine(line)
		if line == "" {
			continue
		}
		if isQuitCommand(line) {
			logger.Info().Msg("Session ended")
			return nil
		}
		logger.Info().Str("input", line).Msg("Command received")

		opCtx, cancel := context.WithCancel(ctx)
		canceler.Set(cancel)
		local.dispatcher.Handle(opCtx, consoleChatID, line, replier)
		canceler.Clear()
		cancel()
	}
}

func getCommandCompleter() *readline.PrefixCompleter {
	commands := relay.Commands()
	items := make([]readline.PrefixCompleterInterface, 0, len(commands)+1)
	for _, cmd := range commands {
		items = append(items, readline.PcItem("/"+cmd.Name))
	}
	items = append(items, readline.PcItem("/quit"))
	return readline.NewPrefixCompleter(items...)
}

// consoleReplier prints replies and copies delivered documents into saveDir
// before the dispatcher removes them.
type consoleReplier struct {
	out     io.Writer
	saveDir string
	colors  *theme.ColorScheme
	logger  zerolog.Logger
}

func (r *consoleReplier) Reply(ctx context.Context, text string) error {
	var err error
	switch {
	case isStatusMessage(text):
		_, err = fmt.Fprint(r.out, r.colors.Status.Sprintln(text))
	case isErrorMessage(text):
		_, err = r.colors.Error.Fprintln(r.out, text)
	default:
		_, err = r.colors.Reply.Fprintln(r.out, text)
	}
	return err
}

func (r *consoleReplier) ReplyDocument(ctx context.Context, path string) error {
	dst, err := paths.JoinWithin(r.saveDir, filepath.Base(path))
	if err != nil {
		return err
	}
	if err := copyFile(path, dst); err != nil {
		r.logger.Error().Err(err).Str("src", path).Str("dst", dst).Msg("Failed to save file")
		return err
	}
	r.logger.Info().Str("path", dst).Msg("Saved file")
	_, err = r.colors.Document.Fprintf(r.out, "Saved %s\n", dst)
	return err
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func isStatusMessage(text string) bool {
	switch text {
	case relay.MsgDownloading, relay.MsgUploading, relay.MsgFetchingHelp, relay.MsgQueued:
		return true
	}
	return false
}

func isErrorMessage(text string) bool {
	return strings.HasPrefix(text, "Error:") || text == relay.MsgGenericError || text == relay.MsgTooLarge
}
