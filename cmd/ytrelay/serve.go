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
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"ytrelay/internal/cleanup"
	"ytrelay/internal/config"
	"ytrelay/internal/health"
	"ytrelay/internal/relay"
	"ytrelay/internal/telegram"
	"ytrelay/internal/ytdlp"
)

func runServe(ctx context.Context, opts *rootOptions) error {
	logger, closer, err := initLogger(opts.debug, opts.logFile, os.Stderr)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}
	logger.Info().Str("version", Version).Msg("ytrelay starting")

	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load config")
		return err
	}
	reportWarnings(cfg, logger)
	if err := cfg.EnsureOutputDir(); err != nil {
		logger.Error().Err(err).Msg("Failed to prepare output directory")
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := newRunner(ctx, cfg, logger)
	dispatcher := relay.NewDispatcher(runner, cfg.DispatcherOptions(), logger.With().Str("component", "relay").Logger())

	bot, err := telegram.New(cfg.BotToken, dispatcher, logger.With().Str("component", "telegram").Logger())
	if err != nil {
		logger.Error().Err(err).Msg("Failed to start bot")
		return err
	}
	if err := bot.RegisterCommands(relay.Commands()); err != nil {
		logger.Warn().Err(err).Msg("Failed to register bot commands")
	}

	sweeper := cleanup.NewSweeper(cfg.OutputDir, cfg.SweepTTL(), cfg.SweepInterval(), logger.With().Str("component", "sweeper").Logger())
	server := health.NewServer(cfg.HealthAddr, logger.With().Str("component", "health").Logger())

	logger.Info().
		Str("output_dir", cfg.OutputDir).
		Str("executable", runner.Executable()).
		Str("health_addr", cfg.HealthAddr).
		Msg("Bot is running")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return bot.Run(gctx) })
	g.Go(func() error { return server.Run(gctx) })
	g.Go(func() error { return sweeper.Run(gctx) })

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("Service stopped with error")
		return err
	}
	logger.Info().Msg("Shutdown complete")
	return nil
}

// newRunner resolves the yt-dlp executable and builds a runner for it. A
// missing executable is logged and the configured path is kept, so each
// invocation reports the spawn failure instead of the process refusing to start.
func newRunner(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *ytdlp.Runner {
	rc := cfg.RunnerConfig()
	executable, err := ytdlp.ResolveExecutable(ctx, cfg.YtdlpPath, cfg.YtdlpAutoInstall, logger)
	if err != nil {
		logger.Warn().Err(err).Str("executable", rc.Executable).Msg("yt-dlp is not available, downloads will fail until it is installed")
	} else {
		rc.Executable = executable
	}
	return ytdlp.NewRunner(rc, logger.With().Str("component", "ytdlp").Logger())
}

func reportWarnings(cfg *config.Config, logger zerolog.Logger) {
	for _, w := range cfg.Validate() {
		logger.Warn().Str("field", w.Field).Msg(w.Message)
	}
}
