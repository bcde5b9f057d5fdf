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

// Package relay turns chat commands into downloads and sends the results back.
package relay

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"ytrelay/internal/args"
	"ytrelay/internal/cleanup"
	apperrors "ytrelay/internal/errors"
	"ytrelay/internal/ytdlp"
)

// Replier delivers replies to the chat a command came from.
type Replier interface {
	Reply(ctx context.Context, text string) error
	ReplyDocument(ctx context.Context, path string) error
}

// Downloader runs the external download tool.
type Downloader interface {
	Download(ctx context.Context, tokens []string) (*ytdlp.Result, error)
	Help(ctx context.Context) (string, error)
}

// Command describes a chat command.
type Command struct {
	Name        string
	Description string
}

// Commands returns the commands the dispatcher understands.
func Commands() []Command {
	return []Command{
		{Name: "start", Description: "Show usage"},
		{Name: "dl", Description: "Download media: /dl <yt-dlp arguments> <url>"},
		{Name: "help", Description: "Show yt-dlp help"},
	}
}

// Options configures a Dispatcher.
type Options struct {
	// OutputDir holds temporary files such as the help text.
	OutputDir string
	// MaxConcurrent caps simultaneous downloads. Values below 1 mean 1.
	MaxConcurrent int64
	RateLimits    RateLimitConfig
}

// Dispatcher routes chat commands through tokenization, validation, download,
// delivery and cleanup.
type Dispatcher struct {
	downloader Downloader
	outputDir  string
	slots      *semaphore.Weighted
	limiter    *rateLimiter
	logger     zerolog.Logger
}

// NewDispatcher creates a dispatcher around downloader.
func NewDispatcher(downloader Downloader, opts Options, logger zerolog.Logger) *Dispatcher {
	if opts.MaxConcurrent < 1 {
		opts.MaxConcurrent = 1
	}
	return &Dispatcher{
		downloader: downloader,
		outputDir:  opts.OutputDir,
		slots:      semaphore.NewWeighted(opts.MaxConcurrent),
		limiter:    newRateLimiter(opts.RateLimits),
		logger:     logger,
	}
}

// ParseCommand splits "/name@bot rest" into its lower-cased name and the raw
// remainder. ok is false when text is not a command.
func ParseCommand(text string) (name, rest string, ok bool) {
	text = strings.TrimLeftFunc(text, unicode.IsSpace)
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	head := text[1:]
	if i := strings.IndexFunc(head, unicode.IsSpace); i >= 0 {
		rest = strings.TrimLeftFunc(head[i:], unicode.IsSpace)
		head = head[:i]
	}
	if at := strings.IndexByte(head, '@'); at >= 0 {
		head = head[:at]
	}
	return strings.ToLower(head), rest, true
}

// Handle processes one incoming message. Every failure ends in exactly one
// error reply to r.
func (d *Dispatcher) Handle(ctx context.Context, chatID int64, text string, r Replier) {
	name, rest, ok := ParseCommand(text)
	logger := d.logger.With().Int64("chat", chatID).Str("command", name).Logger()

	if !ok {
		d.reply(ctx, r, logger, MsgHint)
		return
	}
	logger.Debug().Msg("Executing command")

	switch name {
	case "start":
		d.reply(ctx, r, logger, MsgWelcome)
	case "help":
		d.handleHelp(ctx, r, logger)
	case "dl", "download":
		d.handleDownload(ctx, chatID, rest, r, logger)
	default:
		d.reply(ctx, r, logger, MsgHint)
	}
}

func (d *Dispatcher) handleDownload(ctx context.Context, chatID int64, rest string, r Replier, logger zerolog.Logger) {
	if strings.TrimSpace(rest) == "" {
		d.reply(ctx, r, logger, MsgUsage)
		return
	}

	tokens := args.Tokenize(rest)
	if verdict := args.Validate(tokens); !verdict.Accepted {
		logger.Info().Strs("args", tokens).Str("reason", verdict.Reason).Msg("Rejected arguments")
		d.replyError(ctx, r, logger, verdict.Err())
		return
	}

	if err := d.limiter.Allow(chatID); err != nil {
		logger.Info().Err(err).Msg("Download throttled")
		d.replyError(ctx, r, logger, apperrors.Wrap(apperrors.CodeRateLimited, err.Error(), err))
		return
	}

	if !d.slots.TryAcquire(1) {
		d.reply(ctx, r, logger, MsgQueued)
		if err := d.slots.Acquire(ctx, 1); err != nil {
			d.replyError(ctx, r, logger, apperrors.Wrap(apperrors.CodeCanceled, "download canceled", err))
			return
		}
	}
	defer d.slots.Release(1)

	var result *ytdlp.Result
	defer func() {
		if result == nil {
			return
		}
		cleanup.RemoveAll(result.Files, logger)
		if result.Isolated {
			if err := os.RemoveAll(result.Dir); err != nil {
				logger.Warn().Err(err).Str("dir", result.Dir).Msg("Failed to remove download directory")
			}
		}
	}()

	d.reply(ctx, r, logger, MsgDownloading)

	result, err := d.downloader.Download(ctx, tokens)
	if err != nil {
		result = nil
		d.replyError(ctx, r, logger, err)
		return
	}

	d.reply(ctx, r, logger, MsgUploading)
	for _, file := range result.Files {
		if err := r.ReplyDocument(ctx, file); err != nil {
			d.replyError(ctx, r, logger, err)
			return
		}
		logger.Info().Str("file", file).Msg("Delivered file")
	}
}

func (d *Dispatcher) handleHelp(ctx context.Context, r Replier, logger zerolog.Logger) {
	d.reply(ctx, r, logger, MsgFetchingHelp)

	text, err := d.downloader.Help(ctx)
	if err != nil {
		d.replyError(ctx, r, logger, err)
		return
	}

	// A hidden directory keeps the help file out of download collection.
	dir, err := os.MkdirTemp(d.outputDir, ".help-")
	if err != nil {
		d.replyError(ctx, r, logger, apperrors.Wrap(apperrors.CodeIO, "failed to prepare help file", err))
		return
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			logger.Error().Err(err).Str("dir", dir).Msg("Cleanup failed")
		}
	}()

	path := filepath.Join(dir, helpFileName)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		d.replyError(ctx, r, logger, apperrors.Wrap(apperrors.CodeIO, "failed to write help file", err))
		return
	}
	if err := r.ReplyDocument(ctx, path); err != nil {
		d.replyError(ctx, r, logger, err)
	}
}

func (d *Dispatcher) reply(ctx context.Context, r Replier, logger zerolog.Logger, text string) {
	if err := r.Reply(ctx, text); err != nil {
		logger.Error().Err(err).Msg("Failed to send reply")
	}
}

func (d *Dispatcher) replyError(ctx context.Context, r Replier, logger zerolog.Logger, err error) {
	logger.Error().Err(err).Str("code", string(apperrors.CodeOf(err))).Msg("Command failed")
	d.reply(ctx, r, logger, ErrorMessage(err))
}

// ErrorMessage maps an error to the text shown in the chat.
func ErrorMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case apperrors.Is(err, apperrors.CodeTooLarge):
		return MsgTooLarge
	case apperrors.Is(err, apperrors.CodeNoResults):
		return MsgNoResults
	case apperrors.CodeOf(err) != "":
		return "Error: " + apperrors.MessageOf(err)
	default:
		return MsgGenericError
	}
}
