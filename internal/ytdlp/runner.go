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

// Package ytdlp spawns the yt-dlp executable for a validated argument list and
// reports what it produced.
package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ytrelay/internal/collect"
	apperrors "ytrelay/internal/errors"
)

// DefaultExecutable is resolved through PATH when no override is configured.
const DefaultExecutable = "yt-dlp"

// OutputTemplate names downloads "<title, at most 120 bytes> [<id>].<ext>".
const OutputTemplate = "%(title).120B [%(id)s].%(ext)s"

// Fixed flags that precede every caller-supplied argument list.
const (
	flagNewline    = "--newline"
	flagNoPlaylist = "--no-playlist"
	flagOutput     = "-o"
)

// DefaultTimeout is the download watchdog used when Config.Timeout is zero.
const DefaultTimeout = 30 * time.Minute

const (
	waitDelay       = 5 * time.Second
	unknownErrorMsg = "unknown error occurred"
	maxHelpBytes    = 1 << 20
)

// Config configures a Runner.
type Config struct {
	// Executable is the yt-dlp binary name or path.
	Executable string
	// OutputDir is the shared directory downloads are written to.
	OutputDir string
	// Timeout kills a download that runs longer. Zero uses the default; a
	// negative value disables the watchdog.
	Timeout time.Duration
	// RecencyWindow is passed to the result collector.
	RecencyWindow time.Duration
	// Isolate writes each download into its own subdirectory of OutputDir.
	Isolate bool
	Limits  Limits
}

// Result describes a successful download.
type Result struct {
	// ID tags the invocation in logs and names its subdirectory when isolated.
	ID string
	// Dir is the directory the files were collected from.
	Dir string
	// Isolated is true when Dir belongs to this invocation alone.
	Isolated bool
	// Files are the produced files, newest first.
	Files    []string
	Duration time.Duration
}

// ExitError records a non-zero exit of the executable.
type ExitError struct {
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("yt-dlp exited with code %d", e.Code)
}

// Runner invokes yt-dlp.
type Runner struct {
	cfg    Config
	logger zerolog.Logger
	now    func() time.Time
}

// NewRunner creates a runner from cfg.
func NewRunner(cfg Config, logger zerolog.Logger) *Runner {
	if cfg.Executable == "" {
		cfg.Executable = DefaultExecutable
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RecencyWindow <= 0 {
		cfg.RecencyWindow = collect.DefaultWindow
	}
	cfg.Limits = normalizeLimits(cfg.Limits)
	return &Runner{
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Executable returns the binary the runner spawns.
func (r *Runner) Executable() string {
	return r.cfg.Executable
}

// BuildInvocation returns the full argument list for a download into dir.
// The output template always comes before the caller's tokens.
func BuildInvocation(dir string, tokens []string) []string {
	invocation := make([]string, 0, 4+len(tokens))
	invocation = append(invocation,
		flagNewline,
		flagNoPlaylist,
		flagOutput, filepath.Join(dir, OutputTemplate),
	)
	return append(invocation, tokens...)
}

// Download runs yt-dlp with the validated tokens and collects the files it wrote.
func (r *Runner) Download(ctx context.Context, tokens []string) (*Result, error) {
	id := uuid.NewString()
	logger := r.logger.With().Str("invocation", id).Logger()

	dir := r.cfg.OutputDir
	if r.cfg.Isolate {
		dir = filepath.Join(r.cfg.OutputDir, id)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeIO, "failed to create download directory", err)
		}
	}

	runCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	invocation := BuildInvocation(dir, tokens)
	logger.Info().Str("executable", r.cfg.Executable).Strs("args", invocation).Msg("Spawning yt-dlp")

	started := r.now()
	capture := newStderrCapture(r.cfg.Limits.MaxCaptureBytes)
	stdout := newLineWriter(r.cfg.Limits.MaxCaptureBytes, func(line string) {
		logger.Debug().Str("stream", "stdout").Msg(line)
	})
	stderr := newLineWriter(r.cfg.Limits.MaxCaptureBytes, capture.add)

	cmd := exec.CommandContext(runCtx, r.cfg.Executable, invocation...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	configureProcess(cmd)
	cmd.WaitDelay = waitDelay

	if err := cmd.Start(); err != nil {
		r.removeEmptyArena(dir)
		return nil, apperrors.Wrap(apperrors.CodeIO, fmt.Sprintf("failed to start %s", r.cfg.Executable), err)
	}

	waitErr := cmd.Wait()
	stdout.Flush()
	stderr.Flush()
	elapsed := r.now().Sub(started)

	if err := r.classifyExit(runCtx, ctx, waitErr, capture); err != nil {
		logger.Warn().Err(err).Dur("elapsed", elapsed).Str("stderr", capture.Tail()).Msg("yt-dlp failed")
		r.removeEmptyArena(dir)
		return nil, err
	}

	files, err := collect.Collect(dir, r.now(), r.cfg.RecencyWindow)
	if err != nil {
		logger.Error().Err(err).Str("dir", dir).Str("stderr", capture.Tail()).Msg("No downloaded files found")
		r.removeEmptyArena(dir)
		return nil, err
	}

	logger.Info().Strs("files", files).Dur("elapsed", elapsed).Msg("Download finished")
	return &Result{
		ID:       id,
		Dir:      dir,
		Isolated: r.cfg.Isolate,
		Files:    files,
		Duration: elapsed,
	}, nil
}

// Help returns the output of "yt-dlp --help".
func (r *Runner) Help(ctx context.Context) (string, error) {
	runCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	var out boundedBuffer
	out.max = maxHelpBytes
	capture := newStderrCapture(r.cfg.Limits.MaxCaptureBytes)
	stderr := newLineWriter(r.cfg.Limits.MaxCaptureBytes, capture.add)

	cmd := exec.CommandContext(runCtx, r.cfg.Executable, "--help")
	cmd.Stdout = &out
	cmd.Stderr = stderr
	configureProcess(cmd)
	cmd.WaitDelay = waitDelay

	if err := cmd.Start(); err != nil {
		return "", apperrors.Wrap(apperrors.CodeIO, fmt.Sprintf("failed to start %s", r.cfg.Executable), err)
	}
	waitErr := cmd.Wait()
	stderr.Flush()
	if err := r.classifyExit(runCtx, ctx, waitErr, capture); err != nil {
		return "", err
	}
	return out.String(), nil
}

func (r *Runner) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.cfg.Timeout < 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.cfg.Timeout)
}

// classifyExit maps the result of cmd.Wait to a coded error, or nil on success.
func (r *Runner) classifyExit(runCtx, parent context.Context, waitErr error, capture *stderrCapture) error {
	if waitErr == nil {
		return nil
	}
	if parent.Err() != nil {
		return apperrors.Wrap(apperrors.CodeCanceled, "download canceled", parent.Err())
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return apperrors.Wrap(apperrors.CodeTimeout, fmt.Sprintf("download timed out after %s", r.cfg.Timeout), runCtx.Err())
	}

	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		message := unknownErrorMsg
		if line := capture.ErrorLine(); line != "" {
			if sanitized := sanitizeLine(line, r.cfg.Limits.MaxErrorChars); sanitized != "" {
				message = sanitized
			}
		}
		return apperrors.Wrap(apperrors.CodeSubprocess, message, &ExitError{
			Code:   exitErr.ExitCode(),
			Stderr: capture.Tail(),
		})
	}
	return apperrors.Wrap(apperrors.CodeIO, fmt.Sprintf("failed waiting for %s", r.cfg.Executable), waitErr)
}

// removeEmptyArena drops an isolated download directory that holds nothing.
// Non-empty directories are left for the retention sweeper.
func (r *Runner) removeEmptyArena(dir string) {
	if !r.cfg.Isolate {
		return
	}
	_ = os.Remove(dir)
}

// boundedBuffer keeps at most max bytes and silently drops the rest.
type boundedBuffer struct {
	buf []byte
	max int
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	if room := b.max - len(b.buf); room > 0 {
		if len(p) > room {
			b.buf = append(b.buf, p[:room]...)
		} else {
			b.buf = append(b.buf, p...)
		}
	}
	return len(p), nil
}

func (b *boundedBuffer) String() string {
	return string(b.buf)
}
