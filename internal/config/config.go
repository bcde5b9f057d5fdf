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

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"ytrelay/internal/cleanup"
	"ytrelay/internal/collect"
	apperrors "ytrelay/internal/errors"
	"ytrelay/internal/health"
	"ytrelay/internal/paths"
	"ytrelay/internal/relay"
	"ytrelay/internal/ytdlp"
)

// Config represents the application configuration
type Config struct {
	BotToken               string        `json:"bot_token,omitempty"`
	OutputDir              string        `json:"output_dir,omitempty"`
	YtdlpPath              string        `json:"ytdlp_path,omitempty"`
	YtdlpAutoInstall       bool          `json:"ytdlp_auto_install,omitempty"`
	IsolateDownloads       bool          `json:"isolate_downloads,omitempty"`
	MaxConcurrentDownloads int           `json:"max_concurrent_downloads,omitempty"`
	HealthAddr             string        `json:"health_addr,omitempty"`
	SaveDir                string        `json:"save_dir,omitempty"`
	CommandHistoryFile     string        `json:"command_history_file,omitempty"`
	ThemeFile              string        `json:"theme_file,omitempty"`
	Timeouts               Timeouts      `json:"timeouts,omitempty"`
	Retention              Retention     `json:"retention,omitempty"`
	RateLimits             RateLimits    `json:"rate_limits,omitempty"`
	OutputFilters          OutputFilters `json:"output_filters,omitempty"`
}

// Timeouts configures download timing.
type Timeouts struct {
	DownloadMinutes      int `json:"download_minutes,omitempty"`
	RecencyWindowSeconds int `json:"recency_window_seconds,omitempty"`
}

// Retention configures the background sweeper.
type Retention struct {
	TTLMinutes      int `json:"ttl_minutes,omitempty"`
	IntervalMinutes int `json:"interval_minutes,omitempty"`
}

// RateLimits configures per-chat download throttling.
type RateLimits struct {
	PerMinute       int `json:"per_minute,omitempty"`
	CooldownSeconds int `json:"cooldown_seconds,omitempty"`
}

// OutputFilters bounds what is kept from yt-dlp output.
type OutputFilters struct {
	MaxCaptureBytes int `json:"max_capture_bytes,omitempty"`
	MaxErrorChars   int `json:"max_error_chars,omitempty"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	limits := ytdlp.DefaultLimits()
	rate := relay.DefaultRateLimitConfig()
	return &Config{
		OutputDir:              "./tmp",
		YtdlpPath:              ytdlp.DefaultExecutable,
		MaxConcurrentDownloads: 1,
		HealthAddr:             health.DefaultAddr,
		SaveDir:                ".",
		CommandHistoryFile:     ".ytrelay_history",
		ThemeFile:              ".ytrelay_theme.json",
		Timeouts: Timeouts{
			DownloadMinutes:      int(ytdlp.DefaultTimeout / time.Minute),
			RecencyWindowSeconds: int(collect.DefaultWindow / time.Second),
		},
		Retention: Retention{
			TTLMinutes:      int(cleanup.DefaultTTL / time.Minute),
			IntervalMinutes: int(cleanup.DefaultInterval / time.Minute),
		},
		RateLimits: RateLimits{
			PerMinute:       rate.PerMinute,
			CooldownSeconds: int(rate.Cooldown / time.Second),
		},
		OutputFilters: OutputFilters{
			MaxCaptureBytes: limits.MaxCaptureBytes,
			MaxErrorChars:   limits.MaxErrorChars,
		},
	}
}

// LoadConfig loads configuration for the bot. A missing bot token is fatal.
func LoadConfig(filepath string) (*Config, error) {
	config, err := load(filepath)
	if err != nil {
		return nil, err
	}
	if config.BotToken == "" {
		return nil, apperrors.New(apperrors.CodeConfig, "bot token is required (set bot_token in config.json or BOT_TOKEN)")
	}
	return config, nil
}

// LoadConsoleConfig loads configuration for the local console, which needs no
// bot token.
func LoadConsoleConfig(filepath string) (*Config, error) {
	return load(filepath)
}

func load(filepath string) (*Config, error) {
	config := DefaultConfig()

	// If config file exists, load it
	if _, err := os.Stat(filepath); err == nil {
		data, err := os.ReadFile(filepath)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeConfig, "failed to read config", err)
		}
		normalized, err := normalizeConfigJSON(data)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeConfig, "invalid config "+filepath, err)
		}
		if err := json.Unmarshal(normalized, config); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeConfig, "invalid config "+filepath, err)
		}
	}

	// Env overrides apply regardless of whether the file exists
	if err := config.applyEnv(); err != nil {
		return nil, err
	}

	if config.OutputDir == "" {
		config.OutputDir = "./tmp"
	}
	if config.YtdlpPath == "" {
		config.YtdlpPath = ytdlp.DefaultExecutable
	}
	return config, nil
}

func (c *Config) applyEnv() error {
	if val := os.Getenv("BOT_TOKEN"); val != "" {
		c.BotToken = val
	}
	if val := os.Getenv("TMP_DIR"); val != "" {
		c.OutputDir = val
	}
	if val := os.Getenv("YTDLP_PATH"); val != "" {
		c.YtdlpPath = val
	}
	if val := os.Getenv("PORT"); val != "" {
		port, err := strconv.Atoi(val)
		if err != nil || port <= 0 || port > 65535 {
			return apperrors.New(apperrors.CodeConfig, fmt.Sprintf("PORT %q is not a valid port", val))
		}
		c.HealthAddr = ":" + val
	}
	if val := os.Getenv("YTDLP_AUTO_INSTALL"); val != "" {
		enabled, err := strconv.ParseBool(val)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeConfig, "YTDLP_AUTO_INSTALL must be a boolean", err)
		}
		c.YtdlpAutoInstall = enabled
	}
	if err := envMinutes("CLEANUP_TTL_MIN", &c.Retention.TTLMinutes); err != nil {
		return err
	}
	return envMinutes("DOWNLOAD_TIMEOUT_MIN", &c.Timeouts.DownloadMinutes)
}

func envMinutes(name string, dst *int) error {
	val := strings.TrimSpace(os.Getenv(name))
	if val == "" {
		return nil
	}
	minutes, err := strconv.Atoi(val)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeConfig, name+" must be a whole number of minutes", err)
	}
	*dst = minutes
	return nil
}

// EnsureOutputDir creates the output directory and replaces OutputDir with
// its absolute form.
func (c *Config) EnsureOutputDir() error {
	dir, err := paths.EnsureDir(c.OutputDir)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeConfig, "output directory unusable", err)
	}
	c.OutputDir = dir
	return nil
}

// RunnerConfig returns the settings for the yt-dlp runner.
func (c *Config) RunnerConfig() ytdlp.Config {
	var timeout time.Duration
	switch {
	case c.Timeouts.DownloadMinutes > 0:
		timeout = time.Duration(c.Timeouts.DownloadMinutes) * time.Minute
	case c.Timeouts.DownloadMinutes < 0:
		timeout = -1
	}
	return ytdlp.Config{
		Executable:    c.YtdlpPath,
		OutputDir:     c.OutputDir,
		Timeout:       timeout,
		RecencyWindow: time.Duration(c.Timeouts.RecencyWindowSeconds) * time.Second,
		Isolate:       c.IsolateDownloads,
		Limits: ytdlp.Limits{
			MaxCaptureBytes: c.OutputFilters.MaxCaptureBytes,
			MaxErrorChars:   c.OutputFilters.MaxErrorChars,
		},
	}
}

// DispatcherOptions returns the settings for the command dispatcher.
func (c *Config) DispatcherOptions() relay.Options {
	return relay.Options{
		OutputDir:     c.OutputDir,
		MaxConcurrent: int64(c.MaxConcurrentDownloads),
		RateLimits: relay.RateLimitConfig{
			PerMinute: c.RateLimits.PerMinute,
			Cooldown:  time.Duration(c.RateLimits.CooldownSeconds) * time.Second,
		},
	}
}

// SweepTTL returns how old an entry must be before it is swept.
func (c *Config) SweepTTL() time.Duration {
	return time.Duration(c.Retention.TTLMinutes) * time.Minute
}

// SweepInterval returns the period between sweeps.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Retention.IntervalMinutes) * time.Minute
}

// ValidationWarning represents a non-fatal configuration issue
type ValidationWarning struct {
	Field   string
	Message string
}

// Validate checks the configuration for common issues and returns warnings
func (c *Config) Validate() []ValidationWarning {
	var warnings []ValidationWarning

	if c.Retention.TTLMinutes <= 0 {
		warnings = append(warnings, ValidationWarning{
			Field:   "retention.ttl_minutes",
			Message: fmt.Sprintf("ttl %d should be positive, using default", c.Retention.TTLMinutes),
		})
	}
	if c.Retention.IntervalMinutes <= 0 {
		warnings = append(warnings, ValidationWarning{
			Field:   "retention.interval_minutes",
			Message: fmt.Sprintf("interval %d should be positive, using default", c.Retention.IntervalMinutes),
		})
	}
	if c.Timeouts.DownloadMinutes < 0 {
		warnings = append(warnings, ValidationWarning{
			Field:   "timeouts.download_minutes",
			Message: "negative timeout disables the download watchdog",
		})
	}
	if c.Timeouts.RecencyWindowSeconds <= 0 {
		warnings = append(warnings, ValidationWarning{
			Field:   "timeouts.recency_window_seconds",
			Message: fmt.Sprintf("recency window %d should be positive, using default", c.Timeouts.RecencyWindowSeconds),
		})
	}
	if c.MaxConcurrentDownloads > 1 && !c.IsolateDownloads {
		warnings = append(warnings, ValidationWarning{
			Field:   "max_concurrent_downloads",
			Message: "concurrent downloads share the output directory; enable isolate_downloads to keep results apart",
		})
	}
	if c.MaxConcurrentDownloads <= 0 {
		warnings = append(warnings, ValidationWarning{
			Field:   "max_concurrent_downloads",
			Message: fmt.Sprintf("max_concurrent_downloads %d should be positive, using 1", c.MaxConcurrentDownloads),
		})
	}
	if c.RateLimits.PerMinute <= 0 && c.RateLimits.CooldownSeconds <= 0 {
		warnings = append(warnings, ValidationWarning{
			Field:   "rate_limits",
			Message: "per-chat rate limiting is disabled",
		})
	}

	return warnings
}
