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
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "ytrelay/internal/errors"
	"ytrelay/internal/ytdlp"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{"BOT_TOKEN", "TMP_DIR", "YTDLP_PATH", "CLEANUP_TTL_MIN", "PORT", "YTDLP_AUTO_INSTALL", "DOWNLOAD_TIMEOUT_MIN"} {
		t.Setenv(name, "")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `{"bot_token":"file-token","output_dir":"/srv/file","ytdlp_path":"/opt/yt-dlp"}`)
	t.Setenv("BOT_TOKEN", "env-token")
	t.Setenv("TMP_DIR", "/srv/env")
	t.Setenv("YTDLP_PATH", "/usr/local/bin/yt-dlp")
	t.Setenv("PORT", "8080")
	t.Setenv("CLEANUP_TTL_MIN", "5")
	t.Setenv("DOWNLOAD_TIMEOUT_MIN", "10")
	t.Setenv("YTDLP_AUTO_INSTALL", "true")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.BotToken != "env-token" {
		t.Fatalf("expected env token to override file, got %s", cfg.BotToken)
	}
	if cfg.OutputDir != "/srv/env" {
		t.Fatalf("expected env output dir, got %s", cfg.OutputDir)
	}
	if cfg.YtdlpPath != "/usr/local/bin/yt-dlp" {
		t.Fatalf("expected env executable, got %s", cfg.YtdlpPath)
	}
	if cfg.HealthAddr != ":8080" {
		t.Fatalf("expected health addr :8080, got %s", cfg.HealthAddr)
	}
	if cfg.SweepTTL() != 5*time.Minute {
		t.Fatalf("expected ttl 5m, got %s", cfg.SweepTTL())
	}
	if cfg.RunnerConfig().Timeout != 10*time.Minute {
		t.Fatalf("expected timeout 10m, got %s", cfg.RunnerConfig().Timeout)
	}
	if !cfg.YtdlpAutoInstall {
		t.Fatal("expected auto install enabled")
	}
}

func TestMissingBotTokenReturnsError(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `{}`)

	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("expected error for missing bot token")
	}
	if apperrors.CodeOf(err) != apperrors.CodeConfig {
		t.Fatalf("expected config code, got %q", apperrors.CodeOf(err))
	}
}

func TestConsoleConfigDoesNotRequireToken(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadConsoleConfig(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.BotToken != "" {
		t.Fatalf("expected empty token, got %s", cfg.BotToken)
	}
}

func TestDefaultsApplied(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `{"bot_token":"k"}`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.OutputDir != "./tmp" {
		t.Fatalf("expected default output dir, got %s", cfg.OutputDir)
	}
	if cfg.YtdlpPath != ytdlp.DefaultExecutable {
		t.Fatalf("expected default executable, got %s", cfg.YtdlpPath)
	}
	if cfg.HealthAddr != ":5000" {
		t.Fatalf("expected default health addr, got %s", cfg.HealthAddr)
	}
	if cfg.SweepTTL() != 30*time.Minute || cfg.SweepInterval() != 30*time.Minute {
		t.Fatalf("unexpected sweep settings %s / %s", cfg.SweepTTL(), cfg.SweepInterval())
	}

	rc := cfg.RunnerConfig()
	if rc.Timeout != 30*time.Minute || rc.RecencyWindow != 60*time.Second {
		t.Fatalf("unexpected runner timing %s / %s", rc.Timeout, rc.RecencyWindow)
	}
	if rc.Limits != ytdlp.DefaultLimits() {
		t.Fatalf("unexpected limits %+v", rc.Limits)
	}

	opts := cfg.DispatcherOptions()
	if opts.MaxConcurrent != 1 || opts.RateLimits.PerMinute != 6 || opts.RateLimits.Cooldown != 5*time.Second {
		t.Fatalf("unexpected dispatcher options %+v", opts)
	}
	if warnings := cfg.Validate(); len(warnings) != 0 {
		t.Fatalf("expected no warnings for defaults, got %v", warnings)
	}
}

func TestLoadConfigMissingFileReturnsDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv("BOT_TOKEN", "k")
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.OutputDir != DefaultConfig().OutputDir {
		t.Fatalf("expected default output dir, got %s", cfg.OutputDir)
	}
}

func TestNestedSectionsCustom(t *testing.T) {
	clearEnv(t)
	content := `{
		"bot_token": "k",
		"isolate_downloads": true,
		"max_concurrent_downloads": 3,
		"timeouts": {"download_minutes": 2, "recency_window_seconds": 90},
		"retention": {"ttl_minutes": 15, "interval_minutes": 5},
		"rate_limits": {"per_minute": 2, "cooldown_seconds": 0},
		"output_filters": {"max_capture_bytes": 1024, "max_error_chars": 80}
	}`
	cfg, err := LoadConfig(writeTempConfig(t, content))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rc := cfg.RunnerConfig()
	if !rc.Isolate || rc.Timeout != 2*time.Minute || rc.RecencyWindow != 90*time.Second {
		t.Fatalf("unexpected runner config %+v", rc)
	}
	if rc.Limits.MaxCaptureBytes != 1024 || rc.Limits.MaxErrorChars != 80 {
		t.Fatalf("unexpected limits %+v", rc.Limits)
	}
	if cfg.SweepTTL() != 15*time.Minute || cfg.SweepInterval() != 5*time.Minute {
		t.Fatalf("unexpected sweep settings")
	}
	opts := cfg.DispatcherOptions()
	if opts.MaxConcurrent != 3 || opts.RateLimits.PerMinute != 2 || opts.RateLimits.Cooldown != 0 {
		t.Fatalf("unexpected dispatcher options %+v", opts)
	}
}

func TestNegativeTimeoutDisablesWatchdog(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadConfig(writeTempConfig(t, `{"bot_token":"k","timeouts":{"download_minutes":-1}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.RunnerConfig().Timeout >= 0 {
		t.Fatalf("expected negative timeout, got %s", cfg.RunnerConfig().Timeout)
	}
}

func TestLegacyKeysMigrated(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadConfig(writeTempConfig(t, `{"bot_token":"k","tmp_dir":"/data/dl","cleanup_ttl_min":7}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.OutputDir != "/data/dl" {
		t.Fatalf("expected migrated output dir, got %s", cfg.OutputDir)
	}
	if cfg.Retention.TTLMinutes != 7 {
		t.Fatalf("expected migrated ttl, got %d", cfg.Retention.TTLMinutes)
	}
	if cfg.Retention.IntervalMinutes != 30 {
		t.Fatalf("expected default interval kept, got %d", cfg.Retention.IntervalMinutes)
	}
}

func TestConfigValidationRejectsBadInput(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name    string
		content string
	}{
		{"unknown field", `{"bot_token":"k","unknown_field":123}`},
		{"unknown nested field", `{"bot_token":"k","retention":{"ttl":1}}`},
		{"wrong type", `{"bot_token":"k","output_dir":5}`},
		{"fractional number", `{"bot_token":"k","timeouts":{"download_minutes":1.5}}`},
		{"section not object", `{"bot_token":"k","rate_limits":[]}`},
		{"bad json", `{"bot_token":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeTempConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if apperrors.CodeOf(err) != apperrors.CodeConfig {
				t.Fatalf("expected config code, got %q", apperrors.CodeOf(err))
			}
		})
	}
}

func TestInvalidEnvValues(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"PORT", "http"},
		{"PORT", "70000"},
		{"CLEANUP_TTL_MIN", "soon"},
		{"DOWNLOAD_TIMEOUT_MIN", "1.5"},
		{"YTDLP_AUTO_INSTALL", "maybe"},
	}
	for _, tt := range tests {
		t.Run(tt.name+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("BOT_TOKEN", "k")
			t.Setenv(tt.name, tt.value)
			if _, err := LoadConfig(filepath.Join(t.TempDir(), "none.json")); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestEnsureOutputDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OutputDir = filepath.Join(t.TempDir(), "nested", "tmp")
	if err := cfg.EnsureOutputDir(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !filepath.IsAbs(cfg.OutputDir) {
		t.Fatalf("expected absolute output dir, got %s", cfg.OutputDir)
	}
	if info, err := os.Stat(cfg.OutputDir); err != nil || !info.IsDir() {
		t.Fatalf("expected directory: %v", err)
	}

	cfg.OutputDir = "bad\x00dir"
	if err := cfg.EnsureOutputDir(); apperrors.CodeOf(err) != apperrors.CodeConfig {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestValidateWarnings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"ttl", func(c *Config) { c.Retention.TTLMinutes = 0 }, "retention.ttl_minutes"},
		{"interval", func(c *Config) { c.Retention.IntervalMinutes = -1 }, "retention.interval_minutes"},
		{"timeout", func(c *Config) { c.Timeouts.DownloadMinutes = -1 }, "timeouts.download_minutes"},
		{"window", func(c *Config) { c.Timeouts.RecencyWindowSeconds = 0 }, "timeouts.recency_window_seconds"},
		{"shared concurrency", func(c *Config) { c.MaxConcurrentDownloads = 2 }, "max_concurrent_downloads"},
		{"rate disabled", func(c *Config) { c.RateLimits = RateLimits{} }, "rate_limits"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			warnings := cfg.Validate()
			if len(warnings) != 1 || warnings[0].Field != tt.field {
				t.Fatalf("warnings = %+v, want one for %s", warnings, tt.field)
			}
		})
	}
}

func TestSchemaAndExampleAreValidJSON(t *testing.T) {
	var schema map[string]interface{}
	if err := json.Unmarshal([]byte(SchemaJSON()), &schema); err != nil {
		t.Fatalf("schema is not valid JSON: %v", err)
	}
	if _, err := normalizeConfigJSON([]byte(ExampleConfigJSON())); err != nil {
		t.Fatalf("example config rejected: %v", err)
	}
}
