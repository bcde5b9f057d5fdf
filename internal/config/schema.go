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
	"sort"
)

// SchemaJSON returns the JSON schema for config.json.
func SchemaJSON() string {
	return configSchemaJSON
}

// ExampleConfigJSON returns a minimal example config derived from the schema.
func ExampleConfigJSON() string {
	return exampleConfigJSON
}

func normalizeConfigJSON(data []byte) ([]byte, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	migrateLegacyConfig(raw)
	if err := validateConfigMap(raw, ""); err != nil {
		return nil, err
	}
	normalized, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	return normalized, nil
}

// migrateLegacyConfig accepts the flat key names used by environment-style
// deployments ("tmp_dir", "cleanup_ttl_min").
func migrateLegacyConfig(raw map[string]interface{}) {
	if v, ok := raw["tmp_dir"]; ok {
		if _, set := raw["output_dir"]; !set {
			raw["output_dir"] = v
		}
		delete(raw, "tmp_dir")
	}
	if v, ok := raw["cleanup_ttl_min"]; ok {
		retention, _ := raw["retention"].(map[string]interface{})
		if retention == nil {
			retention = map[string]interface{}{}
			raw["retention"] = retention
		}
		if _, set := retention["ttl_minutes"]; !set {
			retention["ttl_minutes"] = v
		}
		delete(raw, "cleanup_ttl_min")
	}
}

type fieldValidator func(interface{}) error

func validateConfigMap(raw map[string]interface{}, prefix string) error {
	allowed := map[string]fieldValidator{
		"bot_token":                func(v interface{}) error { return validateString(v, prefix+"bot_token") },
		"output_dir":               func(v interface{}) error { return validateString(v, prefix+"output_dir") },
		"ytdlp_path":               func(v interface{}) error { return validateString(v, prefix+"ytdlp_path") },
		"ytdlp_auto_install":       func(v interface{}) error { return validateBool(v, prefix+"ytdlp_auto_install") },
		"isolate_downloads":        func(v interface{}) error { return validateBool(v, prefix+"isolate_downloads") },
		"max_concurrent_downloads": func(v interface{}) error { return validateInteger(v, prefix+"max_concurrent_downloads") },
		"health_addr":              func(v interface{}) error { return validateString(v, prefix+"health_addr") },
		"save_dir":                 func(v interface{}) error { return validateString(v, prefix+"save_dir") },
		"command_history_file":     func(v interface{}) error { return validateString(v, prefix+"command_history_file") },
		"theme_file":               func(v interface{}) error { return validateString(v, prefix+"theme_file") },
		"timeouts": func(v interface{}) error {
			return validateObject(v, prefix+"timeouts.", map[string]fieldValidator{
				"download_minutes":       func(v interface{}) error { return validateInteger(v, prefix+"timeouts.download_minutes") },
				"recency_window_seconds": func(v interface{}) error { return validateInteger(v, prefix+"timeouts.recency_window_seconds") },
			})
		},
		"retention": func(v interface{}) error {
			return validateObject(v, prefix+"retention.", map[string]fieldValidator{
				"ttl_minutes":      func(v interface{}) error { return validateInteger(v, prefix+"retention.ttl_minutes") },
				"interval_minutes": func(v interface{}) error { return validateInteger(v, prefix+"retention.interval_minutes") },
			})
		},
		"rate_limits": func(v interface{}) error {
			return validateObject(v, prefix+"rate_limits.", map[string]fieldValidator{
				"per_minute":       func(v interface{}) error { return validateInteger(v, prefix+"rate_limits.per_minute") },
				"cooldown_seconds": func(v interface{}) error { return validateInteger(v, prefix+"rate_limits.cooldown_seconds") },
			})
		},
		"output_filters": func(v interface{}) error {
			return validateObject(v, prefix+"output_filters.", map[string]fieldValidator{
				"max_capture_bytes": func(v interface{}) error { return validateInteger(v, prefix+"output_filters.max_capture_bytes") },
				"max_error_chars":   func(v interface{}) error { return validateInteger(v, prefix+"output_filters.max_error_chars") },
			})
		},
	}
	return validateSection(raw, allowed, prefix)
}

func validateObject(value interface{}, prefix string, allowed map[string]fieldValidator) error {
	section, ok := value.(map[string]interface{})
	if !ok {
		return fmt.Errorf("%s must be an object", prefix[:len(prefix)-1])
	}
	return validateSection(section, allowed, prefix)
}

func validateSection(section map[string]interface{}, allowed map[string]fieldValidator, prefix string) error {
	keys := make([]string, 0, len(section))
	for key := range section {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		validator, ok := allowed[key]
		if !ok {
			return fmt.Errorf("unknown configuration field %q", prefix+key)
		}
		if err := validator(section[key]); err != nil {
			return err
		}
	}
	return nil
}

func validateString(value interface{}, name string) error {
	if _, ok := value.(string); !ok {
		return fmt.Errorf("%s must be a string", name)
	}
	return nil
}

func validateInteger(value interface{}, name string) error {
	n, ok := value.(float64)
	if !ok {
		return fmt.Errorf("%s must be a number", name)
	}
	if n != float64(int64(n)) {
		return fmt.Errorf("%s must be a whole number", name)
	}
	return nil
}

func validateBool(value interface{}, name string) error {
	if _, ok := value.(bool); !ok {
		return fmt.Errorf("%s must be a boolean", name)
	}
	return nil
}

const configSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "title": "ytrelay Config",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "bot_token": { "type": "string" },
    "output_dir": { "type": "string" },
    "ytdlp_path": { "type": "string" },
    "ytdlp_auto_install": { "type": "boolean" },
    "isolate_downloads": { "type": "boolean" },
    "max_concurrent_downloads": { "type": "integer" },
    "health_addr": { "type": "string" },
    "save_dir": { "type": "string" },
    "command_history_file": { "type": "string" },
    "theme_file": { "type": "string" },
    "timeouts": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "download_minutes": { "type": "integer" },
        "recency_window_seconds": { "type": "integer" }
      }
    },
    "retention": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "ttl_minutes": { "type": "integer" },
        "interval_minutes": { "type": "integer" }
      }
    },
    "rate_limits": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "per_minute": { "type": "integer" },
        "cooldown_seconds": { "type": "integer" }
      }
    },
    "output_filters": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "max_capture_bytes": { "type": "integer" },
        "max_error_chars": { "type": "integer" }
      }
    }
  }
}`

const exampleConfigJSON = `{
  "bot_token": "123456:ABC...",
  "output_dir": "./tmp",
  "ytdlp_path": "yt-dlp",
  "max_concurrent_downloads": 1,
  "retention": {
    "ttl_minutes": 30,
    "interval_minutes": 30
  },
  "rate_limits": {
    "per_minute": 6,
    "cooldown_seconds": 5
  }
}`
