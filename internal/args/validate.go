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

package args

import (
	"fmt"
	"strings"

	apperrors "ytrelay/internal/errors"
)

// Reasons a flag is refused.
const (
	reasonSelfUpdate  = "mutates the downloader installation"
	reasonCache       = "mutates the downloader cache"
	reasonExec        = "runs arbitrary commands"
	reasonPostproc    = "injects post-processor arguments"
	reasonConfig      = "loads configuration from elsewhere"
	reasonPaths       = "overrides the output location"
	reasonDump        = "prints or dumps metadata instead of downloading"
	reasonCredentials = "exposes credentials or cookies"
	reasonProxy       = "overrides the network proxy"
	reasonSidecar     = "writes auxiliary files to disk"
)

// ForbiddenFlags is the denylist of yt-dlp flags, keyed by flag head, with the
// reason each one is refused. Both the short and long spellings are listed.
var ForbiddenFlags = map[string]string{
	"-U":                     reasonSelfUpdate,
	"--update":               reasonSelfUpdate,
	"--update-to":            reasonSelfUpdate,
	"--rm-cache-dir":         reasonCache,
	"--cache-dir":            reasonCache,
	"--exec":                 reasonExec,
	"--exec-before-download": reasonExec,
	"--postprocessor-args":   reasonPostproc,
	"--ppa":                  reasonPostproc,
	"--config-location":      reasonConfig,
	"--config-locations":     reasonConfig,
	"--load-info-json":       reasonConfig,
	"-P":                     reasonPaths,
	"--paths":                reasonPaths,
	"-o":                     reasonPaths,
	"--output":               reasonPaths,
	"--print":                reasonDump,
	"--print-to-file":        reasonDump,
	"--dump-json":            reasonDump,
	"--dump-single-json":     reasonDump,
	"-j":                     reasonDump,
	"-J":                     reasonDump,
	"--cookies":              reasonCredentials,
	"--cookies-from-browser": reasonCredentials,
	"-u":                     reasonCredentials,
	"--username":             reasonCredentials,
	"-p":                     reasonCredentials,
	"--password":             reasonCredentials,
	"-2":                     reasonCredentials,
	"--twofactor":            reasonCredentials,
	"--video-password":       reasonCredentials,
	"--ap-username":          reasonCredentials,
	"--ap-password":          reasonCredentials,
	"-n":                     reasonCredentials,
	"--netrc":                reasonCredentials,
	"--netrc-location":       reasonCredentials,
	"--netrc-cmd":            reasonCredentials,
	"--proxy":                reasonProxy,
	"--write-info-json":      reasonSidecar,
	"--write-description":    reasonSidecar,
	"--write-thumbnail":      reasonSidecar,
	"--write-all-thumbnails": reasonSidecar,
	"--write-comments":       reasonSidecar,
}

// shortValueFlags are the single-letter options that consume the rest of a
// bundled token as their value, e.g. "-fbest" or "-o/path".
const shortValueFlags = "2PRINSafoprtu"

// Verdict is the outcome of validating an argument list.
type Verdict struct {
	Accepted bool
	Reason   string
}

// Err returns the rejection as a coded error, or nil when accepted.
func (v Verdict) Err() error {
	if v.Accepted {
		return nil
	}
	return apperrors.New(apperrors.CodeInvalidArguments, v.Reason)
}

// Rule checks an argument list and returns an error if it is unacceptable.
type Rule func(tokens []string) error

// ChainRules runs rules in order until the first error.
func ChainRules(rules ...Rule) Rule {
	return func(tokens []string) error {
		for _, rule := range rules {
			if rule == nil {
				continue
			}
			if err := rule(tokens); err != nil {
				return err
			}
		}
		return nil
	}
}

// DefaultRules is the policy applied by Validate.
var DefaultRules = ChainRules(RequireNonEmpty, RejectForbiddenFlags, RequireURL)

// Validate applies DefaultRules to tokens.
func Validate(tokens []string) Verdict {
	return ValidateWith(DefaultRules, tokens)
}

// ValidateWith applies rule to tokens and reports the first failure.
func ValidateWith(rule Rule, tokens []string) Verdict {
	if err := rule(tokens); err != nil {
		return Verdict{Reason: err.Error()}
	}
	return Verdict{Accepted: true}
}

// RequireNonEmpty rejects an empty argument list.
func RequireNonEmpty(tokens []string) error {
	if len(tokens) == 0 {
		return fmt.Errorf("arguments cannot be empty")
	}
	return nil
}

// RejectForbiddenFlags rejects any token whose flag head is in ForbiddenFlags,
// including short flags with an attached value ("-o/tmp/x") or inside a
// bundle ("-xo/tmp/x", "-jU").
func RejectForbiddenFlags(tokens []string) error {
	for _, token := range tokens {
		head := FlagHead(token)
		if _, forbidden := ForbiddenFlags[head]; forbidden {
			return fmt.Errorf("forbidden flag detected: %s", head)
		}
		if flag, ok := forbiddenShortFlag(token); ok {
			return fmt.Errorf("forbidden flag detected: %s", flag)
		}
	}
	return nil
}

// forbiddenShortFlag walks a bundle of short flags and returns the first
// denylisted one. The walk stops at the first flag that takes a value, since
// the remaining bytes belong to that value.
func forbiddenShortFlag(token string) (string, bool) {
	if len(token) <= 2 || token[0] != '-' || token[1] == '-' {
		return "", false
	}
	for _, r := range token[1:] {
		flag := "-" + string(r)
		if _, forbidden := ForbiddenFlags[flag]; forbidden {
			return flag, true
		}
		if strings.ContainsRune(shortValueFlags, r) {
			break
		}
	}
	return "", false
}

// RequireURL rejects argument lists without an http(s) URL.
func RequireURL(tokens []string) error {
	for _, token := range tokens {
		if strings.HasPrefix(token, "http://") || strings.HasPrefix(token, "https://") {
			return nil
		}
	}
	return fmt.Errorf("no URL found in arguments")
}

// FlagHead returns token up to, not including, the first '='.
func FlagHead(token string) string {
	if i := strings.IndexByte(token, '='); i >= 0 {
		return token[:i]
	}
	return token
}
