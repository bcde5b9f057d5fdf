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

package relay

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrRateLimited indicates a chat requested too many downloads in a minute.
	ErrRateLimited = errors.New("too many download requests, try again in a minute")

	// ErrInCooldown indicates a chat is inside its cooldown window.
	ErrInCooldown = errors.New("please wait before requesting another download")
)

// RateLimitConfig configures per-chat download throttling. Zero values
// disable the corresponding limit.
type RateLimitConfig struct {
	PerMinute int
	Cooldown  time.Duration
}

// DefaultRateLimitConfig returns the default per-chat throttle.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		PerMinute: 6,
		Cooldown:  5 * time.Second,
	}
}

// chatLimiter is a token bucket refilled at PerMinute tokens per minute, with
// an optional cooldown after each accepted request.
type chatLimiter struct {
	tokens      float64
	lastRefill  time.Time
	nextAllowed time.Time
}

type rateLimiter struct {
	mu    sync.Mutex
	cfg   RateLimitConfig
	chats map[int64]*chatLimiter
	now   func() time.Time
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	if cfg.PerMinute <= 0 && cfg.Cooldown <= 0 {
		return nil
	}
	return &rateLimiter{
		cfg:   cfg,
		chats: make(map[int64]*chatLimiter),
		now:   time.Now,
	}
}

// Allow consumes a request slot for chatID.
func (r *rateLimiter) Allow(chatID int64) error {
	if r == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	l, ok := r.chats[chatID]
	if !ok {
		l = &chatLimiter{tokens: float64(r.cfg.PerMinute), lastRefill: now}
		r.chats[chatID] = l
	}

	if !l.nextAllowed.IsZero() && now.Before(l.nextAllowed) {
		return fmt.Errorf("%w: retry after %s", ErrInCooldown, l.nextAllowed.Sub(now).Round(time.Second))
	}

	if r.cfg.PerMinute > 0 {
		burst := float64(r.cfg.PerMinute)
		l.tokens += now.Sub(l.lastRefill).Minutes() * burst
		if l.tokens > burst {
			l.tokens = burst
		}
		l.lastRefill = now
		if l.tokens < 1 {
			return ErrRateLimited
		}
		l.tokens--
	}

	if r.cfg.Cooldown > 0 {
		l.nextAllowed = now.Add(r.cfg.Cooldown)
	}
	return nil
}
