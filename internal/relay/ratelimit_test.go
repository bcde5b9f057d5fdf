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
	"testing"
	"time"
)

func TestRateLimiterDisabled(t *testing.T) {
	if l := newRateLimiter(RateLimitConfig{}); l != nil {
		t.Fatalf("expected nil limiter for zero config")
	}
	var l *rateLimiter
	if err := l.Allow(1); err != nil {
		t.Fatalf("nil limiter should allow, got %v", err)
	}
}

func TestRateLimiterPerMinute(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	l := newRateLimiter(RateLimitConfig{PerMinute: 2})
	l.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		if err := l.Allow(7); err != nil {
			t.Fatalf("request %d: unexpected error %v", i, err)
		}
	}
	if err := l.Allow(7); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := l.Allow(8); err != nil {
		t.Fatalf("other chat should not be limited, got %v", err)
	}

	now = now.Add(30 * time.Second)
	if err := l.Allow(7); err != nil {
		t.Fatalf("expected refill after 30s, got %v", err)
	}
}

func TestRateLimiterCooldown(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	l := newRateLimiter(RateLimitConfig{Cooldown: 5 * time.Second})
	l.now = func() time.Time { return now }

	if err := l.Allow(1); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	now = now.Add(2 * time.Second)
	if err := l.Allow(1); !errors.Is(err, ErrInCooldown) {
		t.Fatalf("expected ErrInCooldown, got %v", err)
	}
	now = now.Add(3 * time.Second)
	if err := l.Allow(1); err != nil {
		t.Fatalf("cooldown should have expired, got %v", err)
	}
}
