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

package cleanup

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultTTL is how old an entry must be before the sweeper deletes it.
	DefaultTTL = 30 * time.Minute
	// DefaultInterval is the period between sweeps.
	DefaultInterval = 30 * time.Minute
)

// Sweeper periodically deletes stale entries from the output directory. It
// backs up the per-request cleanup for files that were never delivered.
type Sweeper struct {
	dir      string
	ttl      time.Duration
	interval time.Duration
	logger   zerolog.Logger
	now      func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeper creates a sweeper for dir. Non-positive durations use the defaults.
func NewSweeper(dir string, ttl, interval time.Duration, logger zerolog.Logger) *Sweeper {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sweeper{
		dir:      dir,
		ttl:      ttl,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// SweepOnce runs a single sweep and returns the removed paths.
func (s *Sweeper) SweepOnce() []string {
	return Sweep(s.dir, s.ttl, s.now(), s.logger)
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info().Str("dir", s.dir).Dur("ttl", s.ttl).Dur("interval", s.interval).Msg("Retention sweeper started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Retention sweeper stopped")
			return nil
		case <-ticker.C:
			s.SweepOnce()
		}
	}
}

// Start runs the sweeper in the background. Calling Start on a running
// sweeper is a no-op.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	go func() {
		defer close(done)
		_ = s.Run(ctx)
	}()
}

// Stop halts a started sweeper and waits for it to exit.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
