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
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"ytrelay/internal/relay"
)

type recordingHandler struct {
	lines []string
}

func (h *recordingHandler) Handle(ctx context.Context, chatID int64, text string, r relay.Replier) {
	h.lines = append(h.lines, text)
	_ = r.Reply(ctx, "handled "+text)
}

func TestRunBatchDispatchesLines(t *testing.T) {
	r, out := newTestReplier(t)
	h := &recordingHandler{}
	input := "/start\n\n# comment\n  /dl https://x  \n/quit\n/help\n"

	if err := runBatch(context.Background(), strings.NewReader(input), h, r, zerolog.Nop()); err != nil {
		t.Fatalf("runBatch: %v", err)
	}
	if strings.Join(h.lines, "|") != "/start|/dl https://x" {
		t.Fatalf("handled lines = %q", h.lines)
	}
	if !strings.Contains(out.String(), "handled /dl https://x") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestRunBatchStopsOnCanceledContext(t *testing.T) {
	r, _ := newTestReplier(t)
	h := &recordingHandler{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := runBatch(ctx, strings.NewReader("/start\n"), h, r, zerolog.Nop()); err == nil {
		t.Fatal("expected context error")
	}
	if len(h.lines) != 0 {
		t.Fatalf("no lines should be handled, got %q", h.lines)
	}
}
