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

package telegram

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	apperrors "ytrelay/internal/errors"
	"ytrelay/internal/relay"
)

type fakeAPI struct {
	mu       sync.Mutex
	updates  chan tgbotapi.Update
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	sendErr  error
	stopped  bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{updates: make(chan tgbotapi.Update, 8)}
}

func (f *fakeAPI) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return tgbotapi.Message{}, f.sendErr
	}
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

type recordingHandler struct {
	mu    sync.Mutex
	seen  []string
	chats []int64
	done  chan struct{}
}

func (h *recordingHandler) Handle(ctx context.Context, chatID int64, text string, r relay.Replier) {
	h.mu.Lock()
	h.seen = append(h.seen, text)
	h.chats = append(h.chats, chatID)
	h.mu.Unlock()
	_ = r.Reply(ctx, "ok")
	h.done <- struct{}{}
}

func TestRunDispatchesMessages(t *testing.T) {
	api := newFakeAPI()
	handler := &recordingHandler{done: make(chan struct{}, 4)}
	bot := &Bot{api: api, handler: handler, logger: zerolog.Nop()}

	api.updates <- tgbotapi.Update{Message: &tgbotapi.Message{MessageID: 3, Chat: &tgbotapi.Chat{ID: 42}, Text: "/dl https://x"}}
	api.updates <- tgbotapi.Update{Message: &tgbotapi.Message{MessageID: 4, Chat: &tgbotapi.Chat{ID: 42}}}
	api.updates <- tgbotapi.Update{}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- bot.Run(ctx) }()

	select {
	case <-handler.done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not called")
	}
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}

	if len(handler.seen) != 1 || handler.seen[0] != "/dl https://x" || handler.chats[0] != 42 {
		t.Fatalf("handled = %v %v", handler.seen, handler.chats)
	}
	if !api.stopped {
		t.Fatal("expected StopReceivingUpdates")
	}
	msg, ok := api.sent[0].(tgbotapi.MessageConfig)
	if !ok || msg.Text != "ok" || msg.ChatID != 42 || msg.ReplyToMessageID != 3 {
		t.Fatalf("unexpected reply %#v", api.sent[0])
	}
}

func TestRunReturnsWhenUpdatesClose(t *testing.T) {
	api := newFakeAPI()
	close(api.updates)
	bot := &Bot{api: api, handler: &recordingHandler{done: make(chan struct{}, 1)}, logger: zerolog.Nop()}
	if err := bot.Run(context.Background()); err != nil {
		t.Fatalf("Run returned %v", err)
	}
}

func TestRegisterCommands(t *testing.T) {
	api := newFakeAPI()
	bot := &Bot{api: api, logger: zerolog.Nop()}
	if err := bot.RegisterCommands(relay.Commands()); err != nil {
		t.Fatal(err)
	}
	cfg, ok := api.requests[0].(tgbotapi.SetMyCommandsConfig)
	if !ok {
		t.Fatalf("unexpected request %#v", api.requests[0])
	}
	if len(cfg.Commands) != len(relay.Commands()) || cfg.Commands[0].Command != "start" {
		t.Fatalf("commands = %#v", cfg.Commands)
	}
}

func TestReplyDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v.mp4")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	api := newFakeAPI()
	r := &chatReplier{api: api, chatID: 9, replyTo: 1, logger: zerolog.Nop()}
	if err := r.ReplyDocument(context.Background(), path); err != nil {
		t.Fatal(err)
	}
	doc, ok := api.sent[0].(tgbotapi.DocumentConfig)
	if !ok || doc.ChatID != 9 {
		t.Fatalf("unexpected upload %#v", api.sent[0])
	}
	if fp, ok := doc.File.(tgbotapi.FilePath); !ok || string(fp) != path {
		t.Fatalf("file = %#v", doc.File)
	}
}

func TestReplyDocumentTooLargeLocally(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.mp4")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Truncate(MaxUploadBytes + 1); err != nil {
		t.Fatal(err)
	}
	f.Close()

	api := newFakeAPI()
	r := &chatReplier{api: api, chatID: 9, logger: zerolog.Nop()}
	err = r.ReplyDocument(context.Background(), path)
	if !apperrors.Is(err, apperrors.CodeTooLarge) {
		t.Fatalf("expected too_large, got %v", err)
	}
	if len(api.sent) != 0 {
		t.Fatal("oversized file should not be uploaded")
	}
}

func TestReplyCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := &chatReplier{api: newFakeAPI(), logger: zerolog.Nop()}
	if err := r.Reply(ctx, "hi"); apperrors.CodeOf(err) != apperrors.CodeCanceled {
		t.Fatalf("expected canceled, got %v", err)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		tooLarge bool
	}{
		{"413 pointer", &tgbotapi.Error{Code: 413, Message: "Request Entity Too Large"}, true},
		{"description", &tgbotapi.Error{Code: 400, Message: "Bad Request: file is too big"}, true},
		{"value error", tgbotapi.Error{Code: 413}, true},
		{"plain text", errors.New("Post: request too large"), true},
		{"other api", &tgbotapi.Error{Code: 400, Message: "Bad Request: chat not found"}, false},
		{"network", errors.New("connection reset"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyError("failed to send document", tt.err)
			if apperrors.CodeOf(err) != apperrors.CodeDelivery {
				t.Fatalf("outer code = %q", apperrors.CodeOf(err))
			}
			if got := apperrors.Is(err, apperrors.CodeTooLarge); got != tt.tooLarge {
				t.Fatalf("too_large = %v, want %v", got, tt.tooLarge)
			}
			if !errors.Is(err, tt.err) {
				t.Fatalf("original error not wrapped")
			}
		})
	}
}

func TestReplyMapsSendError(t *testing.T) {
	api := newFakeAPI()
	api.sendErr = &tgbotapi.Error{Code: 413, Message: "Request Entity Too Large"}
	r := &chatReplier{api: api, logger: zerolog.Nop()}
	err := r.Reply(context.Background(), "hi")
	if relay.ErrorMessage(err) != relay.MsgTooLarge {
		t.Fatalf("reply for %v = %q", err, relay.ErrorMessage(err))
	}
}
