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

// Package telegram connects the relay dispatcher to the Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	apperrors "ytrelay/internal/errors"
	"ytrelay/internal/relay"
)

// MaxUploadBytes is the largest document the Bot API accepts.
const MaxUploadBytes = 50 << 20

const pollTimeoutSeconds = 60

// Handler processes one chat message.
type Handler interface {
	Handle(ctx context.Context, chatID int64, text string, r relay.Replier)
}

// botAPI is the subset of *tgbotapi.BotAPI the bot uses.
type botAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Bot long-polls Telegram and hands every message to a Handler.
type Bot struct {
	api      botAPI
	handler  Handler
	username string
	logger   zerolog.Logger
}

// New authenticates with token and returns a bot bound to handler.
func New(token string, handler Handler, logger zerolog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConfig, "failed to authenticate with Telegram", err)
	}
	logger.Info().Str("username", api.Self.UserName).Msg("Authorized on Telegram")
	return &Bot{api: api, handler: handler, username: api.Self.UserName, logger: logger}, nil
}

// RegisterCommands publishes the command list shown in Telegram clients.
func (b *Bot) RegisterCommands(commands []relay.Command) error {
	botCommands := make([]tgbotapi.BotCommand, 0, len(commands))
	for _, c := range commands {
		botCommands = append(botCommands, tgbotapi.BotCommand{Command: c.Name, Description: c.Description})
	}
	if _, err := b.api.Request(tgbotapi.NewSetMyCommands(botCommands...)); err != nil {
		return apperrors.Wrap(apperrors.CodeDelivery, "failed to register bot commands", err)
	}
	return nil
}

// Run polls for updates until ctx is canceled, then waits for in-flight
// handlers to return.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeoutSeconds
	updates := b.api.GetUpdatesChan(u)

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			msg := update.Message
			if msg == nil || msg.Chat == nil || msg.Text == "" {
				continue
			}

			logger := b.logger.With().Int64("chat", msg.Chat.ID).Int("message", msg.MessageID).Logger()
			if msg.From != nil {
				logger = logger.With().Str("from", msg.From.UserName).Logger()
			}
			logger.Debug().Str("text", msg.Text).Msg("Received message")

			r := &chatReplier{api: b.api, chatID: msg.Chat.ID, replyTo: msg.MessageID, logger: logger}
			wg.Add(1)
			go func(chatID int64, text string) {
				defer wg.Done()
				defer func() {
					if p := recover(); p != nil {
						logger.Error().Interface("panic", p).Msg("Handler panicked")
					}
				}()
				b.handler.Handle(ctx, chatID, text, r)
			}(msg.Chat.ID, msg.Text)
		}
	}
}

// chatReplier sends replies to a single chat, threading them under the
// originating message.
type chatReplier struct {
	api     botAPI
	chatID  int64
	replyTo int
	logger  zerolog.Logger
}

func (r *chatReplier) Reply(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(apperrors.CodeCanceled, "reply canceled", err)
	}
	msg := tgbotapi.NewMessage(r.chatID, text)
	msg.ReplyToMessageID = r.replyTo
	if _, err := r.api.Send(msg); err != nil {
		return classifyError("failed to send message", err)
	}
	return nil
}

func (r *chatReplier) ReplyDocument(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(apperrors.CodeCanceled, "upload canceled", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeIO, "failed to read downloaded file", err)
	}
	if info.Size() > MaxUploadBytes {
		return apperrors.New(apperrors.CodeTooLarge,
			fmt.Sprintf("file is %d bytes, limit is %d", info.Size(), MaxUploadBytes))
	}

	doc := tgbotapi.NewDocument(r.chatID, tgbotapi.FilePath(path))
	doc.ReplyToMessageID = r.replyTo
	r.logger.Debug().Str("path", path).Int64("size", info.Size()).Msg("Uploading document")
	if _, err := r.api.Send(doc); err != nil {
		return classifyError("failed to send document", err)
	}
	return nil
}

// classifyError wraps a Bot API failure as a delivery error, marking
// payload-size rejections as too_large.
func classifyError(message string, err error) error {
	code, description := 0, err.Error()
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && apiErr != nil {
		code, description = apiErr.Code, apiErr.Message
	} else {
		var valErr tgbotapi.Error
		if errors.As(err, &valErr) {
			code, description = valErr.Code, valErr.Message
		}
	}

	lower := strings.ToLower(description)
	if code == 413 || strings.Contains(lower, "too big") || strings.Contains(lower, "too large") {
		return apperrors.Wrap(apperrors.CodeDelivery, message, apperrors.Wrap(apperrors.CodeTooLarge, description, err))
	}
	return apperrors.Wrap(apperrors.CodeDelivery, message, err)
}
