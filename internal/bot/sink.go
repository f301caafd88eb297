package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/wispr-bot/internal/chat"
	"go.uber.org/zap"
)

const placeholderText = "⏳ Generating response..."

// telegramSink adapts one Telegram chat to the renderer's sink contract.
type telegramSink struct {
	api        *tgbotapi.BotAPI
	chatID     int64
	chunkLimit int
	logger     *zap.Logger
}

func (b *Bot) newSink(chatID int64) *telegramSink {
	return &telegramSink{
		api:        b.api,
		chatID:     chatID,
		chunkLimit: b.cfg.Chat.ChunkLimit,
		logger:     b.logger,
	}
}

func (s *telegramSink) CreatePlaceholder(ctx context.Context) (chat.MessageRef, error) {
	msg, err := s.api.Send(tgbotapi.NewMessage(s.chatID, placeholderText))
	if err != nil {
		return 0, fmt.Errorf("sending placeholder: %w", err)
	}
	return chat.MessageRef(msg.MessageID), nil
}

func (s *telegramSink) UpdateInPlace(ctx context.Context, ref chat.MessageRef, text string) error {
	_, err := s.api.Send(tgbotapi.NewEditMessageText(s.chatID, int(ref), text))
	return err
}

func (s *telegramSink) Finish(ctx context.Context, ref chat.MessageRef, text string) error {
	_, err := s.api.Send(tgbotapi.NewEditMessageText(s.chatID, int(ref), text))
	return err
}

// SplitSend deletes the placeholder and re-sends the text as ordered chunks,
// each under Telegram's message size limit.
func (s *telegramSink) SplitSend(ctx context.Context, ref chat.MessageRef, text string) error {
	if _, err := s.api.Request(tgbotapi.NewDeleteMessage(s.chatID, int(ref))); err != nil {
		s.logger.Warn("Failed to delete placeholder before chunked send", zap.Error(err))
	}

	for _, part := range chat.SplitText(text, s.chunkLimit) {
		if _, err := s.api.Send(tgbotapi.NewMessage(s.chatID, part)); err != nil {
			return fmt.Errorf("sending response chunk: %w", err)
		}
	}
	return nil
}

// Fail edits the diagnostic into the placeholder, falling back to a fresh
// message when the edit is rejected.
func (s *telegramSink) Fail(ctx context.Context, ref chat.MessageRef, text string) error {
	if _, err := s.api.Send(tgbotapi.NewEditMessageText(s.chatID, int(ref), text)); err == nil {
		return nil
	}
	_, err := s.api.Send(tgbotapi.NewMessage(s.chatID, text))
	return err
}

func (s *telegramSink) SignalWorking(ctx context.Context) error {
	_, err := s.api.Request(tgbotapi.NewChatAction(s.chatID, tgbotapi.ChatTyping))
	return err
}

func (s *telegramSink) Notify(ctx context.Context, text string) error {
	_, err := s.api.Send(tgbotapi.NewMessage(s.chatID, text))
	return err
}
