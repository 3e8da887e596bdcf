package common

import (
	"context"
	"fmt"
	"strings"

	"github.com/Freeeeeet/lessonroom/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// Sender часть API бота, которой пользуются обработчики. *bot.Bot её реализует
type Sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
}

// Users поиск пользователя по Telegram ID
type Users interface {
	GetByTelegramID(ctx context.Context, telegramID int64) (*model.User, error)
}

// Send отправляет сообщение и логирует если не удалось
func Send(ctx context.Context, s Sender, logger *zap.Logger, chatID int64, text string, kb *models.InlineKeyboardMarkup) {
	params := &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	}
	if kb != nil {
		params.ReplyMarkup = kb
	}

	if _, err := s.SendMessage(ctx, params); err != nil {
		logger.Error("Failed to send message",
			zap.Int64("chat_id", chatID),
			zap.Error(err),
		)
	}
}

// AnswerCallback отвечает на callback query (без alert)
func AnswerCallback(ctx context.Context, s Sender, callbackID string, text string) {
	_, _ = s.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
		ShowAlert:       false,
	})
}

// AnswerCallbackAlert отвечает на callback query с alert (всплывающее окно)
func AnswerCallbackAlert(ctx context.Context, s Sender, callbackID string, text string) {
	_, _ = s.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
		ShowAlert:       true,
	})
}

// GetMessageFromCallback извлекает сообщение из callback query
func GetMessageFromCallback(callback *models.CallbackQuery) *models.Message {
	if callback.Message.Message != nil {
		return callback.Message.Message
	}
	return nil
}

// ParseCallback отрезает префикс и делит остаток на n частей
// Например: ParseCallback("display:abc:split", "display:", 2) -> ["abc", "split"]
func ParseCallback(data, prefix string, n int) ([]string, error) {
	if !strings.HasPrefix(data, prefix) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFormat, data)
	}
	parts := strings.Split(strings.TrimPrefix(data, prefix), ":")
	if len(parts) != n {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFormat, data)
	}
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidFormat, data)
		}
	}
	return parts, nil
}

// Lessons ближайшие уроки пользователя
type Lessons interface {
	UpcomingFor(ctx context.Context, user *model.User) ([]*model.Booking, error)
}
