package handlers

import (
	"context"
	"strings"

	"github.com/Freeeeeet/lessonroom/internal/controller/callbacks/common"
	"github.com/Freeeeeet/lessonroom/internal/model"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// requireUser проверяет что пользователь существует
// Возвращает user и true если OK, nil и false если нет
func (h *Handlers) requireUser(ctx context.Context, update *models.Update) (*model.User, bool) {
	if update.Message == nil || update.Message.From == nil {
		return nil, false
	}

	telegramID := update.Message.From.ID
	user, err := h.users.GetByTelegramID(ctx, telegramID)

	if err != nil {
		h.logger.Error("Failed to get user", zap.Int64("telegram_id", telegramID), zap.Error(err))
		h.sendMessage(ctx, update.Message.Chat.ID, common.ErrorMessage(err))
		return nil, false
	}

	if user == nil {
		h.sendMessage(ctx, update.Message.Chat.ID, common.ErrorMessage(common.ErrUserNotFound))
		return nil, false
	}

	return user, true
}

// sendMessage отправляет сообщение и логирует если не удалось
func (h *Handlers) sendMessage(ctx context.Context, chatID int64, text string) {
	common.Send(ctx, h.sender, h.logger, chatID, text, nil)
}

// commandArg первый аргумент команды: "/join 42" -> "42"
func commandArg(text string) string {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return ""
	}
	return fields[1]
}
