package common

import (
	"context"

	"github.com/Freeeeeet/lessonroom/internal/model"
	"github.com/go-telegram/bot/models"
)

// HandlerContext содержит общие данные для обработки callback
// Это избавляет от дублирования кода получения пользователя, сообщения и т.д.
type HandlerContext struct {
	Ctx        context.Context
	Sender     Sender
	Callback   *models.CallbackQuery
	Message    *models.Message
	User       *model.User
	TelegramID int64
	ChatID     int64

	users Users
}

// NewHandlerContext создаёт новый контекст обработчика
func NewHandlerContext(ctx context.Context, sender Sender, users Users, callback *models.CallbackQuery) *HandlerContext {
	msg := GetMessageFromCallback(callback)
	var chatID int64
	if msg != nil {
		chatID = msg.Chat.ID
	}

	return &HandlerContext{
		Ctx:        ctx,
		Sender:     sender,
		Callback:   callback,
		Message:    msg,
		TelegramID: callback.From.ID,
		ChatID:     chatID,
		users:      users,
	}
}

// LoadUser загружает пользователя в контекст
func (hc *HandlerContext) LoadUser() error {
	if hc.Message == nil {
		return ErrNoMessage
	}
	user, err := hc.users.GetByTelegramID(hc.Ctx, hc.TelegramID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	hc.User = user
	return nil
}

// Answer подтверждает callback без текста или с коротким текстом
func (hc *HandlerContext) Answer(text string) {
	AnswerCallback(hc.Ctx, hc.Sender, hc.Callback.ID, text)
}

// AnswerAlert подтверждает callback всплывающим окном
func (hc *HandlerContext) AnswerAlert(text string) {
	AnswerCallbackAlert(hc.Ctx, hc.Sender, hc.Callback.ID, text)
}
