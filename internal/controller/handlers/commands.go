package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/Freeeeeet/lessonroom/internal/controller/callbacks/common"
	"github.com/Freeeeeet/lessonroom/internal/controller/state"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// HandleStart обрабатывает команду /start
func (h *Handlers) HandleStart(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}

	user := update.Message.From

	// Регистрируем пользователя
	registeredUser, err := h.users.RegisterUser(
		ctx,
		user.ID,
		user.Username,
		user.FirstName,
		user.LastName,
	)

	if err != nil {
		h.logger.Error("Failed to register user", zap.Error(err))
		h.sendMessage(ctx, update.Message.Chat.ID, "❌ Registration failed. Please try again later.")
		return
	}

	welcomeText := fmt.Sprintf(
		"👋 Hi, %s!\n\n"+
			"This bot opens your lesson rooms.\n\n"+
			"Commands:\n"+
			"/lessons - Your confirmed lessons\n"+
			"/join <number> - Join a lesson\n"+
			"/status - Current lesson\n"+
			"/leave - Leave the lesson\n"+
			"/end - End the lesson\n"+
			"/help - Help",
		registeredUser.FirstName,
	)

	h.sendMessage(ctx, update.Message.Chat.ID, welcomeText)
}

// HandleHelp обрабатывает команду /help
func (h *Handlers) HandleHelp(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	helpText := "📚 Help:\n\n" +
		"/lessons - Confirmed lessons with join buttons\n" +
		"/join <number> - Join a lesson by booking number\n" +
		"/status - Timer, participants and panels of the current lesson\n" +
		"/leave - Leave the lesson (asks to confirm once it is running)\n" +
		"/end - End the lesson now\n" +
		"/cancel - Cancel the current dialog\n\n" +
		"Students pay the lesson fee from the wallet when they join. " +
		"If the teacher does not come, the lesson is cancelled and the fee is refunded."

	h.sendMessage(ctx, update.Message.Chat.ID, helpText)
}

// HandleCancel обрабатывает команду /cancel - отмена текущего диалога
func (h *Handlers) HandleCancel(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}

	telegramID := update.Message.From.ID
	if h.stateManager.GetState(telegramID) == state.StateNone {
		h.sendMessage(ctx, update.Message.Chat.ID, "❌ Nothing to cancel.")
		return
	}

	h.stateManager.ClearState(telegramID)
	h.sendMessage(ctx, update.Message.Chat.ID, "✅ Cancelled.\n\nUse /help to see the commands.")
}

// HandleLessons обрабатывает команду /lessons
func (h *Handlers) HandleLessons(ctx context.Context, _ *bot.Bot, update *models.Update) {
	user, ok := h.requireUser(ctx, update)
	if !ok {
		return
	}

	bookings, err := h.lessons.UpcomingFor(ctx, user)
	if err != nil {
		h.logger.Error("Failed to get upcoming lessons", zap.Int64("user_id", user.ID), zap.Error(err))
		h.sendMessage(ctx, update.Message.Chat.ID, common.ErrorMessage(err))
		return
	}

	text, kb := common.LessonsScreen(bookings)
	common.Send(ctx, h.sender, h.logger, update.Message.Chat.ID, text, kb)
}

// HandleTextMessage обрабатывает текстовые сообщения в зависимости от состояния пользователя
func (h *Handlers) HandleTextMessage(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil || update.Message.Text == "" {
		return
	}

	// Игнорируем команды (они обрабатываются другими handlers)
	if strings.HasPrefix(update.Message.Text, "/") {
		return
	}

	telegramID := update.Message.From.ID
	currentState := h.stateManager.GetState(telegramID)

	switch currentState {
	case state.StateNone:
		h.logger.Debug("No active state, ignoring message",
			zap.Int64("telegram_id", telegramID))
	case state.StateEnteringBookingID:
		h.joinWithArg(ctx, update, strings.TrimSpace(update.Message.Text))
	case state.StateConfirmingLeave:
		h.sendMessage(ctx, update.Message.Chat.ID, "Use the buttons above to leave or stay in the lesson.")
	default:
		h.logger.Warn("Unknown state", zap.String("state", string(currentState)))
	}
}
