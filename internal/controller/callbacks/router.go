package callbacks

import (
	"context"
	"strings"

	"github.com/Freeeeeet/lessonroom/internal/controller/callbacks/common"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// Handler обработчик нажатий на inline кнопки
type Handler struct {
	users   common.Users
	lessons common.Lessons
	lobby   *common.Lobby
	sender  common.Sender
	logger  *zap.Logger
}

func NewHandler(
	users common.Users,
	lessons common.Lessons,
	lobby *common.Lobby,
	sender common.Sender,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		users:   users,
		lessons: lessons,
		lobby:   lobby,
		sender:  sender,
		logger:  logger,
	}
}

// HandleCallbackQuery точка входа для bot.RegisterHandler
func (h *Handler) HandleCallbackQuery(ctx context.Context, _ *bot.Bot, update *models.Update) {
	if update.CallbackQuery == nil {
		return
	}
	h.Route(ctx, update.CallbackQuery)
}

// Route распределяет callback query по соответствующим обработчикам
func (h *Handler) Route(ctx context.Context, callback *models.CallbackQuery) {
	data := callback.Data

	h.logger.Info("Routing callback",
		zap.String("data", data),
		zap.Int64("user_id", callback.From.ID),
	)

	hc := common.NewHandlerContext(ctx, h.sender, h.users, callback)
	if err := hc.LoadUser(); err != nil {
		h.logger.Error("Failed to load user",
			zap.Int64("telegram_id", hc.TelegramID),
			zap.Error(err))
		hc.AnswerAlert(common.ErrorMessage(err))
		return
	}

	switch {
	case data == common.MyLessons:
		h.handleMyLessons(hc)
	case strings.HasPrefix(data, common.JoinLesson):
		hc.Answer("")
		h.lobby.Join(ctx, hc.ChatID, hc.User, hc.TelegramID, strings.TrimPrefix(data, common.JoinLesson))
	case strings.HasPrefix(data, common.SessionStatus):
		h.withSession(hc, common.SessionStatus, func(id string) {
			h.lobby.Status(ctx, hc.ChatID, hc.TelegramID, id)
		})
	case strings.HasPrefix(data, common.SessionEnd):
		h.withSession(hc, common.SessionEnd, func(id string) {
			h.lobby.End(ctx, hc.ChatID, hc.TelegramID, id)
		})
	case strings.HasPrefix(data, common.SessionLeaveConfirm):
		h.withSession(hc, common.SessionLeaveConfirm, func(id string) {
			h.lobby.ConfirmLeave(ctx, hc.ChatID, hc.TelegramID, id)
		})
	case strings.HasPrefix(data, common.SessionStay):
		hc.Answer("")
		h.lobby.Stay(ctx, hc.ChatID, hc.TelegramID)
	case strings.HasPrefix(data, common.SessionDisplay):
		h.withArg(hc, common.SessionDisplay, func(id, mode string) {
			h.lobby.SetDisplay(ctx, hc.ChatID, hc.TelegramID, id, mode)
		})
	case strings.HasPrefix(data, common.PanelRetry):
		h.withArg(hc, common.PanelRetry, func(id, panel string) {
			h.lobby.RetryPanel(ctx, hc.ChatID, hc.TelegramID, id, panel)
		})
	default:
		h.logger.Warn("Unknown callback", zap.String("data", data))
		hc.AnswerAlert(common.ErrorMessage(common.ErrInvalidFormat))
	}
}

func (h *Handler) handleMyLessons(hc *common.HandlerContext) {
	bookings, err := h.lessons.UpcomingFor(hc.Ctx, hc.User)
	if err != nil {
		h.logger.Error("Failed to get upcoming lessons", zap.Int64("user_id", hc.User.ID), zap.Error(err))
		hc.AnswerAlert(common.ErrorMessage(err))
		return
	}

	hc.Answer("")
	text, kb := common.LessonsScreen(bookings)
	common.Send(hc.Ctx, h.sender, h.logger, hc.ChatID, text, kb)
}

func (h *Handler) withSession(hc *common.HandlerContext, prefix string, fn func(sessionID string)) {
	parts, err := common.ParseCallback(hc.Callback.Data, prefix, 1)
	if err != nil {
		hc.AnswerAlert(common.ErrorMessage(err))
		return
	}
	hc.Answer("")
	fn(parts[0])
}

func (h *Handler) withArg(hc *common.HandlerContext, prefix string, fn func(sessionID, arg string)) {
	parts, err := common.ParseCallback(hc.Callback.Data, prefix, 2)
	if err != nil {
		hc.AnswerAlert(common.ErrorMessage(err))
		return
	}
	hc.Answer("")
	fn(parts[0], parts[1])
}
