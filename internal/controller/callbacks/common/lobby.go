package common

import (
	"context"
	"errors"

	"github.com/Freeeeeet/lessonroom/internal/controller/state"
	"github.com/Freeeeeet/lessonroom/internal/model"
	"github.com/Freeeeeet/lessonroom/internal/session"
	"go.uber.org/zap"
)

// Sessions часть менеджера сессий, нужная боту
type Sessions interface {
	Enter(ctx context.Context, rawBookingID string, caller session.Identity, presenter session.Presenter) (*session.Session, error)
	Get(id string) (*session.Session, error)
}

// Lobby действия с сессией урока, общие для команд и кнопок
type Lobby struct {
	sessions Sessions
	state    *state.Manager
	sender   Sender
	logger   *zap.Logger
}

func NewLobby(sessions Sessions, sm *state.Manager, sender Sender, logger *zap.Logger) *Lobby {
	return &Lobby{
		sessions: sessions,
		state:    sm,
		sender:   sender,
		logger:   logger,
	}
}

// Join входит в урок по номеру бронирования
func (l *Lobby) Join(ctx context.Context, chatID int64, user *model.User, telegramID int64, rawBookingID string) {
	l.state.ClearState(telegramID)

	presenter := NewChatPresenter(l.sender, l.state, chatID, telegramID, l.logger)
	s, err := l.sessions.Enter(ctx, rawBookingID, session.IdentityFromUser(user), presenter)
	if err != nil {
		l.logFailure("Failed to enter session", telegramID, err)
		l.send(ctx, chatID, ErrorMessage(err))
		return
	}

	l.state.SetSession(telegramID, s.ID)

	text, kb := SessionScreen(s.Snapshot(), s.Booking())
	Send(ctx, l.sender, l.logger, chatID, text, kb)
}

// Status показывает карточку открытой сессии
func (l *Lobby) Status(ctx context.Context, chatID, telegramID int64, sessionID string) {
	s, err := l.current(telegramID, sessionID)
	if err != nil {
		l.send(ctx, chatID, ErrorMessage(err))
		return
	}

	text, kb := SessionScreen(s.Snapshot(), s.Booking())
	Send(ctx, l.sender, l.logger, chatID, text, kb)
}

// End завершает урок сразу, итог придёт уведомлением о закрытии
func (l *Lobby) End(ctx context.Context, chatID, telegramID int64, sessionID string) {
	s, err := l.current(telegramID, sessionID)
	if err != nil {
		l.send(ctx, chatID, ErrorMessage(err))
		return
	}

	if !s.End(ctx) {
		l.send(ctx, chatID, ErrorMessage(session.ErrSessionTerminated))
	}
}

// Leave выходит из урока, спрашивая подтверждение если урок уже идёт
func (l *Lobby) Leave(ctx context.Context, chatID, telegramID int64) {
	s, err := l.current(telegramID, "")
	if err != nil {
		l.send(ctx, chatID, ErrorMessage(err))
		return
	}

	if s.ConfirmLeave() {
		l.state.SetState(telegramID, state.StateConfirmingLeave)
		text, kb := LeaveConfirmScreen(s.ID)
		Send(ctx, l.sender, l.logger, chatID, text, kb)
		return
	}

	l.End(ctx, chatID, telegramID, s.ID)
}

// ConfirmLeave выход после подтверждения
func (l *Lobby) ConfirmLeave(ctx context.Context, chatID, telegramID int64, sessionID string) {
	if l.state.GetState(telegramID) != state.StateConfirmingLeave {
		l.send(ctx, chatID, ErrorMessage(session.ErrSessionNotFound))
		return
	}
	l.state.ClearState(telegramID)
	l.End(ctx, chatID, telegramID, sessionID)
}

// Stay отмена выхода
func (l *Lobby) Stay(ctx context.Context, chatID, telegramID int64) {
	l.state.ClearState(telegramID)
	l.send(ctx, chatID, "↩️ You are still in the lesson.")
}

// SetDisplay переключает режим отображения панелей
func (l *Lobby) SetDisplay(ctx context.Context, chatID, telegramID int64, sessionID, rawMode string) {
	s, err := l.current(telegramID, sessionID)
	if err != nil {
		l.send(ctx, chatID, ErrorMessage(err))
		return
	}

	mode, err := session.ParseDisplayMode(rawMode)
	if err == nil {
		err = s.SetDisplayMode(mode)
	}
	if err != nil {
		l.send(ctx, chatID, ErrorMessage(err))
		return
	}

	text, kb := SessionScreen(s.Snapshot(), s.Booking())
	Send(ctx, l.sender, l.logger, chatID, text, kb)
}

// RetryPanel перезапускает упавшую панель, остальные не трогаются
func (l *Lobby) RetryPanel(ctx context.Context, chatID, telegramID int64, sessionID, rawPanel string) {
	s, err := l.current(telegramID, sessionID)
	if err != nil {
		l.send(ctx, chatID, ErrorMessage(err))
		return
	}

	panel, err := session.ParsePanel(rawPanel)
	if err == nil {
		err = s.RetryPanel(panel)
	}
	if err != nil {
		l.send(ctx, chatID, ErrorMessage(err))
	}
}

// current открытая сессия пользователя. Пустой sessionID означает текущую
func (l *Lobby) current(telegramID int64, sessionID string) (*session.Session, error) {
	active, ok := l.state.Session(telegramID)
	if !ok || (sessionID != "" && sessionID != active) {
		return nil, session.ErrSessionNotFound
	}

	s, err := l.sessions.Get(active)
	if err != nil {
		l.state.ClearSession(telegramID, active)
		return nil, err
	}
	if s.Terminated() {
		l.state.ClearSession(telegramID, active)
		return nil, session.ErrSessionTerminated
	}
	return s, nil
}

func (l *Lobby) send(ctx context.Context, chatID int64, text string) {
	Send(ctx, l.sender, l.logger, chatID, text, nil)
}

// Отказы доступа и нехватку денег пользователь видит сам, в лог пишем только сбои
func (l *Lobby) logFailure(msg string, telegramID int64, err error) {
	var fundsErr *session.InsufficientFundsError
	if session.IsAccessError(err) || errors.As(err, &fundsErr) {
		l.logger.Info(msg, zap.Int64("telegram_id", telegramID), zap.Error(err))
		return
	}
	l.logger.Error(msg, zap.Int64("telegram_id", telegramID), zap.Error(err))
}
