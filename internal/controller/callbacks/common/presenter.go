package common

import (
	"context"
	"time"

	"github.com/Freeeeeet/lessonroom/internal/controller/state"
	"github.com/Freeeeeet/lessonroom/internal/session"
	"go.uber.org/zap"
)

const presentTimeout = 5 * time.Second

// ChatPresenter показывает уведомления сессии в чате Telegram
type ChatPresenter struct {
	sender     Sender
	state      *state.Manager
	chatID     int64
	telegramID int64
	logger     *zap.Logger
}

func NewChatPresenter(sender Sender, sm *state.Manager, chatID, telegramID int64, logger *zap.Logger) *ChatPresenter {
	return &ChatPresenter{
		sender:     sender,
		state:      sm,
		chatID:     chatID,
		telegramID: telegramID,
		logger:     logger,
	}
}

func (p *ChatPresenter) Present(ctx context.Context, n session.Notice) {
	if n.Kind == session.NoticeClosed {
		p.state.ClearSession(p.telegramID, n.SessionID)
	}

	// Сообщение в чате нельзя скрыть, снятие предупреждения не показываем
	if n.Kind == session.NoticeTimeWarningCleared {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, presentTimeout)
	defer cancel()

	Send(ctx, p.sender, p.logger, p.chatID, NoticeText(n), NoticeKeyboard(n))
}
