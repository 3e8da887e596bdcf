package handlers

import (
	"context"

	"github.com/Freeeeeet/lessonroom/internal/controller/callbacks/common"
	"github.com/Freeeeeet/lessonroom/internal/controller/state"
	"github.com/Freeeeeet/lessonroom/internal/model"
	"go.uber.org/zap"
)

// UserDirectory регистрация и поиск пользователей
type UserDirectory interface {
	common.Users
	RegisterUser(ctx context.Context, telegramID int64, username, firstName, lastName string) (*model.User, error)
}

// Handlers содержит все зависимости для обработки команд
type Handlers struct {
	users        UserDirectory
	lessons      common.Lessons
	lobby        *common.Lobby
	stateManager *state.Manager
	sender       common.Sender
	logger       *zap.Logger
}

// NewHandlers создаёт новый обработчик команд
func NewHandlers(
	users UserDirectory,
	lessons common.Lessons,
	lobby *common.Lobby,
	stateManager *state.Manager,
	sender common.Sender,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		users:        users,
		lessons:      lessons,
		lobby:        lobby,
		stateManager: stateManager,
		sender:       sender,
		logger:       logger,
	}
}
