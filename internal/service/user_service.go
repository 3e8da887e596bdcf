package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Freeeeeet/lessonroom/internal/model"
	"github.com/Freeeeeet/lessonroom/internal/repository"
	"go.uber.org/zap"
)

type UserService struct {
	userRepo *repository.UserRepository
	logger   *zap.Logger
}

func NewUserService(userRepo *repository.UserRepository, logger *zap.Logger) *UserService {
	return &UserService{
		userRepo: userRepo,
		logger:   logger,
	}
}

// RegisterUser регистрирует или обновляет пользователя Telegram
func (s *UserService) RegisterUser(ctx context.Context, telegramID int64, username, firstName, lastName string) (*model.User, error) {
	existingUser, err := s.userRepo.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, fmt.Errorf("check existing user: %w", err)
	}

	if existingUser != nil {
		if existingUser.Username == username && existingUser.FirstName == firstName && existingUser.LastName == lastName {
			return existingUser, nil
		}

		existingUser.Username = username
		existingUser.FirstName = firstName
		existingUser.LastName = lastName

		if err := s.userRepo.Update(ctx, existingUser); err != nil {
			return nil, fmt.Errorf("update user: %w", err)
		}

		s.logger.Info("User updated",
			zap.Int64("telegram_id", telegramID),
			zap.String("username", username),
		)

		return existingUser, nil
	}

	user := &model.User{
		TelegramID: telegramID,
		Username:   username,
		FirstName:  firstName,
		LastName:   lastName,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("New user registered",
		zap.Int64("user_id", user.ID),
		zap.Int64("telegram_id", telegramID),
		zap.String("username", username),
	)

	return user, nil
}

// GetByTelegramID получает пользователя по Telegram ID
func (s *UserService) GetByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	return s.userRepo.GetByTelegramID(ctx, telegramID)
}

// GetByAuthID получает пользователя по идентификатору входа из токена
func (s *UserService) GetByAuthID(ctx context.Context, authID string) (*model.User, error) {
	return s.userRepo.GetByAuthID(ctx, authID)
}

// ParticipantRefs все ссылки, под которыми пользователь может стоять в бронировании
func ParticipantRefs(user *model.User) []string {
	if user == nil {
		return nil
	}

	var refs []string
	if user.ID != 0 {
		refs = append(refs, strconv.FormatInt(user.ID, 10))
	}
	if v := strings.TrimSpace(user.AuthID); v != "" {
		refs = append(refs, v)
	}
	if v := strings.TrimSpace(user.Email); v != "" {
		refs = append(refs, v)
		if lower := strings.ToLower(v); lower != v {
			refs = append(refs, lower)
		}
	}
	if user.TeacherProfileID != nil && *user.TeacherProfileID != "" {
		refs = append(refs, *user.TeacherProfileID)
	}
	return refs
}
