package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/Freeeeeet/lessonroom/internal/model"
	"github.com/Freeeeeet/lessonroom/internal/repository"
	"go.uber.org/zap"
)

// BookingService серверная сторона бронирований для контроллера сессий
type BookingService struct {
	bookingRepo *repository.BookingRepository
	logger      *zap.Logger
}

func NewBookingService(bookingRepo *repository.BookingRepository, logger *zap.Logger) *BookingService {
	return &BookingService{
		bookingRepo: bookingRepo,
		logger:      logger,
	}
}

// GetBooking возвращает бронирование или nil, если его нет
func (s *BookingService) GetBooking(ctx context.Context, id int64) (*model.Booking, error) {
	booking, err := s.bookingRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return booking, nil
}

// SetBookingStatus переводит бронирование в confirmed, completed или cancelled
func (s *BookingService) SetBookingStatus(ctx context.Context, id int64, status model.BookingStatus) error {
	if err := s.bookingRepo.SetStatus(ctx, id, status); err != nil {
		if errors.Is(err, repository.ErrInvalidTransition) {
			s.logger.Warn("Booking status transition rejected",
				zap.Int64("booking_id", id),
				zap.String("status", string(status)),
				zap.Error(err),
			)
		}
		return fmt.Errorf("set booking status: %w", err)
	}

	s.logger.Info("Booking status updated",
		zap.Int64("booking_id", id),
		zap.String("status", string(status)),
	)
	return nil
}

// UpcomingFor подтверждённые уроки, в которых участвует пользователь
func (s *BookingService) UpcomingFor(ctx context.Context, user *model.User) ([]*model.Booking, error) {
	refs := ParticipantRefs(user)
	if len(refs) == 0 {
		return nil, nil
	}

	bookings, err := s.bookingRepo.GetByParticipant(ctx, refs, []model.BookingStatus{model.BookingStatusConfirmed})
	if err != nil {
		return nil, fmt.Errorf("get upcoming bookings: %w", err)
	}
	return bookings, nil
}
