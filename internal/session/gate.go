package session

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Freeeeeet/lessonroom/internal/model"
	"go.uber.org/zap"
)

// BookingReader читает бронирование. nil, nil означает что записи нет
type BookingReader interface {
	GetBooking(ctx context.Context, id int64) (*model.Booking, error)
}

// BookingGate проверяет запрос на вход в сессию по записи бронирования
type BookingGate struct {
	bookings BookingReader
	logger   *zap.Logger
}

// NewBookingGate создаёт новый BookingGate
func NewBookingGate(bookings BookingReader, logger *zap.Logger) *BookingGate {
	return &BookingGate{
		bookings: bookings,
		logger:   logger,
	}
}

// Authorize возвращает бронирование и роль вызывающего либо причину отказа.
// Проверки идут строго по порядку и прерываются на первой неудаче.
func (g *BookingGate) Authorize(ctx context.Context, rawBookingID string, caller Identity) (*model.Booking, Role, error) {
	rawBookingID = strings.TrimSpace(rawBookingID)
	if rawBookingID == "" {
		return nil, "", &AccessError{Err: ErrMissingBookingID}
	}

	bookingID, err := strconv.ParseInt(rawBookingID, 10, 64)
	if err != nil || bookingID <= 0 {
		return nil, "", &AccessError{Err: ErrBookingNotFound}
	}

	booking, err := g.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, "", fmt.Errorf("get booking: %w", err)
	}
	if booking == nil {
		return nil, "", &AccessError{Err: ErrBookingNotFound}
	}

	if booking.Status != model.BookingStatusConfirmed && booking.Status != model.BookingStatusCompleted {
		return nil, "", &AccessError{
			Err:    ErrBookingNotJoinable,
			Reason: notJoinableReason(booking.Status),
			Status: booking.Status,
		}
	}

	if !booking.HasRoom() {
		return nil, "", &AccessError{Err: ErrRoomNotAssigned, Status: booking.Status}
	}

	var role Role
	switch {
	case caller.MatchesStudent(booking.StudentRef):
		role = RoleStudent
	case caller.MatchesTeacher(booking.TeacherRef):
		role = RoleTeacher
	default:
		g.logger.Warn("Session access denied",
			zap.Int64("booking_id", booking.ID),
			zap.String("user_id", caller.UserID),
		)
		return nil, "", &AccessError{Err: ErrAccessDenied, Status: booking.Status}
	}

	return booking, role, nil
}

func notJoinableReason(status model.BookingStatus) string {
	switch status {
	case model.BookingStatusPending:
		return "awaiting teacher confirmation"
	case model.BookingStatusCancelled:
		return "lesson was cancelled"
	default:
		return fmt.Sprintf("lesson is %s", status)
	}
}
