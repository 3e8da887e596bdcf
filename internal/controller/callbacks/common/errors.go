package common

import (
	"errors"
	"fmt"

	"github.com/Freeeeeet/lessonroom/internal/controller/callbacks/common/formatting"
	"github.com/Freeeeeet/lessonroom/internal/session"
)

// Общие ошибки для обработчиков
var (
	ErrUserNotFound  = errors.New("user not found")
	ErrNoMessage     = errors.New("no message in callback")
	ErrInvalidFormat = errors.New("invalid callback format")
)

// ErrorMessage возвращает пользовательское сообщение для ошибки
func ErrorMessage(err error) string {
	var fundsErr *session.InsufficientFundsError
	if errors.As(err, &fundsErr) {
		return fmt.Sprintf(
			"💳 Not enough funds to join the lesson.\n\nBalance: %s\nLesson fee: %s\nTop up at least %s and try again.",
			formatting.FormatPrice(fundsErr.BalanceCents),
			formatting.FormatPrice(fundsErr.FeeCents),
			formatting.FormatPrice(fundsErr.ShortfallCents()),
		)
	}

	var accessErr *session.AccessError
	if errors.As(err, &accessErr) && errors.Is(err, session.ErrBookingNotJoinable) && accessErr.Reason != "" {
		return fmt.Sprintf("❌ You cannot join this lesson: %s.", accessErr.Reason)
	}

	switch {
	case errors.Is(err, ErrUserNotFound):
		return "❌ User not found. Use /start"
	case errors.Is(err, ErrNoMessage):
		return "❌ Failed to process the message"
	case errors.Is(err, ErrInvalidFormat):
		return "❌ Invalid data format"
	case errors.Is(err, session.ErrMissingBookingID):
		return "❌ Send the booking number, for example: /join 42"
	case errors.Is(err, session.ErrBookingNotFound):
		return "❌ Booking not found"
	case errors.Is(err, session.ErrBookingNotJoinable):
		return "❌ You cannot join this lesson"
	case errors.Is(err, session.ErrRoomNotAssigned):
		return "⏳ The lesson room is not ready yet. Try again closer to the start time."
	case errors.Is(err, session.ErrAccessDenied):
		return "❌ You are not a participant of this lesson"
	case errors.Is(err, session.ErrPaymentFailed):
		return "❌ The payment could not be completed. Please try again."
	case errors.Is(err, session.ErrSessionNotFound):
		return "❌ You have no active lesson. Use /join <booking number>"
	case errors.Is(err, session.ErrSessionTerminated):
		return "❌ This lesson has already ended"
	case errors.Is(err, session.ErrUnknownPanel), errors.Is(err, session.ErrUnknownDisplay):
		return "❌ Unknown option"
	default:
		return "❌ Something went wrong. Please try again later."
	}
}
