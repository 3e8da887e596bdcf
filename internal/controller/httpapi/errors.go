package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Freeeeeet/lessonroom/internal/provider"
	"github.com/Freeeeeet/lessonroom/internal/session"
	"go.uber.org/zap"
)

// ErrorBody тело ответа с ошибкой
type ErrorBody struct {
	Code           string `json:"code"`
	Message        string `json:"message"`
	BalanceCents   *int64 `json:"balance_cents,omitempty"`
	FeeCents       *int64 `json:"fee_cents,omitempty"`
	ShortfallCents *int64 `json:"shortfall_cents,omitempty"`
	Destination    string `json:"destination,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorBody{Code: code, Message: message})
}

// writeSessionError переводит ошибки сессий в HTTP-ответ
func writeSessionError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var fundsErr *session.InsufficientFundsError
	if errors.As(err, &fundsErr) {
		balance, fee, shortfall := fundsErr.BalanceCents, fundsErr.FeeCents, fundsErr.ShortfallCents()
		writeJSON(w, http.StatusPaymentRequired, ErrorBody{
			Code:           "insufficient_funds",
			Message:        "Not enough funds to join the lesson",
			BalanceCents:   &balance,
			FeeCents:       &fee,
			ShortfallCents: &shortfall,
			Destination:    session.DestinationTopUp,
		})
		return
	}

	var accessErr *session.AccessError
	if errors.As(err, &accessErr) {
		status, code := accessStatus(accessErr.Err)
		writeJSON(w, status, ErrorBody{
			Code:        code,
			Message:     accessErr.Error(),
			Destination: session.DestinationBookings,
		})
		return
	}

	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session_not_found", err.Error())
	case errors.Is(err, session.ErrSessionTerminated):
		writeError(w, http.StatusGone, "session_terminated", err.Error())
	case errors.Is(err, session.ErrUnknownPanel):
		writeError(w, http.StatusBadRequest, "unknown_panel", err.Error())
	case errors.Is(err, session.ErrUnknownDisplay):
		writeError(w, http.StatusBadRequest, "unknown_display_mode", err.Error())
	case errors.Is(err, provider.ErrInvalidEvent), errors.Is(err, provider.ErrUnknownEvent):
		writeError(w, http.StatusBadRequest, "invalid_event", err.Error())
	case errors.Is(err, session.ErrPaymentFailed):
		logger.Error("Payment failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "payment_failed", "Payment could not be processed. Please try again later.")
	default:
		logger.Error("Request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "Something went wrong. Please try again later.")
	}
}

func accessStatus(err error) (int, string) {
	switch {
	case errors.Is(err, session.ErrMissingBookingID):
		return http.StatusBadRequest, "missing_booking_id"
	case errors.Is(err, session.ErrBookingNotFound):
		return http.StatusNotFound, "booking_not_found"
	case errors.Is(err, session.ErrBookingNotJoinable):
		return http.StatusConflict, "booking_not_joinable"
	case errors.Is(err, session.ErrRoomNotAssigned):
		return http.StatusConflict, "room_not_assigned"
	default:
		return http.StatusForbidden, "access_denied"
	}
}
