package session

import (
	"errors"
	"fmt"

	"github.com/Freeeeeet/lessonroom/internal/model"
)

// Ошибки доступа окончательны для попытки входа и не повторяются автоматически
var (
	ErrMissingBookingID   = errors.New("booking id is required")
	ErrBookingNotFound    = errors.New("booking not found")
	ErrBookingNotJoinable = errors.New("booking is not joinable")
	ErrRoomNotAssigned    = errors.New("session room is not assigned")
	ErrAccessDenied       = errors.New("access denied")
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrPaymentFailed     = errors.New("payment failed")
)

// ErrStatusRejected кошелёк или сервис бронирований окончательно отверг переход
var ErrStatusRejected = errors.New("booking status change rejected")

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionTerminated = errors.New("session is terminated")
	ErrUnknownPanel      = errors.New("unknown panel")
	ErrUnknownDisplay    = errors.New("unknown display mode")
)

// AccessError отказ BookingGate с причиной, которую показывают пользователю как есть
type AccessError struct {
	Err    error
	Reason string
	Status model.BookingStatus
}

func (e *AccessError) Error() string {
	if e.Reason == "" {
		return e.Err.Error()
	}
	return e.Err.Error() + ": " + e.Reason
}

func (e *AccessError) Unwrap() error {
	return e.Err
}

// InsufficientFundsError хранит точный баланс, чтобы показать нехватку
type InsufficientFundsError struct {
	BalanceCents int64
	FeeCents     int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: balance %d cents, fee %d cents", e.BalanceCents, e.FeeCents)
}

func (e *InsufficientFundsError) Unwrap() error {
	return ErrInsufficientFunds
}

// ShortfallCents сколько не хватает до стоимости урока
func (e *InsufficientFundsError) ShortfallCents() int64 {
	if d := e.FeeCents - e.BalanceCents; d > 0 {
		return d
	}
	return 0
}

// statusRejected повтор перехода бесполезен: статус уже другой или бронирования нет
func statusRejected(err error) bool {
	return errors.Is(err, ErrStatusRejected) ||
		errors.Is(err, model.ErrInvalidTransition) ||
		errors.Is(err, model.ErrBookingNotFound)
}

// IsAccessError проверяет что ошибка является отказом в доступе
func IsAccessError(err error) bool {
	var accessErr *AccessError
	return errors.As(err, &accessErr)
}
