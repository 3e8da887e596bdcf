package state

// UserState представляет текущее состояние пользователя в диалоге
type UserState string

const (
	StateNone UserState = "" // Нет активного состояния

	StateEnteringBookingID UserState = "entering_booking_id" // /join без номера, ждём номер брони
	StateConfirmingLeave   UserState = "confirming_leave"    // показали подтверждение выхода
)

// UserData хранит состояние диалога и открытую сессию пользователя
type UserData struct {
	State     UserState
	SessionID string
}
