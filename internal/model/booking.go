package model

import (
	"errors"
	"time"
)

// Permanent rejections of a status change. Retrying them never helps.
var (
	ErrBookingNotFound   = errors.New("booking not found")
	ErrInvalidTransition = errors.New("booking status transition is not allowed")
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"   // Ожидает подтверждения учителя
	BookingStatusConfirmed BookingStatus = "confirmed" // Подтверждено, комната назначена
	BookingStatusCompleted BookingStatus = "completed" // Урок проведён
	BookingStatusCancelled BookingStatus = "cancelled" // Отменено
)

// IsTerminal сообщает, что из статуса контроллер сессии больше ничего не делает
func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusCompleted || s == BookingStatusCancelled
}

type Booking struct {
	ID         int64  `json:"id"`
	TeacherRef string `json:"teacher_ref"` // ссылка на учителя в любом из каналов идентичности
	StudentRef string `json:"student_ref"`
	Subject    string `json:"subject"`

	// Локальное время без часового пояса, как его ввёл маркетплейс
	ScheduledDate string `json:"scheduled_date"` // 2006-01-02
	StartTime     string `json:"start_time"`     // 15:04 или 15:04:05
	EndTime       string `json:"end_time"`

	Status    BookingStatus `json:"status"`
	RoomID    *string       `json:"room_id"` // назначается только после подтверждения
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// HasRoom проверяет что комната сессии назначена
func (b *Booking) HasRoom() bool {
	return b.RoomID != nil && *b.RoomID != ""
}

// Room возвращает идентификатор комнаты или пустую строку
func (b *Booking) Room() string {
	if b.RoomID == nil {
		return ""
	}
	return *b.RoomID
}
