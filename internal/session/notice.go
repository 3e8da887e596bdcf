package session

import (
	"context"
	"time"

	"github.com/Freeeeeet/lessonroom/internal/events"
)

type NoticeKind string

const (
	NoticeParticipantJoined  NoticeKind = "participant_joined"
	NoticeParticipantLeft    NoticeKind = "participant_left"
	NoticeTimeWarning        NoticeKind = "time_warning"
	NoticeTimeWarningCleared NoticeKind = "time_warning_cleared"
	NoticeAutoEnd            NoticeKind = "auto_end"
	NoticeConnectionLost     NoticeKind = "connection_lost"
	NoticeConnectionRestored NoticeKind = "connection_restored"
	NoticePanelFailed        NoticeKind = "panel_failed"
	NoticePanelRestored      NoticeKind = "panel_restored"
	NoticeClosed             NoticeKind = "closed"
)

// Куда отправить пользователя после закрытия сессии
const (
	DestinationBookings = "bookings"
	DestinationTopUp    = "topup"
)

// Notice сообщение пользователю о состоянии сессии
type Notice struct {
	Kind             NoticeKind `json:"kind"`
	SessionID        string     `json:"session_id"`
	BookingID        int64      `json:"booking_id"`
	Text             string     `json:"text"`
	CountdownSeconds int        `json:"countdown_seconds,omitempty"`
	Panel            Panel      `json:"panel,omitempty"`
	Retryable        bool       `json:"retryable,omitempty"`
	Reason           Reason     `json:"reason,omitempty"`
	Destination      string     `json:"destination,omitempty"`
	At               time.Time  `json:"at"`
}

// Presenter показывает уведомления вызывающему (Telegram, websocket)
type Presenter interface {
	Present(ctx context.Context, n Notice)
}

// PresenterFunc адаптер функции к Presenter
type PresenterFunc func(ctx context.Context, n Notice)

func (f PresenterFunc) Present(ctx context.Context, n Notice) {
	f(ctx, n)
}

type nopPresenter struct{}

func (nopPresenter) Present(context.Context, Notice) {}

// Recorder метрики жизненного цикла сессий
type Recorder interface {
	RecordEntry(role string)
	RecordRejection(reason string)
	RecordCharge(status string)
	RecordNoShow()
	RecordTermination(reason string)
	RecordStatusFailure(status string)
	SetActiveSessions(n int)
}

// NopRecorder ничего не записывает
type NopRecorder struct{}

func (NopRecorder) RecordEntry(string)         {}
func (NopRecorder) RecordRejection(string)     {}
func (NopRecorder) RecordCharge(string)        {}
func (NopRecorder) RecordNoShow()              {}
func (NopRecorder) RecordTermination(string)   {}
func (NopRecorder) RecordStatusFailure(string) {}
func (NopRecorder) SetActiveSessions(int)      {}

// EventPublisher публикует события жизненного цикла во внешнюю шину
type EventPublisher interface {
	PublishLifecycle(ctx context.Context, event events.LifecycleEvent) error
}

type nopPublisher struct{}

func (nopPublisher) PublishLifecycle(context.Context, events.LifecycleEvent) error { return nil }
