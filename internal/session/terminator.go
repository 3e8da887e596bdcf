package session

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/lessonroom/internal/events"
	"github.com/Freeeeeet/lessonroom/internal/model"
	"github.com/Freeeeeet/lessonroom/internal/provider"
	"go.uber.org/zap"
)

type Reason string

const (
	ReasonEnded     Reason = "ended"
	ReasonAutoEnd   Reason = "auto_end"
	ReasonNoShow    Reason = "no_show"
	ReasonAbandoned Reason = "abandoned"
	ReasonCancelled Reason = "cancelled" // урок отменила сессия другого участника
	ReasonError     Reason = "error"
	ReasonShutdown  Reason = "shutdown"
)

// Reconciliation терминальный переход, который не удалось записать.
// Повторяется фоново, а не в момент завершения.
type Reconciliation struct {
	BookingID int64
	Status    model.BookingStatus
	Cancel    *model.CancelRequest // отмена идёт через кошелёк вместе с возвратом
	Attempts  int
	LastError string
	QueuedAt  time.Time
}

type teardown struct {
	reason       Reason
	subscription provider.Subscription
	elapsed      time.Duration
	presenter    Presenter
}

// Terminate единственный выход из сессии. Выигрывает первый вызов,
// повторный ничего не делает и не ходит в сеть.
func (s *Session) Terminate(ctx context.Context, reason Reason) bool {
	s.mu.Lock()
	if s.terminated {
		s.mu.Unlock()
		return false
	}
	td := s.beginTerminateLocked(reason)
	s.mu.Unlock()

	s.finish(ctx, td)
	return true
}

// beginTerminateLocked останавливает все таймеры сессии, ни один не сработает после выхода
func (s *Session) beginTerminateLocked(reason Reason) teardown {
	s.terminated = true
	s.reason = reason

	s.timer.Stop()
	s.watchdog.Stop()
	stopTimer(s.dismissTimer)
	s.dismissTimer = nil
	stopTimer(s.autoEndTimer)
	s.autoEndTimer = nil

	td := teardown{
		reason:       reason,
		subscription: s.subscription,
		elapsed:      s.timer.Elapsed(),
		presenter:    s.presenter,
	}
	s.subscription = nil
	return td
}

func (s *Session) finish(ctx context.Context, td teardown) {
	if td.subscription != nil {
		td.subscription.Detach()
	}

	event := events.LifecycleEvent{
		SessionID:      s.ID,
		BookingID:      s.booking.ID,
		Role:           string(s.role),
		Reason:         string(td.reason),
		ElapsedSeconds: int64(td.elapsed / time.Second),
		StatusSynced:   true,
	}

	var text string
	switch td.reason {
	case ReasonEnded, ReasonAutoEnd:
		text = "The lesson has ended."
		if td.reason == ReasonAutoEnd {
			text = "Lesson time is over. The session was ended automatically."
		}
		if s.completed {
			break
		}
		event.BookingStatus = string(model.BookingStatusCompleted)
		if err := s.bookings.SetBookingStatus(ctx, s.booking.ID, model.BookingStatusCompleted); err != nil {
			event.StatusSynced = false
			s.statusFailure(Reconciliation{BookingID: s.booking.ID, Status: model.BookingStatusCompleted}, err)
		}

	case ReasonCancelled:
		text = "The lesson was cancelled."

	case ReasonNoShow:
		event.BookingStatus = string(model.BookingStatusCancelled)
		refunded, synced := s.cancelAndRefund(ctx, model.InitiatorSystem)
		event.Refunded = refunded
		event.StatusSynced = synced

		minutes := int(s.settings.NoShowGrace / time.Minute)
		if refunded {
			text = fmt.Sprintf("Teacher did not join within %d minutes. The lesson was cancelled and your wallet was refunded.", minutes)
		} else {
			text = fmt.Sprintf("Teacher did not join within %d minutes. The lesson was cancelled, but the refund could not be confirmed.", minutes)
		}

	case ReasonAbandoned:
		event.BookingStatus = string(model.BookingStatusCancelled)
		refunded, synced := s.cancelAndRefund(ctx, model.InitiatorStudent)
		event.Refunded = refunded
		event.StatusSynced = synced

		text = "You left before the teacher joined. The lesson was cancelled."
		if refunded {
			text += " Your wallet was refunded."
		}

	case ReasonShutdown:
		text = "The session was closed for maintenance. You can rejoin the lesson in a moment."

	default:
		text = "The session was closed because of an error. You can try to join again."
	}

	s.recorder.RecordTermination(string(td.reason))

	s.logger.Info("Session terminated",
		zap.String("reason", string(td.reason)),
		zap.Duration("elapsed", td.elapsed),
		zap.Bool("status_synced", event.StatusSynced),
		zap.Bool("refunded", event.Refunded),
	)

	n := Notice{
		Kind:        NoticeClosed,
		SessionID:   s.ID,
		BookingID:   s.booking.ID,
		Text:        text,
		Reason:      td.reason,
		Destination: DestinationBookings,
		At:          s.clock.Now(),
	}
	s.deliver(td.presenter, n)

	event.OccurredAt = n.At.UTC().Format(time.RFC3339)
	if err := s.events.PublishLifecycle(ctx, event); err != nil {
		s.logger.Warn("Lifecycle event not published", zap.Error(err))
	}

	if s.onClosed != nil {
		s.onClosed(s, td.reason)
	}
}

// cancelAndRefund отменяет бронирование через кошелёк. Неудача возврата не останавливает выход
func (s *Session) cancelAndRefund(ctx context.Context, initiator model.Initiator) (refunded, synced bool) {
	req := model.CancelRequest{
		BookingID:   s.booking.ID,
		Initiator:   initiator,
		ScheduledAt: s.scheduledAt,
		StudentRef:  s.booking.StudentRef,
	}

	result, err := s.wallet.CancelAndRefund(ctx, req)
	if err == nil && !result.Success {
		err = fmt.Errorf("%w: %s", ErrStatusRejected, result.Refund.Reason)
	}
	if err != nil {
		s.statusFailure(Reconciliation{BookingID: s.booking.ID, Status: model.BookingStatusCancelled, Cancel: &req}, err)
		return false, false
	}

	if !result.Refund.Success {
		s.logger.Warn("Refund was not confirmed",
			zap.String("initiator", string(initiator)),
			zap.String("reason", result.Refund.Reason),
		)
	}

	return result.Refund.Success && result.Refund.Refunded, true
}

// statusFailure ставит переход в очередь сверки. Окончательный отказ не ставится
func (s *Session) statusFailure(r Reconciliation, err error) {
	s.recorder.RecordStatusFailure(string(r.Status))
	if statusRejected(err) {
		s.logger.Error("Booking status change rejected, not retrying",
			zap.String("status", string(r.Status)),
			zap.Error(err),
		)
		return
	}
	s.logger.Error("Failed to persist booking status",
		zap.String("status", string(r.Status)),
		zap.Error(err),
	)

	r.LastError = err.Error()
	r.QueuedAt = s.clock.Now()
	if s.statusFailed != nil {
		s.statusFailed(r)
	}
}
