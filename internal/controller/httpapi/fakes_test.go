package httpapi

import (
	"context"
	"sync"
	"time"

	"github.com/Freeeeeet/lessonroom/internal/model"
	"github.com/Freeeeeet/lessonroom/internal/session"
)

// manualClock двигается только вручную, отложенные действия не выполняются
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

type noopHandle struct{}

func (noopHandle) Stop() bool { return true }

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) AfterFunc(time.Duration, func()) session.CancelHandle {
	return noopHandle{}
}

type stubBookings struct {
	mu       sync.Mutex
	bookings map[int64]*model.Booking
	statuses []model.BookingStatus
}

func (s *stubBookings) GetBooking(_ context.Context, id int64) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (s *stubBookings) SetBookingStatus(_ context.Context, id int64, status model.BookingStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.bookings[id]; ok {
		b.Status = status
	}
	s.statuses = append(s.statuses, status)
	return nil
}

type stubWallet struct {
	mu      sync.Mutex
	balance int64
	cancels []model.CancelRequest
}

func (w *stubWallet) ChargeForSession(context.Context, int64) (model.ChargeResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.balance < 50 {
		return model.ChargeResult{Status: model.ChargeStatusInsufficientFunds, BalanceCents: w.balance}, nil
	}
	w.balance -= 50
	return model.ChargeResult{Status: model.ChargeStatusPaid, BalanceCents: w.balance}, nil
}

func (w *stubWallet) CancelAndRefund(_ context.Context, req model.CancelRequest) (model.CancelResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cancels = append(w.cancels, req)
	return model.CancelResult{Success: true, Refund: model.RefundResult{Success: true, Refunded: true}}, nil
}

func (w *stubWallet) cancelCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.cancels)
}
