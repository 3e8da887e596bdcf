package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Freeeeeet/lessonroom/internal/model"
)

// --- фейковые часы ---

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	seq     int
	fn      func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*fakeTimer
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) CancelHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &fakeTimer{clock: c, at: c.now.Add(d), seq: c.seq, fn: f}
	c.timers = append(c.timers, t)
	return t
}

// Set переставляет время без запуска таймеров, только до первого планирования
func (c *fakeClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Advance сдвигает время и по порядку выполняет все наступившие таймеры
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()
	c.AdvanceTo(target)
}

func (c *fakeClock) AdvanceTo(target time.Time) {
	for {
		c.mu.Lock()
		next := c.nextLocked(target)
		if next == nil {
			if target.After(c.now) {
				c.now = target
			}
			c.mu.Unlock()
			return
		}
		if next.at.After(c.now) {
			c.now = next.at
		}
		next.fired = true
		c.mu.Unlock()

		next.fn()
	}
}

func (c *fakeClock) nextLocked(target time.Time) *fakeTimer {
	live := c.timers[:0]
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			live = append(live, t)
		}
	}
	c.timers = live

	sort.SliceStable(c.timers, func(i, j int) bool {
		if c.timers[i].at.Equal(c.timers[j].at) {
			return c.timers[i].seq < c.timers[j].seq
		}
		return c.timers[i].at.Before(c.timers[j].at)
	})
	if len(c.timers) == 0 || c.timers[0].at.After(target) {
		return nil
	}
	return c.timers[0]
}

// Pending число таймеров, которые ещё могут сработать
func (c *fakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// --- фейковые сервисы ---

type fakeBookings struct {
	mu          sync.Mutex
	bookings    map[int64]*model.Booking
	getErr      error
	statusErr   error
	statusCalls []model.BookingStatus
}

func newFakeBookings(bookings ...*model.Booking) *fakeBookings {
	f := &fakeBookings{bookings: make(map[int64]*model.Booking)}
	for _, b := range bookings {
		f.bookings[b.ID] = b
	}
	return f
}

func (f *fakeBookings) GetBooking(ctx context.Context, id int64) (*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	b, ok := f.bookings[id]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBookings) SetBookingStatus(ctx context.Context, id int64, status model.BookingStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls = append(f.statusCalls, status)
	if f.statusErr != nil {
		return f.statusErr
	}
	if b, ok := f.bookings[id]; ok {
		b.Status = status
	}
	return nil
}

func (f *fakeBookings) setStatusErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusErr = err
}

func (f *fakeBookings) calls() []model.BookingStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.BookingStatus(nil), f.statusCalls...)
}

type fakeWallet struct {
	mu          sync.Mutex
	balance     int64
	fee         int64
	charged     map[int64]bool
	chargeCalls int
	chargeErr   error
	cancels     []model.CancelRequest
	cancelErr   error
	rejectsAll  bool
	refundFails bool
}

func newFakeWallet(balance, fee int64) *fakeWallet {
	return &fakeWallet{balance: balance, fee: fee, charged: make(map[int64]bool)}
}

func (w *fakeWallet) ChargeForSession(ctx context.Context, bookingID int64) (model.ChargeResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.chargeCalls++
	if w.chargeErr != nil {
		return model.ChargeResult{}, w.chargeErr
	}
	if w.charged[bookingID] {
		return model.ChargeResult{Status: model.ChargeStatusAlreadyPaid, BalanceCents: w.balance}, nil
	}
	if w.balance < w.fee {
		return model.ChargeResult{Status: model.ChargeStatusInsufficientFunds, BalanceCents: w.balance}, nil
	}
	w.balance -= w.fee
	w.charged[bookingID] = true
	return model.ChargeResult{Status: model.ChargeStatusPaid, BalanceCents: w.balance}, nil
}

func (w *fakeWallet) CancelAndRefund(ctx context.Context, req model.CancelRequest) (model.CancelResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cancels = append(w.cancels, req)
	if w.cancelErr != nil {
		return model.CancelResult{}, w.cancelErr
	}
	if w.rejectsAll {
		return model.CancelResult{Refund: model.RefundResult{Reason: "booking status transition is not allowed"}}, nil
	}
	if w.refundFails {
		return model.CancelResult{Success: true, Refund: model.RefundResult{Reason: "refund service unavailable"}}, nil
	}
	refund := model.RefundResult{Success: true}
	if w.charged[req.BookingID] {
		w.balance += w.fee
		w.charged[req.BookingID] = false
		refund.Refunded = true
		refund.AmountCents = w.fee
	}
	balance := w.balance
	refund.BalanceCents = &balance
	return model.CancelResult{Success: true, Refund: refund}, nil
}

func (w *fakeWallet) state() (balance int64, chargeCalls int, cancels []model.CancelRequest) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balance, w.chargeCalls, append([]model.CancelRequest(nil), w.cancels...)
}

// --- получатель уведомлений ---

type recordingPresenter struct {
	mu      sync.Mutex
	notices []Notice
}

func (p *recordingPresenter) Present(ctx context.Context, n Notice) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notices = append(p.notices, n)
}

func (p *recordingPresenter) byKind(kind NoticeKind) []Notice {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Notice
	for _, n := range p.notices {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

type countingRecorder struct {
	NopRecorder
	mu           sync.Mutex
	noShows      int
	terminations map[string]int
	rejections   map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{terminations: map[string]int{}, rejections: map[string]int{}}
}

func (r *countingRecorder) RecordNoShow() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.noShows++
}

func (r *countingRecorder) RecordTermination(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.terminations[reason]++
}

func (r *countingRecorder) RecordRejection(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejections[reason]++
}
