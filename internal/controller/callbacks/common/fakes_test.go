package common

import (
	"context"
	"sync"
	"time"

	"github.com/Freeeeeet/lessonroom/internal/model"
	"github.com/Freeeeeet/lessonroom/internal/session"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

type sentMessage struct {
	chatID any
	text   string
	kb     *models.InlineKeyboardMarkup
}

type fakeSender struct {
	mu       sync.Mutex
	messages []sentMessage
	answers  []string
}

func (f *fakeSender) SendMessage(_ context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	msg := sentMessage{chatID: params.ChatID, text: params.Text}
	if kb, ok := params.ReplyMarkup.(*models.InlineKeyboardMarkup); ok {
		msg.kb = kb
	}
	f.messages = append(f.messages, msg)
	return &models.Message{}, nil
}

func (f *fakeSender) AnswerCallbackQuery(_ context.Context, params *bot.AnswerCallbackQueryParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, params.Text)
	return true, nil
}

func (f *fakeSender) last() sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		return sentMessage{}
	}
	return f.messages[len(f.messages)-1]
}

func (f *fakeSender) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.messages))
	for _, m := range f.messages {
		out = append(out, m.text)
	}
	return out
}

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

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type stubBookings struct {
	mu       sync.Mutex
	bookings map[int64]*model.Booking
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

type stubUsers struct {
	users map[int64]*model.User
}

func (s *stubUsers) GetByTelegramID(_ context.Context, telegramID int64) (*model.User, error) {
	return s.users[telegramID], nil
}
