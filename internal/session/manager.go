package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ManagerDeps зависимости менеджера сессий
type ManagerDeps struct {
	Bookings BookingService
	Wallet   WalletService
	Source   PresenceSource
	Clock    Clock
	Recorder Recorder
	Events   EventPublisher
	Logger   *zap.Logger
	Settings Settings
}

// Manager владеет живыми сессиями: одна на пару бронирование+роль
type Manager struct {
	gate    *BookingGate
	payment *PaymentGate
	deps    sessionDeps

	mu       sync.RWMutex
	sessions map[string]*Session // bookingID:role -> session
	byID     map[string]*Session

	reconcileMu sync.Mutex
	pending     map[int64]Reconciliation
}

// NewManager создаёт менеджер сессий
func NewManager(d ManagerDeps) *Manager {
	if d.Clock == nil {
		d.Clock = RealClock()
	}
	if d.Recorder == nil {
		d.Recorder = NopRecorder{}
	}
	if d.Events == nil {
		d.Events = nopPublisher{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	settings := d.Settings.withDefaults()

	m := &Manager{
		gate:     NewBookingGate(d.Bookings, d.Logger),
		payment:  NewPaymentGate(d.Wallet, settings.FeeCents, d.Recorder, d.Logger),
		sessions: make(map[string]*Session),
		byID:     make(map[string]*Session),
		pending:  make(map[int64]Reconciliation),
	}
	m.deps = sessionDeps{
		settings:     settings,
		clock:        d.Clock,
		bookings:     d.Bookings,
		wallet:       d.Wallet,
		source:       d.Source,
		recorder:     d.Recorder,
		events:       d.Events,
		logger:       d.Logger,
		onClosed:     m.closed,
		statusFailed: m.enqueue,
	}
	return m
}

// Settings действующие параметры сессий
func (m *Manager) Settings() Settings {
	return m.deps.settings
}

// Enter проводит вызывающего через BookingGate и PaymentGate и открывает сессию.
// Повторный вход возвращает уже открытую сессию без нового списания.
func (m *Manager) Enter(ctx context.Context, rawBookingID string, caller Identity, presenter Presenter) (*Session, error) {
	booking, role, err := m.gate.Authorize(ctx, rawBookingID, caller)
	if err != nil {
		var accessErr *AccessError
		if errors.As(err, &accessErr) {
			m.deps.recorder.RecordRejection(rejectionLabel(accessErr.Err))
		}
		return nil, err
	}

	key := sessionKey(booking.ID, role)
	if s := m.live(key); s != nil {
		s.Rebind(presenter)
		s.attach()
		m.deps.logger.Info("Session re-entered",
			zap.String("session_id", s.ID),
			zap.Int64("booking_id", booking.ID),
			zap.String("role", string(role)),
		)
		return s, nil
	}

	outcome, err := m.payment.Charge(ctx, booking, role)
	if err != nil {
		var fundsErr *InsufficientFundsError
		if errors.As(err, &fundsErr) {
			m.deps.recorder.RecordRejection("insufficient_funds")
		}
		return nil, err
	}

	s := newSession(booking, role, caller, presenter, m.deps)

	m.mu.Lock()
	if existing, ok := m.sessions[key]; ok && !existing.Terminated() {
		// Параллельный вход успел первым
		m.mu.Unlock()
		existing.Rebind(presenter)
		existing.attach()
		return existing, nil
	}
	m.sessions[key] = s
	m.byID[s.ID] = s
	active := len(m.sessions)
	m.mu.Unlock()

	m.deps.recorder.SetActiveSessions(active)
	m.deps.recorder.RecordEntry(string(role))

	m.deps.logger.Info("Session entered",
		zap.String("session_id", s.ID),
		zap.Int64("booking_id", booking.ID),
		zap.String("role", string(role)),
		zap.Bool("charged", outcome.Charged),
	)

	s.attach()
	return s, nil
}

func (m *Manager) live(key string) *Session {
	m.mu.RLock()
	s, ok := m.sessions[key]
	m.mu.RUnlock()
	if !ok || s.Terminated() {
		return nil
	}
	return s
}

// Get возвращает живую сессию по идентификатору
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.byID[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Active число живых сессий
func (m *Manager) Active() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) closed(s *Session, reason Reason) {
	m.mu.Lock()
	if current, ok := m.sessions[s.bookingKey()]; ok && current == s {
		delete(m.sessions, s.bookingKey())
	}
	delete(m.byID, s.ID)
	active := len(m.sessions)
	m.mu.Unlock()

	m.deps.recorder.SetActiveSessions(active)

	switch reason {
	case ReasonEnded, ReasonAutoEnd, ReasonNoShow, ReasonAbandoned:
		m.payment.Forget(s.BookingID())
	}

	// Отменённый урок закрывается и у второго участника
	if reason == ReasonNoShow || reason == ReasonAbandoned {
		if sibling := m.live(sessionKey(s.BookingID(), s.Role().Counterpart())); sibling != nil {
			ctx, cancel := context.WithTimeout(context.Background(), m.deps.settings.CallTimeout)
			defer cancel()
			sibling.Terminate(ctx, ReasonCancelled)
		}
	}
}

func (m *Manager) enqueue(r Reconciliation) {
	m.reconcileMu.Lock()
	defer m.reconcileMu.Unlock()

	if prev, ok := m.pending[r.BookingID]; ok {
		r.Attempts = prev.Attempts
	}
	m.pending[r.BookingID] = r
}

// PendingReconciliations переходы, ожидающие повторной записи
func (m *Manager) PendingReconciliations() []Reconciliation {
	m.reconcileMu.Lock()
	defer m.reconcileMu.Unlock()

	out := make([]Reconciliation, 0, len(m.pending))
	for _, r := range m.pending {
		out = append(out, r)
	}
	return out
}

// ReconcileStatuses повторяет незаписанные терминальные переходы.
// Возвращает число успешно записанных.
func (m *Manager) ReconcileStatuses(ctx context.Context) int {
	done := 0
	for _, r := range m.PendingReconciliations() {
		if err := ctx.Err(); err != nil {
			return done
		}

		var err error
		if r.Cancel != nil {
			result, cancelErr := m.deps.wallet.CancelAndRefund(ctx, *r.Cancel)
			err = cancelErr
			if err == nil && !result.Success {
				err = fmt.Errorf("%w: %s", ErrStatusRejected, result.Refund.Reason)
			}
		} else {
			err = m.deps.bookings.SetBookingStatus(ctx, r.BookingID, r.Status)
		}

		m.reconcileMu.Lock()
		if statusRejected(err) {
			delete(m.pending, r.BookingID)
			m.reconcileMu.Unlock()

			m.deps.logger.Error("Booking status reconciliation dropped",
				zap.Int64("booking_id", r.BookingID),
				zap.String("status", string(r.Status)),
				zap.Int("attempts", r.Attempts+1),
				zap.Error(err),
			)
			continue
		}
		if err != nil {
			r.Attempts++
			r.LastError = err.Error()
			m.pending[r.BookingID] = r
			m.reconcileMu.Unlock()

			m.deps.logger.Warn("Booking status reconciliation failed",
				zap.Int64("booking_id", r.BookingID),
				zap.String("status", string(r.Status)),
				zap.Int("attempts", r.Attempts),
				zap.Error(err),
			)
			continue
		}
		delete(m.pending, r.BookingID)
		m.reconcileMu.Unlock()

		done++
		m.deps.logger.Info("Booking status reconciled",
			zap.Int64("booking_id", r.BookingID),
			zap.String("status", string(r.Status)),
		)
	}
	return done
}

// Shutdown закрывает все живые сессии без перевода статусов
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	for _, s := range sessions {
		s.Terminate(ctx, ReasonShutdown)
	}

	m.deps.logger.Info("Sessions shut down", zap.Int("count", len(sessions)))
}

func rejectionLabel(err error) string {
	switch {
	case errors.Is(err, ErrMissingBookingID):
		return "missing_booking_id"
	case errors.Is(err, ErrBookingNotFound):
		return "booking_not_found"
	case errors.Is(err, ErrBookingNotJoinable):
		return "booking_not_joinable"
	case errors.Is(err, ErrRoomNotAssigned):
		return "room_not_assigned"
	case errors.Is(err, ErrAccessDenied):
		return "access_denied"
	default:
		return "other"
	}
}
