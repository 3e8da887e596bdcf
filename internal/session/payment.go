package session

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/Freeeeeet/lessonroom/internal/model"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Charger списывает плату за урок с кошелька студента
type Charger interface {
	ChargeForSession(ctx context.Context, bookingID int64) (model.ChargeResult, error)
}

type PaymentStatus string

const (
	PaymentPaid              PaymentStatus = "paid"
	PaymentInsufficientFunds PaymentStatus = "insufficient_funds"
	PaymentFailed            PaymentStatus = "failed"
)

// PaymentOutcome результат PaymentGate.Charge
type PaymentOutcome struct {
	Status       PaymentStatus
	Charged      bool // деньги списаны именно этим вызовом
	BalanceCents int64
}

// PaymentGate берёт с платящего участника плату ровно один раз за сессию
type PaymentGate struct {
	wallet   Charger
	feeCents int64
	recorder Recorder
	logger   *zap.Logger

	inflight singleflight.Group

	mu      sync.Mutex
	settled map[int64]struct{} // bookingID -> уже оплачено
}

// NewPaymentGate создаёт новый PaymentGate
func NewPaymentGate(wallet Charger, feeCents int64, recorder Recorder, logger *zap.Logger) *PaymentGate {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &PaymentGate{
		wallet:   wallet,
		feeCents: feeCents,
		recorder: recorder,
		logger:   logger,
		settled:  make(map[int64]struct{}),
	}
}

// Charge списывает плату за бронирование. Для учителя списания нет.
// Повторный вызов для оплаченного бронирования возвращает Paid без побочных эффектов.
func (g *PaymentGate) Charge(ctx context.Context, booking *model.Booking, role Role) (PaymentOutcome, error) {
	if role != RoleStudent {
		return PaymentOutcome{Status: PaymentPaid}, nil
	}

	if g.isSettled(booking.ID) {
		return PaymentOutcome{Status: PaymentPaid}, nil
	}

	// Параллельные входы в одно бронирование разделяют один вызов кошелька
	v, err, _ := g.inflight.Do(strconv.FormatInt(booking.ID, 10), func() (interface{}, error) {
		return g.charge(ctx, booking)
	})
	outcome, _ := v.(PaymentOutcome)
	return outcome, err
}

func (g *PaymentGate) charge(ctx context.Context, booking *model.Booking) (PaymentOutcome, error) {
	if g.isSettled(booking.ID) {
		return PaymentOutcome{Status: PaymentPaid}, nil
	}

	result, err := g.wallet.ChargeForSession(ctx, booking.ID)
	if err != nil {
		g.recorder.RecordCharge(string(model.ChargeStatusFailed))
		g.logger.Error("Session charge failed",
			zap.Int64("booking_id", booking.ID),
			zap.Error(err),
		)
		return PaymentOutcome{Status: PaymentFailed}, fmt.Errorf("%w: %v", ErrPaymentFailed, err)
	}

	g.recorder.RecordCharge(string(result.Status))

	switch result.Status {
	case model.ChargeStatusPaid, model.ChargeStatusAlreadyPaid:
		g.markSettled(booking.ID)

		g.logger.Info("Session charge settled",
			zap.Int64("booking_id", booking.ID),
			zap.String("status", string(result.Status)),
			zap.Int64("balance_cents", result.BalanceCents),
		)

		return PaymentOutcome{
			Status:       PaymentPaid,
			Charged:      result.Status == model.ChargeStatusPaid,
			BalanceCents: result.BalanceCents,
		}, nil

	case model.ChargeStatusInsufficientFunds:
		g.logger.Info("Insufficient funds for session",
			zap.Int64("booking_id", booking.ID),
			zap.Int64("balance_cents", result.BalanceCents),
			zap.Int64("fee_cents", g.feeCents),
		)
		return PaymentOutcome{Status: PaymentInsufficientFunds, BalanceCents: result.BalanceCents},
			&InsufficientFundsError{BalanceCents: result.BalanceCents, FeeCents: g.feeCents}

	default:
		reason := result.Reason
		if reason == "" {
			reason = "wallet declined the charge"
		}
		return PaymentOutcome{Status: PaymentFailed, BalanceCents: result.BalanceCents},
			fmt.Errorf("%w: %s", ErrPaymentFailed, reason)
	}
}

func (g *PaymentGate) isSettled(bookingID int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.settled[bookingID]
	return ok
}

func (g *PaymentGate) markSettled(bookingID int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.settled[bookingID] = struct{}{}
}

// Forget убирает бронирование из кэша после терминального статуса
func (g *PaymentGate) Forget(bookingID int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.settled, bookingID)
}
