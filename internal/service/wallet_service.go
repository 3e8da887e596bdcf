package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/lessonroom/internal/model"
	"github.com/Freeeeeet/lessonroom/internal/repository"
	"github.com/Freeeeeet/lessonroom/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

var errAlreadyRecorded = errors.New("ledger entry already recorded")

// WalletStore балансы и журнал движений
type WalletStore interface {
	WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error
	GetWallet(ctx context.Context, userRef string) (*model.Wallet, error)
	LockBalance(ctx context.Context, q base.Querier, userRef string) (int64, bool, error)
	AddBalance(ctx context.Context, q base.Querier, userRef string, delta int64) (int64, error)
	GetEntry(ctx context.Context, q base.Querier, bookingID int64, kind model.LedgerKind) (*model.LedgerEntry, error)
	InsertEntry(ctx context.Context, q base.Querier, e *model.LedgerEntry) error
}

// BookingStore бронирования со стороны кошелька
type BookingStore interface {
	GetByIDForUpdate(ctx context.Context, q base.Querier, id int64) (*model.Booking, error)
	SetStatus(ctx context.Context, id int64, status model.BookingStatus) error
}

// WalletService списания за уроки и возвраты. Каждое движение записано в журнал
// не больше одного раза на бронирование.
type WalletService struct {
	walletRepo  WalletStore
	bookingRepo BookingStore
	lock        ChargeLock
	feeCents    int64
	now         func() time.Time
	logger      *zap.Logger
}

func NewWalletService(
	walletRepo WalletStore,
	bookingRepo BookingStore,
	lock ChargeLock,
	feeCents int64,
	logger *zap.Logger,
) *WalletService {
	if lock == nil {
		lock = noLock{}
	}
	return &WalletService{
		walletRepo:  walletRepo,
		bookingRepo: bookingRepo,
		lock:        lock,
		feeCents:    feeCents,
		now:         time.Now,
		logger:      logger,
	}
}

// ChargeForSession списывает стоимость урока с кошелька студента
func (s *WalletService) ChargeForSession(ctx context.Context, bookingID int64) (model.ChargeResult, error) {
	release, ok, err := s.lock.Acquire(ctx, bookingID)
	if err != nil {
		// Без Redis полагаемся на уникальный индекс журнала
		s.logger.Warn("Charge lock unavailable", zap.Int64("booking_id", bookingID), zap.Error(err))
		release, ok = func() {}, true
	}
	if !ok {
		return model.ChargeResult{Status: model.ChargeStatusFailed, Reason: "charge in progress"}, nil
	}
	defer release()

	var result model.ChargeResult
	var studentRef string

	err = s.walletRepo.WithTx(ctx, func(tx pgx.Tx) error {
		booking, err := s.bookingRepo.GetByIDForUpdate(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if booking == nil {
			return repository.ErrBookingNotFound
		}
		studentRef = booking.StudentRef

		existing, err := s.walletRepo.GetEntry(ctx, tx, bookingID, model.LedgerKindCharge)
		if err != nil {
			return err
		}

		balance, _, err := s.walletRepo.LockBalance(ctx, tx, booking.StudentRef)
		if err != nil {
			return err
		}

		if existing != nil {
			result = model.ChargeResult{Status: model.ChargeStatusAlreadyPaid, BalanceCents: balance}
			return nil
		}

		if balance < s.feeCents {
			result = model.ChargeResult{Status: model.ChargeStatusInsufficientFunds, BalanceCents: balance}
			return nil
		}

		newBalance, err := s.walletRepo.AddBalance(ctx, tx, booking.StudentRef, -s.feeCents)
		if err != nil {
			return err
		}

		err = s.walletRepo.InsertEntry(ctx, tx, &model.LedgerEntry{
			BookingID:   bookingID,
			UserRef:     booking.StudentRef,
			Kind:        model.LedgerKindCharge,
			AmountCents: s.feeCents,
		})
		if err != nil {
			if base.IsUniqueViolation(err) {
				return errAlreadyRecorded
			}
			return err
		}

		result = model.ChargeResult{Status: model.ChargeStatusPaid, BalanceCents: newBalance}
		return nil
	})

	if errors.Is(err, errAlreadyRecorded) {
		// Параллельное списание успело первым, транзакция откатилась
		wallet, werr := s.walletRepo.GetWallet(ctx, studentRef)
		if werr != nil {
			return model.ChargeResult{}, fmt.Errorf("read wallet after duplicate charge: %w", werr)
		}
		result = model.ChargeResult{Status: model.ChargeStatusAlreadyPaid}
		if wallet != nil {
			result.BalanceCents = wallet.BalanceCents
		}
		err = nil
	}
	if err != nil {
		return model.ChargeResult{}, fmt.Errorf("charge for session: %w", err)
	}

	s.logger.Info("Session charge processed",
		zap.Int64("booking_id", bookingID),
		zap.String("status", string(result.Status)),
		zap.Int64("balance_cents", result.BalanceCents),
	)

	return result, nil
}

// CancelAndRefund отменяет бронирование и возвращает плату студенту.
// Отмена и возврат идут в разных транзакциях: сбой возврата не отменяет отмену.
func (s *WalletService) CancelAndRefund(ctx context.Context, req model.CancelRequest) (model.CancelResult, error) {
	err := s.bookingRepo.SetStatus(ctx, req.BookingID, model.BookingStatusCancelled)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidTransition) || errors.Is(err, repository.ErrBookingNotFound) {
			s.logger.Warn("Booking cancellation rejected",
				zap.Int64("booking_id", req.BookingID),
				zap.String("initiator", string(req.Initiator)),
				zap.Error(err),
			)
			return model.CancelResult{Refund: model.RefundResult{Reason: err.Error()}}, nil
		}
		return model.CancelResult{}, fmt.Errorf("cancel booking: %w", err)
	}

	s.logger.Info("Booking canceled",
		zap.Int64("booking_id", req.BookingID),
		zap.String("initiator", string(req.Initiator)),
	)

	if !RefundAllowed(req.Initiator, req.ScheduledAt, s.now()) {
		return model.CancelResult{
			Success: true,
			Refund:  model.RefundResult{Success: true, Reason: "lesson had already started"},
		}, nil
	}

	refund, err := s.refund(ctx, req.BookingID)
	if err != nil {
		s.logger.Error("Refund failed",
			zap.Int64("booking_id", req.BookingID),
			zap.Error(err),
		)
		return model.CancelResult{Success: true, Refund: model.RefundResult{Reason: err.Error()}}, nil
	}

	return model.CancelResult{Success: true, Refund: refund}, nil
}

func (s *WalletService) refund(ctx context.Context, bookingID int64) (model.RefundResult, error) {
	var result model.RefundResult

	err := s.walletRepo.WithTx(ctx, func(tx pgx.Tx) error {
		charge, err := s.walletRepo.GetEntry(ctx, tx, bookingID, model.LedgerKindCharge)
		if err != nil {
			return err
		}
		if charge == nil {
			result = model.RefundResult{Success: true, Reason: "nothing was charged"}
			return nil
		}

		prior, err := s.walletRepo.GetEntry(ctx, tx, bookingID, model.LedgerKindRefund)
		if err != nil {
			return err
		}
		if prior != nil {
			balance, _, err := s.walletRepo.LockBalance(ctx, tx, charge.UserRef)
			if err != nil {
				return err
			}
			result = model.RefundResult{Success: true, Refunded: true, AmountCents: prior.AmountCents, BalanceCents: &balance}
			return nil
		}

		balance, err := s.walletRepo.AddBalance(ctx, tx, charge.UserRef, charge.AmountCents)
		if err != nil {
			return err
		}

		err = s.walletRepo.InsertEntry(ctx, tx, &model.LedgerEntry{
			BookingID:   bookingID,
			UserRef:     charge.UserRef,
			Kind:        model.LedgerKindRefund,
			AmountCents: charge.AmountCents,
		})
		if err != nil {
			if base.IsUniqueViolation(err) {
				return errAlreadyRecorded
			}
			return err
		}

		result = model.RefundResult{Success: true, Refunded: true, AmountCents: charge.AmountCents, BalanceCents: &balance}
		return nil
	})

	if errors.Is(err, errAlreadyRecorded) {
		return model.RefundResult{Success: true, Refunded: true}, nil
	}
	if err != nil {
		return model.RefundResult{}, fmt.Errorf("refund booking: %w", err)
	}

	if result.Refunded {
		s.logger.Info("Lesson fee refunded",
			zap.Int64("booking_id", bookingID),
			zap.Int64("amount_cents", result.AmountCents),
		)
	}
	return result, nil
}

// RefundAllowed студент получает деньги назад только до начала урока,
// отмена учителем или системой возвращает всегда
func RefundAllowed(initiator model.Initiator, scheduledAt, now time.Time) bool {
	if initiator != model.InitiatorStudent {
		return true
	}
	if scheduledAt.IsZero() {
		return true
	}
	return now.Before(scheduledAt)
}
