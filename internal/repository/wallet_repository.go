package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/lessonroom/internal/model"
	"github.com/Freeeeeet/lessonroom/internal/repository/base"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// WalletRepository балансы студентов и журнал движений по бронированиям
type WalletRepository struct {
	*base.Repository
}

func NewWalletRepository(pool *pgxpool.Pool) *WalletRepository {
	return &WalletRepository{Repository: base.NewRepository(pool)}
}

// GetWallet возвращает кошелёк пользователя или nil
func (r *WalletRepository) GetWallet(ctx context.Context, userRef string) (*model.Wallet, error) {
	query := `SELECT user_ref, balance_cents, updated_at FROM wallets WHERE user_ref = $1`

	var w model.Wallet
	err := r.Pool().QueryRow(ctx, query, userRef).Scan(&w.UserRef, &w.BalanceCents, &w.UpdatedAt)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	return &w, nil
}

// LockBalance читает баланс под блокировкой строки. Кошелька нет: 0, false
func (r *WalletRepository) LockBalance(ctx context.Context, q base.Querier, userRef string) (int64, bool, error) {
	query := `SELECT balance_cents FROM wallets WHERE user_ref = $1 FOR UPDATE`

	var balance int64
	if err := q.QueryRow(ctx, query, userRef).Scan(&balance); err != nil {
		if base.IsNotFound(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("lock wallet balance: %w", err)
	}
	return balance, true, nil
}

// AddBalance изменяет баланс на delta и возвращает новое значение
func (r *WalletRepository) AddBalance(ctx context.Context, q base.Querier, userRef string, delta int64) (int64, error) {
	query := `
		INSERT INTO wallets (user_ref, balance_cents)
		VALUES ($1, $2)
		ON CONFLICT (user_ref)
		DO UPDATE SET balance_cents = wallets.balance_cents + EXCLUDED.balance_cents, updated_at = NOW()
		RETURNING balance_cents
	`

	var balance int64
	if err := q.QueryRow(ctx, query, userRef, delta).Scan(&balance); err != nil {
		return 0, fmt.Errorf("add wallet balance: %w", err)
	}
	return balance, nil
}

// GetEntry возвращает запись журнала по бронированию и виду или nil
func (r *WalletRepository) GetEntry(ctx context.Context, q base.Querier, bookingID int64, kind model.LedgerKind) (*model.LedgerEntry, error) {
	query := `
		SELECT id, booking_id, user_ref, kind, amount_cents, created_at
		FROM wallet_ledger
		WHERE booking_id = $1 AND kind = $2
	`

	var e model.LedgerEntry
	err := q.QueryRow(ctx, query, bookingID, kind).Scan(
		&e.ID,
		&e.BookingID,
		&e.UserRef,
		&e.Kind,
		&e.AmountCents,
		&e.CreatedAt,
	)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get ledger entry: %w", err)
	}
	return &e, nil
}

// InsertEntry добавляет запись журнала. Дубль по (booking_id, kind) возвращается как есть,
// проверяется через base.IsUniqueViolation
func (r *WalletRepository) InsertEntry(ctx context.Context, q base.Querier, e *model.LedgerEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}

	query := `
		INSERT INTO wallet_ledger (id, booking_id, user_ref, kind, amount_cents)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`

	err := q.QueryRow(ctx, query, e.ID, e.BookingID, e.UserRef, e.Kind, e.AmountCents).Scan(&e.CreatedAt)
	if err != nil {
		if base.IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}
