package service

import (
	"context"
	"sync"

	"github.com/Freeeeeet/lessonroom/internal/model"
	"github.com/Freeeeeet/lessonroom/internal/repository/base"
	"github.com/jackc/pgx/v5"
)

type ledgerKey struct {
	bookingID int64
	kind      model.LedgerKind
}

// fakeWalletStore хранит балансы и журнал в памяти, ошибка в транзакции откатывает изменения
type fakeWalletStore struct {
	mu        sync.Mutex
	balances  map[string]int64
	entries   map[ledgerKey]model.LedgerEntry
	entryErr  error
	insertErr error
	commits   int
}

func newFakeWalletStore() *fakeWalletStore {
	return &fakeWalletStore{
		balances: make(map[string]int64),
		entries:  make(map[ledgerKey]model.LedgerEntry),
	}
}

func (f *fakeWalletStore) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	f.mu.Lock()
	balances := make(map[string]int64, len(f.balances))
	for k, v := range f.balances {
		balances[k] = v
	}
	entries := make(map[ledgerKey]model.LedgerEntry, len(f.entries))
	for k, v := range f.entries {
		entries[k] = v
	}
	f.mu.Unlock()

	if err := fn(nil); err != nil {
		f.mu.Lock()
		f.balances = balances
		f.entries = entries
		f.mu.Unlock()
		return err
	}

	f.mu.Lock()
	f.commits++
	f.mu.Unlock()
	return nil
}

func (f *fakeWalletStore) GetWallet(ctx context.Context, userRef string) (*model.Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	balance, ok := f.balances[userRef]
	if !ok {
		return nil, nil
	}
	return &model.Wallet{UserRef: userRef, BalanceCents: balance}, nil
}

func (f *fakeWalletStore) LockBalance(ctx context.Context, q base.Querier, userRef string) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	balance, ok := f.balances[userRef]
	return balance, ok, nil
}

func (f *fakeWalletStore) AddBalance(ctx context.Context, q base.Querier, userRef string, delta int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[userRef] += delta
	return f.balances[userRef], nil
}

func (f *fakeWalletStore) GetEntry(ctx context.Context, q base.Querier, bookingID int64, kind model.LedgerKind) (*model.LedgerEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.entryErr != nil {
		return nil, f.entryErr
	}
	e, ok := f.entries[ledgerKey{bookingID, kind}]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (f *fakeWalletStore) InsertEntry(ctx context.Context, q base.Querier, e *model.LedgerEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.entries[ledgerKey{e.BookingID, e.Kind}] = *e
	return nil
}

func (f *fakeWalletStore) balance(userRef string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[userRef]
}

func (f *fakeWalletStore) entryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

type fakeBookingStore struct {
	mu        sync.Mutex
	bookings  map[int64]*model.Booking
	statusErr error
	statuses  []model.BookingStatus
}

func newFakeBookingStore(bookings ...*model.Booking) *fakeBookingStore {
	f := &fakeBookingStore{bookings: make(map[int64]*model.Booking)}
	for _, b := range bookings {
		f.bookings[b.ID] = b
	}
	return f
}

func (f *fakeBookingStore) GetByIDForUpdate(ctx context.Context, q base.Querier, id int64) (*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBookingStore) SetStatus(ctx context.Context, id int64, status model.BookingStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
	if f.statusErr != nil {
		return f.statusErr
	}
	if b, ok := f.bookings[id]; ok {
		b.Status = status
	}
	return nil
}

func (f *fakeBookingStore) status(id int64) model.BookingStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bookings[id].Status
}

type fakeLock struct {
	busy     bool
	err      error
	acquired int
	released int
}

func (l *fakeLock) Acquire(ctx context.Context, bookingID int64) (func(), bool, error) {
	if l.err != nil {
		return nil, false, l.err
	}
	if l.busy {
		return nil, false, nil
	}
	l.acquired++
	return func() { l.released++ }, true, nil
}
