package app

import (
	"context"
	"sync"
	"time"

	"github.com/Freeeeeet/lessonroom/internal/session"
	"go.uber.org/zap"
)

// Reconciler повторяет незаписанные статусы бронирований
type Reconciler interface {
	ReconcileStatuses(ctx context.Context) int
	PendingReconciliations() []session.Reconciliation
}

// Scheduler управляет фоновыми задачами
type Scheduler struct {
	reconciler Reconciler
	interval   time.Duration
	logger     *zap.Logger
	stopChan   chan struct{}
	stopOnce   sync.Once
	started    bool
	done       chan struct{}
}

// NewScheduler создаёт новый планировщик
func NewScheduler(reconciler Reconciler, interval time.Duration, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		reconciler: reconciler,
		interval:   interval,
		logger:     logger,
		stopChan:   make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start запускает фоновые задачи
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting background scheduler", zap.Duration("reconcile_interval", s.interval))

	s.started = true
	go s.runReconcileTask(ctx)
}

// Stop останавливает фоновые задачи и ждёт завершения текущего прохода
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping background scheduler")
		close(s.stopChan)
	})
	if s.started {
		<-s.done
	}
}

func (s *Scheduler) runReconcileTask(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.reconcile(ctx)
		case <-s.stopChan:
			s.logger.Info("Reconcile task stopped")
			return
		case <-ctx.Done():
			s.logger.Info("Reconcile task cancelled")
			return
		}
	}
}

// reconcile один проход по очереди несохранённых статусов
func (s *Scheduler) reconcile(ctx context.Context) {
	pending := len(s.reconciler.PendingReconciliations())
	if pending == 0 {
		return
	}

	done := s.reconciler.ReconcileStatuses(ctx)
	s.logger.Info("Booking status reconciliation pass",
		zap.Int("pending", pending),
		zap.Int("reconciled", done),
	)
}
