package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Freeeeeet/lessonroom/internal/config"
	"github.com/Freeeeeet/lessonroom/internal/controller"
	"github.com/Freeeeeet/lessonroom/internal/controller/httpapi"
	"github.com/Freeeeeet/lessonroom/internal/events"
	"github.com/Freeeeeet/lessonroom/internal/metrics"
	"github.com/Freeeeeet/lessonroom/internal/provider"
	"github.com/Freeeeeet/lessonroom/internal/repository"
	"github.com/Freeeeeet/lessonroom/internal/service"
	"github.com/Freeeeeet/lessonroom/internal/session"
	"github.com/go-telegram/bot"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	chargeLockTTL   = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

// Run собирает все зависимости и блокируется до отмены ctx.
// При остановке живые сессии закрываются без перевода статусов.
func Run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	pool, err := pgxpool.New(ctx, cfg.GetDBDSN())
	if err != nil {
		return fmt.Errorf("create pool: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	logger.Info("✅ Connected to database")

	migrator, err := NewMigrator(pool, cfg.MigrationsDir, logger)
	if err != nil {
		return err
	}
	defer func() { _ = migrator.Close() }()

	if err := migrator.Run(ctx); err != nil {
		return err
	}

	// Репозитории
	userRepo := repository.NewUserRepository(pool)
	bookingRepo := repository.NewBookingRepository(pool)
	walletRepo := repository.NewWalletRepository(pool)

	// Сервисы
	userService := service.NewUserService(userRepo, logger)
	bookingService := service.NewBookingService(bookingRepo, logger)

	redisClient := config.NewRedisClient(cfg)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
		logger.Info("Redis charge lock enabled", zap.String("addr", cfg.RedisAddr))
	} else if cfg.RedisAddr != "" {
		logger.Warn("Redis is unreachable, charge lock disabled", zap.String("addr", cfg.RedisAddr))
	}
	walletService := service.NewWalletService(
		walletRepo,
		bookingRepo,
		service.NewRedisChargeLock(redisClient, chargeLockTTL),
		cfg.FeeCents,
		logger,
	)

	var publisher session.EventPublisher
	if cfg.AMQPURL != "" {
		publisher = events.NewAMQPPublisher(cfg.AMQPURL, logger)
		logger.Info("Lifecycle events go to RabbitMQ", zap.String("queue", events.LifecycleQueue))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	hub := provider.NewHub(logger)

	manager := session.NewManager(session.ManagerDeps{
		Bookings: bookingService,
		Wallet:   walletService,
		Source:   hub,
		Clock:    session.RealClock(),
		Recorder: collector,
		Events:   publisher,
		Logger:   logger,
		Settings: cfg.SessionSettings(),
	})

	scheduler := NewScheduler(manager, cfg.ReconcileInterval, logger)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	g, gctx := errgroup.WithContext(ctx)

	if err := startBot(gctx, g, cfg, userService, bookingService, manager, logger); err != nil {
		return err
	}

	startHTTP(gctx, g, cfg, manager, hub, registry, logger)

	err = g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	manager.Shutdown(shutdownCtx)

	return err
}

func startHTTP(
	ctx context.Context,
	g *errgroup.Group,
	cfg *config.Config,
	manager *session.Manager,
	hub *provider.Hub,
	registry *prometheus.Registry,
	logger *zap.Logger,
) {
	deps := httpapi.RouterDeps{
		Sessions:      manager,
		Presence:      hub,
		Streams:       httpapi.NewNoticeStreams(logger),
		WebhookSecret: cfg.WebhookSecret,
		Metrics:       metrics.Handler(registry),
		Logger:        logger,
	}

	if cfg.JWTSecret != "" {
		deps.Auth = httpapi.NewAuthenticator(cfg.JWTSecret)
		deps.Limiter = httpapi.NewRateLimiter(httpapi.DefaultRateLimiterConfig(), logger)
	} else {
		logger.Warn("JWT_SECRET not set, HTTP session API disabled")
	}
	if cfg.WebhookSecret == "" {
		logger.Warn("WEBHOOK_SECRET not set, provider events are accepted only in-process")
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		if deps.Limiter != nil {
			deps.Limiter.Stop()
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		logger.Info("HTTP server stopped")
		return nil
	})
}

func startBot(
	ctx context.Context,
	g *errgroup.Group,
	cfg *config.Config,
	users *service.UserService,
	lessons *service.BookingService,
	manager *session.Manager,
	logger *zap.Logger,
) error {
	if cfg.TelegramToken == "" {
		logger.Warn("TELEGRAM_TOKEN not set, Telegram bot disabled")
		return nil
	}

	botInstance, err := bot.New(cfg.TelegramToken, bot.WithErrorsHandler(func(err error) {
		logger.Error("Telegram bot error", zap.Error(err))
	}))
	if err != nil {
		return fmt.Errorf("create bot: %w", err)
	}

	botController := controller.NewBotController(botInstance, users, lessons, manager, logger)
	if err := botController.RegisterHandlers(ctx); err != nil {
		// Меню команд не критично, бот работает и без него
		logger.Warn("Bot commands menu not set", zap.Error(err))
	}

	g.Go(func() error {
		return botController.Start(ctx)
	})
	return nil
}
