package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Freeeeeet/lessonroom/internal/app"
	"github.com/Freeeeeet/lessonroom/internal/config"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment, cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting lesson room",
		zap.String("environment", cfg.Environment),
		zap.String("http_addr", cfg.HTTPAddr),
		zap.Bool("telegram", cfg.TelegramToken != ""),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, cfg, logger); err != nil {
		logger.Error("Lesson room stopped with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}

	logger.Info("Lesson room stopped")
}
