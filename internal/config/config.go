package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/Freeeeeet/lessonroom/internal/session"
	"github.com/joho/godotenv"
)

type Config struct {
	Environment   string
	LogLevel      string
	TelegramToken string
	DBDSN         string
	MigrationsDir string

	HTTPAddr      string
	JWTSecret     string
	WebhookSecret string // общий секрет для событий провайдера присутствия

	RedisAddr     string
	RedisPassword string
	AMQPURL       string

	FeeCents          int64
	NoShowGrace       time.Duration
	WarningAfter      time.Duration
	HardLimit         time.Duration
	AutoEndCountdown  time.Duration
	WarningDisplay    time.Duration
	LeaveGuardAfter   time.Duration
	ScheduleTimezone  string
	ReconcileInterval time.Duration
	CallTimeout       time.Duration
}

func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("⚠️  No .env file found, using environment variables")
	} else {
		log.Println("✅ Loaded configuration from .env file")
	}

	cfg := &Config{
		Environment:   getenv("ENV", "development"),
		LogLevel:      os.Getenv("LOG_LEVEL"),
		TelegramToken: os.Getenv("TELEGRAM_TOKEN"),
		DBDSN:         os.Getenv("DB_DSN"),
		MigrationsDir: getenv("MIGRATIONS_DIR", "migrations"),
		HTTPAddr:      getenv("HTTP_ADDR", ":8080"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		WebhookSecret: os.Getenv("WEBHOOK_SECRET"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		AMQPURL:       os.Getenv("AMQP_URL"),

		ScheduleTimezone: getenv("SCHEDULE_TIMEZONE", "Local"),
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("DB_DSN is required but not set")
	}

	var err error
	if cfg.FeeCents, err = getInt64("LESSON_FEE_CENTS", 50); err != nil {
		return nil, err
	}

	durations := []struct {
		key  string
		def  time.Duration
		dest *time.Duration
	}{
		{"NO_SHOW_GRACE", 10 * time.Minute, &cfg.NoShowGrace},
		{"SESSION_WARNING_AFTER", 40 * time.Minute, &cfg.WarningAfter},
		{"SESSION_HARD_LIMIT", 45 * time.Minute, &cfg.HardLimit},
		{"AUTO_END_COUNTDOWN", 15 * time.Second, &cfg.AutoEndCountdown},
		{"WARNING_DISPLAY", 10 * time.Second, &cfg.WarningDisplay},
		{"LEAVE_GUARD_AFTER", 30 * time.Second, &cfg.LeaveGuardAfter},
		{"RECONCILE_INTERVAL", time.Minute, &cfg.ReconcileInterval},
		{"CALL_TIMEOUT", 10 * time.Second, &cfg.CallTimeout},
	}
	for _, d := range durations {
		if *d.dest, err = getDuration(d.key, d.def); err != nil {
			return nil, err
		}
	}

	if cfg.WarningAfter >= cfg.HardLimit {
		return nil, fmt.Errorf("SESSION_WARNING_AFTER (%s) must be less than SESSION_HARD_LIMIT (%s)", cfg.WarningAfter, cfg.HardLimit)
	}

	if _, err := cfg.Location(); err != nil {
		return nil, err
	}

	log.Printf("Config loaded\n")

	return cfg, nil
}

// Location часовой пояс, в котором записано время уроков
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.ScheduleTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULE_TIMEZONE %q: %w", c.ScheduleTimezone, err)
	}
	return loc, nil
}

// SessionSettings параметры для менеджера сессий
func (c *Config) SessionSettings() session.Settings {
	s := session.DefaultSettings()
	s.FeeCents = c.FeeCents
	s.NoShowGrace = c.NoShowGrace
	s.WarningAfter = c.WarningAfter
	s.HardLimit = c.HardLimit
	s.AutoEndCountdown = c.AutoEndCountdown
	s.WarningDisplay = c.WarningDisplay
	s.LeaveGuardAfter = c.LeaveGuardAfter
	s.CallTimeout = c.CallTimeout
	if loc, err := c.Location(); err == nil {
		s.Location = loc
	}
	return s
}

func (c *Config) GetDBDSN() string {
	return c.DBDSN
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt64(key string, def int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return n, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return d, nil
}
