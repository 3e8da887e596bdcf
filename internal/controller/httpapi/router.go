// Package httpapi веб-вход в сессии урока: REST для команд, websocket для уведомлений
// и приём событий присутствия от видеопровайдера.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/Freeeeeet/lessonroom/internal/provider"
	"github.com/Freeeeeet/lessonroom/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Sessions менеджер сессий
type Sessions interface {
	Enter(ctx context.Context, rawBookingID string, caller session.Identity, presenter session.Presenter) (*session.Session, error)
	Get(id string) (*session.Session, error)
}

// PresenceEvents принимает события провайдера
type PresenceEvents interface {
	Publish(ev provider.Event) error
}

type RouterDeps struct {
	Sessions      Sessions
	Presence      PresenceEvents
	Streams       *NoticeStreams
	Auth          *Authenticator
	Limiter       *RateLimiter
	WebhookSecret string
	Metrics       http.Handler
	Logger        *zap.Logger
}

// NewRouter собирает HTTP-маршруты. Без Auth сессионные маршруты не монтируются,
// без WebhookSecret не принимаются события провайдера
func NewRouter(d RouterDeps) http.Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Streams == nil {
		d.Streams = NewNoticeStreams(d.Logger)
	}

	h := &handler{
		sessions: d.Sessions,
		presence: d.Presence,
		streams:  d.Streams,
		secret:   d.WebhookSecret,
		logger:   d.Logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(recovery(d.Logger))
	r.Use(requestLogger(d.Logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	if d.WebhookSecret != "" && d.Presence != nil {
		r.Post("/provider/events", h.providerEvent)
	}

	if d.Auth != nil && d.Sessions != nil {
		r.Route("/sessions", func(r chi.Router) {
			r.Use(d.Auth.Middleware)
			if d.Limiter != nil {
				r.Use(d.Limiter.Middleware)
			}

			r.Post("/", h.enter)
			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", h.snapshot)
				r.Post("/end", h.end)
				r.Get("/leave-guard", h.leaveGuard)
				r.Post("/online", h.setOnline)
				r.Put("/display-mode", h.setDisplayMode)
				r.Post("/panels/{panel}/error", h.panelError)
				r.Post("/panels/{panel}/retry", h.panelRetry)
				r.Get("/notices", h.notices)
			})
		})
	}

	return r
}

func requestLogger(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			}
			if id, ok := IdentityFromContext(r.Context()); ok {
				fields = append(fields, zap.String("caller", callerKey(id)))
			}

			switch {
			case status >= 500:
				logger.Error("HTTP request", fields...)
			case status >= 400:
				logger.Warn("HTTP request", fields...)
			default:
				logger.Debug("HTTP request", fields...)
			}
		})
	}
}

func recovery(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.Error("Panic recovered",
						zap.Any("panic", rec),
						zap.String("method", r.Method),
						zap.String("path", r.URL.Path),
						zap.Stack("stack"),
					)
					writeError(w, http.StatusInternalServerError, "internal_error", "Something went wrong. Please try again later.")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
