package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/Freeeeeet/lessonroom/internal/session"
	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const identityContextKey contextKey = "identity"

// Claims токен веб-клиента. sub идентификатор из провайдера авторизации
type Claims struct {
	UserID           string `json:"uid,omitempty"`
	Email            string `json:"email,omitempty"`
	TeacherProfileID string `json:"teacher_profile_id,omitempty"`
	jwt.RegisteredClaims
}

// Identity каналы личности из токена
func (c *Claims) Identity() session.Identity {
	return session.Identity{
		UserID:           c.UserID,
		AuthID:           c.Subject,
		Email:            c.Email,
		TeacherProfileID: c.TeacherProfileID,
	}
}

// Authenticator проверяет Bearer-токены, подписанные HMAC
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// Parse разбирает и проверяет токен
func (a *Authenticator) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// Middleware кладёт Identity в контекст запроса, без токена отвечает 401
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}

		claims, err := a.Parse(raw)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
			return
		}

		id := claims.Identity()
		if id.IsZero() {
			writeError(w, http.StatusUnauthorized, "unauthorized", "token carries no identity")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// Токен websocket-клиента может прийти в query access_token
func bearerToken(r *http.Request) (string, bool) {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		return raw, raw != ""
	}
	if raw := r.URL.Query().Get("access_token"); raw != "" {
		return raw, true
	}
	return "", false
}

func WithIdentity(ctx context.Context, id session.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// IdentityFromContext личность, положенная Middleware
func IdentityFromContext(ctx context.Context) (session.Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(session.Identity)
	return id, ok
}

// callerKey ключ для лимитов запросов
func callerKey(id session.Identity) string {
	switch {
	case id.AuthID != "":
		return "auth:" + id.AuthID
	case id.UserID != "":
		return "user:" + id.UserID
	case id.Email != "":
		return "email:" + strings.ToLower(id.Email)
	default:
		return "teacher:" + id.TeacherProfileID
	}
}
