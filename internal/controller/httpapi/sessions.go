package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Freeeeeet/lessonroom/internal/provider"
	"github.com/Freeeeeet/lessonroom/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const webhookSecretHeader = "X-Webhook-Secret"

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	HandshakeTimeout: 10 * time.Second,
}

type handler struct {
	sessions Sessions
	presence PresenceEvents
	streams  *NoticeStreams
	secret   string
	logger   *zap.Logger
}

// SessionResponse снимок сессии для веб-клиента
type SessionResponse struct {
	session.Snapshot
	ElapsedSeconds int64  `json:"elapsed_seconds"`
	Subject        string `json:"subject"`
	RoomID         string `json:"room_id"`
	ConfirmLeave   bool   `json:"confirm_leave"`
}

func newSessionResponse(s *session.Session) SessionResponse {
	snap := s.Snapshot()
	booking := s.Booking()
	return SessionResponse{
		Snapshot:       snap,
		ElapsedSeconds: int64(snap.Elapsed / time.Second),
		Subject:        booking.Subject,
		RoomID:         booking.Room(),
		ConfirmLeave:   s.ConfirmLeave(),
	}
}

type enterRequest struct {
	BookingID json.RawMessage `json:"booking_id"`
}

// Номер брони принимается и строкой, и числом. Проверяет его BookingGate
func (req enterRequest) rawBookingID() string {
	raw := strings.TrimSpace(string(req.BookingID))
	var s string
	if err := json.Unmarshal(req.BookingID, &s); err == nil {
		return s
	}
	if raw == "null" {
		return ""
	}
	return raw
}

// decodeOptional разбирает тело, пустое тело не ошибка
func decodeOptional(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (h *handler) enter(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFromContext(r.Context())

	var req enterRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body must be JSON")
		return
	}
	raw := req.rawBookingID()
	if raw == "" {
		raw = r.URL.Query().Get("booking_id")
	}

	// Списание и статус брони не должны обрываться вместе с запросом
	sess, err := h.sessions.Enter(context.WithoutCancel(r.Context()), raw, id, h.streams)
	if err != nil {
		writeSessionError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, newSessionResponse(sess))
}

// lookup находит сессию вызывающего. Чужая сессия выглядит как несуществующая
func (h *handler) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := h.sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeSessionError(w, h.logger, err)
		return nil, false
	}

	id, _ := IdentityFromContext(r.Context())
	if !sess.OwnedBy(id) {
		writeSessionError(w, h.logger, session.ErrSessionNotFound)
		return nil, false
	}
	return sess, true
}

func (h *handler) snapshot(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(sess))
}

func (h *handler) end(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}

	if !sess.End(context.WithoutCancel(r.Context())) {
		writeSessionError(w, h.logger, session.ErrSessionTerminated)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(sess))
}

func (h *handler) leaveGuard(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"confirm": sess.ConfirmLeave()})
}

func (h *handler) setOnline(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req struct {
		Online *bool `json:"online"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Online == nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "online flag is required")
		return
	}

	if sess.Terminated() {
		writeSessionError(w, h.logger, session.ErrSessionTerminated)
		return
	}
	sess.SetOnline(*req.Online)
	writeJSON(w, http.StatusOK, newSessionResponse(sess))
}

func (h *handler) setDisplayMode(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body must be JSON")
		return
	}

	mode, err := session.ParseDisplayMode(req.Mode)
	if err == nil {
		err = sess.SetDisplayMode(mode)
	}
	if err != nil {
		writeSessionError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(sess))
}

func (h *handler) panelError(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req struct {
		Message string `json:"message"`
	}
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body must be JSON")
		return
	}

	panel, err := session.ParsePanel(chi.URLParam(r, "panel"))
	if err == nil {
		err = sess.ReportPanelError(panel, req.Message)
	}
	if err != nil {
		writeSessionError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(sess))
}

func (h *handler) panelRetry(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}

	panel, err := session.ParsePanel(chi.URLParam(r, "panel"))
	if err == nil {
		err = sess.RetryPanel(panel)
	}
	if err != nil {
		writeSessionError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(sess))
}

// notices отдаёт уведомления сессии по websocket до её закрытия
func (h *handler) notices(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}

	c := newNoticeConn(ws)
	go c.writeLoop()

	h.streams.subscribe(sess.ID, c)
	if sess.Terminated() {
		// Сессия закрылась между проверкой и подпиской
		h.streams.unsubscribe(sess.ID, c)
		c.finish()
	}

	h.logger.Debug("Notice stream opened", zap.String("session_id", sess.ID))

	c.readLoop()
	h.streams.unsubscribe(sess.ID, c)
	c.finish()

	h.logger.Debug("Notice stream closed", zap.String("session_id", sess.ID))
}

// providerEvent принимает события присутствия, подписанные общим секретом
func (h *handler) providerEvent(w http.ResponseWriter, r *http.Request) {
	got := r.Header.Get(webhookSecretHeader)
	if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid webhook secret")
		return
	}

	var ev provider.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body must be JSON")
		return
	}

	if err := h.presence.Publish(ev); err != nil {
		writeSessionError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
