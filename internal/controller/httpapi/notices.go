package httpapi

import (
	"context"
	"sync"
	"time"

	"github.com/Freeeeeet/lessonroom/internal/session"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	backlogSize     = 32
	writeBufferSize = 100
	writeTimeout    = 5 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = pongWait * 9 / 10
)

// NoticeStreams раздаёт уведомления сессий подключённым websocket-клиентам.
// Уведомления до подключения клиента копятся в коротком буфере и отдаются при подписке.
type NoticeStreams struct {
	logger *zap.Logger

	mu      sync.Mutex
	subs    map[string]map[*noticeConn]struct{}
	backlog map[string][]session.Notice
}

func NewNoticeStreams(logger *zap.Logger) *NoticeStreams {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NoticeStreams{
		logger:  logger,
		subs:    make(map[string]map[*noticeConn]struct{}),
		backlog: make(map[string][]session.Notice),
	}
}

// Present реализует session.Presenter
func (s *NoticeStreams) Present(_ context.Context, n session.Notice) {
	s.mu.Lock()
	conns := make([]*noticeConn, 0, len(s.subs[n.SessionID]))
	for c := range s.subs[n.SessionID] {
		conns = append(conns, c)
	}
	closed := n.Kind == session.NoticeClosed
	if closed {
		delete(s.subs, n.SessionID)
		delete(s.backlog, n.SessionID)
	} else {
		b := append(s.backlog[n.SessionID], n)
		if len(b) > backlogSize {
			b = b[len(b)-backlogSize:]
		}
		s.backlog[n.SessionID] = b
	}
	s.mu.Unlock()

	for _, c := range conns {
		if !c.send(n) {
			s.logger.Warn("Notice dropped for slow websocket client",
				zap.String("session_id", n.SessionID),
				zap.String("kind", string(n.Kind)),
			)
		}
		if closed {
			c.finish()
		}
	}
}

func (s *NoticeStreams) subscribe(sessionID string, c *noticeConn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range s.backlog[sessionID] {
		c.send(n)
	}
	if s.subs[sessionID] == nil {
		s.subs[sessionID] = make(map[*noticeConn]struct{})
	}
	s.subs[sessionID][c] = struct{}{}
}

func (s *NoticeStreams) unsubscribe(sessionID string, c *noticeConn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conns, ok := s.subs[sessionID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(s.subs, sessionID)
		}
	}
}

// Subscribers число клиентов, слушающих сессию
func (s *NoticeStreams) Subscribers(sessionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs[sessionID])
}

// noticeConn одно websocket-подключение. Пишет в сокет только writeLoop
type noticeConn struct {
	ws      *websocket.Conn
	writeCh chan session.Notice

	mu       sync.Mutex
	finished bool
}

func newNoticeConn(ws *websocket.Conn) *noticeConn {
	return &noticeConn{
		ws:      ws,
		writeCh: make(chan session.Notice, writeBufferSize),
	}
}

func (c *noticeConn) send(n session.Notice) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finished {
		return false
	}
	select {
	case c.writeCh <- n:
		return true
	default:
		return false
	}
}

// finish дописывает очередь и закрывает сокет
func (c *noticeConn) finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.finished {
		c.finished = true
		close(c.writeCh)
	}
}

func (c *noticeConn) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case n, ok := <-c.writeCh:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
				return
			}
			if err := c.ws.WriteJSON(n); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop нужен только для close и pong. Возвращается, когда клиент ушёл
func (c *noticeConn) readLoop() {
	c.ws.SetReadLimit(512)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			return
		}
	}
}
