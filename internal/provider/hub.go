// Package provider adapts presence signals of the video provider to per-participant
// handler sets: joined, participantJoined and participantLeft.
package provider

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

type EventType string

const (
	EventParticipantJoined EventType = "participant_joined"
	EventParticipantLeft   EventType = "participant_left"
)

var (
	ErrInvalidEvent = errors.New("invalid provider event")
	ErrUnknownEvent = errors.New("unknown provider event type")
)

// Event сырое событие провайдера: участник подключился к комнате или вышел из неё
type Event struct {
	Type          EventType `json:"type"`
	RoomID        string    `json:"room_id"`
	ParticipantID string    `json:"participant_id"`
}

// Validate проверяет обязательные поля события
func (e Event) Validate() error {
	if e.RoomID == "" || e.ParticipantID == "" {
		return ErrInvalidEvent
	}
	switch e.Type {
	case EventParticipantJoined, EventParticipantLeft:
		return nil
	default:
		return ErrUnknownEvent
	}
}

// Handlers набор обработчиков одного участника комнаты
type Handlers struct {
	OnJoined            func()
	OnParticipantJoined func(participantID string)
	OnParticipantLeft   func(participantID string)
}

// Subscription зарегистрированный набор обработчиков
type Subscription interface {
	Detach()
}

type listener struct {
	hub           *Hub
	roomID        string
	participantID string
	handlers      Handlers
	active        atomic.Bool
}

// Detach снимает обработчики. Повторный вызов безопасен
func (l *listener) Detach() {
	if !l.active.CompareAndSwap(true, false) {
		return
	}
	l.hub.remove(l)
}

func (l *listener) joined() {
	if l.active.Load() && l.handlers.OnJoined != nil {
		l.handlers.OnJoined()
	}
}

func (l *listener) participantJoined(id string) {
	if l.active.Load() && l.handlers.OnParticipantJoined != nil {
		l.handlers.OnParticipantJoined(id)
	}
}

func (l *listener) participantLeft(id string) {
	if l.active.Load() && l.handlers.OnParticipantLeft != nil {
		l.handlers.OnParticipantLeft(id)
	}
}

type room struct {
	deliverMu sync.Mutex // события комнаты доставляются строго по очереди
	present   map[string]struct{}
	listeners map[string]*listener // participantID -> listener
	closed    bool                 // комната удалена из хаба, под mu
}

// Hub хранит присутствие по комнатам и раздаёт события подписчикам
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]*room
	logger *zap.Logger
}

// NewHub создаёт новый хаб присутствия
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		rooms:  make(map[string]*room),
		logger: logger,
	}
}

func (h *Hub) room(roomID string) *room {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[roomID]
	if !ok {
		r = &room{
			present:   make(map[string]struct{}),
			listeners: make(map[string]*listener),
		}
		h.rooms[roomID] = r
	}
	return r
}

// acquire возвращает живую комнату, захватив её очередь доставки и mu хаба
func (h *Hub) acquire(roomID string) *room {
	for {
		r := h.room(roomID)
		r.deliverMu.Lock()
		h.mu.Lock()
		if !r.closed {
			return r
		}
		h.mu.Unlock()
		r.deliverMu.Unlock()
	}
}

// Attach регистрирует обработчики участника. Прежний набор того же участника
// снимается до регистрации нового, дублей слушателей не бывает.
// Уже присутствующие участники доставляются сразу: сначала удалённые, затем joined.
func (h *Hub) Attach(roomID, participantID string, handlers Handlers) Subscription {
	l := &listener{
		hub:           h,
		roomID:        roomID,
		participantID: participantID,
		handlers:      handlers,
	}
	l.active.Store(true)

	r := h.acquire(roomID)
	defer r.deliverMu.Unlock()

	if old, ok := r.listeners[participantID]; ok {
		old.active.Store(false)
	}
	r.listeners[participantID] = l
	others := make([]string, 0, len(r.present))
	_, selfPresent := r.present[participantID]
	for id := range r.present {
		if id != participantID {
			others = append(others, id)
		}
	}
	h.mu.Unlock()

	sort.Strings(others)
	for _, id := range others {
		l.participantJoined(id)
	}
	if selfPresent {
		l.joined()
	}

	return l
}

// Publish применяет событие провайдера и раздаёт его подписчикам комнаты.
// Повторное событие о том же состоянии участника игнорируется.
func (h *Hub) Publish(ev Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}

	r := h.acquire(ev.RoomID)
	defer r.deliverMu.Unlock()

	_, wasPresent := r.present[ev.ParticipantID]
	switch ev.Type {
	case EventParticipantJoined:
		if wasPresent {
			h.mu.Unlock()
			return nil
		}
		r.present[ev.ParticipantID] = struct{}{}
	case EventParticipantLeft:
		if !wasPresent {
			h.mu.Unlock()
			return nil
		}
		delete(r.present, ev.ParticipantID)
	}
	listeners := make([]*listener, 0, len(r.listeners))
	for _, l := range r.listeners {
		listeners = append(listeners, l)
	}
	h.mu.Unlock()

	h.logger.Debug("Provider event",
		zap.String("type", string(ev.Type)),
		zap.String("room_id", ev.RoomID),
		zap.String("participant_id", ev.ParticipantID),
		zap.Int("listeners", len(listeners)),
	)

	for _, l := range listeners {
		self := l.participantID == ev.ParticipantID
		switch {
		case ev.Type == EventParticipantJoined && self:
			l.joined()
		case ev.Type == EventParticipantJoined:
			l.participantJoined(ev.ParticipantID)
		case ev.Type == EventParticipantLeft && !self:
			l.participantLeft(ev.ParticipantID)
		}
	}

	return nil
}

// Present участники, подключённые к комнате сейчас
func (h *Hub) Present(roomID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	r, ok := h.rooms[roomID]
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(r.present))
	for id := range r.present {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Listeners число активных наборов обработчиков в комнате
func (h *Hub) Listeners(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if r, ok := h.rooms[roomID]; ok {
		return len(r.listeners)
	}
	return 0
}

// remove удаляет слушателя, только если зарегистрирован именно он
func (h *Hub) remove(l *listener) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[l.roomID]
	if !ok {
		return
	}
	if current, ok := r.listeners[l.participantID]; ok && current == l {
		delete(r.listeners, l.participantID)
	}
	if len(r.listeners) == 0 && len(r.present) == 0 {
		r.closed = true
		delete(h.rooms, l.roomID)
	}
}
