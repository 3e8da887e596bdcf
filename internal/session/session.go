package session

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/Freeeeeet/lessonroom/internal/model"
	"github.com/Freeeeeet/lessonroom/internal/provider"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BookingService внешний сервис бронирований
type BookingService interface {
	BookingReader
	SetBookingStatus(ctx context.Context, id int64, status model.BookingStatus) error
}

// WalletService внешний сервис кошелька
type WalletService interface {
	Charger
	CancelAndRefund(ctx context.Context, req model.CancelRequest) (model.CancelResult, error)
}

// PresenceSource провайдер видео, источник сигналов присутствия
type PresenceSource interface {
	Attach(roomID, participantID string, h provider.Handlers) provider.Subscription
}

// Snapshot состояние сессии для показа пользователю
type Snapshot struct {
	ID           string               `json:"id"`
	BookingID    int64                `json:"booking_id"`
	Role         Role                 `json:"role"`
	Participants int                  `json:"participants"`
	Elapsed      time.Duration        `json:"elapsed"`
	Running      bool                 `json:"running"`
	Watchdog     string               `json:"watchdog"`
	Deadline     *time.Time           `json:"no_show_deadline,omitempty"`
	WarningFired bool                 `json:"warning_fired"`
	AutoEndFired bool                 `json:"auto_end_fired"`
	Online       bool                 `json:"online"`
	Display      DisplayMode          `json:"display"`
	Panels       map[Panel]PanelState `json:"panels"`
	Terminated   bool                 `json:"terminated"`
	Reason       Reason               `json:"reason,omitempty"`
}

type sessionDeps struct {
	settings Settings
	clock    Clock
	bookings BookingService
	wallet   WalletService
	source   PresenceSource
	recorder Recorder
	events   EventPublisher
	logger   *zap.Logger

	onClosed     func(s *Session, reason Reason)
	statusFailed func(r Reconciliation)
}

// Session одна живая сессия урока для одного участника.
// Все события провайдера, срабатывания таймеров и команды сериализуются через mu,
// сетевые вызовы под mu не выполняются.
type Session struct {
	ID            string
	booking       *model.Booking
	role          Role
	caller        Identity
	participantID string
	roomID        string
	scheduledAt   time.Time
	scheduled     bool
	completed     bool // бронирование уже было завершено на момент входа

	sessionDeps

	mu              sync.Mutex
	presenter       Presenter
	presence        *Presence
	watchdog        *NoShowWatchdog
	timer           *SessionClock
	paid            bool
	counterpartSeen bool
	online          bool
	display         DisplayMode
	panels          map[Panel]PanelState
	dismissTimer    CancelHandle
	autoEndTimer    CancelHandle
	subscription    provider.Subscription
	terminated      bool
	reason          Reason
}

func newSession(booking *model.Booking, role Role, caller Identity, presenter Presenter, deps sessionDeps) *Session {
	if presenter == nil {
		presenter = nopPresenter{}
	}

	id := uuid.NewString()
	start, ok := ScheduledStart(booking, deps.settings.Location)

	participantID := booking.StudentRef
	if role == RoleTeacher {
		participantID = booking.TeacherRef
	}

	deps.logger = deps.logger.With(
		zap.String("session_id", id),
		zap.Int64("booking_id", booking.ID),
		zap.String("role", string(role)),
	)

	if !ok {
		// Без расписания дедлайн считается от первого взведения
		deps.logger.Warn("Booking schedule could not be parsed",
			zap.String("scheduled_date", booking.ScheduledDate),
			zap.String("start_time", booking.StartTime),
		)
	}

	return &Session{
		ID:            id,
		booking:       booking,
		role:          role,
		caller:        caller,
		participantID: participantID,
		roomID:        booking.Room(),
		scheduledAt:   start,
		scheduled:     ok,
		completed:     booking.Status == model.BookingStatusCompleted,
		sessionDeps:   deps,
		presenter:     presenter,
		presence:      NewPresence(),
		watchdog:      NewNoShowWatchdog(deps.clock, deps.settings.NoShowGrace, start, ok),
		timer:         NewSessionClock(deps.clock, deps.settings.TickInterval, deps.settings.WarningAfter, deps.settings.HardLimit),
		paid:          true,
		online:        true,
		display:       DisplayVideo,
		panels:        newPanels(DisplayVideo),
	}
}

func (s *Session) BookingID() int64 {
	return s.booking.ID
}

func (s *Session) Role() Role {
	return s.role
}

// Booking копия бронирования на момент входа
func (s *Session) Booking() model.Booking {
	return *s.booking
}

// OwnedBy принадлежит ли сессия вызывающему в той же роли
func (s *Session) OwnedBy(id Identity) bool {
	if s.role == RoleTeacher {
		return id.MatchesTeacher(s.booking.TeacherRef)
	}
	return id.MatchesStudent(s.booking.StudentRef)
}

// Terminated завершена ли сессия
func (s *Session) Terminated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminated
}

// Rebind меняет получателя уведомлений при повторном входе
func (s *Session) Rebind(presenter Presenter) {
	if presenter == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presenter = presenter
}

// attach подписывает сессию на провайдера. Старая подписка всегда снимается до новой
func (s *Session) attach() {
	s.mu.Lock()
	if s.terminated {
		s.mu.Unlock()
		return
	}
	old := s.subscription
	s.subscription = nil
	// Провайдер заново пришлёт всех присутствующих
	s.presence.Reset()
	s.evaluateWatchdogLocked()
	s.mu.Unlock()

	if old != nil {
		old.Detach()
	}

	sub := s.source.Attach(s.roomID, s.participantID, provider.Handlers{
		OnJoined:            s.onJoined,
		OnParticipantJoined: s.onParticipantJoined,
		OnParticipantLeft:   s.onParticipantLeft,
	})

	s.mu.Lock()
	if s.terminated {
		s.mu.Unlock()
		sub.Detach()
		return
	}
	s.subscription = sub
	s.mu.Unlock()
}

func (s *Session) onJoined() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.terminated {
		return
	}

	s.presence.Joined()
	if s.paid && !s.timer.Running() {
		s.timer.Start(s.onTick)
	}
	s.evaluateWatchdogLocked()

	s.logger.Info("Participant joined session",
		zap.Int("participants", s.presence.Count()),
	)
}

func (s *Session) onParticipantJoined(participantID string) {
	s.mu.Lock()
	if s.terminated {
		s.mu.Unlock()
		return
	}
	s.presence.RemoteJoin()
	s.counterpartSeen = true
	s.evaluateWatchdogLocked()
	n := s.noticeLocked(NoticeParticipantJoined, s.counterpartLabel()+" joined the lesson.")
	presenter := s.presenter
	count := s.presence.Count()
	s.mu.Unlock()

	s.logger.Info("Remote participant joined",
		zap.String("participant_id", participantID),
		zap.Int("participants", count),
	)
	s.deliver(presenter, n)
}

func (s *Session) onParticipantLeft(participantID string) {
	s.mu.Lock()
	if s.terminated {
		s.mu.Unlock()
		return
	}
	s.presence.RemoteLeave()
	s.evaluateWatchdogLocked()
	n := s.noticeLocked(NoticeParticipantLeft, s.counterpartLabel()+" left the lesson.")
	presenter := s.presenter
	count := s.presence.Count()
	s.mu.Unlock()

	s.logger.Info("Remote participant left",
		zap.String("participant_id", participantID),
		zap.Int("participants", count),
	)
	s.deliver(presenter, n)
}

func (s *Session) eligibleLocked() bool {
	return !s.terminated && !s.completed && s.role == RoleStudent && s.paid && s.presence.LocalJoined()
}

func (s *Session) evaluateWatchdogLocked() {
	s.watchdog.Evaluate(s.eligibleLocked(), s.presence.Count(), s.onNoShowDeadline)
}

// onNoShowDeadline условия проверяются ещё раз в момент срабатывания:
// участник мог подключиться в последний момент
func (s *Session) onNoShowDeadline(gen uint64) {
	s.mu.Lock()
	if s.terminated || !s.watchdog.Fire(gen, s.eligibleLocked(), s.presence.Count()) {
		s.mu.Unlock()
		return
	}
	td := s.beginTerminateLocked(ReasonNoShow)
	s.mu.Unlock()

	s.recorder.RecordNoShow()
	s.logger.Warn("Counterpart did not join, cancelling lesson")

	ctx, cancel := context.WithTimeout(context.Background(), s.settings.CallTimeout)
	defer cancel()
	s.finish(ctx, td)
}

func (s *Session) onTick(gen uint64) {
	s.mu.Lock()
	if s.terminated {
		s.mu.Unlock()
		return
	}
	tick, ok := s.timer.Tick(gen)
	if !ok {
		s.mu.Unlock()
		return
	}

	var notices []Notice
	if tick.Warning {
		minutes := int((s.settings.HardLimit - tick.Elapsed).Round(time.Minute) / time.Minute)
		notices = append(notices, s.noticeLocked(NoticeTimeWarning,
			fmt.Sprintf("Time is running out: about %d minutes left in the lesson.", minutes)))
		stopTimer(s.dismissTimer)
		s.dismissTimer = s.clock.AfterFunc(s.settings.WarningDisplay, s.onWarningDismiss)
	}
	if tick.AutoEnd {
		seconds := int(s.settings.AutoEndCountdown / time.Second)
		n := s.noticeLocked(NoticeAutoEnd,
			fmt.Sprintf("Lesson time is over. The session will end in %d seconds.", seconds))
		n.CountdownSeconds = seconds
		notices = append(notices, n)
		s.autoEndTimer = s.clock.AfterFunc(s.settings.AutoEndCountdown, s.onAutoEnd)
	}
	presenter := s.presenter
	s.mu.Unlock()

	if tick.Warning {
		s.logger.Info("Session time warning", zap.Duration("elapsed", tick.Elapsed))
	}
	if tick.AutoEnd {
		s.logger.Info("Session hard limit reached", zap.Duration("elapsed", tick.Elapsed))
	}
	s.deliver(presenter, notices...)
}

func (s *Session) onWarningDismiss() {
	s.mu.Lock()
	if s.terminated {
		s.mu.Unlock()
		return
	}
	s.dismissTimer = nil
	n := s.noticeLocked(NoticeTimeWarningCleared, "")
	presenter := s.presenter
	s.mu.Unlock()

	s.deliver(presenter, n)
}

func (s *Session) onAutoEnd() {
	ctx, cancel := context.WithTimeout(context.Background(), s.settings.CallTimeout)
	defer cancel()
	s.Terminate(ctx, ReasonAutoEnd)
}

// End завершение по кнопке. Студент, ушедший до прихода учителя, отменяет урок
func (s *Session) End(ctx context.Context) bool {
	s.mu.Lock()
	reason := ReasonEnded
	if s.role == RoleStudent && !s.counterpartSeen && !s.completed {
		reason = ReasonAbandoned
	}
	s.mu.Unlock()

	return s.Terminate(ctx, reason)
}

// ConfirmLeave нужно ли подтверждение перед уходом со страницы
func (s *Session) ConfirmLeave() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.terminated && s.timer.Running() && s.timer.Elapsed() >= s.settings.LeaveGuardAfter
}

// SetOnline отмечает потерю и восстановление связи. Таймеры не останавливаются
func (s *Session) SetOnline(online bool) {
	s.mu.Lock()
	if s.terminated || s.online == online {
		s.mu.Unlock()
		return
	}
	s.online = online
	var n Notice
	if online {
		n = s.noticeLocked(NoticeConnectionRestored, "Connection restored.")
	} else {
		n = s.noticeLocked(NoticeConnectionLost, "Connection lost. The lesson timer keeps running.")
	}
	presenter := s.presenter
	s.mu.Unlock()

	s.deliver(presenter, n)
}

// Snapshot текущее состояние сессии
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	warning, autoEnd := s.timer.Flags()
	snap := Snapshot{
		ID:           s.ID,
		BookingID:    s.booking.ID,
		Role:         s.role,
		Participants: s.presence.Count(),
		Elapsed:      s.timer.Elapsed(),
		Running:      s.timer.Running(),
		Watchdog:     s.watchdog.State().String(),
		WarningFired: warning,
		AutoEndFired: autoEnd,
		Online:       s.online,
		Display:      s.display,
		Panels:       make(map[Panel]PanelState, len(s.panels)),
		Terminated:   s.terminated,
		Reason:       s.reason,
	}
	if d, ok := s.watchdog.Deadline(); ok {
		snap.Deadline = &d
	}
	for p, st := range s.panels {
		snap.Panels[p] = st
	}
	return snap
}

func (s *Session) counterpartLabel() string {
	if s.role == RoleStudent {
		return "Teacher"
	}
	return "Student"
}

func (s *Session) noticeLocked(kind NoticeKind, text string) Notice {
	return Notice{
		Kind:      kind,
		SessionID: s.ID,
		BookingID: s.booking.ID,
		Text:      text,
		At:        s.clock.Now(),
	}
}

func (s *Session) deliver(presenter Presenter, notices ...Notice) {
	for _, n := range notices {
		presenter.Present(context.Background(), n)
	}
}

func (s *Session) bookingKey() string {
	return sessionKey(s.booking.ID, s.role)
}

func sessionKey(bookingID int64, role Role) string {
	return strconv.FormatInt(bookingID, 10) + ":" + string(role)
}
