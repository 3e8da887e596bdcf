package session

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Freeeeeet/lessonroom/internal/model"
	"github.com/Freeeeeet/lessonroom/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	studentRef = "student-1"
	teacherRef = "teacher-1"
	testRoom   = "room-42"
)

var lessonStart = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func lessonBooking(id int64, status model.BookingStatus) *model.Booking {
	room := testRoom
	return &model.Booking{
		ID:            id,
		TeacherRef:    teacherRef,
		StudentRef:    studentRef,
		Subject:       "Math",
		ScheduledDate: "2026-03-01",
		StartTime:     "09:00:00",
		EndTime:       "09:45:00",
		Status:        status,
		RoomID:        &room,
	}
}

type harness struct {
	clock     *fakeClock
	bookings  *fakeBookings
	wallet    *fakeWallet
	hub       *provider.Hub
	recorder  *countingRecorder
	manager   *Manager
	presenter *recordingPresenter
}

func newHarness(t *testing.T, booking *model.Booking, balance int64) *harness {
	t.Helper()

	h := &harness{
		clock:     newFakeClock(lessonStart),
		bookings:  newFakeBookings(booking),
		wallet:    newFakeWallet(balance, 50),
		hub:       provider.NewHub(zap.NewNop()),
		recorder:  newCountingRecorder(),
		presenter: &recordingPresenter{},
	}

	settings := DefaultSettings()
	settings.Location = time.UTC

	h.manager = NewManager(ManagerDeps{
		Bookings: h.bookings,
		Wallet:   h.wallet,
		Source:   h.hub,
		Clock:    h.clock,
		Recorder: h.recorder,
		Logger:   zap.NewNop(),
		Settings: settings,
	})
	return h
}

func (h *harness) enter(t *testing.T, caller Identity) *Session {
	t.Helper()
	s, err := h.manager.Enter(context.Background(), "7", caller, h.presenter)
	require.NoError(t, err)
	require.NotNil(t, s)
	return s
}

func (h *harness) join(t *testing.T, participantID string) {
	t.Helper()
	require.NoError(t, h.hub.Publish(provider.Event{
		Type:          provider.EventParticipantJoined,
		RoomID:        testRoom,
		ParticipantID: participantID,
	}))
}

func (h *harness) leave(t *testing.T, participantID string) {
	t.Helper()
	require.NoError(t, h.hub.Publish(provider.Event{
		Type:          provider.EventParticipantLeft,
		RoomID:        testRoom,
		ParticipantID: participantID,
	}))
}

var (
	asStudent = Identity{UserID: studentRef}
	asTeacher = Identity{UserID: teacherRef}
)

func TestNoShowCancelsAndRefundsStudent(t *testing.T) {
	h := newHarness(t, lessonBooking(7, model.BookingStatusConfirmed), 1000)

	s := h.enter(t, asStudent)
	h.clock.Advance(5 * time.Second)
	h.join(t, studentRef)

	deadline := s.Snapshot().Deadline
	require.NotNil(t, deadline)
	assert.Equal(t, lessonStart.Add(10*time.Minute), *deadline)

	h.clock.AdvanceTo(lessonStart.Add(10*time.Minute - time.Second))
	_, _, cancels := h.wallet.state()
	assert.Empty(t, cancels)
	assert.False(t, s.Terminated())

	h.clock.AdvanceTo(lessonStart.Add(10*time.Minute + 5*time.Second))

	balance, _, cancels := h.wallet.state()
	require.Len(t, cancels, 1)
	assert.Equal(t, model.InitiatorSystem, cancels[0].Initiator)
	assert.Equal(t, int64(7), cancels[0].BookingID)
	assert.Equal(t, studentRef, cancels[0].StudentRef)
	assert.Equal(t, lessonStart, cancels[0].ScheduledAt)
	assert.Equal(t, int64(1000), balance)

	snap := s.Snapshot()
	assert.True(t, snap.Terminated)
	assert.Equal(t, ReasonNoShow, snap.Reason)
	assert.False(t, snap.Running)
	assert.Equal(t, "fired", snap.Watchdog)

	closed := h.presenter.byKind(NoticeClosed)
	require.Len(t, closed, 1)
	assert.Contains(t, closed[0].Text, "Teacher did not join within 10 minutes")
	assert.Contains(t, closed[0].Text, "wallet was refunded")
	assert.Equal(t, DestinationBookings, closed[0].Destination)

	assert.Equal(t, 1, h.recorder.noShows)
	assert.Empty(t, h.bookings.calls())
	assert.Zero(t, h.clock.Pending())
	assert.Zero(t, h.manager.Active())
	assert.Zero(t, h.hub.Listeners(testRoom))

	// повторное завершение не ходит в сеть
	assert.False(t, s.Terminate(context.Background(), ReasonEnded))
	_, _, cancels = h.wallet.state()
	assert.Len(t, cancels, 1)
	assert.Empty(t, h.bookings.calls())
}

func TestNoShowRefundUnconfirmedStillEndsSession(t *testing.T) {
	h := newHarness(t, lessonBooking(7, model.BookingStatusConfirmed), 1000)
	h.wallet.refundFails = true

	s := h.enter(t, asStudent)
	h.join(t, studentRef)
	h.clock.Advance(11 * time.Minute)

	assert.True(t, s.Terminated())
	closed := h.presenter.byKind(NoticeClosed)
	require.Len(t, closed, 1)
	assert.Contains(t, closed[0].Text, "refund could not be confirmed")
}

func TestNoShowCancellationFailureIsQueued(t *testing.T) {
	h := newHarness(t, lessonBooking(7, model.BookingStatusConfirmed), 1000)
	h.wallet.cancelErr = errors.New("wallet unavailable")

	s := h.enter(t, asStudent)
	h.join(t, studentRef)
	h.clock.Advance(11 * time.Minute)

	require.True(t, s.Terminated())
	pending := h.manager.PendingReconciliations()
	require.Len(t, pending, 1)
	assert.Equal(t, model.BookingStatusCancelled, pending[0].Status)
	require.NotNil(t, pending[0].Cancel)
	assert.Equal(t, model.InitiatorSystem, pending[0].Cancel.Initiator)

	h.wallet.mu.Lock()
	h.wallet.cancelErr = nil
	h.wallet.mu.Unlock()

	assert.Equal(t, 1, h.manager.ReconcileStatuses(context.Background()))
	assert.Empty(t, h.manager.PendingReconciliations())
	balance, _, cancels := h.wallet.state()
	assert.Len(t, cancels, 2)
	assert.Equal(t, int64(1000), balance)
}

func TestCounterpartJoinBeforeDeadlineDisarmsWatchdog(t *testing.T) {
	h := newHarness(t, lessonBooking(7, model.BookingStatusConfirmed), 1000)

	s := h.enter(t, asStudent)
	h.clock.Advance(5 * time.Second)
	h.join(t, studentRef)
	h.clock.AdvanceTo(lessonStart.Add(5 * time.Minute))
	h.join(t, teacherRef)

	h.clock.AdvanceTo(lessonStart.Add(20 * time.Minute))

	_, _, cancels := h.wallet.state()
	assert.Empty(t, cancels)
	snap := s.Snapshot()
	assert.False(t, snap.Terminated)
	assert.Equal(t, "idle", snap.Watchdog)
	assert.Equal(t, 2, snap.Participants)
	assert.Len(t, h.presenter.byKind(NoticeParticipantJoined), 1)
	assert.Equal(t, 1, h.clock.Pending())
}

func TestTeacherDroppingBeforeDeadlineRearmsWatchdog(t *testing.T) {
	h := newHarness(t, lessonBooking(7, model.BookingStatusConfirmed), 1000)

	s := h.enter(t, asStudent)
	h.join(t, studentRef)
	h.clock.AdvanceTo(lessonStart.Add(2 * time.Minute))
	h.join(t, teacherRef)
	assert.Equal(t, "idle", s.Snapshot().Watchdog)

	h.clock.AdvanceTo(lessonStart.Add(3 * time.Minute))
	h.leave(t, teacherRef)

	snap := s.Snapshot()
	assert.Equal(t, "armed", snap.Watchdog)
	assert.Equal(t, 1, snap.Participants)
	require.NotNil(t, snap.Deadline)
	assert.Equal(t, lessonStart.Add(10*time.Minute), *snap.Deadline)

	h.clock.AdvanceTo(lessonStart.Add(30 * time.Minute))

	_, _, cancels := h.wallet.state()
	require.Len(t, cancels, 1)
	assert.Equal(t, model.InitiatorSystem, cancels[0].Initiator)
	assert.True(t, s.Terminated())
	assert.Equal(t, ReasonNoShow, s.Snapshot().Reason)
}

func TestCompletedBookingNeverArmsWatchdog(t *testing.T) {
	h := newHarness(t, lessonBooking(7, model.BookingStatusCompleted), 1000)
	h.clock.Set(lessonStart.Add(50 * time.Minute))

	s := h.enter(t, asStudent)
	h.join(t, studentRef)
	h.clock.Advance(time.Second)

	assert.False(t, s.Terminated())
	assert.Equal(t, "idle", s.Snapshot().Watchdog)
	_, _, cancels := h.wallet.state()
	assert.Empty(t, cancels)
	assert.Empty(t, h.presenter.byKind(NoticeClosed))
}

func TestCounterpartAlreadyPresentIsReplayedOnAttach(t *testing.T) {
	h := newHarness(t, lessonBooking(7, model.BookingStatusConfirmed), 1000)

	h.clock.Set(lessonStart.Add(-2 * time.Minute))
	h.join(t, teacherRef)

	s := h.enter(t, asStudent)
	h.join(t, studentRef)

	snap := s.Snapshot()
	assert.Equal(t, 2, snap.Participants)
	assert.Equal(t, "idle", snap.Watchdog)

	h.clock.AdvanceTo(lessonStart.Add(15 * time.Minute))
	assert.False(t, s.Terminated())
}

func TestInsufficientFundsNeverEntersSession(t *testing.T) {
	h := newHarness(t, lessonBooking(7, model.BookingStatusConfirmed), 30)

	s, err := h.manager.Enter(context.Background(), "7", asStudent, h.presenter)
	require.Error(t, err)
	assert.Nil(t, s)

	var fundsErr *InsufficientFundsError
	require.ErrorAs(t, err, &fundsErr)
	assert.Equal(t, int64(30), fundsErr.BalanceCents)
	assert.Equal(t, int64(20), fundsErr.ShortfallCents())
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	assert.Zero(t, h.manager.Active())
	assert.Zero(t, h.clock.Pending())
	assert.Zero(t, h.hub.Listeners(testRoom))
	assert.Equal(t, 1, h.recorder.rejections["insufficient_funds"])
}

func TestReentryDoesNotChargeTwice(t *testing.T) {
	h := newHarness(t, lessonBooking(7, model.BookingStatusConfirmed), 1000)

	first := h.enter(t, asStudent)
	h.join(t, studentRef)
	h.join(t, teacherRef)

	second := h.enter(t, asStudent)
	assert.Same(t, first, second)

	balance, chargeCalls, _ := h.wallet.state()
	assert.Equal(t, 1, chargeCalls)
	assert.Equal(t, int64(950), balance)
	assert.Equal(t, 1, h.hub.Listeners(testRoom))
	assert.Equal(t, 2, second.Snapshot().Participants)
}

func TestReentryAfterEndUsesWalletIdempotency(t *testing.T) {
	h := newHarness(t, lessonBooking(7, model.BookingStatusConfirmed), 1000)

	s := h.enter(t, asStudent)
	h.join(t, studentRef)
	h.join(t, teacherRef)
	require.True(t, s.End(context.Background()))

	again := h.enter(t, asStudent)
	assert.NotSame(t, s, again)

	balance, chargeCalls, _ := h.wallet.state()
	assert.Equal(t, 2, chargeCalls)
	assert.Equal(t, int64(950), balance)

	// бронирование уже завершено, повторный переход не нужен
	require.True(t, again.End(context.Background()))
	assert.Equal(t, []model.BookingStatus{model.BookingStatusCompleted}, h.bookings.calls())
}

func TestSessionAutoEndsAtHardLimit(t *testing.T) {
	h := newHarness(t, lessonBooking(7, model.BookingStatusConfirmed), 1000)

	s := h.enter(t, asStudent)
	h.join(t, studentRef)
	h.clock.Advance(time.Minute)
	h.join(t, teacherRef)

	h.clock.AdvanceTo(lessonStart.Add(40*time.Minute - time.Second))
	assert.Empty(t, h.presenter.byKind(NoticeTimeWarning))

	h.clock.AdvanceTo(lessonStart.Add(40 * time.Minute))
	warnings := h.presenter.byKind(NoticeTimeWarning)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Text, "5 minutes")

	h.clock.Advance(10 * time.Second)
	assert.Len(t, h.presenter.byKind(NoticeTimeWarningCleared), 1)

	h.clock.AdvanceTo(lessonStart.Add(45 * time.Minute))
	autoEnd := h.presenter.byKind(NoticeAutoEnd)
	require.Len(t, autoEnd, 1)
	assert.Equal(t, 15, autoEnd[0].CountdownSeconds)
	assert.False(t, s.Terminated())

	h.clock.Advance(14 * time.Second)
	assert.False(t, s.Terminated())

	h.clock.Advance(time.Second)
	snap := s.Snapshot()
	assert.True(t, snap.Terminated)
	assert.Equal(t, ReasonAutoEnd, snap.Reason)
	assert.Equal(t, []model.BookingStatus{model.BookingStatusCompleted}, h.bookings.calls())

	assert.Len(t, h.presenter.byKind(NoticeTimeWarning), 1)
	assert.Len(t, h.presenter.byKind(NoticeAutoEnd), 1)
	assert.Zero(t, h.clock.Pending())
}

func TestManualEndCancelsAutoEndCountdown(t *testing.T) {
	h := newHarness(t, lessonBooking(7, model.BookingStatusConfirmed), 1000)

	s := h.enter(t, asStudent)
	h.join(t, studentRef)
	h.join(t, teacherRef)
	h.clock.AdvanceTo(lessonStart.Add(45*time.Minute + 5*time.Second))

	require.True(t, s.End(context.Background()))
	assert.Equal(t, ReasonEnded, s.Snapshot().Reason)
	assert.Zero(t, h.clock.Pending())

	h.clock.Advance(time.Minute)
	assert.Equal(t, []model.BookingStatus{model.BookingStatusCompleted}, h.bookings.calls())
	assert.Equal(t, 1, h.recorder.terminations[string(ReasonEnded)])
	assert.Zero(t, h.recorder.terminations[string(ReasonAutoEnd)])
}

func TestTerminateIsIdempotent(t *testing.T) {
	h := newHarness(t, lessonBooking(7, model.BookingStatusConfirmed), 1000)

	s := h.enter(t, asStudent)
	h.join(t, studentRef)
	h.join(t, teacherRef)

	assert.True(t, s.End(context.Background()))
	assert.False(t, s.End(context.Background()))
	assert.False(t, s.Terminate(context.Background(), ReasonError))

	assert.Equal(t, []model.BookingStatus{model.BookingStatusCompleted}, h.bookings.calls())
	assert.Len(t, h.presenter.byKind(NoticeClosed), 1)
}

func TestStatusFailureDoesNotBlockTermination(t *testing.T) {
	h := newHarness(t, lessonBooking(7, model.BookingStatusConfirmed), 1000)
	h.bookings.setStatusErr(errors.New("connection reset"))

	s := h.enter(t, asStudent)
	h.join(t, studentRef)
	h.join(t, teacherRef)

	require.True(t, s.End(context.Background()))
	assert.True(t, s.Terminated())
	assert.Len(t, h.presenter.byKind(NoticeClosed), 1)

	pending := h.manager.PendingReconciliations()
	require.Len(t, pending, 1)
	assert.Equal(t, model.BookingStatusCompleted, pending[0].Status)
	assert.Nil(t, pending[0].Cancel)

	assert.Zero(t, h.manager.ReconcileStatuses(context.Background()))
	pending = h.manager.PendingReconciliations()
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].Attempts)

	h.bookings.setStatusErr(nil)
	assert.Equal(t, 1, h.manager.ReconcileStatuses(context.Background()))
	assert.Empty(t, h.manager.PendingReconciliations())
	assert.Len(t, h.bookings.calls(), 3)
}

func TestStudentLeavingBeforeTeacherAbandonsLesson(t *testing.T) {
	h := newHarness(t, lessonBooking(7, model.BookingStatusConfirmed), 1000)

	h.clock.Set(lessonStart.Add(-5 * time.Minute))
	s := h.enter(t, asStudent)
	h.join(t, studentRef)
	h.clock.Advance(2 * time.Minute)

	require.True(t, s.End(context.Background()))
	assert.Equal(t, ReasonAbandoned, s.Snapshot().Reason)

	balance, _, cancels := h.wallet.state()
	require.Len(t, cancels, 1)
	assert.Equal(t, model.InitiatorStudent, cancels[0].Initiator)
	assert.Equal(t, int64(1000), balance)
	assert.Empty(t, h.bookings.calls())

	closed := h.presenter.byKind(NoticeClosed)
	require.Len(t, closed, 1)
	assert.Contains(t, closed[0].Text, "Your wallet was refunded")
}

func TestTeacherIsNotChargedAndNeverArmsWatchdog(t *testing.T) {
	h := newHarness(t, lessonBooking(7, model.BookingStatusConfirmed), 1000)

	s, err := h.manager.Enter(context.Background(), "7", asTeacher, h.presenter)
	require.NoError(t, err)
	assert.Equal(t, RoleTeacher, s.Role())
	h.join(t, teacherRef)

	h.clock.AdvanceTo(lessonStart.Add(20 * time.Minute))

	_, chargeCalls, cancels := h.wallet.state()
	assert.Zero(t, chargeCalls)
	assert.Empty(t, cancels)
	snap := s.Snapshot()
	assert.Equal(t, "idle", snap.Watchdog)
	assert.True(t, snap.Running)

	// учитель завершает урок без отмены
	require.True(t, s.End(context.Background()))
	assert.Equal(t, ReasonEnded, s.Snapshot().Reason)
}

func TestUnparsableScheduleFallsBackToFirstArm(t *testing.T) {
	b := lessonBooking(7, model.BookingStatusConfirmed)
	b.ScheduledDate = "next tuesday"
	h := newHarness(t, b, 1000)

	s := h.enter(t, asStudent)
	h.clock.Advance(3 * time.Minute)
	h.join(t, studentRef)

	snap := s.Snapshot()
	require.NotNil(t, snap.Deadline)
	assert.Equal(t, lessonStart.Add(13*time.Minute), *snap.Deadline)

	h.clock.AdvanceTo(lessonStart.Add(13 * time.Minute))
	assert.True(t, s.Terminated())
	assert.Equal(t, ReasonNoShow, s.Snapshot().Reason)
}

func TestWatchdogArmsOnlyAfterLocalJoin(t *testing.T) {
	h := newHarness(t, lessonBooking(7, model.BookingStatusConfirmed), 1000)

	s := h.enter(t, asStudent)
	assert.Equal(t, "idle", s.Snapshot().Watchdog)
	assert.False(t, s.Snapshot().Running)

	h.clock.AdvanceTo(lessonStart.Add(12 * time.Minute))
	assert.False(t, s.Terminated())

	// дедлайн уже прошёл, срабатывание сразу после подключения
	h.join(t, studentRef)
	assert.Equal(t, "armed", s.Snapshot().Watchdog)
	h.clock.Advance(0)
	assert.True(t, s.Terminated())
}

func TestLeaveGuardAfterThirtySeconds(t *testing.T) {
	h := newHarness(t, lessonBooking(7, model.BookingStatusConfirmed), 1000)

	s := h.enter(t, asStudent)
	assert.False(t, s.ConfirmLeave())

	h.join(t, studentRef)
	h.join(t, teacherRef)
	h.clock.Advance(29 * time.Second)
	assert.False(t, s.ConfirmLeave())

	h.clock.Advance(time.Second)
	assert.True(t, s.ConfirmLeave())

	s.End(context.Background())
	assert.False(t, s.ConfirmLeave())
}

func TestOfflineDoesNotPauseTimers(t *testing.T) {
	h := newHarness(t, lessonBooking(7, model.BookingStatusConfirmed), 1000)

	s := h.enter(t, asStudent)
	h.join(t, studentRef)
	h.join(t, teacherRef)

	s.SetOnline(false)
	s.SetOnline(false)
	h.clock.Advance(2 * time.Minute)

	snap := s.Snapshot()
	assert.False(t, snap.Online)
	assert.True(t, snap.Running)
	assert.Equal(t, 2*time.Minute, snap.Elapsed)
	assert.Len(t, h.presenter.byKind(NoticeConnectionLost), 1)

	s.SetOnline(true)
	assert.Len(t, h.presenter.byKind(NoticeConnectionRestored), 1)
}

func TestShutdownSkipsStatusTransitions(t *testing.T) {
	h := newHarness(t, lessonBooking(7, model.BookingStatusConfirmed), 1000)

	s := h.enter(t, asStudent)
	h.join(t, studentRef)

	h.manager.Shutdown(context.Background())

	assert.True(t, s.Terminated())
	assert.Equal(t, ReasonShutdown, s.Snapshot().Reason)
	_, _, cancels := h.wallet.state()
	assert.Empty(t, cancels)
	assert.Empty(t, h.bookings.calls())
	assert.Zero(t, h.clock.Pending())
}

func TestPanelFailuresAreIsolated(t *testing.T) {
	h := newHarness(t, lessonBooking(7, model.BookingStatusConfirmed), 1000)
	s := h.enter(t, asStudent)

	require.NoError(t, s.SetDisplayMode(DisplaySplit))
	require.NoError(t, s.ReportPanelError(PanelWhiteboard, "canvas crashed"))

	snap := s.Snapshot()
	assert.True(t, snap.Panels[PanelWhiteboard].Failed)
	assert.Equal(t, "canvas crashed", snap.Panels[PanelWhiteboard].Error)
	assert.False(t, snap.Panels[PanelVideo].Failed)
	assert.True(t, snap.Panels[PanelVideo].Mounted)

	failed := h.presenter.byKind(NoticePanelFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, PanelWhiteboard, failed[0].Panel)
	assert.True(t, failed[0].Retryable)

	require.NoError(t, s.RetryPanel(PanelWhiteboard))
	snap = s.Snapshot()
	assert.False(t, snap.Panels[PanelWhiteboard].Failed)
	assert.Equal(t, 1, snap.Panels[PanelWhiteboard].Attempts)

	require.NoError(t, s.SetDisplayMode(DisplayVideo))
	assert.False(t, s.Snapshot().Panels[PanelWhiteboard].Mounted)
	assert.True(t, s.Snapshot().Panels[PanelVideo].Mounted)

	assert.ErrorIs(t, s.ReportPanelError(Panel("chat"), "boom"), ErrUnknownPanel)
	assert.ErrorIs(t, s.SetDisplayMode(DisplayMode("grid")), ErrUnknownDisplay)
}

func TestRejectionsAreCounted(t *testing.T) {
	h := newHarness(t, lessonBooking(7, model.BookingStatusPending), 1000)

	_, err := h.manager.Enter(context.Background(), "7", asStudent, nil)
	require.ErrorIs(t, err, ErrBookingNotJoinable)
	_, err = h.manager.Enter(context.Background(), "", asStudent, nil)
	require.ErrorIs(t, err, ErrMissingBookingID)

	assert.Equal(t, 1, h.recorder.rejections["booking_not_joinable"])
	assert.Equal(t, 1, h.recorder.rejections["missing_booking_id"])
	_, chargeCalls, _ := h.wallet.state()
	assert.Zero(t, chargeCalls)
}

func TestGetReturnsLiveSession(t *testing.T) {
	h := newHarness(t, lessonBooking(7, model.BookingStatusConfirmed), 1000)
	s := h.enter(t, asStudent)

	got, err := h.manager.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)

	s.Terminate(context.Background(), ReasonError)
	_, err = h.manager.Get(s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestOwnedByMatchesRoleReference(t *testing.T) {
	h := newHarness(t, lessonBooking(7, model.BookingStatusConfirmed), 1000)
	s := h.enter(t, asStudent)

	assert.True(t, s.OwnedBy(Identity{AuthID: studentRef}))
	assert.False(t, s.OwnedBy(asTeacher))
	assert.False(t, s.OwnedBy(Identity{}))
}

func TestRejectedTransitionIsNotQueued(t *testing.T) {
	h := newHarness(t, lessonBooking(7, model.BookingStatusConfirmed), 1000)
	h.bookings.setStatusErr(fmt.Errorf("set booking status: %w", model.ErrInvalidTransition))

	s := h.enter(t, asStudent)
	h.join(t, studentRef)
	h.join(t, teacherRef)

	require.True(t, s.End(context.Background()))
	assert.True(t, s.Terminated())
	assert.Empty(t, h.manager.PendingReconciliations())
	assert.Len(t, h.presenter.byKind(NoticeClosed), 1)
}

func TestRejectedCancellationIsNotQueued(t *testing.T) {
	h := newHarness(t, lessonBooking(7, model.BookingStatusConfirmed), 1000)
	h.wallet.rejectsAll = true

	s := h.enter(t, asStudent)
	h.join(t, studentRef)
	h.clock.Advance(11 * time.Minute)

	require.True(t, s.Terminated())
	assert.Empty(t, h.manager.PendingReconciliations())
	closed := h.presenter.byKind(NoticeClosed)
	require.Len(t, closed, 1)
	assert.Contains(t, closed[0].Text, "refund could not be confirmed")
}

func TestReconcileDropsPermanentFailures(t *testing.T) {
	h := newHarness(t, lessonBooking(7, model.BookingStatusConfirmed), 1000)
	h.bookings.setStatusErr(errors.New("connection reset"))

	s := h.enter(t, asStudent)
	h.join(t, studentRef)
	h.join(t, teacherRef)
	require.True(t, s.End(context.Background()))
	require.Len(t, h.manager.PendingReconciliations(), 1)

	h.bookings.setStatusErr(fmt.Errorf("set booking status: %w", model.ErrInvalidTransition))
	assert.Zero(t, h.manager.ReconcileStatuses(context.Background()))
	assert.Empty(t, h.manager.PendingReconciliations())

	// запись больше не повторяется
	assert.Zero(t, h.manager.ReconcileStatuses(context.Background()))
	assert.Len(t, h.bookings.calls(), 2)
}

func TestNoShowClosesTeacherSession(t *testing.T) {
	h := newHarness(t, lessonBooking(7, model.BookingStatusConfirmed), 1000)

	teacherView := &recordingPresenter{}
	teacher, err := h.manager.Enter(context.Background(), "7", asTeacher, teacherView)
	require.NoError(t, err)

	student := h.enter(t, asStudent)
	h.join(t, studentRef)
	h.clock.AdvanceTo(lessonStart.Add(10 * time.Minute))

	require.True(t, student.Terminated())
	assert.True(t, teacher.Terminated())
	assert.Equal(t, ReasonCancelled, teacher.Snapshot().Reason)
	assert.Zero(t, h.manager.Active())

	closed := teacherView.byKind(NoticeClosed)
	require.Len(t, closed, 1)
	assert.Equal(t, "The lesson was cancelled.", closed[0].Text)

	_, _, cancels := h.wallet.state()
	assert.Len(t, cancels, 1)
	assert.Empty(t, h.bookings.calls())
	assert.False(t, teacher.End(context.Background()))
	assert.Empty(t, h.bookings.calls())
}
