package session

import (
	"strings"
	"time"

	"github.com/Freeeeeet/lessonroom/internal/model"
)

type WatchdogState int

const (
	WatchdogIdle WatchdogState = iota
	WatchdogArmed
	WatchdogFired
)

func (s WatchdogState) String() string {
	switch s {
	case WatchdogIdle:
		return "idle"
	case WatchdogArmed:
		return "armed"
	case WatchdogFired:
		return "fired"
	default:
		return "unknown"
	}
}

var scheduleLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ScheduledStart разбирает локальные дату и время начала урока.
// ok == false если расписание не удалось разобрать.
func ScheduledStart(b *model.Booking, loc *time.Location) (time.Time, bool) {
	if b == nil {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}

	date := strings.TrimSpace(b.ScheduledDate)
	start := strings.TrimSpace(b.StartTime)

	// Иногда дата приходит сразу со временем: 2026-03-01T09:00:00
	if i := strings.IndexByte(date, 'T'); i > 0 {
		if start == "" {
			start = date[i+1:]
		}
		date = date[:i]
	}
	if date == "" || start == "" {
		return time.Time{}, false
	}

	value := date + " " + start
	for _, layout := range scheduleLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// NoShowWatchdog отменяет сессию, если второй участник так и не подключился
type NoShowWatchdog struct {
	clock     Clock
	grace     time.Duration
	start     time.Time
	scheduled bool

	state       WatchdogState
	deadline    time.Time
	hasDeadline bool
	triggered   bool
	timer       CancelHandle
	gen         uint64
}

// NewNoShowWatchdog создаёт сторожа для расписания урока
func NewNoShowWatchdog(clock Clock, grace time.Duration, start time.Time, scheduled bool) *NoShowWatchdog {
	return &NoShowWatchdog{
		clock:     clock,
		grace:     grace,
		start:     start,
		scheduled: scheduled,
	}
}

// State текущее состояние
func (w *NoShowWatchdog) State() WatchdogState {
	return w.state
}

// Deadline момент срабатывания, если он уже вычислен
func (w *NoShowWatchdog) Deadline() (time.Time, bool) {
	return w.deadline, w.hasDeadline
}

// Evaluate приводит сторожа в соответствие с текущими условиями.
// Присутствие второго участника снимает таймер, его уход взводит сторожа заново
// к тому же дедлайну. fire вызывается таймером с номером поколения, в котором он был заведён.
func (w *NoShowWatchdog) Evaluate(eligible bool, participants int, fire func(gen uint64)) {
	if w.state == WatchdogFired {
		return
	}

	if participants >= 2 || !eligible || w.triggered {
		if w.state == WatchdogArmed {
			w.cancel()
			w.state = WatchdogIdle
		}
		return
	}

	if w.state == WatchdogArmed {
		return
	}

	// Дедлайн считается один раз от исходного расписания, повторное взведение его не сдвигает
	if !w.hasDeadline {
		if w.scheduled {
			w.deadline = w.start.Add(w.grace)
		} else {
			w.deadline = w.clock.Now().Add(w.grace)
		}
		w.hasDeadline = true
	}

	w.gen++
	gen := w.gen
	delay := w.deadline.Sub(w.clock.Now())
	if delay < 0 {
		delay = 0
	}
	w.timer = w.clock.AfterFunc(delay, func() { fire(gen) })
	w.state = WatchdogArmed
}

// Fire повторно проверяет условия в момент срабатывания.
// true означает что отмена должна быть выполнена, и только один раз.
func (w *NoShowWatchdog) Fire(gen uint64, eligible bool, participants int) bool {
	if w.state != WatchdogArmed || gen != w.gen || w.triggered {
		return false
	}

	w.timer = nil
	if participants >= 2 || !eligible {
		w.state = WatchdogIdle
		return false
	}

	w.triggered = true
	w.state = WatchdogFired
	return true
}

// Stop снимает таймер при завершении сессии
func (w *NoShowWatchdog) Stop() {
	w.cancel()
	if w.state == WatchdogArmed {
		w.state = WatchdogIdle
	}
}

func (w *NoShowWatchdog) cancel() {
	stopTimer(w.timer)
	w.timer = nil
	w.gen++
}
