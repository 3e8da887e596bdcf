package session

import "time"

// ClockTick что произошло на очередном тике часов сессии
type ClockTick struct {
	Elapsed time.Duration
	Warning bool // впервые достигнут порог предупреждения
	AutoEnd bool // впервые достигнут жёсткий лимит
}

// SessionClock считает время сессии и один раз отмечает каждый порог
type SessionClock struct {
	clock     Clock
	interval  time.Duration
	warnAt    time.Duration
	hardLimit time.Duration

	startedAt time.Time
	stoppedAt time.Time
	running   bool
	timer     CancelHandle
	gen       uint64
	onTick    func(gen uint64)

	warningFired bool
	autoEndFired bool
}

// NewSessionClock создаёт часы сессии
func NewSessionClock(clock Clock, interval, warnAt, hardLimit time.Duration) *SessionClock {
	return &SessionClock{
		clock:     clock,
		interval:  interval,
		warnAt:    warnAt,
		hardLimit: hardLimit,
	}
}

// Start запускает тики. Повторный запуск ничего не делает
func (c *SessionClock) Start(onTick func(gen uint64)) {
	if c.running || !c.startedAt.IsZero() {
		return
	}
	c.startedAt = c.clock.Now()
	c.running = true
	c.onTick = onTick
	c.schedule()
}

func (c *SessionClock) schedule() {
	c.gen++
	gen := c.gen
	onTick := c.onTick
	c.timer = c.clock.AfterFunc(c.interval, func() { onTick(gen) })
}

// Tick обрабатывает срабатывание таймера и планирует следующее.
// Пороги сравниваются с флагами, а не с окном, поэтому дрожание тиков не даёт повторов.
func (c *SessionClock) Tick(gen uint64) (ClockTick, bool) {
	if !c.running || gen != c.gen {
		return ClockTick{}, false
	}

	tick := ClockTick{Elapsed: c.Elapsed()}
	if !c.warningFired && tick.Elapsed >= c.warnAt {
		c.warningFired = true
		tick.Warning = true
	}
	if !c.autoEndFired && tick.Elapsed >= c.hardLimit {
		c.autoEndFired = true
		tick.AutoEnd = true
	}

	c.schedule()
	return tick, true
}

// Stop останавливает тики, время замирает
func (c *SessionClock) Stop() {
	if !c.running {
		return
	}
	c.running = false
	c.stoppedAt = c.clock.Now()
	stopTimer(c.timer)
	c.timer = nil
	c.gen++
}

// Running идут ли часы
func (c *SessionClock) Running() bool {
	return c.running
}

// Elapsed прошедшее время сессии по настенным часам
func (c *SessionClock) Elapsed() time.Duration {
	if c.startedAt.IsZero() {
		return 0
	}
	if !c.running {
		return c.stoppedAt.Sub(c.startedAt)
	}
	return c.clock.Now().Sub(c.startedAt)
}

// Flags состояние одноразовых флагов
func (c *SessionClock) Flags() (warningFired, autoEndFired bool) {
	return c.warningFired, c.autoEndFired
}
