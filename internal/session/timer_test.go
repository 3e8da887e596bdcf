package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionClock_ThresholdsFireOnce(t *testing.T) {
	clock := newFakeClock(lessonStart)
	c := NewSessionClock(clock, 7*time.Second, 40*time.Minute, 45*time.Minute)

	var warnings, autoEnds int
	var onTick func(gen uint64)
	onTick = func(gen uint64) {
		tick, ok := c.Tick(gen)
		if !ok {
			return
		}
		if tick.Warning {
			warnings++
		}
		if tick.AutoEnd {
			autoEnds++
		}
		// повторная обработка того же тика ничего не даёт
		_, again := c.Tick(gen)
		assert.False(t, again)
	}

	c.Start(onTick)
	c.Start(onTick)
	clock.Advance(50 * time.Minute)

	assert.Equal(t, 1, warnings)
	assert.Equal(t, 1, autoEnds)
	warn, auto := c.Flags()
	assert.True(t, warn)
	assert.True(t, auto)
}

func TestSessionClock_StopFreezesElapsed(t *testing.T) {
	clock := newFakeClock(lessonStart)
	c := NewSessionClock(clock, time.Second, 40*time.Minute, 45*time.Minute)

	assert.Zero(t, c.Elapsed())
	c.Start(func(gen uint64) { c.Tick(gen) })
	clock.Advance(90 * time.Second)
	c.Stop()
	clock.Advance(time.Minute)

	assert.False(t, c.Running())
	assert.Equal(t, 90*time.Second, c.Elapsed())
	assert.Zero(t, clock.Pending())

	// после остановки часы не запускаются заново
	c.Start(func(gen uint64) { c.Tick(gen) })
	assert.False(t, c.Running())
}

func TestPresence_CountsLocalAndRemote(t *testing.T) {
	p := NewPresence()
	p.RemoteJoin()
	assert.Equal(t, 1, p.Count())

	p.Joined()
	assert.Equal(t, 2, p.Count())

	p.RemoteLeave()
	p.RemoteLeave()
	assert.Equal(t, 1, p.Count())

	p.Reset()
	assert.Zero(t, p.Count())
	assert.False(t, p.LocalJoined())
}
