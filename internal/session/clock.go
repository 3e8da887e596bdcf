package session

import "time"

// CancelHandle отменяет отложенное действие. Stop возвращает false,
// если действие уже выполнилось или было отменено раньше.
type CancelHandle interface {
	Stop() bool
}

// Clock планировщик отложенных действий сессии.
// Дедлайн неявки, предупреждение и автозавершение выражены через него одинаково.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) CancelHandle
}

type realClock struct{}

// RealClock возвращает планировщик поверх стандартных таймеров
func RealClock() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, f func()) CancelHandle {
	return time.AfterFunc(d, f)
}

// stopTimer безопасно останавливает таймер, который может быть nil
func stopTimer(h CancelHandle) {
	if h != nil {
		h.Stop()
	}
}
