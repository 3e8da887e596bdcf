package session

import "time"

// Settings параметры жизненного цикла сессии
type Settings struct {
	FeeCents         int64         // фиксированная стоимость урока
	NoShowGrace      time.Duration // сколько ждём второго участника после начала
	WarningAfter     time.Duration // когда предупредить о скором окончании
	HardLimit        time.Duration // жёсткий лимит длительности
	AutoEndCountdown time.Duration // отсчёт перед автоматическим завершением
	WarningDisplay   time.Duration // сколько показывается предупреждение
	LeaveGuardAfter  time.Duration // после этого выход требует подтверждения
	TickInterval     time.Duration
	CallTimeout      time.Duration // таймаут сетевых вызовов из таймеров
	Location         *time.Location
}

// DefaultSettings возвращает значения по умолчанию
func DefaultSettings() Settings {
	return Settings{
		FeeCents:         50,
		NoShowGrace:      10 * time.Minute,
		WarningAfter:     40 * time.Minute,
		HardLimit:        45 * time.Minute,
		AutoEndCountdown: 15 * time.Second,
		WarningDisplay:   10 * time.Second,
		LeaveGuardAfter:  30 * time.Second,
		TickInterval:     time.Second,
		CallTimeout:      10 * time.Second,
		Location:         time.Local,
	}
}

// withDefaults заполняет незаданные поля
func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.FeeCents <= 0 {
		s.FeeCents = d.FeeCents
	}
	if s.NoShowGrace <= 0 {
		s.NoShowGrace = d.NoShowGrace
	}
	if s.WarningAfter <= 0 {
		s.WarningAfter = d.WarningAfter
	}
	if s.HardLimit <= 0 {
		s.HardLimit = d.HardLimit
	}
	if s.AutoEndCountdown <= 0 {
		s.AutoEndCountdown = d.AutoEndCountdown
	}
	if s.WarningDisplay <= 0 {
		s.WarningDisplay = d.WarningDisplay
	}
	if s.LeaveGuardAfter <= 0 {
		s.LeaveGuardAfter = d.LeaveGuardAfter
	}
	if s.TickInterval <= 0 {
		s.TickInterval = d.TickInterval
	}
	if s.CallTimeout <= 0 {
		s.CallTimeout = d.CallTimeout
	}
	if s.Location == nil {
		s.Location = d.Location
	}
	return s
}
