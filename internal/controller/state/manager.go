package state

import (
	"sync"
)

// Manager управляет состояниями пользователей
type Manager struct {
	mu     sync.RWMutex
	states map[int64]*UserData // telegramID -> UserData
}

// NewManager создаёт новый менеджер состояний
func NewManager() *Manager {
	return &Manager{
		states: make(map[int64]*UserData),
	}
}

// GetState получает текущее состояние пользователя
func (sm *Manager) GetState(telegramID int64) UserState {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if userData, exists := sm.states[telegramID]; exists {
		return userData.State
	}
	return StateNone
}

// SetState устанавливает состояние пользователя, открытая сессия сохраняется
func (sm *Manager) SetState(telegramID int64, state UserState) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	userData := sm.ensure(telegramID)
	userData.State = state
	sm.cleanup(telegramID)
}

// ClearState сбрасывает диалог, но не открытую сессию
func (sm *Manager) ClearState(telegramID int64) {
	sm.SetState(telegramID, StateNone)
}

// SetSession запоминает открытую сессию пользователя
func (sm *Manager) SetSession(telegramID int64, sessionID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.ensure(telegramID).SessionID = sessionID
	sm.cleanup(telegramID)
}

// Session возвращает открытую сессию пользователя
func (sm *Manager) Session(telegramID int64) (string, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if userData, exists := sm.states[telegramID]; exists && userData.SessionID != "" {
		return userData.SessionID, true
	}
	return "", false
}

// ClearSession забывает сессию, если она всё ещё текущая
func (sm *Manager) ClearSession(telegramID int64, sessionID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	userData, exists := sm.states[telegramID]
	if !exists || userData.SessionID != sessionID {
		return
	}
	userData.SessionID = ""
	if userData.State == StateConfirmingLeave {
		userData.State = StateNone
	}
	sm.cleanup(telegramID)
}

func (sm *Manager) ensure(telegramID int64) *UserData {
	userData, exists := sm.states[telegramID]
	if !exists {
		userData = &UserData{}
		sm.states[telegramID] = userData
	}
	return userData
}

// Пустые записи удаляем
func (sm *Manager) cleanup(telegramID int64) {
	if userData := sm.states[telegramID]; userData != nil && userData.State == StateNone && userData.SessionID == "" {
		delete(sm.states, telegramID)
	}
}

// Len количество пользователей с состоянием
func (sm *Manager) Len() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.states)
}
