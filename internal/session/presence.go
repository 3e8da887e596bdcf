package session

import "sync"

// Presence счётчик подключённых участников по сигналам провайдера.
// Изменяется только через Joined, RemoteJoin и RemoteLeave.
type Presence struct {
	mu     sync.Mutex
	local  bool
	remote int
}

// NewPresence создаёт пустой счётчик
func NewPresence() *Presence {
	return &Presence{}
}

// Joined провайдер подтвердил подключение локального участника
func (p *Presence) Joined() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.local = true
}

// RemoteJoin подключился удалённый участник
func (p *Presence) RemoteJoin() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.remote++
}

// RemoteLeave отключился удалённый участник, счётчик не опускается ниже 1
func (p *Presence) RemoteLeave() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.remote > 0 {
		p.remote--
	}
}

// Count текущее число участников вместе с локальным
func (p *Presence) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.local {
		return p.remote
	}
	return 1 + p.remote
}

// Reset обнуляет счётчик перед повторной подпиской, провайдер заново пришлёт присутствующих
func (p *Presence) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.local = false
	p.remote = 0
}

// LocalJoined подтверждён ли локальный участник
func (p *Presence) LocalJoined() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.local
}
