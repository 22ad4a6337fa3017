package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrEnded    = errors.New("session ended")
)

// Session is the bookkeeping record of one conversation. The conversation itself
// lives with whoever created the session.
type Session struct {
	ID                string    `json:"session_id"`
	Status            Status    `json:"status"`
	PersonaID         string    `json:"persona_id"`
	ActiveTurnID      string    `json:"active_turn_id,omitempty"`
	TurnCount         int       `json:"turn_count"`
	InterruptionCount int       `json:"interruption_count"`
	StartedAt         time.Time `json:"started_at"`
	LastActivityAt    time.Time `json:"last_activity_at"`
}

type Manager struct {
	mu                sync.RWMutex
	sessions          map[string]*Session
	inactivityTimeout time.Duration
	onExpire          func(*Session)
	now               func() time.Time
}

func NewManager(inactivityTimeout time.Duration) *Manager {
	if inactivityTimeout <= 0 {
		inactivityTimeout = 10 * time.Minute
	}
	return &Manager{
		sessions:          make(map[string]*Session),
		inactivityTimeout: inactivityTimeout,
		now:               func() time.Time { return time.Now().UTC() },
	}
}

// SetExpireHook registers a callback run, outside the lock, for every session
// the janitor ends.
func (m *Manager) SetExpireHook(hook func(*Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = hook
}

func (m *Manager) InactivityTimeout() time.Duration { return m.inactivityTimeout }

func (m *Manager) Create(personaID string) *Session {
	now := m.now()
	s := &Session{
		ID:             uuid.NewString(),
		PersonaID:      personaID,
		Status:         StatusActive,
		StartedAt:      now,
		LastActivityAt: now,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return clone(s)
}

func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(s), nil
}

// Touch records activity and fails for sessions that already ended.
func (m *Manager) Touch(sessionID string) error {
	return m.update(sessionID, func(*Session) {})
}

func (m *Manager) SetPersona(sessionID, personaID string) error {
	return m.update(sessionID, func(s *Session) { s.PersonaID = personaID })
}

func (m *Manager) StartTurn(sessionID, turnID string) error {
	return m.update(sessionID, func(s *Session) { s.ActiveTurnID = turnID })
}

// FinishTurn clears the active turn and counts it.
func (m *Manager) FinishTurn(sessionID string) error {
	return m.update(sessionID, func(s *Session) {
		if s.ActiveTurnID != "" {
			s.TurnCount++
		}
		s.ActiveTurnID = ""
	})
}

func (m *Manager) Interrupt(sessionID string) error {
	return m.update(sessionID, func(s *Session) {
		s.InterruptionCount++
		s.ActiveTurnID = ""
	})
}

func (m *Manager) End(sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	if s.Status == StatusEnded {
		return nil, ErrEnded
	}
	s.Status = StatusEnded
	s.ActiveTurnID = ""
	s.LastActivityAt = m.now()
	return clone(s), nil
}

func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.expireInactive()
			}
		}
	}()
}

func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, s := range m.sessions {
		if s.Status == StatusActive {
			count++
		}
	}
	return count
}

func (m *Manager) update(sessionID string, mutate func(*Session)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	if s.Status != StatusActive {
		return ErrEnded
	}
	mutate(s)
	s.LastActivityAt = m.now()
	return nil
}

// expireInactive ends idle sessions and forgets sessions that ended more than one
// timeout ago.
func (m *Manager) expireInactive() {
	now := m.now()
	var expired []*Session

	m.mu.Lock()
	for id, s := range m.sessions {
		idle := now.Sub(s.LastActivityAt)
		if s.Status != StatusActive {
			if idle >= m.inactivityTimeout {
				delete(m.sessions, id)
			}
			continue
		}
		if idle < m.inactivityTimeout {
			continue
		}
		s.Status = StatusEnded
		s.ActiveTurnID = ""
		s.LastActivityAt = now
		expired = append(expired, clone(s))
	}
	hook := m.onExpire
	m.mu.Unlock()

	if hook != nil {
		for _, s := range expired {
			hook(s)
		}
	}
}

func clone(s *Session) *Session {
	c := *s
	return &c
}
