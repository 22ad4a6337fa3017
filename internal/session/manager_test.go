package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerCreateGetEnd(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create("chill_gz")
	require.NotEmpty(t, s.ID)

	got, err := m.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, "chill_gz", got.PersonaID)
	assert.Equal(t, StatusActive, got.Status)

	ended, err := m.End(s.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusEnded, ended.Status)

	_, err = m.End(s.ID)
	assert.ErrorIs(t, err, ErrEnded)
	assert.ErrorIs(t, m.Touch(s.ID), ErrEnded)

	_, err = m.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManagerTurnBookkeeping(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create("chill_gz")

	require.NoError(t, m.StartTurn(s.ID, "turn-1"))
	require.NoError(t, m.FinishTurn(s.ID))
	require.NoError(t, m.StartTurn(s.ID, "turn-2"))
	require.NoError(t, m.Interrupt(s.ID))
	require.NoError(t, m.SetPersona(s.ID, "professional"))

	got, err := m.Get(s.ID)
	require.NoError(t, err)
	assert.Empty(t, got.ActiveTurnID)
	assert.Equal(t, 1, got.TurnCount)
	assert.Equal(t, 1, got.InterruptionCount)
	assert.Equal(t, "professional", got.PersonaID)
}

func TestManagerExpireInactive(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewManager(time.Minute)
	m.now = func() time.Time { return now }

	idle := m.Create("chill_gz")
	now = now.Add(45 * time.Second)
	busy := m.Create("hype_friend")

	var expired []string
	m.SetExpireHook(func(s *Session) { expired = append(expired, s.ID) })

	now = now.Add(30 * time.Second)
	m.expireInactive()
	assert.Equal(t, []string{idle.ID}, expired)
	assert.Equal(t, 1, m.ActiveCount())

	got, err := m.Get(idle.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusEnded, got.Status)

	// Ended sessions are forgotten one timeout later.
	require.NoError(t, m.Touch(busy.ID))
	now = now.Add(time.Minute)
	m.expireInactive()
	_, err = m.Get(idle.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManagerJanitorExpiresInactive(t *testing.T) {
	m := NewManager(30 * time.Millisecond)
	s := m.Create("chill_gz")

	var mu sync.Mutex
	var hooked []string
	m.SetExpireHook(func(s *Session) {
		mu.Lock()
		hooked = append(hooked, s.ID)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartJanitor(ctx, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(hooked) == 1 && hooked[0] == s.ID
	}, time.Second, 10*time.Millisecond)
}
