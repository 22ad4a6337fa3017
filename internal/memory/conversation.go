// Package memory keeps the bounded, in-process conversation log for one session.
package memory

import "sync"

// DefaultLimit is the number of turns kept when no limit is configured.
const DefaultLimit = 6

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one immutable message in the conversation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Conversation is an ordered log capped at the most recent limit turns.
// The oldest turns are dropped silently once the cap is exceeded.
type Conversation struct {
	mu    sync.RWMutex
	limit int
	turns []Turn
}

func NewConversation(limit int) *Conversation {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Conversation{limit: limit}
}

// Append adds turns in order, then trims to the cap. Callers commit a full
// exchange in one call so readers never observe a user turn without its reply.
func (c *Conversation) Append(turns ...Turn) {
	if len(turns) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = append(c.turns, turns...)
	if over := len(c.turns) - c.limit; over > 0 {
		trimmed := make([]Turn, c.limit)
		copy(trimmed, c.turns[over:])
		c.turns = trimmed
	}
}

// Turns returns a copy of the log, oldest first.
func (c *Conversation) Turns() []Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// WithPending returns the log followed by a turn that is not yet committed.
func (c *Conversation) WithPending(t Turn) []Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Turn, 0, len(c.turns)+1)
	out = append(out, c.turns...)
	return append(out, t)
}

func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.turns)
}

func (c *Conversation) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = nil
}
