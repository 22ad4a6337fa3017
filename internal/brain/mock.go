package brain

import (
	"context"
	"fmt"
	"strings"

	"github.com/ent0n29/voicedirect/internal/memory"
	"github.com/ent0n29/voicedirect/internal/voice"
)

// MockCompleter provides deterministic local replies when no model is configured.
type MockCompleter struct{}

func NewMockCompleter() *MockCompleter { return &MockCompleter{} }

func (m *MockCompleter) Complete(ctx context.Context, turns []memory.Turn) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", voice.Wrap(voice.ErrCompletionFailed, err)
	}
	if len(turns) == 0 {
		return "", voice.Wrap(voice.ErrCompletionFailed, fmt.Errorf("no turns"))
	}

	heard := spokenText(turns[len(turns)-1].Content)
	if heard == "" {
		heard = "nothing much"
	}
	exchanges := 0
	for _, t := range turns {
		if t.Role == memory.RoleAssistant {
			exchanges++
		}
	}
	if exchanges == 0 {
		return fmt.Sprintf("I heard you: %s", heard), nil
	}
	return fmt.Sprintf("I heard you: %s. That makes %d things you've told me.", heard, exchanges+1), nil
}

// spokenText strips the persona prompt from a user turn.
func spokenText(content string) string {
	const marker = "User said: "
	if i := strings.LastIndex(content, marker); i >= 0 {
		content = content[i+len(marker):]
	}
	return strings.TrimSpace(content)
}
