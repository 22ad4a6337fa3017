package console

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ent0n29/voicedirect/internal/voice"
)

// Run drives orch from the terminal until the user quits or ctx ends.
func Run(ctx context.Context, orch *voice.Orchestrator) error {
	program := tea.NewProgram(NewModel(ctx, orch), tea.WithAltScreen(), tea.WithContext(ctx))
	orch.OnChange(func(s voice.Snapshot) { program.Send(SnapshotMsg(s)) })
	defer orch.OnChange(nil)

	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("console: %w", err)
	}
	return nil
}
