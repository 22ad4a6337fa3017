// Package console is a terminal front end for one local conversation.
package console

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ent0n29/voicedirect/internal/persona"
	"github.com/ent0n29/voicedirect/internal/voice"
)

// Controller is the part of the orchestrator the console drives.
type Controller interface {
	Press(ctx context.Context) error
	Release(ctx context.Context) error
	Cancel() error
	Reset()
	SelectPersona(id string) error
	Snapshot() voice.Snapshot
}

// SnapshotMsg delivers an orchestrator change to the model.
type SnapshotMsg voice.Snapshot

// actionDoneMsg reports the outcome of a blocking controller call.
type actionDoneMsg struct {
	action string
	err    error
}

type Model struct {
	ctx    context.Context
	ctrl   Controller
	snap   voice.Snapshot
	width  int
	notice string
	styles styles
}

func NewModel(ctx context.Context, ctrl Controller) Model {
	return Model{
		ctx:    ctx,
		ctrl:   ctrl,
		snap:   ctrl.Snapshot(),
		styles: defaultStyles(),
	}
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case SnapshotMsg:
		if msg.Version > m.snap.Version {
			m.snap = voice.Snapshot(msg)
		}
	case actionDoneMsg:
		m.notice = noticeFor(msg)
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		_ = m.ctrl.Cancel()
		return m, tea.Quit
	case " ":
		m.notice = ""
		if m.snap.State == voice.StateListening {
			return m, m.run("release", func() error { return m.ctrl.Release(m.ctx) })
		}
		return m, m.run("press", func() error { return m.ctrl.Press(m.ctx) })
	case "c", "esc":
		return m, m.run("cancel", m.ctrl.Cancel)
	case "r":
		m.notice = ""
		return m, m.run("reset", func() error {
			m.ctrl.Reset()
			return nil
		})
	case "tab":
		next := persona.Next(m.snap.PersonaID)
		return m, m.run("persona", func() error { return m.ctrl.SelectPersona(string(next.ID)) })
	}
	return m, nil
}

// run executes a controller call off the UI loop; Release blocks for a whole turn.
func (m Model) run(action string, fn func() error) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{action: action, err: fn()}
	}
}

func noticeFor(msg actionDoneMsg) string {
	switch {
	case msg.err == nil:
		return ""
	case errors.Is(msg.err, voice.ErrEmptyCapture):
		return "Didn't catch anything. Hold space and talk."
	default:
		// The snapshot carries the user-visible error.
		return ""
	}
}

func (m Model) View() string {
	var b strings.Builder
	s := m.styles

	b.WriteString(s.title.Render("voicedirect"))
	b.WriteString("  ")
	b.WriteString(s.persona.Render(m.snap.PersonaLabel))
	b.WriteString("\n\n")

	if text := m.snap.StatusText; text != "" {
		b.WriteString(s.status[string(m.snap.State)].Render(text))
	} else {
		b.WriteString(s.idle.Render("Press space to talk"))
	}
	b.WriteString("\n")

	if m.snap.Error != "" {
		b.WriteString("\n")
		b.WriteString(s.errBox.Render(m.snap.Error))
		b.WriteString("\n")
	}
	if m.notice != "" {
		b.WriteString("\n")
		b.WriteString(s.muted.Render(m.notice))
		b.WriteString("\n")
	}
	if m.snap.Reply != "" {
		reply := s.reply
		if m.width > 4 {
			reply = reply.Width(m.width - 4)
		}
		b.WriteString("\n")
		b.WriteString(reply.Render(m.snap.Reply))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(s.muted.Render(fmt.Sprintf("memory %d turns · space talk/send · c cancel · r reset · tab persona · q quit", len(m.snap.Memory))))
	b.WriteString("\n")
	return b.String()
}
