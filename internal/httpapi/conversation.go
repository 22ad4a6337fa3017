package httpapi

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ent0n29/voicedirect/internal/audio"
	"github.com/ent0n29/voicedirect/internal/capture"
	"github.com/ent0n29/voicedirect/internal/observability"
	"github.com/ent0n29/voicedirect/internal/playback"
	"github.com/ent0n29/voicedirect/internal/protocol"
	"github.com/ent0n29/voicedirect/internal/reliability"
	"github.com/ent0n29/voicedirect/internal/session"
	"github.com/ent0n29/voicedirect/internal/voice"
)

const (
	actionPress   = protocol.ActionPress
	actionRelease = protocol.ActionRelease
	actionCancel  = protocol.ActionCancel
	actionLeave   = protocol.ActionLeave
	actionReset   = protocol.ActionReset

	outboundQueueSize = 64
	wsReadTimeout     = 120 * time.Second
	wsPingInterval    = 30 * time.Second
	wsWriteTimeout    = 10 * time.Second
)

var (
	errNoClient     = errors.New("no client connected")
	errOutboundFull = errors.New("outbound queue full")
	errClientBusy   = errors.New("session already has a connected client")
)

// conversation is the live side of a session: an orchestrator whose microphone and
// speaker belong to the websocket client currently attached.
type conversation struct {
	id       string
	orch     *voice.Orchestrator
	mic      *capture.StreamDevice
	player   *playback.RemotePlayer
	sessions *session.Manager
	metrics  *observability.Metrics
	logger   zerolog.Logger
	ctx      context.Context

	mu          sync.Mutex
	outbound    chan any
	lastVersion uint64
	lastState   voice.State
}

func (s *Server) newConversation(sessionID, personaID string) (*conversation, error) {
	logger := s.logger.With().Str("session_id", sessionID).Logger()
	c := &conversation{
		id:        sessionID,
		mic:       capture.NewStreamDevice(logger),
		sessions:  s.sessions,
		metrics:   s.metrics,
		logger:    logger,
		ctx:       s.baseCtx,
		lastState: voice.StateIdle,
	}
	c.player = playback.NewRemotePlayer(c)
	orch, err := s.factory.NewConversation(personaID, c.mic, c.player, logger)
	if err != nil {
		return nil, err
	}
	c.orch = orch
	orch.OnChange(c.observe)
	return c, nil
}

func (c *conversation) dispatch(action string) error {
	switch action {
	case actionPress:
		return c.orch.Press(c.ctx)
	case actionRelease:
		return c.orch.Release(c.ctx)
	case actionCancel:
		return c.orch.Cancel()
	case actionLeave:
		return c.orch.Leave()
	case actionReset:
		c.orch.Reset()
		return nil
	default:
		return fmt.Errorf("unsupported action %q", action)
	}
}

func (c *conversation) selectPersona(id string) error {
	id = strings.TrimSpace(id)
	if err := c.orch.SelectPersona(id); err != nil {
		return err
	}
	_ = c.sessions.SetPersona(c.id, id)
	return nil
}

// observe mirrors orchestrator changes to the client and the session record.
func (c *conversation) observe(snap voice.Snapshot) {
	c.mu.Lock()
	if snap.Version <= c.lastVersion {
		c.mu.Unlock()
		return
	}
	c.lastVersion = snap.Version
	prev := c.lastState
	c.lastState = snap.State
	c.mu.Unlock()

	switch {
	case prev == voice.StateListening && snap.State == voice.StateThinking:
		_ = c.sessions.StartTurn(c.id, observability.NewCorrelationID())
	case prev == voice.StateThinking && snap.State != voice.StateThinking:
		_ = c.sessions.FinishTurn(c.id)
	case prev == voice.StateSpeaking && snap.State == voice.StateListening:
		_ = c.sessions.Interrupt(c.id)
	}

	if err := c.send(stateChanged(c.id, snap)); err != nil && !errors.Is(err, errNoClient) {
		c.logger.Warn().Err(err).Msg("drop state_changed")
	}
}

func stateChanged(sessionID string, snap voice.Snapshot) protocol.StateChanged {
	return protocol.StateChanged{
		Type:         protocol.TypeStateChanged,
		SessionID:    sessionID,
		Version:      snap.Version,
		State:        string(snap.State),
		StatusText:   snap.StatusText,
		Recording:    snap.Recording,
		PersonaID:    string(snap.PersonaID),
		PersonaLabel: snap.PersonaLabel,
		Reply:        snap.Reply,
		Error:        snap.Error,
		Retryable:    snap.Retryable,
		HasAudio:     snap.HasAudio,
		MemoryTurns:  len(snap.Memory),
	}
}

// SendAudio implements playback.RemoteSink.
func (c *conversation) SendAudio(clipID uint64, clip audio.Blob) error {
	format := clip.ContentType
	if format == "" {
		format = audio.ContentTypeMP3
	}
	return c.send(protocol.AssistantAudio{
		Type:        protocol.TypeAssistantAudio,
		SessionID:   c.id,
		ClipID:      clipID,
		Format:      format,
		AudioBase64: base64.StdEncoding.EncodeToString(clip.Data),
	})
}

// SendStop implements playback.RemoteSink.
func (c *conversation) SendStop(clipID uint64) error {
	err := c.send(protocol.PlaybackStop{Type: protocol.TypePlaybackStop, SessionID: c.id, ClipID: clipID})
	if errors.Is(err, errNoClient) {
		return nil
	}
	return err
}

func (c *conversation) send(msg any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.outbound == nil {
		return errNoClient
	}
	select {
	case c.outbound <- msg:
		return nil
	default:
		return errOutboundFull
	}
}

func (c *conversation) attach(outbound chan any) error {
	c.mu.Lock()
	if c.outbound != nil {
		c.mu.Unlock()
		return errClientBusy
	}
	c.outbound = outbound
	c.mu.Unlock()
	c.mic.Attach()
	return c.send(stateChanged(c.id, c.orch.Snapshot()))
}

// detach runs when the client goes away. A capture in progress is abandoned and
// a clip still playing on the client counts as finished.
func (c *conversation) detach() {
	c.mu.Lock()
	c.outbound = nil
	c.mu.Unlock()
	_ = c.orch.Cancel()
	c.mic.Detach()
	c.player.Ended(0)
}

func (c *conversation) close() {
	c.detach()
	c.orch.Close()
}

func (s *Server) handleSessionWS(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "missing_session_id", "query parameter session_id is required")
		return
	}
	if err := s.sessions.Touch(sessionID); err != nil {
		respondSessionError(w, err)
		return
	}
	c := s.conversation(sessionID)
	if c == nil {
		respondError(w, http.StatusGone, "session_ended", "session has no live conversation")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	outbound := make(chan any, outboundQueueSize)
	if err := c.attach(outbound); err != nil {
		_ = conn.WriteJSON(protocol.ErrorEvent{
			Type:      protocol.TypeErrorEvent,
			SessionID: sessionID,
			Code:      "session_busy",
			Source:    "gateway",
			Detail:    err.Error(),
		})
		return
	}
	s.metrics.SessionEvents.WithLabelValues("ws_connected").Inc()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ping := time.NewTicker(wsPingInterval)
		defer ping.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ping.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
					cancel()
					return
				}
			case msg := <-outbound:
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := conn.WriteJSON(msg); err != nil {
					cancel()
					return
				}
				if t, ok := messageTypeOf(msg); ok {
					s.metrics.WSMessages.WithLabelValues("outbound", string(t)).Inc()
				}
			}
		}
	}()

	conn.SetReadLimit(2 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	for ctx.Err() == nil {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		if msgType != websocket.TextMessage {
			continue
		}
		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			s.sendError(c, "invalid_client_message", err)
			continue
		}
		if t, ok := messageTypeOf(parsed); ok {
			s.metrics.WSMessages.WithLabelValues("inbound", string(t)).Inc()
		}
		s.handleClientMessage(c, parsed)
	}

	cancel()
	c.detach()
	<-writerDone
	s.metrics.SessionEvents.WithLabelValues("ws_disconnected").Inc()
}

func (s *Server) handleClientMessage(c *conversation, msg any) {
	switch m := msg.(type) {
	case protocol.ClientAudioChunk:
		if m.SessionID != c.id {
			s.sendError(c, "session_mismatch", fmt.Errorf("chunk for session %q", m.SessionID))
			return
		}
		contentType, data, err := m.Decode()
		if err != nil {
			s.sendError(c, "invalid_client_message", err)
			return
		}
		if err := c.mic.Push(contentType, m.SampleRate, data); err != nil {
			if errors.Is(err, capture.ErrNotRecording) {
				// Trailing chunks after release are expected.
				return
			}
			s.sendError(c, "audio_rejected", err)
		}
	case protocol.ClientControl:
		if m.SessionID != c.id {
			s.sendError(c, "session_mismatch", fmt.Errorf("control for session %q", m.SessionID))
			return
		}
		_ = s.sessions.Touch(c.id)
		switch m.Action {
		case protocol.ActionPlaybackEnded:
			c.player.Ended(m.ClipID)
		case protocol.ActionPersona:
			if err := c.selectPersona(m.PersonaID); err != nil {
				s.sendError(c, "persona_not_found", err)
			}
		case protocol.ActionRelease:
			// The pipeline runs off the read loop so reset and cancel stay responsive.
			go func() {
				err := c.dispatch(actionRelease)
				if err == nil {
					return
				}
				c.logger.Debug().Err(err).Msg("turn ended without reply")
				if !errors.Is(err, voice.ErrEmptyCapture) && !errors.Is(err, voice.ErrTurnAbandoned) {
					s.sendTurnError(c, err)
				}
			}()
		default:
			if err := c.dispatch(m.Action); err != nil && !errors.Is(err, voice.ErrDeviceUnavailable) {
				c.logger.Debug().Err(err).Str("action", m.Action).Msg("control failed")
			}
		}
	}
}

func (s *Server) sendError(c *conversation, code string, err error) {
	sendErr := c.send(protocol.ErrorEvent{
		Type:      protocol.TypeErrorEvent,
		SessionID: c.id,
		Code:      code,
		Source:    "gateway",
		Retryable: false,
		Detail:    err.Error(),
	})
	if sendErr != nil {
		c.logger.Debug().Err(sendErr).Str("code", code).Msg("drop error_event")
	}
}

// sendTurnError reports a failed turn. The detail is the user-facing message;
// upstream bodies stay in the logs.
func (s *Server) sendTurnError(c *conversation, err error) {
	sendErr := c.send(protocol.ErrorEvent{
		Type:      protocol.TypeErrorEvent,
		SessionID: c.id,
		Code:      voice.FailureCode(err),
		Source:    "pipeline",
		Retryable: reliability.Retryable(err),
		Detail:    voice.MessagePipelineFailed,
	})
	if sendErr != nil {
		c.logger.Debug().Err(sendErr).Msg("drop turn error_event")
	}
}

func messageTypeOf(v any) (protocol.MessageType, bool) {
	switch m := v.(type) {
	case protocol.ClientAudioChunk:
		return m.Type, true
	case protocol.ClientControl:
		return m.Type, true
	case protocol.StateChanged:
		return m.Type, true
	case protocol.AssistantAudio:
		return m.Type, true
	case protocol.PlaybackStop:
		return m.Type, true
	case protocol.ErrorEvent:
		return m.Type, true
	default:
		return "", false
	}
}
