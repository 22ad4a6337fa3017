package protocol

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ent0n29/voicedirect/internal/audio"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeClientAudioChunk MessageType = "client_audio_chunk"
	TypeClientControl    MessageType = "client_control"
	TypeStateChanged     MessageType = "state_changed"
	TypeAssistantAudio   MessageType = "assistant_audio"
	TypePlaybackStop     MessageType = "playback_stop"
	TypeErrorEvent       MessageType = "error_event"
)

// Control actions a client may send.
const (
	ActionPress         = "press"
	ActionRelease       = "release"
	ActionCancel        = "cancel"
	ActionLeave         = "leave"
	ActionReset         = "reset"
	ActionPlaybackEnded = "playback_ended"
	ActionPersona       = "persona"
)

var (
	ErrUnsupportedType   = errors.New("unsupported message type")
	ErrUnsupportedAction = errors.New("unsupported control action")
)

type Envelope struct {
	Type MessageType `json:"type"`
}

// ClientAudioChunk carries either raw PCM16 (pcm16_base64 + sample_rate) or a
// slice of an encoded stream (audio_base64 + format), e.g. from MediaRecorder.
type ClientAudioChunk struct {
	Type        MessageType `json:"type"`
	SessionID   string      `json:"session_id"`
	Seq         int         `json:"seq"`
	PCM16Base64 string      `json:"pcm16_base64,omitempty"`
	SampleRate  int         `json:"sample_rate,omitempty"`
	AudioBase64 string      `json:"audio_base64,omitempty"`
	Format      string      `json:"format,omitempty"`
	TSMs        int64       `json:"ts_ms"`
}

// Decode returns the chunk's content type and raw bytes.
func (c ClientAudioChunk) Decode() (string, []byte, error) {
	if c.PCM16Base64 != "" {
		data, err := base64.StdEncoding.DecodeString(c.PCM16Base64)
		if err != nil {
			return "", nil, fmt.Errorf("decode pcm16_base64: %w", err)
		}
		return audio.ContentTypePCM, data, nil
	}
	data, err := base64.StdEncoding.DecodeString(c.AudioBase64)
	if err != nil {
		return "", nil, fmt.Errorf("decode audio_base64: %w", err)
	}
	return c.Format, data, nil
}

type ClientControl struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Action    string      `json:"action"`
	PersonaID string      `json:"persona_id,omitempty"`
	ClipID    uint64      `json:"clip_id,omitempty"`
	TSMs      int64       `json:"ts_ms,omitempty"`
}

// StateChanged mirrors the orchestrator snapshot. Memory is omitted on the wire.
type StateChanged struct {
	Type         MessageType `json:"type"`
	SessionID    string      `json:"session_id"`
	Version      uint64      `json:"version"`
	State        string      `json:"state"`
	StatusText   string      `json:"status_text"`
	Recording    bool        `json:"recording"`
	PersonaID    string      `json:"persona_id"`
	PersonaLabel string      `json:"persona_label"`
	Reply        string      `json:"reply,omitempty"`
	Error        string      `json:"error,omitempty"`
	Retryable    bool        `json:"retryable,omitempty"`
	HasAudio     bool        `json:"has_audio"`
	MemoryTurns  int         `json:"memory_turns"`
}

// AssistantAudio asks the client to play one clip and report playback_ended with
// the same clip_id.
type AssistantAudio struct {
	Type        MessageType `json:"type"`
	SessionID   string      `json:"session_id"`
	ClipID      uint64      `json:"clip_id"`
	Format      string      `json:"format"`
	AudioBase64 string      `json:"audio_base64"`
}

type PlaybackStop struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	ClipID    uint64      `json:"clip_id"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Source    string      `json:"source"`
	Retryable bool        `json:"retryable"`
	Detail    string      `json:"detail"`
}

func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeClientAudioChunk:
		var msg ClientAudioChunk
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		pcm := msg.PCM16Base64 != "" && msg.SampleRate > 0
		encoded := msg.AudioBase64 != "" && strings.TrimSpace(msg.Format) != ""
		if msg.SessionID == "" || pcm == encoded {
			return nil, errors.New("invalid client_audio_chunk")
		}
		return msg, nil
	case TypeClientControl:
		var msg ClientControl
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		msg.Action = strings.ToLower(strings.TrimSpace(msg.Action))
		if msg.SessionID == "" || msg.Action == "" {
			return nil, errors.New("invalid client_control")
		}
		switch msg.Action {
		case ActionPress, ActionRelease, ActionCancel, ActionLeave, ActionReset, ActionPlaybackEnded:
		case ActionPersona:
			if strings.TrimSpace(msg.PersonaID) == "" {
				return nil, errors.New("invalid client_control: persona action requires persona_id")
			}
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedAction, msg.Action)
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
