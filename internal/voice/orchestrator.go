package voice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ent0n29/voicedirect/internal/audio"
	"github.com/ent0n29/voicedirect/internal/memory"
	"github.com/ent0n29/voicedirect/internal/observability"
	"github.com/ent0n29/voicedirect/internal/persona"
	"github.com/ent0n29/voicedirect/internal/policy"
	"github.com/ent0n29/voicedirect/internal/reliability"
)

type State string

const (
	StateIdle      State = "idle"
	StateListening State = "listening"
	StateThinking  State = "thinking"
	StateSpeaking  State = "speaking"
)

// StatusText is the label shown for a state. Idle has none.
func (s State) StatusText() string {
	switch s {
	case StateListening:
		return "Listening..."
	case StateThinking:
		return "Thinking..."
	case StateSpeaking:
		return "Speaking..."
	default:
		return ""
	}
}

// Snapshot is a read-only view of one conversation. Version increases with every
// change so observers can drop snapshots that arrive out of order.
type Snapshot struct {
	Version      uint64     `json:"version"`
	State        State      `json:"state"`
	StatusText   string     `json:"status_text"`
	Recording    bool       `json:"recording"`
	PersonaID    persona.ID `json:"persona_id"`
	PersonaLabel string     `json:"persona_label"`
	Reply        string     `json:"reply,omitempty"`
	Error        string     `json:"error,omitempty"`
	// Retryable is set when the error came from a transient upstream failure.
	Retryable bool          `json:"retryable,omitempty"`
	HasAudio  bool          `json:"has_audio"`
	Memory    []memory.Turn `json:"memory"`
}

// ProviderLabels name the configured backends in logs and metrics.
type ProviderLabels struct {
	STT   string
	Brain string
	TTS   string
}

type Config struct {
	PersonaID      string
	MemoryTurns    int
	AbandonOnLeave bool
	Synthesis      SynthesisOptions
	Labels         ProviderLabels
}

// Deps are the collaborators of one orchestrator. Metrics may be nil.
type Deps struct {
	Capture     CaptureDevice
	Transcriber Transcriber
	Completer   Completer
	Synthesizer Synthesizer
	Player      Player
	Metrics     *observability.Metrics
	Logger      zerolog.Logger
}

// Orchestrator runs the press/release turn cycle for a single conversation:
// capture, transcription, completion, synthesis and playback, strictly in sequence.
// mu guards every field below it and is never held across a network call.
type Orchestrator struct {
	deps   Deps
	cfg    Config
	logger zerolog.Logger

	mu        sync.Mutex
	state     State
	recording bool
	capture   CaptureSession
	listenAt  time.Time
	persona   persona.Persona
	memory    *memory.Conversation
	reply     string
	clip      audio.Blob
	errMsg    string
	retryable bool
	// opening is set while Press waits on the capture device outside the lock.
	opening  bool
	openDone chan struct{}
	handle   PlaybackHandle
	// playbackGen identifies the live handle; completions from older handles are ignored.
	playbackGen uint64
	// epoch advances on reset; pipeline results from an older epoch are discarded.
	epoch          uint64
	cancelPipeline context.CancelFunc
	version        uint64
	onChange       func(Snapshot)
}

func NewOrchestrator(cfg Config, deps Deps) (*Orchestrator, error) {
	if deps.Capture == nil || deps.Transcriber == nil || deps.Completer == nil ||
		deps.Synthesizer == nil || deps.Player == nil {
		return nil, errors.New("orchestrator requires capture, transcriber, completer, synthesizer and player")
	}
	if strings.TrimSpace(cfg.PersonaID) == "" {
		cfg.PersonaID = string(persona.ChillGZ)
	}
	p, err := persona.Lookup(cfg.PersonaID)
	if err != nil {
		return nil, err
	}
	cfg.Synthesis = cfg.Synthesis.WithDefaults()

	return &Orchestrator{
		deps:    deps,
		cfg:     cfg,
		logger:  observability.Component(deps.Logger, "orchestrator"),
		state:   StateIdle,
		persona: p,
		memory:  memory.NewConversation(cfg.MemoryTurns),
	}, nil
}

// OnChange registers an observer called after every state change, outside the lock.
func (o *Orchestrator) OnChange(fn func(Snapshot)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onChange = fn
}

func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Press starts a capture. It is a no-op while listening and ignored while thinking.
// While speaking it stops playback first (barge-in). The device is opened without
// holding the lock; a reset or close in the meantime discards the new capture.
func (o *Orchestrator) Press(ctx context.Context) error {
	o.mu.Lock()
	if o.opening {
		o.mu.Unlock()
		return nil
	}
	switch o.state {
	case StateListening:
		o.mu.Unlock()
		return nil
	case StateThinking:
		o.mu.Unlock()
		o.logger.Debug().Msg("press ignored while a turn is in flight")
		return nil
	case StateSpeaking:
		o.releasePlaybackLocked()
		o.deps.Metrics.ObserveBargeIn()
		o.deps.Metrics.ObserveTurnIndicator("barge_in")
		o.logger.Info().Str("persona", string(o.persona.ID)).Msg("barge-in")
	}
	o.opening = true
	o.openDone = make(chan struct{})
	epoch := o.epoch
	o.mu.Unlock()

	sess, err := o.deps.Capture.Open(ctx)

	o.mu.Lock()
	o.opening = false
	close(o.openDone)
	if o.epoch != epoch {
		o.mu.Unlock()
		if err == nil {
			if _, ferr := sess.Finalize(); ferr != nil {
				o.logger.Warn().Err(ferr).Msg("finalize discarded capture")
			}
		}
		return nil
	}
	o.errMsg = ""
	o.retryable = false
	if err != nil {
		o.capture = nil
		o.recording = false
		o.errMsg = MessageDeviceUnavailable
		o.setStateLocked(StateIdle)
		snap, notify := o.commitLocked()
		o.mu.Unlock()
		notify(snap)
		o.logger.Warn().Err(err).Msg("open capture device")
		return Wrap(ErrDeviceUnavailable, err)
	}
	o.capture = sess
	o.recording = true
	o.listenAt = time.Now()
	o.setStateLocked(StateListening)
	snap, notify := o.commitLocked()
	o.mu.Unlock()
	notify(snap)
	return nil
}

// Release finalizes the capture and runs the pipeline. It blocks until the turn
// settles. Outside listening it is a no-op. Failures are already reflected in the
// snapshot when the error is returned.
func (o *Orchestrator) Release(ctx context.Context) error {
	if err := o.lockSettled(ctx); err != nil {
		return err
	}
	if o.state != StateListening {
		o.mu.Unlock()
		return nil
	}
	listened := time.Since(o.listenAt)
	recording, finalizeErr := o.detachCaptureLocked()
	o.setStateLocked(StateThinking)
	epoch := o.epoch
	runCtx, cancel := context.WithCancel(ctx)
	o.cancelPipeline = cancel
	p := o.persona
	snap, notify := o.commitLocked()
	o.mu.Unlock()
	notify(snap)
	defer cancel()

	turnID := observability.NewCorrelationID()
	logger := observability.WithTurnID(o.logger, turnID).With().Str("persona", string(p.ID)).Logger()
	started := time.Now()
	o.deps.Metrics.ObserveTurnStage(observability.StageCapture, listened)

	if finalizeErr != nil {
		return o.fail(epoch, logger, "capture", Wrap(ErrDeviceUnavailable, finalizeErr))
	}
	if recording.Empty() {
		return o.abandonEmpty(epoch, logger, "empty recording")
	}

	stageStart := time.Now()
	transcript, err := o.deps.Transcriber.Transcribe(runCtx, recording)
	o.deps.Metrics.ObserveTurnStage(observability.StageTranscribe, time.Since(stageStart))
	if err != nil {
		return o.fail(epoch, logger, o.cfg.Labels.STT, Wrap(ErrTranscriptionFailed, err))
	}
	if !o.current(epoch) {
		return ErrTurnAbandoned
	}
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return o.abandonEmpty(epoch, logger, "empty transcript")
	}
	logger.Info().Str("transcript", policy.ForLog(transcript, 160)).Msg("transcribed")

	userTurn := memory.Turn{Role: memory.RoleUser, Content: p.UserTurn(transcript)}
	stageStart = time.Now()
	reply, err := o.deps.Completer.Complete(runCtx, o.memory.WithPending(userTurn))
	o.deps.Metrics.ObserveTurnStage(observability.StageComplete, time.Since(stageStart))
	if err == nil && strings.TrimSpace(reply) == "" {
		err = errors.New("empty reply")
	}
	if err != nil {
		return o.fail(epoch, logger, o.cfg.Labels.Brain, Wrap(ErrCompletionFailed, err))
	}
	if !o.current(epoch) {
		return ErrTurnAbandoned
	}
	reply = strings.TrimSpace(reply)

	stageStart = time.Now()
	clip, err := o.deps.Synthesizer.Synthesize(runCtx, spokenText(reply), p.Voice(), o.cfg.Synthesis)
	o.deps.Metrics.ObserveTurnStage(observability.StageSynthesize, time.Since(stageStart))
	if err == nil && clip.Empty() {
		err = errors.New("empty audio")
	}
	if err != nil {
		return o.fail(epoch, logger, o.cfg.Labels.TTS, Wrap(ErrSynthesisFailed, err))
	}

	o.mu.Lock()
	if o.epoch != epoch {
		o.mu.Unlock()
		return ErrTurnAbandoned
	}
	o.cancelPipeline = nil
	o.memory.Append(userTurn, memory.Turn{Role: memory.RoleAssistant, Content: reply})
	o.reply = reply
	o.clip = clip
	playErr := o.startPlaybackLocked(clip)
	if playErr != nil {
		o.errMsg = MessagePipelineFailed
		o.retryable = false
		o.setStateLocked(StateIdle)
	} else {
		o.setStateLocked(StateSpeaking)
	}
	snap, notify = o.commitLocked()
	o.mu.Unlock()
	notify(snap)

	if playErr != nil {
		o.deps.Metrics.ObserveTurnOutcome("playback_failed")
		logger.Error().Err(playErr).Msg("start playback")
		return fmt.Errorf("start playback: %w", playErr)
	}
	o.deps.Metrics.ObserveTurnStage(observability.StageReleaseToSpeaking, time.Since(started))
	o.deps.Metrics.ObserveTurnOutcome("ok")
	logger.Info().
		Int("reply_chars", len(reply)).
		Int("memory_turns", o.memory.Len()).
		Int("audio_bytes", clip.Len()).
		Dur("elapsed", time.Since(started)).
		Msg("turn complete")
	return nil
}

// Cancel abandons the capture without running the pipeline. Only valid while listening.
func (o *Orchestrator) Cancel() error {
	if err := o.lockSettled(context.Background()); err != nil {
		return err
	}
	if o.state != StateListening {
		o.mu.Unlock()
		return nil
	}
	_, err := o.detachCaptureLocked()
	o.setStateLocked(StateIdle)
	snap, notify := o.commitLocked()
	o.mu.Unlock()
	notify(snap)
	if err != nil {
		o.logger.Warn().Err(err).Msg("finalize abandoned capture")
	}
	return nil
}

// Leave handles the pointer leaving the talk control. It cancels the capture only
// when abandon-on-leave is enabled.
func (o *Orchestrator) Leave() error {
	if !o.cfg.AbandonOnLeave {
		return nil
	}
	return o.Cancel()
}

// Reset stops playback, discards any capture and in-flight turn, and clears the conversation.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	o.teardownLocked()
	o.memory.Clear()
	o.reply = ""
	o.clip = audio.Blob{}
	o.errMsg = ""
	o.retryable = false
	o.setStateLocked(StateIdle)
	snap, notify := o.commitLocked()
	o.mu.Unlock()
	notify(snap)
	o.logger.Info().Msg("conversation reset")
}

// Close releases every resource held by the conversation. Memory is left as is.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.teardownLocked()
	o.setStateLocked(StateIdle)
	snap, notify := o.commitLocked()
	o.mu.Unlock()
	notify(snap)
}

// SelectPersona switches the active persona. Conversation memory is untouched.
func (o *Orchestrator) SelectPersona(id string) error {
	p, err := persona.Lookup(id)
	if err != nil {
		return err
	}
	o.mu.Lock()
	o.persona = p
	snap, notify := o.commitLocked()
	o.mu.Unlock()
	notify(snap)
	return nil
}

// Audio returns the clip of the latest reply, if any.
func (o *Orchestrator) Audio() audio.Blob {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.clip
}

// lockSettled acquires mu once no Press is waiting on the capture device, so a
// quick release is applied to the capture it belongs to.
func (o *Orchestrator) lockSettled(ctx context.Context) error {
	for {
		o.mu.Lock()
		if !o.opening {
			return nil
		}
		done := o.openDone
		o.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (o *Orchestrator) playbackEnded(gen uint64) {
	o.mu.Lock()
	if gen != o.playbackGen || o.state != StateSpeaking {
		o.mu.Unlock()
		return
	}
	o.releasePlaybackLocked()
	o.setStateLocked(StateIdle)
	snap, notify := o.commitLocked()
	o.mu.Unlock()
	notify(snap)
}

func (o *Orchestrator) startPlaybackLocked(clip audio.Blob) error {
	o.releasePlaybackLocked()
	gen := o.playbackGen
	handle, err := o.deps.Player.Play(clip, func() {
		// Players may call back from inside Play; never take the lock on their stack.
		go o.playbackEnded(gen)
	})
	if err != nil {
		return err
	}
	o.handle = handle
	return nil
}

// releasePlaybackLocked frees the live handle once and invalidates its completion.
func (o *Orchestrator) releasePlaybackLocked() {
	o.playbackGen++
	if o.handle == nil {
		return
	}
	h := o.handle
	o.handle = nil
	h.Release()
}

func (o *Orchestrator) detachCaptureLocked() (audio.Blob, error) {
	sess := o.capture
	o.capture = nil
	o.recording = false
	if sess == nil {
		return audio.Blob{}, nil
	}
	return sess.Finalize()
}

func (o *Orchestrator) teardownLocked() {
	o.releasePlaybackLocked()
	if _, err := o.detachCaptureLocked(); err != nil {
		o.logger.Warn().Err(err).Msg("finalize discarded capture")
	}
	if o.cancelPipeline != nil {
		o.cancelPipeline()
		o.cancelPipeline = nil
	}
	o.epoch++
}

func (o *Orchestrator) current(epoch uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.epoch == epoch
}

func (o *Orchestrator) fail(epoch uint64, logger zerolog.Logger, provider string, err error) error {
	o.mu.Lock()
	if o.epoch != epoch {
		o.mu.Unlock()
		return ErrTurnAbandoned
	}
	o.cancelPipeline = nil
	o.errMsg = MessagePipelineFailed
	o.retryable = reliability.Retryable(err)
	o.setStateLocked(StateIdle)
	snap, notify := o.commitLocked()
	o.mu.Unlock()
	notify(snap)

	code := reliability.CodeOf(err)
	if provider != "" {
		o.deps.Metrics.ObserveProviderError(provider, code)
	}
	o.deps.Metrics.ObserveTurnOutcome(FailureCode(err))
	logger.Error().Err(err).Str("provider", provider).Str("code", code).Msg("turn failed")
	return err
}

func (o *Orchestrator) abandonEmpty(epoch uint64, logger zerolog.Logger, reason string) error {
	o.mu.Lock()
	if o.epoch != epoch {
		o.mu.Unlock()
		return ErrTurnAbandoned
	}
	o.cancelPipeline = nil
	o.setStateLocked(StateIdle)
	snap, notify := o.commitLocked()
	o.mu.Unlock()
	notify(snap)

	o.deps.Metrics.ObserveTurnOutcome("empty_capture")
	o.deps.Metrics.ObserveTurnIndicator("empty_capture")
	logger.Warn().Str("reason", reason).Msg("no audio recorded")
	return ErrEmptyCapture
}

func (o *Orchestrator) setStateLocked(next State) {
	if o.state == next {
		return
	}
	o.deps.Metrics.ObserveTransition(string(o.state), string(next))
	o.logger.Debug().Str("from", string(o.state)).Str("to", string(next)).Msg("state")
	o.state = next
}

// commitLocked bumps the version and returns the snapshot plus the observer to call after unlocking.
func (o *Orchestrator) commitLocked() (Snapshot, func(Snapshot)) {
	o.version++
	snap := o.snapshotLocked()
	fn := o.onChange
	if fn == nil {
		return snap, func(Snapshot) {}
	}
	return snap, fn
}

func (o *Orchestrator) snapshotLocked() Snapshot {
	return Snapshot{
		Version:      o.version,
		State:        o.state,
		StatusText:   o.state.StatusText(),
		Recording:    o.recording,
		PersonaID:    o.persona.ID,
		PersonaLabel: o.persona.Label,
		Reply:        o.reply,
		Error:        o.errMsg,
		Retryable:    o.retryable,
		HasAudio:     !o.clip.Empty(),
		Memory:       o.memory.Turns(),
	}
}

// FailureCode names the stage a failed turn stopped at.
func FailureCode(err error) string {
	switch {
	case errors.Is(err, ErrDeviceUnavailable):
		return "capture_failed"
	case errors.Is(err, ErrTranscriptionFailed):
		return "transcription_failed"
	case errors.Is(err, ErrCompletionFailed):
		return "completion_failed"
	case errors.Is(err, ErrSynthesisFailed):
		return "synthesis_failed"
	default:
		return "failed"
	}
}
