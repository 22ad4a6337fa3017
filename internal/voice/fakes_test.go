package voice

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ent0n29/voicedirect/internal/audio"
	"github.com/ent0n29/voicedirect/internal/memory"
)

type fakeCapture struct {
	// entered and block, when set, hold Open until the test lets it proceed.
	entered chan struct{}
	block   chan struct{}

	mu        sync.Mutex
	openErr   error
	recording audio.Blob
	opened    int
	finalized int
	live      int
}

func (c *fakeCapture) Open(context.Context) (CaptureSession, error) {
	if c.entered != nil {
		c.entered <- struct{}{}
	}
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.openErr != nil {
		return nil, c.openErr
	}
	c.opened++
	c.live++
	return &fakeCaptureSession{device: c}, nil
}

func (c *fakeCapture) liveSessions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live
}

type fakeCaptureSession struct {
	device *fakeCapture
	done   bool
}

func (s *fakeCaptureSession) Finalize() (audio.Blob, error) {
	s.device.mu.Lock()
	defer s.device.mu.Unlock()
	if s.done {
		return audio.Blob{}, nil
	}
	s.done = true
	s.device.finalized++
	s.device.live--
	return s.device.recording, nil
}

type fakeTranscriber struct {
	text  string
	err   error
	calls []audio.Blob
}

func (t *fakeTranscriber) Transcribe(_ context.Context, b audio.Blob) (string, error) {
	t.calls = append(t.calls, b)
	return t.text, t.err
}

type fakeCompleter struct {
	mu      sync.Mutex
	reply   string
	err     error
	calls   [][]memory.Turn
	entered chan struct{}
	block   chan struct{}
}

func (c *fakeCompleter) Complete(ctx context.Context, turns []memory.Turn) (string, error) {
	c.mu.Lock()
	c.calls = append(c.calls, turns)
	c.mu.Unlock()
	if c.entered != nil {
		c.entered <- struct{}{}
	}
	if c.block != nil {
		select {
		case <-c.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return c.reply, c.err
}

type synthCall struct {
	text    string
	voiceID string
	opts    SynthesisOptions
}

type fakeSynthesizer struct {
	clip  audio.Blob
	err   error
	calls []synthCall
}

func (s *fakeSynthesizer) Synthesize(_ context.Context, text, voiceID string, opts SynthesisOptions) (audio.Blob, error) {
	s.calls = append(s.calls, synthCall{text: text, voiceID: voiceID, opts: opts})
	return s.clip, s.err
}

type fakePlayer struct {
	mu      sync.Mutex
	err     error
	handles []*fakeHandle
}

func (p *fakePlayer) Play(clip audio.Blob, onComplete func()) (PlaybackHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	h := &fakeHandle{clip: clip, onComplete: onComplete}
	p.handles = append(p.handles, h)
	return h, nil
}

func (p *fakePlayer) last() *fakeHandle {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.handles) == 0 {
		return nil
	}
	return p.handles[len(p.handles)-1]
}

type fakeHandle struct {
	mu         sync.Mutex
	clip       audio.Blob
	onComplete func()
	releases   int
}

func (h *fakeHandle) Release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.releases++
}

func (h *fakeHandle) releaseCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.releases
}

// finish simulates the natural end of output.
func (h *fakeHandle) finish() {
	h.onComplete()
}

type harness struct {
	capture *fakeCapture
	stt     *fakeTranscriber
	brain   *fakeCompleter
	tts     *fakeSynthesizer
	player  *fakePlayer
	orch    *Orchestrator
}

func newHarness(cfg Config) (*harness, error) {
	h := &harness{
		capture: &fakeCapture{recording: audio.Blob{Data: []byte("pcm"), ContentType: audio.ContentTypeWAV}},
		stt:     &fakeTranscriber{text: "what's up"},
		brain:   &fakeCompleter{reply: "yo not much"},
		tts:     &fakeSynthesizer{clip: audio.Blob{Data: []byte("mp3"), ContentType: audio.ContentTypeMP3}},
		player:  &fakePlayer{},
	}
	orch, err := NewOrchestrator(cfg, Deps{
		Capture:     h.capture,
		Transcriber: h.stt,
		Completer:   h.brain,
		Synthesizer: h.tts,
		Player:      h.player,
		Logger:      zerolog.Nop(),
	})
	if err != nil {
		return nil, err
	}
	h.orch = orch
	return h, nil
}

var errBoom = errors.New("boom")
