// Package speaker plays clips on the local default output device through beep.
package speaker

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"
	"github.com/rs/zerolog"

	"github.com/ent0n29/voicedirect/internal/audio"
	"github.com/ent0n29/voicedirect/internal/voice"
)

const outputRate = beep.SampleRate(44100)

// Player mixes every clip to one device opened on first use.
type Player struct {
	logger zerolog.Logger

	initOnce sync.Once
	initErr  error
}

func New(logger zerolog.Logger) *Player {
	return &Player{logger: logger.With().Str("component", "speaker").Logger()}
}

func (p *Player) init() error {
	p.initOnce.Do(func() {
		p.initErr = speaker.Init(outputRate, outputRate.N(time.Second/10))
	})
	return p.initErr
}

func (p *Player) Play(clip audio.Blob, onComplete func()) (voice.PlaybackHandle, error) {
	if err := p.init(); err != nil {
		return nil, fmt.Errorf("init speaker: %w", err)
	}
	stream, format, err := decode(clip)
	if err != nil {
		return nil, err
	}

	h := &handle{stream: stream}
	var src beep.Streamer = stream
	if format.SampleRate != outputRate {
		src = beep.Resample(4, format.SampleRate, outputRate, stream)
	}
	h.ctrl = &beep.Ctrl{Streamer: beep.Seq(src, beep.Callback(func() {
		// Runs on the mixer goroutine with the speaker locked.
		go func() {
			if h.finish() {
				_ = h.stream.Close()
				if onComplete != nil {
					onComplete()
				}
			}
		}()
	}))}
	speaker.Play(h.ctrl)
	p.logger.Debug().Str("content_type", clip.ContentType).Int("bytes", clip.Len()).Msg("playback started")
	return h, nil
}

func decode(clip audio.Blob) (beep.StreamSeekCloser, beep.Format, error) {
	r := io.NopCloser(bytes.NewReader(clip.Data))
	switch clip.FileName() {
	case "audio.mp3":
		s, f, err := mp3.Decode(r)
		if err != nil {
			return nil, beep.Format{}, fmt.Errorf("decode mp3: %w", err)
		}
		return s, f, nil
	case "audio.wav":
		s, f, err := wav.Decode(r)
		if err != nil {
			return nil, beep.Format{}, fmt.Errorf("decode wav: %w", err)
		}
		return s, f, nil
	default:
		return nil, beep.Format{}, fmt.Errorf("unsupported content type %q", clip.ContentType)
	}
}

type handle struct {
	ctrl   *beep.Ctrl
	stream beep.StreamSeekCloser

	mu   sync.Mutex
	done bool
}

func (h *handle) finish() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.done {
		return false
	}
	h.done = true
	return true
}

func (h *handle) Release() {
	if !h.finish() {
		return
	}
	speaker.Lock()
	h.ctrl.Streamer = nil
	speaker.Unlock()
	_ = h.stream.Close()
}
