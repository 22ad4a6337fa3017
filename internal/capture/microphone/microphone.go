// Package microphone records from the local default input device through PortAudio.
package microphone

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"

	"github.com/ent0n29/voicedirect/internal/audio"
	"github.com/ent0n29/voicedirect/internal/voice"
)

const (
	DefaultSampleRate      = 16000
	defaultFramesPerBuffer = 800
)

// Device opens the default input stream, mono int16, for each recording.
type Device struct {
	sampleRate      int
	framesPerBuffer int
	logger          zerolog.Logger
}

func New(sampleRate int, logger zerolog.Logger) *Device {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &Device{
		sampleRate:      sampleRate,
		framesPerBuffer: defaultFramesPerBuffer,
		logger:          logger.With().Str("component", "microphone").Logger(),
	}
}

func (d *Device) Open(ctx context.Context) (voice.CaptureSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, voice.Wrap(voice.ErrDeviceUnavailable, err)
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: portaudio init: %w", voice.ErrDeviceUnavailable, err)
	}

	in := make([]int16, d.framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(d.sampleRate), len(in), in)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("%w: open input stream: %w", voice.ErrDeviceUnavailable, err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("%w: start input stream: %w", voice.ErrDeviceUnavailable, err)
	}

	s := &session{
		device:  d,
		stream:  stream,
		in:      in,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		started: time.Now(),
	}
	go s.record()
	d.logger.Debug().Int("sample_rate", d.sampleRate).Msg("microphone opened")
	return s, nil
}

type session struct {
	device  *Device
	stream  *portaudio.Stream
	in      []int16
	stop    chan struct{}
	done    chan struct{}
	started time.Time

	mu      sync.Mutex
	frames  []int16
	readErr error
	closed  bool
}

func (s *session) record() {
	defer close(s.done)
	for {
		select {
		case <-s.stop:
			return
		default:
		}
		if err := s.stream.Read(); err != nil {
			if errors.Is(err, portaudio.InputOverflowed) {
				continue
			}
			s.mu.Lock()
			s.readErr = err
			s.mu.Unlock()
			return
		}
		s.mu.Lock()
		s.frames = append(s.frames, s.in...)
		s.mu.Unlock()
	}
}

func (s *session) Finalize() (audio.Blob, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return audio.Blob{}, nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.stop)
	<-s.done
	_ = s.stream.Stop()
	_ = s.stream.Close()
	_ = portaudio.Terminate()

	s.mu.Lock()
	frames, readErr := s.frames, s.readErr
	s.frames = nil
	s.mu.Unlock()

	log := s.device.logger.Debug().Int("samples", len(frames)).Dur("held", time.Since(s.started))
	if readErr != nil {
		s.device.logger.Warn().Err(readErr).Msg("microphone read stopped early")
	}
	log.Msg("microphone finalized")

	if len(frames) == 0 {
		return audio.Blob{}, nil
	}
	data, err := audio.EncodeWAV(frames, s.device.sampleRate)
	if err != nil {
		return audio.Blob{}, err
	}
	return audio.Blob{Data: data, ContentType: audio.ContentTypeWAV}, nil
}
