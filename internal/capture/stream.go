// Package capture adapts audio sources to the orchestrator's capture device contract.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ent0n29/voicedirect/internal/audio"
	"github.com/ent0n29/voicedirect/internal/voice"
)

var (
	// ErrNotRecording is returned by Push when no capture session is open.
	ErrNotRecording = errors.New("no capture session is open")
	ErrMixedFormats = errors.New("chunk format differs from the session format")
)

const defaultSampleRate = 16000

// StreamDevice is a microphone living on a remote client. Chunks pushed between
// Open and Finalize make up one recording. The device is unavailable until a
// client attaches.
type StreamDevice struct {
	logger zerolog.Logger

	mu       sync.Mutex
	attached bool
	active   *streamSession
}

func NewStreamDevice(logger zerolog.Logger) *StreamDevice {
	return &StreamDevice{logger: logger.With().Str("component", "capture_stream").Logger()}
}

// Attach marks a client as connected and able to stream audio.
func (d *StreamDevice) Attach() {
	d.mu.Lock()
	d.attached = true
	d.mu.Unlock()
}

// Detach marks the client gone. An open session keeps what it already received.
func (d *StreamDevice) Detach() {
	d.mu.Lock()
	d.attached = false
	d.active = nil
	d.mu.Unlock()
}

func (d *StreamDevice) Open(ctx context.Context) (voice.CaptureSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, voice.Wrap(voice.ErrDeviceUnavailable, err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.attached {
		return nil, fmt.Errorf("%w: no client microphone attached", voice.ErrDeviceUnavailable)
	}
	if d.active != nil {
		d.logger.Warn().Msg("capture reopened before finalize; dropping previous recording")
		d.active.closed = true
	}
	s := &streamSession{device: d}
	d.active = s
	return s, nil
}

// Push appends one chunk to the open session. PCM chunks are raw little-endian
// 16-bit mono samples; any other content type is an encoded stream and is
// concatenated as-is.
func (d *StreamDevice) Push(contentType string, sampleRate int, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if contentType == "" {
		contentType = audio.ContentTypePCM
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.active
	if s == nil || s.closed {
		return ErrNotRecording
	}
	if s.contentType == "" {
		s.contentType = contentType
		s.sampleRate = sampleRate
	} else if s.contentType != contentType {
		return fmt.Errorf("%w: %s then %s", ErrMixedFormats, s.contentType, contentType)
	}
	s.buf.Write(data)
	s.chunks++
	return nil
}

type streamSession struct {
	device *StreamDevice

	// Guarded by device.mu.
	closed      bool
	contentType string
	sampleRate  int
	chunks      int
	buf         bytes.Buffer
}

func (s *streamSession) Finalize() (audio.Blob, error) {
	d := s.device
	d.mu.Lock()
	if s.closed {
		d.mu.Unlock()
		return audio.Blob{}, nil
	}
	s.closed = true
	if d.active == s {
		d.active = nil
	}
	data := append([]byte(nil), s.buf.Bytes()...)
	contentType, rate, chunks := s.contentType, s.sampleRate, s.chunks
	s.buf.Reset()
	d.mu.Unlock()

	if contentType == audio.ContentTypePCM {
		// A trailing odd byte is half a sample.
		data = data[:len(data)&^1]
	}
	if len(data) == 0 {
		return audio.Blob{}, nil
	}
	d.logger.Debug().Int("chunks", chunks).Int("bytes", len(data)).Str("content_type", contentType).Msg("capture finalized")

	if contentType != audio.ContentTypePCM {
		return audio.Blob{Data: data, ContentType: contentType}, nil
	}
	if rate <= 0 {
		rate = defaultSampleRate
	}
	wav, err := audio.EncodeWAVPCM16LE(data, rate)
	if err != nil {
		return audio.Blob{}, err
	}
	return audio.Blob{Data: wav, ContentType: audio.ContentTypeWAV}, nil
}
