package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

// EncodeWAV wraps mono 16-bit samples in a WAV container.
func EncodeWAV(samples []int16, sampleRate int) ([]byte, error) {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	out := &seekBuffer{}
	enc := wav.NewEncoder(out, sampleRate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: 1,
			SampleRate:  sampleRate,
		},
		Data:           make([]int, len(samples)),
		SourceBitDepth: 16,
	}
	for i, s := range samples {
		buf.Data[i] = int(s)
	}
	if err := enc.Write(buf); err != nil {
		_ = enc.Close()
		return nil, fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("finish wav: %w", err)
	}
	return out.Bytes(), nil
}

// EncodeWAVPCM16LE wraps raw little-endian PCM16 mono bytes in a WAV container.
func EncodeWAVPCM16LE(pcm []byte, sampleRate int) ([]byte, error) {
	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return EncodeWAV(samples, sampleRate)
}

// Duration reports the playable length of a WAV or MP3 blob.
func Duration(b Blob) (time.Duration, error) {
	if b.Empty() {
		return 0, errors.New("empty audio")
	}
	switch b.FileName() {
	case "audio.wav":
		if !wav.NewDecoder(bytes.NewReader(b.Data)).IsValidFile() {
			return 0, errors.New("invalid wav data")
		}
		return wav.NewDecoder(bytes.NewReader(b.Data)).Duration()
	case "audio.mp3":
		dec, err := mp3.NewDecoder(bytes.NewReader(b.Data))
		if err != nil {
			return 0, fmt.Errorf("decode mp3: %w", err)
		}
		rate := dec.SampleRate()
		if rate <= 0 || dec.Length() <= 0 {
			return 0, errors.New("mp3 length unknown")
		}
		// Decoded output is 16-bit stereo: 4 bytes per frame.
		frames := dec.Length() / 4
		return time.Duration(frames) * time.Second / time.Duration(rate), nil
	default:
		return 0, fmt.Errorf("unsupported content type %q", b.ContentType)
	}
}

// seekBuffer is an in-memory io.WriteSeeker; the wav encoder seeks back to patch chunk sizes.
type seekBuffer struct {
	buf []byte
	pos int
}

func (s *seekBuffer) Write(p []byte) (int, error) {
	end := s.pos + len(p)
	if end > len(s.buf) {
		grown := make([]byte, end)
		copy(grown, s.buf)
		s.buf = grown
	}
	copy(s.buf[s.pos:], p)
	s.pos = end
	return len(p), nil
}

func (s *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = int64(s.pos) + offset
	case io.SeekEnd:
		next = int64(len(s.buf)) + offset
	default:
		return 0, errors.New("invalid whence")
	}
	if next < 0 {
		return 0, errors.New("negative position")
	}
	s.pos = int(next)
	return next, nil
}

func (s *seekBuffer) Bytes() []byte { return s.buf }
