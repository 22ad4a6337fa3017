package voice

import (
	"context"

	"github.com/ent0n29/voicedirect/internal/audio"
	"github.com/ent0n29/voicedirect/internal/memory"
)

// CaptureDevice acquires the microphone. Open fails with ErrDeviceUnavailable when
// there is no device or permission is denied. ctx bounds acquisition only.
type CaptureDevice interface {
	Open(ctx context.Context) (CaptureSession, error)
}

// CaptureSession owns the device between Open and Finalize. Finalize stops capture,
// releases the device and returns what was recorded. A second Finalize returns an
// empty blob and no error.
type CaptureSession interface {
	Finalize() (audio.Blob, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, recording audio.Blob) (string, error)
}

// Completer receives the full ordered conversation, ending with the new user turn.
type Completer interface {
	Complete(ctx context.Context, turns []memory.Turn) (string, error)
}

type SynthesisOptions struct {
	ModelID         string
	Stability       float64
	SimilarityBoost float64
}

const (
	DefaultSynthesisModel      = "eleven_multilingual_v2"
	DefaultStability           = 0.5
	DefaultSimilarityBoost     = 0.5
	DefaultTranscriptionModel  = "scribe_v1"
	defaultSynthesisSampleRate = 22050
)

// DefaultSynthesisOptions are used when a caller supplies no options at all.
func DefaultSynthesisOptions() SynthesisOptions {
	return SynthesisOptions{
		ModelID:         DefaultSynthesisModel,
		Stability:       DefaultStability,
		SimilarityBoost: DefaultSimilarityBoost,
	}
}

// WithDefaults returns the defaults for a zero value. Otherwise only a missing
// model is filled; 0 is a valid stability and similarity boost.
func (o SynthesisOptions) WithDefaults() SynthesisOptions {
	if o == (SynthesisOptions{}) {
		return DefaultSynthesisOptions()
	}
	if o.ModelID == "" {
		o.ModelID = DefaultSynthesisModel
	}
	return o
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string, opts SynthesisOptions) (audio.Blob, error)
}

// Player starts output immediately. onComplete fires at most once, only when output
// ends naturally, and never after the handle has been released.
type Player interface {
	Play(clip audio.Blob, onComplete func()) (PlaybackHandle, error)
}

// PlaybackHandle owns one audio output. Release stops output and is idempotent.
type PlaybackHandle interface {
	Release()
}
