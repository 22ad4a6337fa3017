package voice

import (
	"context"
	"strings"
	"time"

	"github.com/ent0n29/voicedirect/internal/audio"
)

// MockProvider stands in for ElevenLabs when no credential is configured.
// Synthesized clips are silent WAV whose length follows the text.
type MockProvider struct {
	Transcript string
}

func NewMockProvider() *MockProvider {
	return &MockProvider{Transcript: "simulated voice input"}
}

func (p *MockProvider) Transcribe(ctx context.Context, recording audio.Blob) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", Wrap(ErrTranscriptionFailed, err)
	}
	if recording.Empty() {
		return "", Wrap(ErrTranscriptionFailed, ErrEmptyCapture)
	}
	return p.Transcript, nil
}

func (p *MockProvider) Synthesize(ctx context.Context, text, _ string, _ SynthesisOptions) (audio.Blob, error) {
	if err := ctx.Err(); err != nil {
		return audio.Blob{}, Wrap(ErrSynthesisFailed, err)
	}
	words := len(strings.Fields(text))
	if words == 0 {
		words = 1
	}
	// Roughly speaking pace, capped so headless sessions do not stall.
	d := time.Duration(words) * 250 * time.Millisecond
	if d > 8*time.Second {
		d = 8 * time.Second
	}
	samples := make([]int16, int(d.Seconds()*defaultSynthesisSampleRate))
	data, err := audio.EncodeWAV(samples, defaultSynthesisSampleRate)
	if err != nil {
		return audio.Blob{}, Wrap(ErrSynthesisFailed, err)
	}
	return audio.Blob{Data: data, ContentType: audio.ContentTypeWAV}, nil
}
