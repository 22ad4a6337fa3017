package voice

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/ent0n29/voicedirect/internal/audio"
)

// FailoverTranscriber prefers the primary backend and switches to the fallback
// when the primary fails. Once the fallback succeeds it stays active until it
// fails; then the primary is retried.
type FailoverTranscriber struct {
	primary        Transcriber
	fallback       Transcriber
	fallbackActive atomic.Bool
}

func NewFailoverTranscriber(primary, fallback Transcriber) *FailoverTranscriber {
	return &FailoverTranscriber{primary: primary, fallback: fallback}
}

// FallbackActive reports whether the next call goes to the fallback first.
func (f *FailoverTranscriber) FallbackActive() bool {
	return f.fallbackActive.Load()
}

func (f *FailoverTranscriber) Transcribe(ctx context.Context, recording audio.Blob) (string, error) {
	first, second := f.primary, f.fallback
	if f.fallbackActive.Load() {
		first, second = f.fallback, f.primary
	}

	text, firstErr := first.Transcribe(ctx, recording)
	if firstErr == nil {
		return text, nil
	}
	if ctx.Err() != nil || errors.Is(firstErr, context.Canceled) {
		return "", firstErr
	}

	text, secondErr := second.Transcribe(ctx, recording)
	if secondErr != nil {
		return "", Wrap(ErrTranscriptionFailed, fmt.Errorf("both backends failed: %v; %w", firstErr, secondErr))
	}
	f.fallbackActive.Store(!f.fallbackActive.Load())
	return text, nil
}
