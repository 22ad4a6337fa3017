package voice

import (
	"errors"
	"fmt"
)

var (
	ErrDeviceUnavailable   = errors.New("capture device unavailable")
	ErrTranscriptionFailed = errors.New("transcription failed")
	ErrCompletionFailed    = errors.New("completion failed")
	ErrSynthesisFailed     = errors.New("synthesis failed")
	// ErrEmptyCapture is logged but never shown to the user.
	ErrEmptyCapture = errors.New("no audio recorded")
	// ErrTurnAbandoned is returned by Release when a reset discarded the pipeline run.
	ErrTurnAbandoned = errors.New("turn abandoned")
)

// User-visible messages. Every failure except an empty capture collapses to one of these.
const (
	MessageDeviceUnavailable = "Could not access microphone."
	MessagePipelineFailed    = "Something went wrong. Try again."
)

// Wrap tags err with kind unless it already carries it.
func Wrap(kind, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}
