// Package playback provides output devices for synthesized replies.
package playback

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ent0n29/voicedirect/internal/audio"
	"github.com/ent0n29/voicedirect/internal/voice"
)

// fallbackDuration is used when a clip's length cannot be decoded.
const fallbackDuration = 2 * time.Second

// TimedPlayer plays nothing and reports completion once the clip's duration has
// elapsed. It stands in for a speaker on headless hosts.
type TimedPlayer struct {
	logger zerolog.Logger
	// afterFunc is swapped in tests.
	afterFunc func(time.Duration, func()) stopper
}

type stopper interface {
	Stop() bool
}

func NewTimedPlayer(logger zerolog.Logger) *TimedPlayer {
	return &TimedPlayer{
		logger: logger.With().Str("component", "playback_timed").Logger(),
		afterFunc: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
	}
}

func (p *TimedPlayer) Play(clip audio.Blob, onComplete func()) (voice.PlaybackHandle, error) {
	d, err := audio.Duration(clip)
	if err != nil {
		p.logger.Debug().Err(err).Str("content_type", clip.ContentType).Msg("clip duration unknown; using fallback")
		d = fallbackDuration
	}
	h := &timedHandle{}
	h.timer = p.afterFunc(d, func() {
		if h.finish() && onComplete != nil {
			onComplete()
		}
	})
	return h, nil
}

type timedHandle struct {
	mu    sync.Mutex
	timer stopper
	done  bool
}

// finish reports whether the caller won the race to end this handle.
func (h *timedHandle) finish() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.done {
		return false
	}
	h.done = true
	return true
}

func (h *timedHandle) Release() {
	if h.finish() {
		h.timer.Stop()
	}
}
