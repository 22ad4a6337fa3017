package playback

import (
	"sync"

	"github.com/ent0n29/voicedirect/internal/audio"
	"github.com/ent0n29/voicedirect/internal/voice"
)

// RemoteSink delivers playback commands to the client that owns the speaker.
type RemoteSink interface {
	SendAudio(clipID uint64, clip audio.Blob) error
	SendStop(clipID uint64) error
}

// RemotePlayer hands clips to a client and waits for it to report the end of
// output through Ended.
type RemotePlayer struct {
	sink RemoteSink

	mu      sync.Mutex
	nextID  uint64
	current *remoteHandle
}

func NewRemotePlayer(sink RemoteSink) *RemotePlayer {
	return &RemotePlayer{sink: sink}
}

func (p *RemotePlayer) Play(clip audio.Blob, onComplete func()) (voice.PlaybackHandle, error) {
	p.mu.Lock()
	p.nextID++
	h := &remoteHandle{player: p, id: p.nextID, onComplete: onComplete}
	p.current = h
	p.mu.Unlock()

	if err := p.sink.SendAudio(h.id, clip); err != nil {
		p.clear(h)
		return nil, err
	}
	return h, nil
}

// Ended is called when the client reports that output finished naturally. A
// report for a released or superseded clip is ignored. clipID zero means the
// current clip.
func (p *RemotePlayer) Ended(clipID uint64) {
	p.mu.Lock()
	h := p.current
	if h == nil || (clipID != 0 && clipID != h.id) {
		p.mu.Unlock()
		return
	}
	p.current = nil
	p.mu.Unlock()

	if h.finish() && h.onComplete != nil {
		h.onComplete()
	}
}

func (p *RemotePlayer) clear(h *remoteHandle) {
	p.mu.Lock()
	if p.current == h {
		p.current = nil
	}
	p.mu.Unlock()
}

type remoteHandle struct {
	player     *RemotePlayer
	id         uint64
	onComplete func()

	mu   sync.Mutex
	done bool
}

func (h *remoteHandle) finish() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.done {
		return false
	}
	h.done = true
	return true
}

func (h *remoteHandle) Release() {
	if !h.finish() {
		return
	}
	h.player.clear(h)
	_ = h.player.sink.SendStop(h.id)
}
