package playback

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ent0n29/voicedirect/internal/audio"
)

type manualTimer struct {
	mu      sync.Mutex
	d       time.Duration
	fire    func()
	stopped bool
}

func (m *manualTimer) Stop() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	return true
}

func newManualPlayer() (*TimedPlayer, *[]*manualTimer) {
	var timers []*manualTimer
	p := NewTimedPlayer(zerolog.Nop())
	p.afterFunc = func(d time.Duration, f func()) stopper {
		t := &manualTimer{d: d, fire: f}
		timers = append(timers, t)
		return t
	}
	return p, &timers
}

func silentWAV(t *testing.T, d time.Duration) audio.Blob {
	t.Helper()
	data, err := audio.EncodeWAV(make([]int16, int(d.Seconds()*16000)), 16000)
	require.NoError(t, err)
	return audio.Blob{Data: data, ContentType: audio.ContentTypeWAV}
}

func TestTimedPlayerCompletesAfterClipDuration(t *testing.T) {
	p, timers := newManualPlayer()
	completed := 0

	h, err := p.Play(silentWAV(t, 750*time.Millisecond), func() { completed++ })
	require.NoError(t, err)
	require.Len(t, *timers, 1)
	timer := (*timers)[0]
	assert.InDelta(t, 750*time.Millisecond, timer.d, float64(5*time.Millisecond))

	timer.fire()
	timer.fire()
	assert.Equal(t, 1, completed)

	h.Release()
	assert.False(t, timer.stopped, "release after natural end is a no-op")
}

func TestTimedPlayerReleaseSuppressesCompletion(t *testing.T) {
	p, timers := newManualPlayer()
	completed := 0

	h, err := p.Play(silentWAV(t, time.Second), func() { completed++ })
	require.NoError(t, err)
	h.Release()
	h.Release()

	timer := (*timers)[0]
	assert.True(t, timer.stopped)
	timer.fire()
	assert.Equal(t, 0, completed)
}

func TestTimedPlayerFallsBackForUnknownFormat(t *testing.T) {
	p, timers := newManualPlayer()
	_, err := p.Play(audio.Blob{Data: []byte("opaque"), ContentType: "audio/ogg"}, nil)
	require.NoError(t, err)
	assert.Equal(t, fallbackDuration, (*timers)[0].d)
}

func TestTimedPlayerRealTimer(t *testing.T) {
	p := NewTimedPlayer(zerolog.Nop())
	done := make(chan struct{})
	_, err := p.Play(silentWAV(t, 20*time.Millisecond), func() { close(done) })
	require.NoError(t, err)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("playback did not complete")
	}
}

type recordingSink struct {
	mu      sync.Mutex
	sendErr error
	played  []uint64
	stopped []uint64
}

func (s *recordingSink) SendAudio(id uint64, _ audio.Blob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.played = append(s.played, id)
	return nil
}

func (s *recordingSink) SendStop(id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = append(s.stopped, id)
	return nil
}

func TestRemotePlayerEndedFiresOnce(t *testing.T) {
	sink := &recordingSink{}
	p := NewRemotePlayer(sink)
	completed := 0

	h, err := p.Play(audio.Blob{Data: []byte("mp3")}, func() { completed++ })
	require.NoError(t, err)
	p.Ended(0)
	p.Ended(0)
	h.Release()

	assert.Equal(t, 1, completed)
	assert.Equal(t, []uint64{1}, sink.played)
	assert.Empty(t, sink.stopped)
}

func TestRemotePlayerReleaseStopsClient(t *testing.T) {
	sink := &recordingSink{}
	p := NewRemotePlayer(sink)
	completed := 0

	h, err := p.Play(audio.Blob{Data: []byte("mp3")}, func() { completed++ })
	require.NoError(t, err)
	h.Release()
	h.Release()
	p.Ended(1)

	assert.Equal(t, 0, completed)
	assert.Equal(t, []uint64{1}, sink.stopped)
}

func TestRemotePlayerIgnoresStaleEnd(t *testing.T) {
	sink := &recordingSink{}
	p := NewRemotePlayer(sink)
	var ended []string

	first, err := p.Play(audio.Blob{Data: []byte("a")}, func() { ended = append(ended, "first") })
	require.NoError(t, err)
	first.Release()
	_, err = p.Play(audio.Blob{Data: []byte("b")}, func() { ended = append(ended, "second") })
	require.NoError(t, err)

	p.Ended(1)
	assert.Empty(t, ended)
	p.Ended(2)
	assert.Equal(t, []string{"second"}, ended)
}

func TestRemotePlayerSendFailure(t *testing.T) {
	sink := &recordingSink{sendErr: errors.New("socket closed")}
	p := NewRemotePlayer(sink)

	_, err := p.Play(audio.Blob{Data: []byte("a")}, func() { t.Fatal("unexpected completion") })
	require.Error(t, err)
	p.Ended(0)
}
