package speech

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ent0n29/voicedirect/internal/audio"
	"github.com/ent0n29/voicedirect/internal/reliability"
	"github.com/ent0n29/voicedirect/internal/voice"
)

var clip = audio.Blob{Data: []byte("RIFFdata"), ContentType: audio.ContentTypeWAV}

func TestDeepgramTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/listen", r.URL.Path)
		assert.Equal(t, "nova-2", r.URL.Query().Get("model"))
		assert.Equal(t, "en", r.URL.Query().Get("language"))
		assert.Equal(t, "Token dg-key", r.Header.Get("Authorization"))
		assert.Equal(t, "audio/wav", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "RIFFdata", string(body))

		_, _ = w.Write([]byte(`{"results":{"channels":[{"alternatives":[{"transcript":"what's up","confidence":0.98}]}]}}`))
	}))
	defer srv.Close()

	d := NewDeepgramTranscriber(DeepgramConfig{APIKey: "dg-key", BaseURL: srv.URL, Language: "en"}, zerolog.Nop())
	text, err := d.Transcribe(context.Background(), clip)
	require.NoError(t, err)
	assert.Equal(t, "what's up", text)
}

func TestDeepgramNoAlternatives(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"results":{"channels":[]}}`))
	}))
	defer srv.Close()

	d := NewDeepgramTranscriber(DeepgramConfig{APIKey: "k", BaseURL: srv.URL}, zerolog.Nop())
	_, err := d.Transcribe(context.Background(), clip)
	require.ErrorIs(t, err, voice.ErrTranscriptionFailed)
}

func TestDeepgramStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	d := NewDeepgramTranscriber(DeepgramConfig{APIKey: "k", BaseURL: srv.URL}, zerolog.Nop())
	_, err := d.Transcribe(context.Background(), clip)
	require.ErrorIs(t, err, voice.ErrTranscriptionFailed)
	assert.Equal(t, reliability.CodeUpstreamUnavailable, reliability.CodeOf(err))

	_, err = d.Transcribe(context.Background(), audio.Blob{})
	require.ErrorIs(t, err, voice.ErrTranscriptionFailed)
}

func TestWhisperTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/transcriptions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-1", r.FormValue("model"))
		_, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		assert.Equal(t, "audio.wav", hdr.Filename)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"text": "hello there"})
	}))
	defer srv.Close()

	wt := NewWhisperTranscriber(WhisperConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1"}, zerolog.Nop())
	text, err := wt.Transcribe(context.Background(), clip)
	require.NoError(t, err)
	assert.Equal(t, "hello there", text)
}

func TestWhisperStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	wt := NewWhisperTranscriber(WhisperConfig{APIKey: "bad", BaseURL: srv.URL + "/v1"}, zerolog.Nop())
	_, err := wt.Transcribe(context.Background(), clip)
	require.ErrorIs(t, err, voice.ErrTranscriptionFailed)
	assert.Equal(t, reliability.CodeUnauthorized, reliability.CodeOf(err))
}
