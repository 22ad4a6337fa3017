package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ent0n29/voicedirect/internal/audio"
	"github.com/ent0n29/voicedirect/internal/capture"
	"github.com/ent0n29/voicedirect/internal/config"
	"github.com/ent0n29/voicedirect/internal/observability"
	"github.com/ent0n29/voicedirect/internal/voice"
)

func baseConfig() config.Config {
	return config.Config{
		STTProvider:     "auto",
		TTSProvider:     "auto",
		BrainProvider:   "auto",
		ProviderTimeout: time.Second,
		MemoryTurns:     6,
		DefaultPersona:  "chill_gz",
		AbandonOnLeave:  true,
	}
}

func TestResolveVoiceProvidersAuto(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*config.Config)
		wantSTT string
		wantTTS string
	}{
		{name: "no keys", mutate: func(*config.Config) {}, wantSTT: "mock", wantTTS: "mock"},
		{name: "elevenlabs", mutate: func(c *config.Config) { c.ElevenLabsAPIKey = "xi" }, wantSTT: "elevenlabs", wantTTS: "elevenlabs"},
		{name: "deepgram only", mutate: func(c *config.Config) { c.DeepgramAPIKey = "dg" }, wantSTT: "deepgram", wantTTS: "mock"},
		{name: "openai only", mutate: func(c *config.Config) { c.OpenAIAPIKey = "sk" }, wantSTT: "openai", wantTTS: "mock"},
		{
			name:    "two stt keys",
			mutate:  func(c *config.Config) { c.ElevenLabsAPIKey, c.DeepgramAPIKey = "xi", "dg" },
			wantSTT: "elevenlabs+deepgram",
			wantTTS: "elevenlabs",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := baseConfig()
			tc.mutate(&cfg)
			setup, err := resolveVoiceProviders(cfg, zerolog.Nop())
			require.NoError(t, err)
			assert.Equal(t, tc.wantSTT, setup.sttLabel)
			assert.Equal(t, tc.wantTTS, setup.ttsLabel)
		})
	}
}

func TestResolveVoiceProvidersFailoverType(t *testing.T) {
	cfg := baseConfig()
	cfg.DeepgramAPIKey, cfg.OpenAIAPIKey = "dg", "sk"

	setup, err := resolveVoiceProviders(cfg, zerolog.Nop())
	require.NoError(t, err)
	_, ok := setup.transcriber.(*voice.FailoverTranscriber)
	assert.True(t, ok)
}

func TestPipelineReportsSTTFallback(t *testing.T) {
	failing := voice.NewFailoverTranscriber(failingTranscriber{}, voice.NewMockProvider())
	pipeline := &Pipeline{Transcriber: failing}
	assert.False(t, pipeline.STTFallbackActive())

	_, err := failing.Transcribe(context.Background(), audio.Blob{Data: []byte("pcm")})
	require.NoError(t, err)
	assert.True(t, pipeline.STTFallbackActive())

	assert.False(t, (&Pipeline{Transcriber: voice.NewMockProvider()}).STTFallbackActive())
}

type failingTranscriber struct{}

func (failingTranscriber) Transcribe(context.Context, audio.Blob) (string, error) {
	return "", errors.New("upstream down")
}

func TestResolveVoiceProvidersExplicitMode(t *testing.T) {
	cfg := baseConfig()
	cfg.ElevenLabsAPIKey = "xi"
	cfg.STTProvider = "Mock"

	setup, err := resolveVoiceProviders(cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "mock", setup.sttLabel)

	cfg.STTProvider = "kokoro"
	_, err = resolveVoiceProviders(cfg, zerolog.Nop())
	require.ErrorIs(t, err, config.ErrConfiguration)
}

func TestBuildPipeline(t *testing.T) {
	metrics := observability.NewMetrics("app_test_pipeline")
	pipeline, err := BuildPipeline(context.Background(), baseConfig(), metrics, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, voice.ProviderLabels{STT: "mock", Brain: "mock", TTS: "mock"}, pipeline.Labels())

	orch, err := pipeline.NewConversation("", &nopCapture{}, nopPlayer{}, zerolog.Nop())
	require.NoError(t, err)
	defer orch.Close()
	assert.Equal(t, "chill_gz", string(orch.Snapshot().PersonaID))
}

func TestBuildPipelineKeepsZeroVoiceSettings(t *testing.T) {
	cfg := baseConfig()
	cfg.ElevenLabsTTSModel = "eleven_turbo_v2"

	pipeline, err := BuildPipeline(context.Background(), cfg, observability.NewMetrics("app_test_zero_voice"), zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, voice.SynthesisOptions{ModelID: "eleven_turbo_v2"}, pipeline.Synthesis.WithDefaults())
}

func TestPartialSampleCaptureEndsTurnSilently(t *testing.T) {
	pipeline, err := BuildPipeline(context.Background(), baseConfig(), observability.NewMetrics("app_test_partial_sample"), zerolog.Nop())
	require.NoError(t, err)
	mic := capture.NewStreamDevice(zerolog.Nop())
	mic.Attach()
	orch, err := pipeline.NewConversation("", mic, nopPlayer{}, zerolog.Nop())
	require.NoError(t, err)
	defer orch.Close()

	require.NoError(t, orch.Press(context.Background()))
	require.NoError(t, mic.Push(audio.ContentTypePCM, 16000, []byte{1}))
	err = orch.Release(context.Background())
	require.ErrorIs(t, err, voice.ErrEmptyCapture)

	snap := orch.Snapshot()
	assert.Equal(t, voice.StateIdle, snap.State)
	assert.Empty(t, snap.Error)
	assert.Empty(t, snap.Memory)
}

func TestBuildPipelineRejectsUnknownPersona(t *testing.T) {
	cfg := baseConfig()
	cfg.DefaultPersona = "pirate"

	_, err := BuildPipeline(context.Background(), cfg, observability.NewMetrics("app_test_persona"), zerolog.Nop())
	require.ErrorIs(t, err, config.ErrConfiguration)
}

type nopCapture struct{}

func (*nopCapture) Open(context.Context) (voice.CaptureSession, error) {
	return nil, voice.ErrDeviceUnavailable
}

type nopPlayer struct{}

func (nopPlayer) Play(_ audio.Blob, _ func()) (voice.PlaybackHandle, error) {
	return nil, nil
}
