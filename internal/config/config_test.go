package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	clearCoreEnv(t)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.BindAddr)
	assert.Equal(t, 10*time.Minute, cfg.SessionInactivityTimeout)
	assert.Equal(t, "auto", cfg.STTProvider)
	assert.Equal(t, "auto", cfg.BrainProvider)
	assert.Equal(t, "scribe_v1", cfg.ElevenLabsSTTModel)
	assert.Equal(t, "eleven_multilingual_v2", cfg.ElevenLabsTTSModel)
	assert.Equal(t, 0.5, cfg.ElevenLabsStability)
	assert.Equal(t, 0.5, cfg.ElevenLabsSimilarityBoost)
	assert.Equal(t, "gemini-2.0-flash", cfg.GeminiModel)
	assert.Equal(t, 6, cfg.MemoryTurns)
	assert.Equal(t, "chill_gz", cfg.DefaultPersona)
	assert.True(t, cfg.AbandonOnLeave)
}

func TestLoadFromEnvExplicitProviderWithoutKeyFails(t *testing.T) {
	clearCoreEnv(t)
	t.Setenv("BRAIN_PROVIDER", "gemini")

	_, err := LoadFromEnv()
	require.ErrorIs(t, err, ErrConfiguration)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")
}

func TestLoadFromEnvExplicitProviderWithKey(t *testing.T) {
	clearCoreEnv(t)
	t.Setenv("STT_PROVIDER", "ElevenLabs")
	t.Setenv("TTS_PROVIDER", "elevenlabs")
	t.Setenv("ELEVENLABS_API_KEY", "xi-test")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "elevenlabs", Normalize(cfg.STTProvider))
}

func TestLoadFromEnvRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"APP_SESSION_INACTIVITY_TIMEOUT": "1s",
		"CONVERSATION_MEMORY_TURNS":      "0",
		"STT_PROVIDER":                   "kokoro",
		"AUDIO_OUTPUT":                   "hdmi",
		"PROVIDER_TIMEOUT":               "soon",
		"ELEVENLABS_STABILITY":           "1.5",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			clearCoreEnv(t)
			t.Setenv(key, value)
			_, err := LoadFromEnv()
			require.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func TestLoadFromEnvKeepsZeroVoiceSettings(t *testing.T) {
	clearCoreEnv(t)
	t.Setenv("ELEVENLABS_STABILITY", "0")
	t.Setenv("ELEVENLABS_SIMILARITY_BOOST", "0")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Zero(t, cfg.ElevenLabsStability)
	assert.Zero(t, cfg.ElevenLabsSimilarityBoost)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "auto", Normalize("  "))
	assert.Equal(t, "gemini_http", Normalize(" Gemini_HTTP "))
}

func clearCoreEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_SESSION_INACTIVITY_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"APP_ALLOW_ANY_ORIGIN",
		"LOG_LEVEL",
		"LOG_PRETTY",
		"STT_PROVIDER",
		"TTS_PROVIDER",
		"BRAIN_PROVIDER",
		"PROVIDER_TIMEOUT",
		"ELEVENLABS_API_KEY",
		"ELEVENLABS_BASE_URL",
		"ELEVENLABS_STT_MODEL_ID",
		"ELEVENLABS_TTS_MODEL_ID",
		"ELEVENLABS_STABILITY",
		"ELEVENLABS_SIMILARITY_BOOST",
		"DEEPGRAM_API_KEY",
		"DEEPGRAM_BASE_URL",
		"DEEPGRAM_MODEL",
		"DEEPGRAM_LANGUAGE",
		"GEMINI_API_KEY",
		"GEMINI_BASE_URL",
		"GEMINI_MODEL",
		"OPENAI_API_KEY",
		"OPENAI_BASE_URL",
		"OPENAI_MODEL",
		"OPENAI_STT_MODEL",
		"CONVERSATION_MEMORY_TURNS",
		"PERSONA_DEFAULT",
		"CAPTURE_ABANDON_ON_LEAVE",
		"AUDIO_CAPTURE_SAMPLE_RATE",
		"AUDIO_OUTPUT",
	}
	for _, key := range keys {
		// Setenv registers the restore; envconfig treats a set-but-empty value as explicit.
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}
