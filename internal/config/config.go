package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ErrConfiguration marks settings that cannot start the service.
var ErrConfiguration = errors.New("configuration error")

// Config contains all runtime settings for the voice chat service.
type Config struct {
	BindAddr                 string        `envconfig:"APP_BIND_ADDR" default:":8080"`
	ShutdownTimeout          time.Duration `envconfig:"APP_SHUTDOWN_TIMEOUT" default:"15s"`
	SessionInactivityTimeout time.Duration `envconfig:"APP_SESSION_INACTIVITY_TIMEOUT" default:"10m"`
	MetricsNamespace         string        `envconfig:"APP_METRICS_NAMESPACE" default:"voicedirect"`
	AllowAnyOrigin           bool          `envconfig:"APP_ALLOW_ANY_ORIGIN" default:"false"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty bool   `envconfig:"LOG_PRETTY" default:"false"`

	// Provider modes: auto picks the first backend with a credential and falls back to mock.
	STTProvider   string `envconfig:"STT_PROVIDER" default:"auto"`   // auto|elevenlabs|deepgram|openai|mock
	TTSProvider   string `envconfig:"TTS_PROVIDER" default:"auto"`   // auto|elevenlabs|mock
	BrainProvider string `envconfig:"BRAIN_PROVIDER" default:"auto"` // auto|gemini|gemini_http|openai|mock

	ProviderTimeout time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"60s"`

	ElevenLabsAPIKey          string  `envconfig:"ELEVENLABS_API_KEY"`
	ElevenLabsBaseURL         string  `envconfig:"ELEVENLABS_BASE_URL" default:"https://api.elevenlabs.io"`
	ElevenLabsSTTModel        string  `envconfig:"ELEVENLABS_STT_MODEL_ID" default:"scribe_v1"`
	ElevenLabsTTSModel        string  `envconfig:"ELEVENLABS_TTS_MODEL_ID" default:"eleven_multilingual_v2"`
	ElevenLabsStability       float64 `envconfig:"ELEVENLABS_STABILITY" default:"0.5"`
	ElevenLabsSimilarityBoost float64 `envconfig:"ELEVENLABS_SIMILARITY_BOOST" default:"0.5"`

	DeepgramAPIKey   string `envconfig:"DEEPGRAM_API_KEY"`
	DeepgramBaseURL  string `envconfig:"DEEPGRAM_BASE_URL" default:"https://api.deepgram.com"`
	DeepgramModel    string `envconfig:"DEEPGRAM_MODEL" default:"nova-2"`
	DeepgramLanguage string `envconfig:"DEEPGRAM_LANGUAGE" default:"en"`

	GeminiAPIKey  string `envconfig:"GEMINI_API_KEY"`
	GeminiBaseURL string `envconfig:"GEMINI_BASE_URL" default:"https://generativelanguage.googleapis.com"`
	GeminiModel   string `envconfig:"GEMINI_MODEL" default:"gemini-2.0-flash"`

	OpenAIAPIKey   string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL  string `envconfig:"OPENAI_BASE_URL"`
	OpenAIModel    string `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
	OpenAISTTModel string `envconfig:"OPENAI_STT_MODEL" default:"whisper-1"`

	MemoryTurns    int    `envconfig:"CONVERSATION_MEMORY_TURNS" default:"6"`
	DefaultPersona string `envconfig:"PERSONA_DEFAULT" default:"chill_gz"`

	// AbandonOnLeave maps the "pointer left the control" gesture to a capture cancel.
	AbandonOnLeave    bool   `envconfig:"CAPTURE_ABANDON_ON_LEAVE" default:"true"`
	CaptureSampleRate int    `envconfig:"AUDIO_CAPTURE_SAMPLE_RATE" default:"16000"`
	AudioOutput       string `envconfig:"AUDIO_OUTPUT" default:"speaker"` // speaker|timed
}

// Load reads an optional .env file, then the process environment.
func Load() (Config, error) {
	// Missing .env is the normal case in containers.
	_ = godotenv.Load()
	return LoadFromEnv()
}

// LoadFromEnv reads the process environment only.
func LoadFromEnv() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges and that explicitly selected providers have credentials.
func (c Config) Validate() error {
	if c.SessionInactivityTimeout < 5*time.Second {
		return fmt.Errorf("%w: APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s", ErrConfiguration)
	}
	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("%w: PROVIDER_TIMEOUT must be positive", ErrConfiguration)
	}
	if c.MemoryTurns <= 0 {
		return fmt.Errorf("%w: CONVERSATION_MEMORY_TURNS must be positive", ErrConfiguration)
	}
	if c.CaptureSampleRate <= 0 {
		return fmt.Errorf("%w: AUDIO_CAPTURE_SAMPLE_RATE must be positive", ErrConfiguration)
	}
	if c.ElevenLabsStability < 0 || c.ElevenLabsStability > 1 {
		return fmt.Errorf("%w: ELEVENLABS_STABILITY must be within [0,1]", ErrConfiguration)
	}
	if c.ElevenLabsSimilarityBoost < 0 || c.ElevenLabsSimilarityBoost > 1 {
		return fmt.Errorf("%w: ELEVENLABS_SIMILARITY_BOOST must be within [0,1]", ErrConfiguration)
	}
	if !inSet(c.AudioOutput, "speaker", "timed") {
		return fmt.Errorf("%w: invalid AUDIO_OUTPUT %q (expected speaker|timed)", ErrConfiguration, c.AudioOutput)
	}

	switch mode := Normalize(c.STTProvider); mode {
	case "auto", "mock":
	case "elevenlabs":
		if err := requireKey("STT_PROVIDER", mode, "ELEVENLABS_API_KEY", c.ElevenLabsAPIKey); err != nil {
			return err
		}
	case "deepgram":
		if err := requireKey("STT_PROVIDER", mode, "DEEPGRAM_API_KEY", c.DeepgramAPIKey); err != nil {
			return err
		}
	case "openai":
		if err := requireKey("STT_PROVIDER", mode, "OPENAI_API_KEY", c.OpenAIAPIKey); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: invalid STT_PROVIDER %q (expected auto|elevenlabs|deepgram|openai|mock)", ErrConfiguration, c.STTProvider)
	}

	switch mode := Normalize(c.TTSProvider); mode {
	case "auto", "mock":
	case "elevenlabs":
		if err := requireKey("TTS_PROVIDER", mode, "ELEVENLABS_API_KEY", c.ElevenLabsAPIKey); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: invalid TTS_PROVIDER %q (expected auto|elevenlabs|mock)", ErrConfiguration, c.TTSProvider)
	}

	switch mode := Normalize(c.BrainProvider); mode {
	case "auto", "mock":
	case "gemini", "gemini_http":
		if err := requireKey("BRAIN_PROVIDER", mode, "GEMINI_API_KEY", c.GeminiAPIKey); err != nil {
			return err
		}
	case "openai":
		if err := requireKey("BRAIN_PROVIDER", mode, "OPENAI_API_KEY", c.OpenAIAPIKey); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: invalid BRAIN_PROVIDER %q (expected auto|gemini|gemini_http|openai|mock)", ErrConfiguration, c.BrainProvider)
	}
	return nil
}

// Normalize lowercases a provider mode and maps empty to auto.
func Normalize(mode string) string {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == "" {
		return "auto"
	}
	return mode
}

func requireKey(setting, mode, keyName, key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: %s=%s but %s is not set", ErrConfiguration, setting, mode, keyName)
	}
	return nil
}

func inSet(v string, allowed ...string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
