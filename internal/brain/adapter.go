// Package brain selects and implements the chat-completion backends.
package brain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ent0n29/voicedirect/internal/memory"
	"github.com/ent0n29/voicedirect/internal/voice"
)

const (
	ModeAuto       = "auto"
	ModeGemini     = "gemini"
	ModeGeminiHTTP = "gemini_http"
	ModeOpenAI     = "openai"
	ModeMock       = "mock"
)

// Config controls backend construction.
type Config struct {
	Mode          string
	GeminiAPIKey  string
	GeminiBaseURL string
	GeminiModel   string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
	Timeout       time.Duration
}

// Selection is the resolved backend plus the label used in logs and metrics.
type Selection struct {
	Completer voice.Completer
	Label     string
	Mock      bool
}

// New resolves cfg.Mode into a Completer. auto prefers Gemini over the REST wire,
// then OpenAI, and falls back to the mock when no credential is present.
func New(ctx context.Context, cfg Config, logger zerolog.Logger) (Selection, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = ModeAuto
	}
	logger = logger.With().Str("component", "brain").Logger()

	switch mode {
	case ModeAuto:
		switch {
		case strings.TrimSpace(cfg.GeminiAPIKey) != "":
			return New(ctx, withMode(cfg, ModeGeminiHTTP), logger)
		case strings.TrimSpace(cfg.OpenAIAPIKey) != "":
			return New(ctx, withMode(cfg, ModeOpenAI), logger)
		default:
			logger.Warn().Msg("no completion credential configured; using mock brain")
			return Selection{Completer: NewMockCompleter(), Label: ModeMock, Mock: true}, nil
		}
	case ModeGeminiHTTP:
		return Selection{Completer: NewGeminiHTTPCompleter(geminiHTTPConfig(cfg)), Label: ModeGeminiHTTP}, nil
	case ModeGemini:
		c, err := NewGeminiSDKCompleter(ctx, GeminiSDKConfig{
			APIKey:  cfg.GeminiAPIKey,
			BaseURL: cfg.GeminiBaseURL,
			Model:   cfg.GeminiModel,
			Timeout: cfg.Timeout,
		})
		if err != nil {
			return Selection{}, err
		}
		return Selection{Completer: c, Label: ModeGemini}, nil
	case ModeOpenAI:
		return Selection{Completer: NewOpenAICompleter(OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
			Timeout: cfg.Timeout,
		}), Label: ModeOpenAI}, nil
	case ModeMock:
		return Selection{Completer: NewMockCompleter(), Label: ModeMock, Mock: true}, nil
	default:
		return Selection{}, fmt.Errorf("unsupported brain mode %q", cfg.Mode)
	}
}

func withMode(cfg Config, mode string) Config {
	cfg.Mode = mode
	return cfg
}

func geminiHTTPConfig(cfg Config) GeminiHTTPConfig {
	return GeminiHTTPConfig{
		APIKey:  cfg.GeminiAPIKey,
		BaseURL: cfg.GeminiBaseURL,
		Model:   cfg.GeminiModel,
		Timeout: cfg.Timeout,
	}
}

// geminiRole maps conversation roles onto the two roles Gemini accepts.
func geminiRole(r memory.Role) string {
	if r == memory.RoleAssistant {
		return "model"
	}
	return "user"
}
