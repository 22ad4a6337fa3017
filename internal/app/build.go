package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ent0n29/voicedirect/internal/brain"
	"github.com/ent0n29/voicedirect/internal/config"
	"github.com/ent0n29/voicedirect/internal/httpapi"
	"github.com/ent0n29/voicedirect/internal/observability"
	"github.com/ent0n29/voicedirect/internal/persona"
	"github.com/ent0n29/voicedirect/internal/session"
	"github.com/ent0n29/voicedirect/internal/voice"
)

type BuildResult struct {
	Config   config.Config
	Pipeline *Pipeline
	API      *httpapi.Server
	Sessions *session.Manager
	Metrics  *observability.Metrics

	// Cleanup should be called on shutdown to end live sessions.
	Cleanup func() error
}

// BuildPipeline resolves the provider clients shared by every conversation.
func BuildPipeline(ctx context.Context, cfg config.Config, metrics *observability.Metrics, logger zerolog.Logger) (*Pipeline, error) {
	if _, err := persona.Lookup(cfg.DefaultPersona); err != nil {
		return nil, fmt.Errorf("%w: PERSONA_DEFAULT: %w", config.ErrConfiguration, err)
	}

	voiceSetup, err := resolveVoiceProviders(cfg, logger)
	if err != nil {
		return nil, err
	}

	sel, err := brain.New(ctx, brain.Config{
		Mode:          cfg.BrainProvider,
		GeminiAPIKey:  cfg.GeminiAPIKey,
		GeminiBaseURL: cfg.GeminiBaseURL,
		GeminiModel:   cfg.GeminiModel,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
		OpenAIModel:   cfg.OpenAIModel,
		Timeout:       cfg.ProviderTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("brain init failed: %w", err)
	}
	logger.Info().Str("brain", sel.Label).Msg("completion provider resolved")

	return &Pipeline{
		Transcriber: voiceSetup.transcriber,
		Completer:   sel.Completer,
		Synthesizer: voiceSetup.synthesizer,
		Synthesis: voice.SynthesisOptions{
			ModelID:         cfg.ElevenLabsTTSModel,
			Stability:       cfg.ElevenLabsStability,
			SimilarityBoost: cfg.ElevenLabsSimilarityBoost,
		},
		ProviderLabels: voice.ProviderLabels{
			STT:   voiceSetup.sttLabel,
			Brain: sel.Label,
			TTS:   voiceSetup.ttsLabel,
		},
		MemoryTurns:    cfg.MemoryTurns,
		AbandonOnLeave: cfg.AbandonOnLeave,
		DefaultPersona: cfg.DefaultPersona,
		Metrics:        metrics,
	}, nil
}

// Build wires the HTTP service.
func Build(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	pipeline, err := BuildPipeline(ctx, cfg, metrics, logger)
	if err != nil {
		return nil, err
	}

	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	api := httpapi.New(cfg, sessions, pipeline, metrics, logger)
	sessions.SetExpireHook(func(s *session.Session) {
		api.CloseConversation(s.ID)
		metrics.SessionEvents.WithLabelValues("expired").Inc()
		metrics.ActiveSessions.Set(float64(sessions.ActiveCount()))
	})

	return &BuildResult{
		Config:   cfg,
		Pipeline: pipeline,
		API:      api,
		Sessions: sessions,
		Metrics:  metrics,
		Cleanup: func() error {
			api.CloseAll()
			return nil
		},
	}, nil
}
