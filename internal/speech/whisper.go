package speech

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/ent0n29/voicedirect/internal/audio"
	"github.com/ent0n29/voicedirect/internal/reliability"
	"github.com/ent0n29/voicedirect/internal/voice"
)

type WhisperConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// WhisperTranscriber sends recordings to the OpenAI transcription endpoint.
type WhisperTranscriber struct {
	client *openai.Client
	model  string
	logger zerolog.Logger
}

func NewWhisperTranscriber(cfg WhisperConfig, logger zerolog.Logger) *WhisperTranscriber {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = openai.Whisper1
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		clientCfg.BaseURL = strings.TrimRight(base, "/")
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &WhisperTranscriber{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		logger: logger.With().Str("provider", "whisper-api").Logger(),
	}
}

func (w *WhisperTranscriber) Transcribe(ctx context.Context, recording audio.Blob) (string, error) {
	if recording.Empty() {
		return "", voice.Wrap(voice.ErrTranscriptionFailed, voice.ErrEmptyCapture)
	}

	start := time.Now()
	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    w.model,
		FilePath: recording.FileName(),
		Reader:   bytes.NewReader(recording.Data),
	})
	if err != nil {
		return "", voice.Wrap(voice.ErrTranscriptionFailed, fmt.Errorf("whisper request: %w", reliability.FromOpenAI(err)))
	}
	w.logger.Debug().Dur("elapsed", time.Since(start)).Msg("transcription complete")
	return strings.TrimSpace(resp.Text), nil
}
