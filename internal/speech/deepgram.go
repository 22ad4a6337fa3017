// Package speech holds the alternate transcription backends. The ElevenLabs
// transcriber lives with the synthesizer in package voice.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ent0n29/voicedirect/internal/audio"
	"github.com/ent0n29/voicedirect/internal/reliability"
	"github.com/ent0n29/voicedirect/internal/voice"
)

type DeepgramConfig struct {
	APIKey   string
	BaseURL  string
	Model    string
	Language string
	Timeout  time.Duration
}

// DeepgramTranscriber uses the prerecorded /v1/listen endpoint with the raw recording as body.
type DeepgramTranscriber struct {
	cfg    DeepgramConfig
	client *http.Client
	logger zerolog.Logger
}

func NewDeepgramTranscriber(cfg DeepgramConfig, logger zerolog.Logger) *DeepgramTranscriber {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.deepgram.com"
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "nova-2"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &DeepgramTranscriber{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With().Str("provider", "deepgram").Logger(),
	}
}

func (d *DeepgramTranscriber) Transcribe(ctx context.Context, recording audio.Blob) (string, error) {
	if recording.Empty() {
		return "", voice.Wrap(voice.ErrTranscriptionFailed, voice.ErrEmptyCapture)
	}

	q := url.Values{}
	q.Set("model", d.cfg.Model)
	q.Set("smart_format", "true")
	if d.cfg.Language != "" {
		q.Set("language", d.cfg.Language)
	}
	endpoint := strings.TrimRight(d.cfg.BaseURL, "/") + "/v1/listen?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(recording.Data))
	if err != nil {
		return "", voice.Wrap(voice.ErrTranscriptionFailed, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Authorization", "Token "+d.cfg.APIKey)
	ct := recording.ContentType
	if ct == "" {
		ct = audio.ContentTypeWebM
	}
	req.Header.Set("Content-Type", ct)

	start := time.Now()
	res, err := d.client.Do(req)
	if err != nil {
		return "", voice.Wrap(voice.ErrTranscriptionFailed, fmt.Errorf("deepgram request: %w", err))
	}
	defer res.Body.Close()
	if err := reliability.CheckResponse("deepgram", res); err != nil {
		return "", voice.Wrap(voice.ErrTranscriptionFailed, err)
	}

	var parsed struct {
		Results struct {
			Channels []struct {
				Alternatives []struct {
					Transcript string  `json:"transcript"`
					Confidence float64 `json:"confidence"`
				} `json:"alternatives"`
			} `json:"channels"`
		} `json:"results"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return "", voice.Wrap(voice.ErrTranscriptionFailed, fmt.Errorf("decode deepgram: %w", err))
	}
	if len(parsed.Results.Channels) == 0 || len(parsed.Results.Channels[0].Alternatives) == 0 {
		return "", voice.Wrap(voice.ErrTranscriptionFailed, fmt.Errorf("deepgram returned no alternatives"))
	}

	alt := parsed.Results.Channels[0].Alternatives[0]
	d.logger.Debug().
		Float64("confidence", alt.Confidence).
		Dur("elapsed", time.Since(start)).
		Msg("transcription complete")
	return strings.TrimSpace(alt.Transcript), nil
}
