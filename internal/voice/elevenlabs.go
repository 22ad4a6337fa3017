package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ent0n29/voicedirect/internal/audio"
	"github.com/ent0n29/voicedirect/internal/reliability"
)

const elevenLabsProvider = "elevenlabs"

type ElevenLabsConfig struct {
	APIKey     string
	BaseURL    string
	STTModelID string
	Timeout    time.Duration
}

// ElevenLabsProvider calls the ElevenLabs REST endpoints for both transcription and synthesis.
type ElevenLabsProvider struct {
	cfg    ElevenLabsConfig
	client *http.Client
}

func NewElevenLabsProvider(cfg ElevenLabsConfig) *ElevenLabsProvider {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.elevenlabs.io"
	}
	if strings.TrimSpace(cfg.STTModelID) == "" {
		cfg.STTModelID = DefaultTranscriptionModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &ElevenLabsProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (p *ElevenLabsProvider) Transcribe(ctx context.Context, recording audio.Blob) (string, error) {
	if recording.Empty() {
		return "", Wrap(ErrTranscriptionFailed, ErrEmptyCapture)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", recording.FileName())
	if err != nil {
		return "", Wrap(ErrTranscriptionFailed, fmt.Errorf("create form file: %w", err))
	}
	if _, err := part.Write(recording.Data); err != nil {
		return "", Wrap(ErrTranscriptionFailed, fmt.Errorf("write form file: %w", err))
	}
	if err := mw.WriteField("model_id", p.cfg.STTModelID); err != nil {
		return "", Wrap(ErrTranscriptionFailed, fmt.Errorf("write model_id: %w", err))
	}
	if err := mw.Close(); err != nil {
		return "", Wrap(ErrTranscriptionFailed, fmt.Errorf("close multipart: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint("/v1/speech-to-text"), &body)
	if err != nil {
		return "", Wrap(ErrTranscriptionFailed, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("xi-api-key", p.cfg.APIKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	res, err := p.client.Do(req)
	if err != nil {
		return "", Wrap(ErrTranscriptionFailed, fmt.Errorf("send request: %w", err))
	}
	defer res.Body.Close()
	if err := reliability.CheckResponse(elevenLabsProvider, res); err != nil {
		return "", Wrap(ErrTranscriptionFailed, err)
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", Wrap(ErrTranscriptionFailed, fmt.Errorf("decode response: %w", err))
	}
	return strings.TrimSpace(out.Text), nil
}

type elevenVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type elevenTTSRequest struct {
	Text          string              `json:"text"`
	ModelID       string              `json:"model_id"`
	VoiceSettings elevenVoiceSettings `json:"voice_settings"`
}

func (p *ElevenLabsProvider) Synthesize(ctx context.Context, text, voiceID string, opts SynthesisOptions) (audio.Blob, error) {
	if strings.TrimSpace(text) == "" {
		return audio.Blob{}, Wrap(ErrSynthesisFailed, fmt.Errorf("text is required"))
	}
	if strings.TrimSpace(voiceID) == "" {
		return audio.Blob{}, Wrap(ErrSynthesisFailed, fmt.Errorf("voice_id is required"))
	}
	opts = opts.WithDefaults()

	payload, err := json.Marshal(elevenTTSRequest{
		Text:    text,
		ModelID: opts.ModelID,
		VoiceSettings: elevenVoiceSettings{
			Stability:       clamp01(opts.Stability),
			SimilarityBoost: clamp01(opts.SimilarityBoost),
		},
	})
	if err != nil {
		return audio.Blob{}, Wrap(ErrSynthesisFailed, fmt.Errorf("marshal request: %w", err))
	}

	endpoint := p.endpoint("/v1/text-to-speech/" + url.PathEscape(voiceID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return audio.Blob{}, Wrap(ErrSynthesisFailed, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("xi-api-key", p.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", audio.ContentTypeMP3)

	res, err := p.client.Do(req)
	if err != nil {
		return audio.Blob{}, Wrap(ErrSynthesisFailed, fmt.Errorf("send request: %w", err))
	}
	defer res.Body.Close()
	if err := reliability.CheckResponse(elevenLabsProvider, res); err != nil {
		return audio.Blob{}, Wrap(ErrSynthesisFailed, err)
	}

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return audio.Blob{}, Wrap(ErrSynthesisFailed, fmt.Errorf("read response: %w", err))
	}
	if len(data) == 0 {
		return audio.Blob{}, Wrap(ErrSynthesisFailed, fmt.Errorf("empty audio response"))
	}
	ct := res.Header.Get("Content-Type")
	if ct == "" || strings.HasPrefix(ct, "application/octet-stream") {
		ct = audio.ContentTypeMP3
	}
	return audio.Blob{Data: data, ContentType: ct}, nil
}

func (p *ElevenLabsProvider) endpoint(path string) string {
	return strings.TrimRight(p.cfg.BaseURL, "/") + path
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
