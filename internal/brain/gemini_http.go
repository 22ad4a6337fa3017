package brain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ent0n29/voicedirect/internal/memory"
	"github.com/ent0n29/voicedirect/internal/reliability"
	"github.com/ent0n29/voicedirect/internal/voice"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	defaultGeminiModel   = "gemini-2.0-flash"
)

// ErrMalformedReply marks a 2xx completion whose body lacks candidates[0].content.parts[0].text.
var ErrMalformedReply = errors.New("malformed completion reply")

type GeminiHTTPConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// GeminiHTTPCompleter calls generateContent directly with the key as a query parameter.
type GeminiHTTPCompleter struct {
	cfg    GeminiHTTPConfig
	client *http.Client
}

func NewGeminiHTTPCompleter(cfg GeminiHTTPConfig) *GeminiHTTPCompleter {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultGeminiBaseURL
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = defaultGeminiModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &GeminiHTTPCompleter{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content *geminiContent `json:"content"`
	} `json:"candidates"`
}

func (g *GeminiHTTPCompleter) Complete(ctx context.Context, turns []memory.Turn) (string, error) {
	body := geminiRequest{Contents: make([]geminiContent, 0, len(turns))}
	for _, t := range turns {
		body.Contents = append(body.Contents, geminiContent{
			Role:  geminiRole(t.Role),
			Parts: []geminiPart{{Text: t.Content}},
		})
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", voice.Wrap(voice.ErrCompletionFailed, fmt.Errorf("marshal request: %w", err))
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		strings.TrimRight(g.cfg.BaseURL, "/"),
		url.PathEscape(g.cfg.Model),
		url.QueryEscape(g.cfg.APIKey),
	)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", voice.Wrap(voice.ErrCompletionFailed, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := g.client.Do(req)
	if err != nil {
		// The URL carries the key; do not let it reach logs.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return "", voice.Wrap(voice.ErrCompletionFailed, fmt.Errorf("send request: %w", err))
	}
	defer res.Body.Close()
	if err := reliability.CheckResponse("gemini", res); err != nil {
		return "", voice.Wrap(voice.ErrCompletionFailed, err)
	}

	var out geminiResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", voice.Wrap(voice.ErrCompletionFailed, fmt.Errorf("%w: %v", ErrMalformedReply, err))
	}
	if len(out.Candidates) == 0 || out.Candidates[0].Content == nil || len(out.Candidates[0].Content.Parts) == 0 {
		return "", voice.Wrap(voice.ErrCompletionFailed, ErrMalformedReply)
	}
	text := strings.TrimSpace(out.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		return "", voice.Wrap(voice.ErrCompletionFailed, ErrMalformedReply)
	}
	return text, nil
}
