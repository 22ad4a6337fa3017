package brain

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/ent0n29/voicedirect/internal/memory"
	"github.com/ent0n29/voicedirect/internal/voice"
)

type GeminiSDKConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// GeminiSDKCompleter uses the google.golang.org/genai client against the Gemini API backend.
type GeminiSDKCompleter struct {
	client *genai.Client
	model  string
}

func NewGeminiSDKCompleter(ctx context.Context, cfg GeminiSDKConfig) (*GeminiSDKCompleter, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = defaultGeminiModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" && base != defaultGeminiBaseURL {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: strings.TrimRight(base, "/") + "/"}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiSDKCompleter{client: client, model: cfg.Model}, nil
}

func (g *GeminiSDKCompleter) Complete(ctx context.Context, turns []memory.Turn) (string, error) {
	contents := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		contents = append(contents, &genai.Content{
			Role:  geminiRole(t.Role),
			Parts: []*genai.Part{{Text: t.Content}},
		})
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", voice.Wrap(voice.ErrCompletionFailed, fmt.Errorf("generate content: %w", err))
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil ||
		len(resp.Candidates[0].Content.Parts) == 0 {
		return "", voice.Wrap(voice.ErrCompletionFailed, ErrMalformedReply)
	}
	text := strings.TrimSpace(resp.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		return "", voice.Wrap(voice.ErrCompletionFailed, ErrMalformedReply)
	}
	return text, nil
}
