package brain

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ent0n29/voicedirect/internal/memory"
	"github.com/ent0n29/voicedirect/internal/reliability"
	"github.com/ent0n29/voicedirect/internal/voice"
)

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type OpenAICompleter struct {
	client *openai.Client
	model  string
}

func NewOpenAICompleter(cfg OpenAIConfig) *OpenAICompleter {
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = openai.GPT4oMini
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		clientCfg.BaseURL = strings.TrimRight(base, "/")
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return &OpenAICompleter{client: openai.NewClientWithConfig(clientCfg), model: cfg.Model}
}

func (c *OpenAICompleter) Complete(ctx context.Context, turns []memory.Turn) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(turns))
	for _, t := range turns {
		role := openai.ChatMessageRoleUser
		if t.Role == memory.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: t.Content})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		return "", voice.Wrap(voice.ErrCompletionFailed, fmt.Errorf("chat completion: %w", reliability.FromOpenAI(err)))
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", voice.Wrap(voice.ErrCompletionFailed, ErrMalformedReply)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
