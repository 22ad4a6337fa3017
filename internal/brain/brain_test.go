package brain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ent0n29/voicedirect/internal/memory"
	"github.com/ent0n29/voicedirect/internal/reliability"
	"github.com/ent0n29/voicedirect/internal/voice"
)

var history = []memory.Turn{
	{Role: memory.RoleUser, Content: "Be chill.\nUser said: hi"},
	{Role: memory.RoleAssistant, Content: "yo"},
	{Role: memory.RoleUser, Content: "Be chill.\nUser said: what's up"},
}

const geminiReply = `{"candidates":[{"content":{"role":"model","parts":[{"text":"yo not much"}]}}]}`

type geminiCapture struct {
	path  string
	query string
	key   string
	body  geminiRequest
}

func newGeminiServer(t *testing.T, status int, reply string, got *geminiCapture) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.path = r.URL.Path
		got.query = r.URL.Query().Get("key")
		got.key = r.Header.Get("x-goog-api-key")
		_ = json.NewDecoder(r.Body).Decode(&got.body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGeminiHTTPComplete(t *testing.T) {
	var got geminiCapture
	srv := newGeminiServer(t, http.StatusOK, geminiReply, &got)

	c := NewGeminiHTTPCompleter(GeminiHTTPConfig{APIKey: "g-key", BaseURL: srv.URL})
	text, err := c.Complete(context.Background(), history)
	require.NoError(t, err)
	assert.Equal(t, "yo not much", text)

	assert.Equal(t, "/v1beta/models/gemini-2.0-flash:generateContent", got.path)
	assert.Equal(t, "g-key", got.query)
	require.Len(t, got.body.Contents, 3)
	assert.Equal(t, "user", got.body.Contents[0].Role)
	assert.Equal(t, "model", got.body.Contents[1].Role)
	assert.Equal(t, "yo", got.body.Contents[1].Parts[0].Text)
	assert.Equal(t, history[2].Content, got.body.Contents[2].Parts[0].Text)
}

func TestGeminiHTTPMalformedReplies(t *testing.T) {
	for _, reply := range []string{
		`{}`,
		`{"candidates":[]}`,
		`{"candidates":[{"content":{"parts":[]}}]}`,
		`{"candidates":[{"content":{"parts":[{"text":"  "}]}}]}`,
		`not json`,
	} {
		var got geminiCapture
		srv := newGeminiServer(t, http.StatusOK, reply, &got)
		c := NewGeminiHTTPCompleter(GeminiHTTPConfig{APIKey: "k", BaseURL: srv.URL})
		_, err := c.Complete(context.Background(), history)
		require.ErrorIs(t, err, voice.ErrCompletionFailed, reply)
		require.ErrorIs(t, err, ErrMalformedReply, reply)
	}
}

func TestGeminiHTTPStatusErrorHidesKey(t *testing.T) {
	var got geminiCapture
	srv := newGeminiServer(t, http.StatusBadRequest, `{"error":{"message":"Please use a valid role: user, model."}}`, &got)

	c := NewGeminiHTTPCompleter(GeminiHTTPConfig{APIKey: "secret-key", BaseURL: srv.URL})
	_, err := c.Complete(context.Background(), history)
	require.ErrorIs(t, err, voice.ErrCompletionFailed)
	assert.Equal(t, reliability.CodeBadRequest, reliability.CodeOf(err))
	assert.NotContains(t, err.Error(), "secret-key")
}

func TestGeminiSDKComplete(t *testing.T) {
	var got geminiCapture
	srv := newGeminiServer(t, http.StatusOK, geminiReply, &got)

	c, err := NewGeminiSDKCompleter(context.Background(), GeminiSDKConfig{APIKey: "g-key", BaseURL: srv.URL})
	require.NoError(t, err)
	text, err := c.Complete(context.Background(), history)
	require.NoError(t, err)
	assert.Equal(t, "yo not much", text)

	assert.True(t, strings.HasSuffix(got.path, "/models/gemini-2.0-flash:generateContent"), got.path)
	assert.Equal(t, "g-key", got.key)
	require.Len(t, got.body.Contents, 3)
	assert.Equal(t, "model", got.body.Contents[1].Role)
}

func TestOpenAIComplete(t *testing.T) {
	var roles []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o-mini", body.Model)
		for _, m := range body.Messages {
			roles = append(roles, m.Role)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"yo not much"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAICompleter(OpenAIConfig{APIKey: "sk", BaseURL: srv.URL + "/v1", Model: "gpt-4o-mini"})
	text, err := c.Complete(context.Background(), history)
	require.NoError(t, err)
	assert.Equal(t, "yo not much", text)
	assert.Equal(t, []string{"user", "assistant", "user"}, roles)
}

func TestOpenAIRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
	}))
	defer srv.Close()

	c := NewOpenAICompleter(OpenAIConfig{APIKey: "sk", BaseURL: srv.URL + "/v1"})
	_, err := c.Complete(context.Background(), history)
	require.ErrorIs(t, err, voice.ErrCompletionFailed)
	assert.Equal(t, reliability.CodeRateLimited, reliability.CodeOf(err))
}

func TestMockCompleter(t *testing.T) {
	m := NewMockCompleter()
	text, err := m.Complete(context.Background(), history[:1])
	require.NoError(t, err)
	assert.Equal(t, "I heard you: hi", text)

	text, err = m.Complete(context.Background(), history)
	require.NoError(t, err)
	assert.Contains(t, text, "what's up")

	_, err = m.Complete(context.Background(), nil)
	require.ErrorIs(t, err, voice.ErrCompletionFailed)
}

func TestNewResolvesModes(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name  string
		cfg   Config
		label string
		mock  bool
	}{
		{"auto without keys", Config{}, ModeMock, true},
		{"auto with gemini", Config{GeminiAPIKey: "g"}, ModeGeminiHTTP, false},
		{"auto with openai", Config{OpenAIAPIKey: "o"}, ModeOpenAI, false},
		{"explicit sdk", Config{Mode: "Gemini", GeminiAPIKey: "g"}, ModeGemini, false},
		{"explicit mock", Config{Mode: "mock", GeminiAPIKey: "g"}, ModeMock, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sel, err := New(ctx, tc.cfg, zerolog.Nop())
			require.NoError(t, err)
			assert.Equal(t, tc.label, sel.Label)
			assert.Equal(t, tc.mock, sel.Mock)
			assert.NotNil(t, sel.Completer)
		})
	}

	_, err := New(ctx, Config{Mode: "claude"}, zerolog.Nop())
	assert.Error(t, err)
}
