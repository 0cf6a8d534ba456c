package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"chart-insights/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type capturedMessage struct {
	apiKey string
	body   map[string]any
}

func newMessagesServer(t *testing.T, status int, reply string) (*httptest.Server, *capturedMessage) {
	t.Helper()
	captured := &capturedMessage{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		captured.apiKey = r.Header.Get("X-Api-Key")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&captured.body))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"Number of request tokens has exceeded your per-minute rate limit"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":            "msg_01",
			"type":          "message",
			"role":          "assistant",
			"model":         captured.body["model"],
			"content":       []map[string]any{{"type": "text", "text": reply}},
			"stop_reason":   "end_turn",
			"stop_sequence": nil,
			"usage":         map[string]any{"input_tokens": 12, "output_tokens": 6},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

func newTestAnthropicProvider(t *testing.T, baseURL string) Provider {
	t.Helper()
	p, err := NewAnthropicProvider(context.Background(), config.ProviderConfig{
		Name:    "anthropic",
		APIKey:  "sk-ant-test",
		Model:   "claude-3-5-sonnet-latest",
		BaseURL: baseURL,
		Vision:  true,
	}, zap.NewNop())
	require.NoError(t, err)
	return p
}

func TestAnthropicProviderSendsImageBlock(t *testing.T) {
	srv, captured := newMessagesServer(t, http.StatusOK, "Sales dip in June.")
	p := newTestAnthropicProvider(t, srv.URL)

	img, err := EncodeImage(ImageInput{Data: []byte("pngdata"), FileName: "chart.png"})
	require.NoError(t, err)

	text, err := p.Complete(context.Background(), CompletionRequest{
		Prompt:      "describe",
		Image:       img,
		Temperature: 0.3,
		MaxTokens:   700,
	})
	require.NoError(t, err)
	assert.Equal(t, "Sales dip in June.", text)

	assert.Equal(t, "sk-ant-test", captured.apiKey)
	assert.Equal(t, "claude-3-5-sonnet-latest", captured.body["model"])
	assert.EqualValues(t, 700, captured.body["max_tokens"])
	assert.InDelta(t, 0.3, captured.body["temperature"], 1e-9)

	messages := captured.body["messages"].([]any)
	require.Len(t, messages, 1)
	content := messages[0].(map[string]any)["content"].([]any)
	require.Len(t, content, 2)

	imageBlock := content[0].(map[string]any)
	assert.Equal(t, "image", imageBlock["type"])
	source := imageBlock["source"].(map[string]any)
	assert.Equal(t, "base64", source["type"])
	assert.Equal(t, "image/png", source["media_type"])
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("pngdata")), source["data"])

	textBlock := content[1].(map[string]any)
	assert.Equal(t, "text", textBlock["type"])
	assert.Equal(t, "describe", textBlock["text"])
}

func TestAnthropicProviderModelOverride(t *testing.T) {
	srv, captured := newMessagesServer(t, http.StatusOK, "ok")
	p := newTestAnthropicProvider(t, srv.URL)

	_, err := p.Complete(context.Background(), CompletionRequest{Prompt: "table", Model: "claude-3-haiku-20240307", MaxTokens: 300})
	require.NoError(t, err)
	assert.Equal(t, "claude-3-haiku-20240307", captured.body["model"])

	content := captured.body["messages"].([]any)[0].(map[string]any)["content"].([]any)
	require.Len(t, content, 1)
}

func TestAnthropicProviderRateLimit(t *testing.T) {
	srv, _ := newMessagesServer(t, http.StatusTooManyRequests, "")
	p := newTestAnthropicProvider(t, srv.URL)

	_, err := p.Complete(context.Background(), CompletionRequest{Prompt: "x", MaxTokens: 100})
	require.Error(t, err)
	assert.Equal(t, KindRateLimit, Classify(err))
}

func TestAnthropicProviderEmptyReply(t *testing.T) {
	srv, _ := newMessagesServer(t, http.StatusOK, " ")
	p := newTestAnthropicProvider(t, srv.URL)

	_, err := p.Complete(context.Background(), CompletionRequest{Prompt: "x", MaxTokens: 100})
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}
