package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"chart-insights/pkg/config"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIProvider talks to OpenAI or any OpenAI-compatible endpoint such as
// Groq.
type OpenAIProvider struct {
	name   string
	client *openai.Client
	model  string
	vision bool
	logger *zap.Logger
}

func NewOpenAIProvider(_ context.Context, cfg config.ProviderConfig, logger *zap.Logger) (Provider, error) {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	return &OpenAIProvider{
		name:   cfg.Name,
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		vision: cfg.Vision,
		logger: logger,
	}, nil
}

func (p *OpenAIProvider) Name() string         { return p.name }
func (p *OpenAIProvider) SupportsVision() bool { return p.vision }
func (p *OpenAIProvider) DefaultModel() string { return p.model }

func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	model := pickModel(req, p.model)

	msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if req.Image != nil {
		msg.MultiContent = []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: req.Prompt},
			{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    req.Image.DataURL,
					Detail: openai.ImageURLDetailAuto,
				},
			},
		}
	} else {
		msg.Content = req.Prompt
	}

	chatReq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: []openai.ChatCompletionMessage{msg},
	}
	// Reasoning models (o1/o3/o4/gpt-5*) take MaxCompletionTokens and only
	// the default temperature.
	if isReasoningModel(model) {
		chatReq.MaxCompletionTokens = req.MaxTokens
	} else {
		chatReq.MaxTokens = req.MaxTokens
		chatReq.Temperature = openAITemperature(req.Temperature)
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", fmt.Errorf("%s chat completion: %w", p.name, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%s: %w", p.name, ErrEmptyCompletion)
	}

	p.logger.Debug("Chat completion finished",
		zap.String("provider", p.name),
		zap.String("model", model),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
	)
	return resp.Choices[0].Message.Content, nil
}

func isReasoningModel(model string) bool {
	for _, prefix := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}

// openAITemperature keeps an explicit zero on the wire; the client drops a
// plain 0 as unset.
func openAITemperature(t float64) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(t)
}
