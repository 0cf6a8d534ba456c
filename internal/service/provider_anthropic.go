package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"chart-insights/pkg/config"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
)

type AnthropicProvider struct {
	client anthropic.Client
	model  string
	vision bool
	logger *zap.Logger
}

func NewAnthropicProvider(_ context.Context, cfg config.ProviderConfig, logger *zap.Logger) (Provider, error) {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// one attempt per provider; the fallback chain decides what happens next
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicProvider{
		client: anthropic.NewClient(opts...),
		model:  cfg.Model,
		vision: cfg.Vision,
		logger: logger,
	}, nil
}

func (p *AnthropicProvider) Name() string         { return "anthropic" }
func (p *AnthropicProvider) SupportsVision() bool { return p.vision }
func (p *AnthropicProvider) DefaultModel() string { return p.model }

func (p *AnthropicProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	model := pickModel(req, p.model)

	var blocks []anthropic.ContentBlockParamUnion
	if req.Image != nil {
		blocks = append(blocks, anthropic.NewImageBlockBase64(
			req.Image.MIME,
			base64.StdEncoding.EncodeToString(req.Image.Data),
		))
	}
	blocks = append(blocks, anthropic.NewTextBlock(req.Prompt))

	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   int64(req.MaxTokens),
		Temperature: anthropic.Float(req.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(blocks...),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic messages: %w", err)
	}

	var b strings.Builder
	for _, cb := range msg.Content {
		if cb.Type == "text" {
			b.WriteString(cb.Text)
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", fmt.Errorf("anthropic: %w", ErrEmptyCompletion)
	}

	p.logger.Debug("Anthropic message finished",
		zap.String("model", model),
		zap.String("stop_reason", string(msg.StopReason)),
	)
	return b.String(), nil
}
