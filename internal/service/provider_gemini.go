package service

import (
	"context"
	"fmt"
	"strings"

	"chart-insights/pkg/config"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

type GeminiProvider struct {
	client *genai.Client
	model  string
	vision bool
	logger *zap.Logger
}

func NewGeminiProvider(ctx context.Context, cfg config.ProviderConfig, logger *zap.Logger) (Provider, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = cfg.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiProvider{
		client: client,
		model:  cfg.Model,
		vision: cfg.Vision,
		logger: logger,
	}, nil
}

func (p *GeminiProvider) Name() string         { return "gemini" }
func (p *GeminiProvider) SupportsVision() bool { return p.vision }
func (p *GeminiProvider) DefaultModel() string { return p.model }

func (p *GeminiProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	model := pickModel(req, p.model)

	parts := []*genai.Part{genai.NewPartFromText(req.Prompt)}
	if req.Image != nil {
		parts = append(parts, genai.NewPartFromBytes(req.Image.Data, req.Image.MIME))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := p.client.Models.GenerateContent(ctx, model, contents, &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(req.Temperature)),
		MaxOutputTokens: int32(req.MaxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("gemini: %w", ErrEmptyCompletion)
	}

	p.logger.Debug("Gemini generation finished", zap.String("model", model))
	return text, nil
}
