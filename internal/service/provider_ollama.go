package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"chart-insights/pkg/config"

	ollama "github.com/ollama/ollama/api"
	"go.uber.org/zap"
)

// OllamaProvider calls a self-hosted Ollama server. It needs no API key.
type OllamaProvider struct {
	client *ollama.Client
	model  string
	vision bool
	logger *zap.Logger
}

func NewOllamaProvider(_ context.Context, cfg config.ProviderConfig, logger *zap.Logger) (Provider, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid OLLAMA_HOST %q: %w", cfg.BaseURL, err)
	}

	return &OllamaProvider{
		client: ollama.NewClient(u, http.DefaultClient),
		model:  cfg.Model,
		vision: cfg.Vision,
		logger: logger,
	}, nil
}

func (p *OllamaProvider) Name() string         { return "ollama" }
func (p *OllamaProvider) SupportsVision() bool { return p.vision }
func (p *OllamaProvider) DefaultModel() string { return p.model }

func (p *OllamaProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	model := pickModel(req, p.model)
	stream := false

	genReq := &ollama.GenerateRequest{
		Model:  model,
		Prompt: req.Prompt,
		Stream: &stream,
		Options: map[string]any{
			"temperature": req.Temperature,
			"num_predict": req.MaxTokens,
		},
	}
	if req.Image != nil {
		genReq.Images = []ollama.ImageData{req.Image.Data}
	}

	var text strings.Builder
	err := p.client.Generate(ctx, genReq, func(gr ollama.GenerateResponse) error {
		text.WriteString(gr.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	if strings.TrimSpace(text.String()) == "" {
		return "", fmt.Errorf("ollama: %w", ErrEmptyCompletion)
	}

	p.logger.Debug("Ollama generation finished", zap.String("model", model))
	return text.String(), nil
}
