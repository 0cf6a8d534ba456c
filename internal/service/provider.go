package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"chart-insights/pkg/config"

	"go.uber.org/zap"
)

var (
	ErrNoCredentials   = errors.New("no API key configured")
	ErrUnknownProvider = errors.New("unknown provider")
	ErrEmptyCompletion = errors.New("provider returned no content")
)

// CompletionRequest is a single chat-completion call.
type CompletionRequest struct {
	// Model overrides the provider default when set.
	Model       string
	Prompt      string
	Image       *EncodedImage
	Temperature float64
	MaxTokens   int
}

// Provider is a hosted chat-completion API.
type Provider interface {
	Name() string
	SupportsVision() bool
	DefaultModel() string
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// ProviderFactory builds a provider from its config. The API key in cfg is
// already resolved.
type ProviderFactory func(ctx context.Context, cfg config.ProviderConfig, logger *zap.Logger) (Provider, error)

var defaultFactories = map[string]ProviderFactory{
	"openai":    NewOpenAIProvider,
	"groq":      NewOpenAIProvider,
	"gigachat":  NewGigaChatProvider,
	"anthropic": NewAnthropicProvider,
	"gemini":    NewGeminiProvider,
	"ollama":    NewOllamaProvider,
}

// ProviderRegistry builds providers on demand. Providers using the
// configured credentials are cached; providers built from a session key
// live for one call.
type ProviderRegistry struct {
	cfg       config.LLMConfig
	factories map[string]ProviderFactory
	logger    *zap.Logger

	mu    sync.Mutex
	cache map[string]Provider
	// bumped by Register and Close so a provider built meanwhile is not cached
	epoch uint64
}

func NewProviderRegistry(cfg config.LLMConfig, logger *zap.Logger) *ProviderRegistry {
	factories := make(map[string]ProviderFactory, len(defaultFactories))
	for name, f := range defaultFactories {
		factories[name] = f
	}
	return &ProviderRegistry{
		cfg:       cfg,
		factories: factories,
		logger:    logger,
		cache:     make(map[string]Provider),
	}
}

// Register installs or replaces the factory for name.
func (r *ProviderRegistry) Register(name string, f ProviderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
	r.epoch++
	if p, ok := r.cache[name]; ok {
		closeProvider(p)
		delete(r.cache, name)
	}
}

// Order is the configured fallback order.
func (r *ProviderRegistry) Order() []string {
	return r.cfg.Order
}

// Config returns the provider config, if name is known.
func (r *ProviderRegistry) Config(name string) (config.ProviderConfig, bool) {
	return r.cfg.Provider(name)
}

// RequiresKey reports whether the provider needs an API key.
func RequiresKey(name string) bool {
	return name != "ollama"
}

// HasCredentials reports whether name can be called with the configured key
// or with override.
func (r *ProviderRegistry) HasCredentials(name, override string) bool {
	if !RequiresKey(name) {
		return true
	}
	if override != "" {
		return true
	}
	cfg, ok := r.cfg.Provider(name)
	return ok && cfg.APIKey != ""
}

// Acquire returns a provider for name. A non-empty apiKey replaces the
// configured key. The release func must be called when the caller is done.
func (r *ProviderRegistry) Acquire(ctx context.Context, name, apiKey string) (Provider, func(), error) {
	cfg, ok := r.cfg.Provider(name)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}

	r.mu.Lock()
	factory, ok := r.factories[name]
	cached, hit := r.cache[name]
	epoch := r.epoch
	r.mu.Unlock()
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}

	if apiKey != "" && apiKey != cfg.APIKey {
		cfg.APIKey = apiKey
		p, err := factory(ctx, cfg, r.logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create %s provider: %w", name, err)
		}
		return p, func() { closeProvider(p) }, nil
	}

	if RequiresKey(name) && cfg.APIKey == "" {
		return nil, nil, fmt.Errorf("%s: %w", name, ErrNoCredentials)
	}
	if hit {
		return cached, func() {}, nil
	}

	// built unlocked: factories may authenticate over the network
	p, err := factory(ctx, cfg, r.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create %s provider: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.cache[name]; ok {
		// another caller won the race
		closeProvider(p)
		return existing, func() {}, nil
	}
	if r.epoch != epoch {
		return p, func() { closeProvider(p) }, nil
	}
	r.cache[name] = p
	return p, func() {}, nil
}

// Close releases cached providers.
func (r *ProviderRegistry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.epoch++
	for name, p := range r.cache {
		closeProvider(p)
		delete(r.cache, name)
	}
	return nil
}

func closeProvider(p Provider) {
	if c, ok := p.(io.Closer); ok {
		_ = c.Close()
	}
}

func pickModel(req CompletionRequest, fallback string) string {
	if req.Model != "" {
		return req.Model
	}
	return fallback
}
