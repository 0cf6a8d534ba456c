package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrNoProvider means no configured provider can serve the request.
var ErrNoProvider = errors.New("no provider available for this request")

// Attempt records one provider call.
type Attempt struct {
	Provider   string    `json:"provider"`
	Model      string    `json:"model"`
	Kind       ErrorKind `json:"kind,omitempty"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`

	err error
}

// Err is the error the provider returned, nil on success.
func (a Attempt) Err() error {
	return a.err
}

// ChainError is returned when every provider in the chain failed.
type ChainError struct {
	Attempts []Attempt
}

func (e *ChainError) Error() string {
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = a.Provider + ": " + a.Error
	}
	return "all providers failed: " + strings.Join(parts, "; ")
}

// Unwrap exposes the first failure, the one the user is told about.
func (e *ChainError) Unwrap() error {
	if len(e.Attempts) == 0 {
		return nil
	}
	return e.Attempts[0].err
}

// First is the attempt whose failure is surfaced.
func (e *ChainError) First() Attempt {
	return e.Attempts[0]
}

// ChainResult is the answer of the first provider that succeeded.
type ChainResult struct {
	Text     string
	Provider string
	Model    string
	Attempts []Attempt
}

// AttemptRecorder observes provider calls. Metrics implement it.
type AttemptRecorder interface {
	RecordAttempt(provider string, err error)
	RecordFallback()
}

// FallbackChain calls providers in order, one attempt each, until one
// succeeds.
type FallbackChain struct {
	providers []Provider
	timeout   time.Duration
	recorder  AttemptRecorder
	logger    *zap.Logger
}

func NewFallbackChain(providers []Provider, timeout time.Duration, recorder AttemptRecorder, logger *zap.Logger) *FallbackChain {
	return &FallbackChain{
		providers: providers,
		timeout:   timeout,
		recorder:  recorder,
		logger:    logger,
	}
}

// Run sends req down the chain. Image requests skip text-only providers.
// req.Model applies to the first eligible provider only; later providers use
// their own default model.
func (c *FallbackChain) Run(ctx context.Context, req CompletionRequest) (*ChainResult, error) {
	var attempts []Attempt
	first := true

	for _, p := range c.providers {
		if req.Image != nil && !p.SupportsVision() {
			c.logger.Debug("Skipping text-only provider for image", zap.String("provider", p.Name()))
			continue
		}

		callReq := req
		if !first {
			callReq.Model = ""
			if c.recorder != nil {
				c.recorder.RecordFallback()
			}
		}
		first = false
		model := pickModel(callReq, p.DefaultModel())

		start := time.Now()
		text, err := c.call(ctx, p, callReq)
		attempt := Attempt{
			Provider:   p.Name(),
			Model:      model,
			DurationMS: time.Since(start).Milliseconds(),
			err:        err,
		}
		if c.recorder != nil {
			c.recorder.RecordAttempt(p.Name(), err)
		}

		if err == nil {
			attempts = append(attempts, attempt)
			return &ChainResult{Text: text, Provider: p.Name(), Model: model, Attempts: attempts}, nil
		}

		attempt.Kind = Classify(err)
		attempt.Error = err.Error()
		attempts = append(attempts, attempt)
		c.logger.Warn("Provider attempt failed",
			zap.String("provider", p.Name()),
			zap.String("model", model),
			zap.String("kind", string(attempt.Kind)),
			zap.Error(err),
		)

		// caller gone, stop the chain
		if ctx.Err() != nil {
			break
		}
	}

	if len(attempts) == 0 {
		return nil, ErrNoProvider
	}
	return nil, &ChainError{Attempts: attempts}
}

func (c *FallbackChain) call(ctx context.Context, p Provider, req CompletionRequest) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	text, err := p.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%s: %w", p.Name(), ErrEmptyCompletion)
	}
	return text, nil
}
