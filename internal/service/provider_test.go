package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"chart-insights/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type closingProvider struct {
	fakeProvider
	closed atomic.Bool
}

func (c *closingProvider) Close() error {
	c.closed.Store(true)
	return nil
}

func testLLMConfig() config.LLMConfig {
	return config.LLMConfig{
		Order: []string{"openai", "groq", "ollama"},
		Providers: map[string]config.ProviderConfig{
			"openai": {Name: "openai", APIKey: "sk-configured", Model: "gpt-4o-mini", Vision: true},
			"groq":   {Name: "groq", Model: "llama", Vision: true},
			"ollama": {Name: "ollama", Model: "llava", Vision: true},
		},
	}
}

func TestRegistryHasCredentials(t *testing.T) {
	r := NewProviderRegistry(testLLMConfig(), zap.NewNop())

	assert.True(t, r.HasCredentials("openai", ""))
	assert.False(t, r.HasCredentials("groq", ""))
	assert.True(t, r.HasCredentials("groq", "gsk-typed"))
	assert.True(t, r.HasCredentials("ollama", ""))
	assert.False(t, r.HasCredentials("missing", ""))
}

func TestRegistryAcquireCachesConfiguredProvider(t *testing.T) {
	r := NewProviderRegistry(testLLMConfig(), zap.NewNop())
	var built atomic.Int32
	var keys []string
	r.Register("openai", func(_ context.Context, cfg config.ProviderConfig, _ *zap.Logger) (Provider, error) {
		built.Add(1)
		keys = append(keys, cfg.APIKey)
		return &closingProvider{fakeProvider: fakeProvider{name: cfg.Name}}, nil
	})

	p1, release1, err := r.Acquire(context.Background(), "openai", "")
	require.NoError(t, err)
	release1()
	p2, release2, err := r.Acquire(context.Background(), "openai", "")
	require.NoError(t, err)
	release2()

	assert.Same(t, p1, p2)
	assert.EqualValues(t, 1, built.Load())
	assert.False(t, p1.(*closingProvider).closed.Load())

	override, release, err := r.Acquire(context.Background(), "openai", "sk-session")
	require.NoError(t, err)
	assert.NotSame(t, p1, override)
	release()
	assert.True(t, override.(*closingProvider).closed.Load())
	assert.Equal(t, []string{"sk-configured", "sk-session"}, keys)

	require.NoError(t, r.Close())
	assert.True(t, p1.(*closingProvider).closed.Load())
}

func TestRegistryAcquireDoesNotBlockOtherProviders(t *testing.T) {
	r := NewProviderRegistry(testLLMConfig(), zap.NewNop())
	unblock := make(chan struct{})
	r.Register("openai", func(_ context.Context, cfg config.ProviderConfig, _ *zap.Logger) (Provider, error) {
		<-unblock
		return &fakeProvider{name: cfg.Name}, nil
	})
	r.Register("ollama", func(_ context.Context, cfg config.ProviderConfig, _ *zap.Logger) (Provider, error) {
		return &fakeProvider{name: cfg.Name}, nil
	})

	slow := make(chan error, 1)
	go func() {
		_, release, err := r.Acquire(context.Background(), "openai", "")
		if err == nil {
			release()
		}
		slow <- err
	}()

	fast := make(chan error, 1)
	go func() {
		_, release, err := r.Acquire(context.Background(), "ollama", "")
		if err == nil {
			release()
		}
		fast <- err
	}()

	select {
	case err := <-fast:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("ollama acquire waited for the openai build")
	}

	close(unblock)
	require.NoError(t, <-slow)
	require.NoError(t, r.Close())
}

func TestRegistryConcurrentBuildKeepsOneProvider(t *testing.T) {
	r := NewProviderRegistry(testLLMConfig(), zap.NewNop())

	var (
		mu    sync.Mutex
		built []*closingProvider
	)
	start := make(chan struct{})
	r.Register("openai", func(_ context.Context, cfg config.ProviderConfig, _ *zap.Logger) (Provider, error) {
		p := &closingProvider{fakeProvider: fakeProvider{name: cfg.Name}}
		mu.Lock()
		built = append(built, p)
		mu.Unlock()
		<-start
		return p, nil
	})

	got := make([]Provider, 2)
	var wg sync.WaitGroup
	for i := range got {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, release, err := r.Acquire(context.Background(), "openai", "")
			assert.NoError(t, err)
			if err == nil {
				release()
			}
			got[i] = p
		}()
	}

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(built) == 2
	}, time.Second, 5*time.Millisecond)
	close(start)
	wg.Wait()

	assert.Same(t, got[0], got[1])
	closed := 0
	for _, p := range built {
		if p.closed.Load() {
			closed++
		}
	}
	assert.Equal(t, 1, closed)

	require.NoError(t, r.Close())
	for _, p := range built {
		assert.True(t, p.closed.Load())
	}
}

func TestRegistryDoesNotCacheProviderBuiltAcrossRegister(t *testing.T) {
	r := NewProviderRegistry(testLLMConfig(), zap.NewNop())
	building := make(chan struct{})
	unblock := make(chan struct{})
	r.Register("openai", func(_ context.Context, cfg config.ProviderConfig, _ *zap.Logger) (Provider, error) {
		close(building)
		<-unblock
		return &closingProvider{fakeProvider: fakeProvider{name: "old"}}, nil
	})

	type acquired struct {
		p       Provider
		release func()
		err     error
	}
	done := make(chan acquired, 1)
	go func() {
		p, release, err := r.Acquire(context.Background(), "openai", "")
		done <- acquired{p, release, err}
	}()

	<-building
	r.Register("openai", func(_ context.Context, cfg config.ProviderConfig, _ *zap.Logger) (Provider, error) {
		return &closingProvider{fakeProvider: fakeProvider{name: "new"}}, nil
	})
	close(unblock)

	old := <-done
	require.NoError(t, old.err)
	assert.Equal(t, "old", old.p.Name())
	old.release()
	assert.True(t, old.p.(*closingProvider).closed.Load())

	p, release, err := r.Acquire(context.Background(), "openai", "")
	require.NoError(t, err)
	release()
	assert.Equal(t, "new", p.Name())
	require.NoError(t, r.Close())
}

func TestRegistryAcquireErrors(t *testing.T) {
	r := NewProviderRegistry(testLLMConfig(), zap.NewNop())

	_, _, err := r.Acquire(context.Background(), "groq", "")
	assert.ErrorIs(t, err, ErrNoCredentials)

	_, _, err = r.Acquire(context.Background(), "nope", "key")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestRequiresKey(t *testing.T) {
	assert.True(t, RequiresKey("openai"))
	assert.True(t, RequiresKey("gigachat"))
	assert.False(t, RequiresKey("ollama"))
}
