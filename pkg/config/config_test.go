package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SECRETS_FILE", filepath.Join(t.TempDir(), "missing.toml"))
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("LLM_PROVIDERS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"openai", "groq"}, cfg.LLM.Order)
	assert.Equal(t, 0.3, cfg.LLM.Temperature)
	assert.Equal(t, 700, cfg.LLM.MaxTokens)
	assert.Equal(t, 60*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 80, cfg.Table.MaxRows)
	assert.Equal(t, 9000, cfg.Table.MaxChars)
	assert.Equal(t, 15, cfg.Table.PreviewRows)
	assert.Equal(t, 20*1024*1024, cfg.Server.BodyLimit)

	openai, ok := cfg.LLM.Provider("openai")
	require.True(t, ok)
	assert.Equal(t, "gpt-4o-mini", openai.Model)
	assert.Equal(t, []string{"gpt-4o-mini", "gpt-4.1-mini", "gpt-4.1"}, openai.Models)
	assert.True(t, openai.Vision)
}

func TestSecretsFileWinsOverEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
OPENAI_API_KEY = "from-file"
GROQ_API_KEY = "  "
`), 0o600))

	t.Setenv("SECRETS_FILE", path)
	t.Setenv("OPENAI_API_KEY", "from-env")
	t.Setenv("GROQ_API_KEY", "groq-env")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.LLM.Providers["openai"].APIKey)
	// blank values in the file do not shadow the environment
	assert.Equal(t, "groq-env", cfg.LLM.Providers["groq"].APIKey)
}

func TestBrokenSecretsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.toml")
	require.NoError(t, os.WriteFile(path, []byte("OPENAI_API_KEY = "), 0o600))
	t.Setenv("SECRETS_FILE", path)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse secrets file")
}

func TestProviderOrderAndVisionFlag(t *testing.T) {
	t.Setenv("SECRETS_FILE", filepath.Join(t.TempDir(), "missing.toml"))
	t.Setenv("LLM_PROVIDERS", " gigachat , ollama,,")
	t.Setenv("OLLAMA_VISION", "false")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "google-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"gigachat", "ollama"}, cfg.LLM.Order)
	assert.False(t, cfg.LLM.Providers["ollama"].Vision)
	assert.Equal(t, "google-key", cfg.LLM.Providers["gemini"].APIKey)

	_, ok := cfg.LLM.Provider("nope")
	assert.False(t, ok)
}

func TestInvalidTemperature(t *testing.T) {
	t.Setenv("SECRETS_FILE", filepath.Join(t.TempDir(), "missing.toml"))
	t.Setenv("LLM_TEMPERATURE", "warm")

	_, err := Load()
	require.Error(t, err)
}

func TestAllowedModelsFollowsOrder(t *testing.T) {
	cfg := LLMConfig{
		Order: []string{"groq", "openai", "missing"},
		Providers: map[string]ProviderConfig{
			"openai": {Models: []string{"gpt-4o-mini", "shared"}},
			"groq":   {Models: []string{"llama", "shared"}},
		},
	}

	assert.Equal(t, []string{"llama", "shared", "gpt-4o-mini"}, cfg.AllowedModels())
}
