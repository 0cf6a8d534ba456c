package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"chart-insights/internal/service"
	"chart-insights/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const salesCSV = "month,region,revenue,units\nJan,North,100,10\nFeb,North,120,12\nMar,South,90,9\nApr,South,150,15\n"

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("SECRETS_FILE", filepath.Join(t.TempDir(), "missing.toml"))
	t.Setenv("LLM_PROVIDERS", "openai,groq")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GROQ_API_KEY", "")

	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestPreviewCommand(t *testing.T) {
	out, _, err := runCLI(t, "preview", writeFile(t, "sales.csv", salesCSV))
	require.NoError(t, err)

	assert.Contains(t, out, "4 rows, columns: month, region, revenue, units")
	assert.Contains(t, out, "revenue, units")
	assert.Contains(t, out, "Apr\tSouth\t150\t15")
}

func TestPlotCommand(t *testing.T) {
	output := filepath.Join(t.TempDir(), "revenue.png")
	_, _, err := runCLI(t, "plot", writeFile(t, "sales.csv", salesCSV), "-y", "revenue", "-x", "month", "-o", output)
	require.NoError(t, err)

	png, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	_, _, err = runCLI(t, "plot", writeFile(t, "sales.csv", salesCSV), "-y", "region")
	assert.ErrorIs(t, err, service.ErrNotNumeric)
}

func TestSetupCommand(t *testing.T) {
	out, _, err := runCLI(t, "setup")
	require.NoError(t, err)

	assert.Contains(t, out, "openai")
	assert.Contains(t, out, "no key")
	assert.Contains(t, out, "OPENAI_API_KEY")
	assert.Contains(t, out, "GROQ_API_KEY")
}

func TestAnalyzeWithoutKeysPrintsSetupHelp(t *testing.T) {
	_, errOut, err := runCLI(t, "table", writeFile(t, "sales.csv", salesCSV))
	require.Error(t, err)

	assert.Contains(t, err.Error(), "setup")
	assert.Contains(t, errOut, "Error analyzing data: ")
	assert.Contains(t, errOut, "How to enable the API")
}

func TestSettingsFlagsAreValidated(t *testing.T) {
	path := writeFile(t, "chart.png", "png")

	_, _, err := runCLI(t, "image", path, "--temperature", "1.5")
	assert.ErrorIs(t, err, service.ErrInvalidSettings)

	_, _, err = runCLI(t, "image", path, "--max-tokens", "50")
	assert.ErrorIs(t, err, service.ErrInvalidSettings)

	_, _, err = runCLI(t, "image", path, "--model", "not-a-model")
	assert.ErrorIs(t, err, service.ErrInvalidSettings)
}

func TestSessionFromFlags(t *testing.T) {
	cfg := &config.Config{LLM: config.LLMConfig{
		Order:     []string{"openai"},
		Providers: map[string]config.ProviderConfig{"openai": {Name: "openai", Models: []string{"gpt-4o-mini"}}},
	}}

	opts := &cliOptions{model: "gpt-4o-mini", temperature: 0.4, maxTokens: 900, cfg: cfg}
	session, err := opts.session()
	require.NoError(t, err)
	assert.Empty(t, session.ID)
	assert.Equal(t, service.Settings{Model: "gpt-4o-mini", Temperature: 0.4, MaxTokens: 900}, session.Settings)
	assert.Empty(t, session.APIKey("openai"))

	opts.model = "gpt-4.1"
	_, err = opts.session()
	assert.ErrorIs(t, err, service.ErrInvalidSettings)
}
