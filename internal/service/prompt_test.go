package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildPrompts(t *testing.T) {
	img := BuildImagePrompt()
	assert.True(t, strings.HasPrefix(img, "You are a senior data analyst. Analyze this chart"))
	for _, part := range []string{"Key trends", "Anomalies/outliers", "Business insights", "Recommended next steps"} {
		assert.Contains(t, img, part)
	}

	tbl := BuildTablePrompt("a,b\n1,2\n")
	assert.Contains(t, tbl, "Infer the likely chart patterns")
	assert.True(t, strings.HasSuffix(tbl, "Here is the sample:\n\na,b\n1,2\n"))
}

func TestSetupHelp(t *testing.T) {
	help := SetupHelp([]string{"openai", "groq", "ollama"}, ".secrets.toml")

	assert.Contains(t, help, `export OPENAI_API_KEY="...yourkey..."`)
	assert.Contains(t, help, `GROQ_API_KEY = "...yourkey..."`)
	assert.Contains(t, help, "`.secrets.toml`")
	assert.NotContains(t, help, "OLLAMA")
}
