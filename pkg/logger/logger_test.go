package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSetReplacesGlobal(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	Set(zap.New(core))
	t.Cleanup(func() { Set(nil) })

	Info("analysis done", zap.String("provider", "openai"))
	Warn("fallback used")

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "analysis done", logs.All()[0].Message)
	assert.Equal(t, "openai", logs.All()[0].ContextMap()["provider"])
}

func TestInitUnknownLevelFallsBackToInfo(t *testing.T) {
	t.Cleanup(func() { Set(nil) })

	require.NoError(t, Init("not-a-level"))
	assert.True(t, Get().Core().Enabled(zapcore.InfoLevel))
	assert.False(t, Get().Core().Enabled(zapcore.DebugLevel))
}

func TestGetBuildsDefault(t *testing.T) {
	Set(nil)
	t.Cleanup(func() { Set(nil) })

	assert.NotNil(t, Get())
}
