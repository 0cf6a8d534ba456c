package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"chart-insights/pkg/auth"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSessionMiddleware(t *testing.T) {
	jwtManager := auth.NewJWTManager("secret", time.Hour)
	token, err := jwtManager.GenerateToken("sess-1")
	require.NoError(t, err)

	app := fiber.New()
	echo := func(c *fiber.Ctx) error { return c.SendString(SessionID(c)) }
	app.Get("/optional", OptionalSession(jwtManager, zap.NewNop()), echo)
	app.Get("/required", RequireSession(jwtManager, zap.NewNop()), echo)

	tests := []struct {
		name       string
		path       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{"optional without token", "/optional", "", fiber.StatusOK, ""},
		{"optional with token", "/optional", "Bearer " + token, fiber.StatusOK, "sess-1"},
		{"optional bare token", "/optional", token, fiber.StatusOK, "sess-1"},
		{"optional bad token", "/optional", "Bearer nope", fiber.StatusUnauthorized, ""},
		{"required without token", "/required", "", fiber.StatusUnauthorized, ""},
		{"required with token", "/required", "Bearer " + token, fiber.StatusOK, "sess-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			if tt.wantStatus == fiber.StatusOK {
				body, err := io.ReadAll(resp.Body)
				require.NoError(t, err)
				assert.Equal(t, tt.wantBody, string(body))
			}
		})
	}
}

func TestMetrics(t *testing.T) {
	m := NewMetrics()

	app := fiber.New()
	app.Use(m.Middleware())
	app.Get("/ok", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	app.Get("/bad", func(c *fiber.Ctx) error { return fiber.NewError(fiber.StatusBadRequest, "bad") })
	app.Get("/metrics", m.Handler)

	for _, path := range []string{"/ok", "/ok", "/bad"} {
		_, err := app.Test(httptest.NewRequest("GET", path, nil))
		require.NoError(t, err)
	}

	m.RecordAttempt("openai", errors.New("down"))
	m.RecordAttempt("groq", nil)
	m.RecordFallback()
	m.RecordAnalysis(nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.EqualValues(t, 4, body["requests_total"])
	assert.EqualValues(t, 2, body["requests_success"])
	assert.EqualValues(t, 1, body["requests_failed"])
	assert.EqualValues(t, 1, body["fallbacks"])
	assert.EqualValues(t, 1, body["analyses_total"])

	providers := body["providers"].(map[string]any)
	assert.EqualValues(t, 1, providers["openai"].(map[string]any)["failures"])
	assert.EqualValues(t, 1, providers["groq"].(map[string]any)["calls"])
}
