package handlers

import (
	"context"
	"time"

	"chart-insights/internal/dto"
	"chart-insights/internal/service"
	"chart-insights/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

type SystemHandler struct {
	analysisService *service.AnalysisService
	sessionService  *service.SessionService
	db              Pinger
	logger          *zap.Logger
}

// NewSystemHandler builds the handler; db is nil when no database is used.
func NewSystemHandler(analysisService *service.AnalysisService, sessionService *service.SessionService, db Pinger, logger *zap.Logger) *SystemHandler {
	return &SystemHandler{
		analysisService: analysisService,
		sessionService:  sessionService,
		db:              db,
		logger:          logger,
	}
}

// Health godoc
// @Summary Liveness
// @Tags system
// @Produce json
// @Success 200 {object} dto.HealthResponse
// @Failure 503 {object} dto.HealthResponse
// @Router /health [get]
func (h *SystemHandler) Health(c *fiber.Ctx) error {
	if h.db == nil {
		return c.JSON(dto.HealthResponse{Status: "ok"})
	}

	ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		h.logger.Warn("Database ping failed", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.HealthResponse{Status: "degraded", Database: "unreachable"})
	}
	return c.JSON(dto.HealthResponse{Status: "ok", Database: "ok"})
}

// Setup godoc
// @Summary Setup instructions
// @Description How to configure provider API keys (markdown)
// @Tags system
// @Produce json
// @Success 200 {object} dto.SetupResponse
// @Router /setup [get]
func (h *SystemHandler) Setup(c *fiber.Ctx) error {
	return c.JSON(dto.SetupResponse{Markdown: h.analysisService.SetupHelp()})
}

// Models godoc
// @Summary Provider chain and models
// @Description Fallback order, allowed models and whether each provider has a credential
// @Tags system
// @Produce json
// @Security Bearer
// @Success 200 {object} dto.ModelsResponse
// @Router /models [get]
func (h *SystemHandler) Models(c *fiber.Ctx) error {
	session := h.sessionService.Defaults()
	if id := middleware.SessionID(c); id != "" {
		if s, err := h.sessionService.Get(id); err == nil {
			session = s
		}
	}

	statuses := h.analysisService.Providers(session)
	providers := make([]dto.ProviderResponse, 0, len(statuses))
	for _, p := range statuses {
		providers = append(providers, dto.ProviderResponse{
			Name:    p.Name,
			Title:   p.Title,
			Model:   p.Model,
			Models:  nonNil(p.Models),
			Vision:  p.Vision,
			Ready:   p.Ready,
			Primary: p.Primary,
		})
	}

	return c.JSON(dto.ModelsResponse{
		Providers:     providers,
		AllowedModels: nonNil(h.sessionService.AllowedModels()),
		Settings:      toSettingsResponse(session.Settings),
		Limits: dto.LimitsResponse{
			MinTemperature: service.MinTemperature,
			MaxTemperature: service.MaxTemperature,
			MinMaxTokens:   service.MinMaxTokens,
			MaxMaxTokens:   service.MaxMaxTokens,
			MaxImageBytes:  service.MaxImageBytes,
		},
	})
}
