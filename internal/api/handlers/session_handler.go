package handlers

import (
	"errors"

	"chart-insights/internal/dto"
	"chart-insights/internal/service"
	"chart-insights/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type SessionHandler struct {
	sessionService *service.SessionService
	ttlSeconds     int64
	logger         *zap.Logger
}

func NewSessionHandler(sessionService *service.SessionService, ttlSeconds int64, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		ttlSeconds:     ttlSeconds,
		logger:         logger,
	}
}

// CreateSession godoc
// @Summary Create a session
// @Description Store settings and optional API keys on the server and return a session token
// @Tags sessions
// @Accept json
// @Produce json
// @Param request body dto.CreateSessionRequest true "Settings and typed-in API keys"
// @Success 201 {object} dto.SessionResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /sessions [post]
func (h *SessionHandler) CreateSession(c *fiber.Ctx) error {
	var req dto.CreateSessionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return sendError(c, fiber.StatusBadRequest, "Invalid request body")
		}
	}

	session, token, err := h.sessionService.Create(toSettingsUpdate(req.SettingsRequest), req.APIKeys)
	if err != nil {
		if errors.Is(err, service.ErrInvalidSettings) || errors.Is(err, service.ErrUnknownProvider) {
			return sendError(c, fiber.StatusBadRequest, err.Error())
		}
		h.logger.Error("Failed to create session", zap.Error(err))
		return sendError(c, fiber.StatusInternalServerError, "Failed to create session")
	}

	resp := toSessionResponse(session)
	resp.Token = token
	resp.TokenType = "Bearer"
	resp.ExpiresIn = h.ttlSeconds
	return c.Status(fiber.StatusCreated).JSON(resp)
}

// GetSession godoc
// @Summary Current session
// @Description Settings of the current session, or the defaults without a token
// @Tags sessions
// @Produce json
// @Security Bearer
// @Success 200 {object} dto.SessionResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /sessions [get]
func (h *SessionHandler) GetSession(c *fiber.Ctx) error {
	id := middleware.SessionID(c)
	if id == "" {
		return c.JSON(toSessionResponse(h.sessionService.Defaults()))
	}

	session, err := h.sessionService.Get(id)
	if err != nil {
		return sendError(c, fiber.StatusUnauthorized, "Session not found or expired")
	}
	return c.JSON(toSessionResponse(session))
}

// UpdateSettings godoc
// @Summary Update session settings
// @Description Change model, temperature or max tokens of the current session
// @Tags sessions
// @Accept json
// @Produce json
// @Param request body dto.SettingsRequest true "Fields to change"
// @Security Bearer
// @Success 200 {object} dto.SessionResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 401 {object} dto.ErrorResponse
// @Router /sessions/settings [put]
func (h *SessionHandler) UpdateSettings(c *fiber.Ctx) error {
	var req dto.SettingsRequest
	if err := c.BodyParser(&req); err != nil {
		return sendError(c, fiber.StatusBadRequest, "Invalid request body")
	}

	session, err := h.sessionService.UpdateSettings(middleware.SessionID(c), toSettingsUpdate(req))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			return sendError(c, fiber.StatusUnauthorized, "Session not found or expired")
		case errors.Is(err, service.ErrInvalidSettings):
			return sendError(c, fiber.StatusBadRequest, err.Error())
		}
		h.logger.Error("Failed to update settings", zap.Error(err))
		return sendError(c, fiber.StatusInternalServerError, "Failed to update settings")
	}

	return c.JSON(toSessionResponse(session))
}

func toSettingsUpdate(req dto.SettingsRequest) service.SettingsUpdate {
	return service.SettingsUpdate{
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
}

func toSettingsResponse(s service.Settings) dto.SettingsResponse {
	return dto.SettingsResponse{
		Model:       s.Model,
		Temperature: s.Temperature,
		MaxTokens:   s.MaxTokens,
	}
}

func toSessionResponse(s *service.Session) dto.SessionResponse {
	return dto.SessionResponse{
		Settings:     toSettingsResponse(s.Settings),
		KeyProviders: nonNil(s.KeyProviders()),
	}
}
