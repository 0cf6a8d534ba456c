package middleware

import (
	"strings"

	"chart-insights/pkg/auth"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// LocalSessionID is the fiber.Locals key holding the session id.
const LocalSessionID = "sessionID"

// OptionalSession accepts requests without a token; they run with default
// settings. A token that is present must be valid.
func OptionalSession(jwtManager *auth.JWTManager, logger *zap.Logger) fiber.Handler {
	return sessionMiddleware(jwtManager, false, logger)
}

// RequireSession rejects requests without a valid token.
func RequireSession(jwtManager *auth.JWTManager, logger *zap.Logger) fiber.Handler {
	return sessionMiddleware(jwtManager, true, logger)
}

func sessionMiddleware(jwtManager *auth.JWTManager, required bool, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
		if token == "" {
			if !required {
				return c.Next()
			}
			logger.Warn("Missing session token", zap.String("path", c.Path()))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Session token required",
			})
		}

		// Remove "Bearer " prefix if present
		if len(token) > 7 && strings.EqualFold(token[:7], "Bearer ") {
			token = token[7:]
		}

		claims, err := jwtManager.ValidateToken(token)
		if err != nil {
			logger.Warn("Invalid session token", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired session token",
			})
		}

		c.Locals(LocalSessionID, claims.SessionID)
		return c.Next()
	}
}

// SessionID returns the id stored by the session middleware, or "".
func SessionID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalSessionID).(string)
	return id
}
