package api

import (
	"os"
	"path/filepath"
	"time"

	"chart-insights/docs"
	"chart-insights/internal/api/handlers"
	"chart-insights/pkg/auth"
	"chart-insights/pkg/config"
	"chart-insights/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
	"go.uber.org/zap"
)

// Handlers groups everything the router serves.
type Handlers struct {
	Analysis *handlers.AnalysisHandler
	Session  *handlers.SessionHandler
	System   *handlers.SystemHandler
}

func SetupRouter(
	cfg config.ServerConfig,
	h Handlers,
	jwtManager *auth.JWTManager,
	metrics *middleware.Metrics,
	appLogger *zap.Logger,
) *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit:    cfg.BodyLimit,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))
	app.Use(logger.New())
	app.Use(metrics.Middleware())

	_ = docs.SwaggerInfo // registers the swagger spec via init()
	app.Get("/swagger/*", swagger.HandlerDefault)

	app.Get("/health", h.System.Health)
	app.Get("/metrics", metrics.Handler)

	webStaticPath := cfg.StaticDir
	if webStaticPath == "" || !fileExists(filepath.Join(webStaticPath, "index.html")) {
		webStaticPath = findWebStaticPath(appLogger)
	}
	if webStaticPath != "" {
		appLogger.Info("Serving static files", zap.String("path", webStaticPath))
		app.Static("/static", webStaticPath)
	} else {
		appLogger.Warn("Web static directory not found, static files will not be served")
	}

	app.Get("/", func(c *fiber.Ctx) error {
		if webStaticPath == "" {
			return c.Status(fiber.StatusNotFound).SendString("Web interface not found. Please ensure web/static/index.html exists.")
		}
		return c.SendFile(filepath.Join(webStaticPath, "index.html"))
	})

	optional := middleware.OptionalSession(jwtManager, appLogger)
	required := middleware.RequireSession(jwtManager, appLogger)

	v1 := app.Group("/api/v1")
	v1.Get("/setup", h.System.Setup)
	v1.Get("/models", optional, h.System.Models)

	sessions := v1.Group("/sessions")
	sessions.Post("", h.Session.CreateSession)
	sessions.Get("", optional, h.Session.GetSession)
	sessions.Put("/settings", required, h.Session.UpdateSettings)

	analyze := v1.Group("/analyze", analyzeLimiter(cfg.RateLimit), optional)
	analyze.Post("/image", h.Analysis.AnalyzeImage)
	analyze.Post("/table", h.Analysis.AnalyzeTable)

	tables := v1.Group("/tables")
	tables.Post("/preview", h.Analysis.PreviewTable)
	tables.Post("/plot", h.Analysis.PlotTable)

	v1.Get("/analyses", required, h.Analysis.ListAnalyses)

	return app
}

// analyzeLimiter caps provider-bound requests per client IP. A zero limit
// disables it.
func analyzeLimiter(perMinute int) fiber.Handler {
	if perMinute <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return limiter.New(limiter.Config{
		Max:        perMinute,
		Expiration: time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many analysis requests. Please wait a minute and try again.",
				"kind":  "rate_limit",
			})
		},
	})
}

// findWebStaticPath finds the path to web/static directory
func findWebStaticPath(logger *zap.Logger) string {
	cwd, _ := os.Getwd()

	// Try paths relative to current working directory
	paths := []string{
		"./web/static",
		"web/static",
		"../web/static",
		"../../web/static",
	}

	for _, path := range paths {
		if fileExists(filepath.Join(path, "index.html")) {
			logger.Info("Found web static path", zap.String("path", path), zap.String("cwd", cwd))
			return path
		}
		logger.Debug("Tried path", zap.String("path", path), zap.String("full", filepath.Join(cwd, path)))
	}

	return ""
}

// fileExists checks if a file exists
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
