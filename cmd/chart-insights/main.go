package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"chart-insights/internal/api"
	"chart-insights/internal/api/handlers"
	"chart-insights/internal/repository"
	"chart-insights/internal/service"
	"chart-insights/pkg/auth"
	"chart-insights/pkg/config"
	"chart-insights/pkg/logger"
	"chart-insights/pkg/middleware"
	"chart-insights/pkg/postgres"
	"chart-insights/pkg/storage"

	"go.uber.org/zap"
)

// @title Chart Insights API
// @version 1.0
// @description Chart and table analysis through a chain of LLM providers
// @termsOfService http://swagger.io/terms/

// @contact.name API Support

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the session token.

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	if err := logger.Init(cfg.Logger.Level); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	appLogger := logger.Get()
	appLogger.Info("Starting Chart Insights service", zap.Strings("providers", cfg.LLM.Order))

	ctx := context.Background()

	// History: Postgres when enabled, otherwise kept in memory
	var (
		history repository.AnalysisStore = repository.NewMemoryAnalysisRepository()
		pinger  handlers.Pinger
	)
	if cfg.Database.Enabled {
		db, err := postgres.NewPool(ctx, &cfg.Database, appLogger)
		if err != nil {
			appLogger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		repo := repository.NewAnalysisRepository(db, appLogger)
		if err := repo.EnsureSchema(ctx); err != nil {
			appLogger.Fatal("Failed to prepare database schema", zap.Error(err))
		}
		history = repo
		pinger = db
	}

	// Input archive
	var archive service.Archiver
	if cfg.Storage.Enabled {
		store, err := storage.New(ctx, cfg.Storage.Endpoint, cfg.Storage.Region, cfg.Storage.Bucket,
			cfg.Storage.AccessKey, cfg.Storage.SecretKey, cfg.Storage.UseSSL, appLogger)
		if err != nil {
			appLogger.Fatal("Failed to initialize object storage", zap.Error(err))
		}
		archive = store
	}

	metrics := middleware.NewMetrics()

	registry := service.NewProviderRegistry(cfg.LLM, appLogger)
	defer registry.Close()

	jwtManager := auth.NewJWTManager(cfg.Session.SecretKey, cfg.Session.TTL)

	sessionService := service.NewSessionService(
		jwtManager,
		service.Settings{Temperature: cfg.LLM.Temperature, MaxTokens: cfg.LLM.MaxTokens},
		cfg.LLM.AllowedModels(),
		func(name string) bool { _, ok := cfg.LLM.Provider(name); return ok },
		appLogger,
	)
	defer sessionService.Close()

	analysisService := service.NewAnalysisService(registry, history, archive, metrics, cfg.LLM, cfg.Table, appLogger)

	// Initialize handlers
	h := api.Handlers{
		Analysis: handlers.NewAnalysisHandler(analysisService, sessionService, appLogger),
		Session:  handlers.NewSessionHandler(sessionService, int64(cfg.Session.TTL.Seconds()), appLogger),
		System:   handlers.NewSystemHandler(analysisService, sessionService, pinger, appLogger),
	}

	// Setup router
	app := api.SetupRouter(cfg.Server, h, jwtManager, metrics, appLogger)

	// Start server
	go func() {
		addr := ":" + cfg.Server.Port
		appLogger.Info("Server starting", zap.String("address", addr))
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server")
	if err := app.Shutdown(); err != nil {
		appLogger.Error("Server shutdown error", zap.Error(err))
	}
}
