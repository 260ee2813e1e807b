package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"studio/internal/cleanup"
	"studio/internal/drag"
	"studio/internal/http/handlers"
	httpapi "studio/internal/http/httpapi"
	"studio/internal/infra"
	"studio/internal/infra/geoip"
	"studio/internal/maskedit"
	"studio/internal/middleware"
	"studio/internal/providers/genai"
	imageprov "studio/internal/providers/image"
	"studio/internal/results"
	"studio/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "api: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	var lookup middleware.CountryLookup
	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	} else if resolver != nil {
		defer resolver.Close()
		lookup = resolver.CountryCode
	}

	policies := results.DefaultPolicies()
	if cfg.PoolPolicyPath != "" {
		policies, err = results.LoadPolicies(cfg.PoolPolicyPath)
		if err != nil {
			return fmt.Errorf("load pool policies %s: %w", cfg.PoolPolicyPath, err)
		}
	}

	client, err := genai.NewClient(genai.Options{
		APIKey:  cfg.GeminiAPIKey,
		BaseURL: cfg.GeminiBaseURL,
		Model:   cfg.GeminiModel,
		Logger:  &logger,
	})
	if err != nil {
		return fmt.Errorf("create gemini client: %w", err)
	}
	if client.Synthetic() {
		logger.Warn().Msg("GEMINI_API_KEY not set; using synthetic image provider")
	}

	var exporter cleanup.Exporter
	if cfg.ArtifactDir != "" {
		files, err := storage.NewFileStore(cfg.ArtifactDir)
		if err != nil {
			return fmt.Errorf("prepare artifact directory: %w", err)
		}
		exporter = files
	}

	store := results.NewStore()
	service := cleanup.NewService(cleanup.Options{
		Store:     store,
		Cleaner:   imageprov.NewGeminiCleaner(client),
		Generator: imageprov.NewGeminiGenerator(client),
		Logger:    &logger,
		Exporter:  exporter,
		Strict:    cfg.StrictIndex,
	})
	sessions := maskedit.NewManager(maskedit.Options{Reader: store, Logger: &logger, MaxPixels: cfg.MaxImagePixels})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go sessions.Run(ctx, time.Minute, cfg.MaskSessionIdle)

	app := handlers.NewApp(handlers.Options{
		Store:          store,
		Selector:       results.NewSelector(store, policies),
		Cleanup:        service,
		Sessions:       sessions,
		Logger:         &logger,
		MaxUploadBytes: cfg.MaxUploadBytes,
		DefaultPanel:   drag.Size{Width: float64(cfg.MaskPanelWidth), Height: float64(cfg.MaskPanelHeight)},
	})

	router := httpapi.NewRouter(app, httpapi.Options{
		Logger:          logger,
		AllowedOrigins:  cfg.CORSAllowedOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		DefaultLocale:   "en",
		CountryLookup:   lookup,
	})

	server := infra.NewHTTPServer(cfg, router, logger)

	logger.Info().
		Str("env", cfg.AppEnv).
		Str("model", client.Model()).
		Bool("strict_index", cfg.StrictIndex).
		Msgf("API listening on :%s", cfg.Port)
	err = server.Run(ctx, nil)
	sessions.CloseAll()
	if err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
