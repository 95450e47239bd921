package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/user/vidtube-go/internal/api"
	"github.com/user/vidtube-go/internal/cleanup"
	"github.com/user/vidtube-go/internal/config"
	"github.com/user/vidtube-go/internal/identity"
	"github.com/user/vidtube-go/internal/media"
	"github.com/user/vidtube-go/internal/ratelimit"
	"github.com/user/vidtube-go/internal/realtime"
	"github.com/user/vidtube-go/internal/server"
	"github.com/user/vidtube-go/internal/storage"
	"github.com/user/vidtube-go/internal/store"
	"github.com/user/vidtube-go/internal/webhook"
)

const (
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout = 30 * time.Second
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()

	// A missing .env is normal outside local development
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("Failed to read .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	level, err := zerolog.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.Server.LogLevel).Msg("Unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().Msg("Configuration loaded successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := store.Open(&cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	log.Info().Str("driver", cfg.DB.Driver).Msg("Database connection established")

	objects, err := storage.New(ctx, &cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize object storage")
	}
	log.Info().Str("driver", cfg.Storage.Driver).Msg("Object storage initialized")

	mediaClient := media.NewClient(&media.Config{
		TokenID:      cfg.Mux.TokenID,
		TokenSecret:  cfg.Mux.TokenSecret,
		ImageBaseURL: cfg.Mux.ImageBaseURL,
		RateLimit:    cfg.Mux.RateLimit,
		MaxRetries:   cfg.Mux.MaxRetries,
		Timeout:      cfg.Mux.Timeout,
		CaptionLangs: cfg.Mux.CaptionLangs,
	})

	tokens, err := identity.NewVerifier(cfg.Identity.JWTPublicKey, cfg.Identity.JWTSecret, cfg.Identity.JWTIssuer)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create session verifier")
	}
	userHooks, err := identity.NewWebhookVerifier(cfg.Identity.WebhookSecret)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create identity webhook verifier")
	}

	limiter := ratelimit.New(&cfg.RateLimit)
	if limiter == nil {
		log.Info().Msg("Rate limiting disabled")
	}

	cleanupService := cleanup.NewService(db, objects, &cfg.Cleanup)
	sweeper := cleanup.NewSweeper(cleanupService, &cfg.Cleanup)

	hub := realtime.NewHub(cfg.Server.AppURL)

	httpServer := server.NewServer(db, &cfg.Server)
	api.NewHandler(api.Deps{
		Store:             db,
		Tokens:            tokens,
		Media:             mediaClient,
		Objects:           objects,
		Cleanup:           cleanupService,
		Limiter:           limiter,
		Hub:               hub,
		AppURL:            cfg.Server.AppURL,
		MaxImageBytes:     cfg.Storage.MaxImageBytes,
		DiscloseForbidden: cfg.Server.DiscloseForbidden,
	}).Register(httpServer.Engine())
	webhook.NewHandler(db, mediaClient, cleanupService, hub, cfg.Mux.SigningSecret, userHooks).
		Register(httpServer.Engine())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := httpServer.Start(cfg.Server.Port); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	sweeper.Start(ctx)

	log.Info().Msg("vidtube started successfully")

	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer shutdownCancel()

	log.Info().Msg("Starting graceful shutdown...")

	// 1. Stop sweeping so no new cleanup batch starts
	sweeper.Stop()
	log.Info().Msg("Cleanup sweeper stopped")

	// 2. Drain in-flight requests. Hijacked sockets are not tracked by
	// the http server, so the hub closes them itself.
	hub.Close()
	if err := httpServer.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping HTTP server")
	} else {
		log.Info().Msg("HTTP server stopped")
	}

	// 3. Close database connection pool
	if err := db.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing database connection")
	} else {
		log.Info().Msg("Database connection closed")
	}

	cancel()

	select {
	case <-shutdownCtx.Done():
		if shutdownCtx.Err() == context.DeadlineExceeded {
			log.Warn().Msg("Shutdown timeout exceeded, forcing exit")
		}
	default:
		log.Info().Msg("Graceful shutdown completed")
	}
}
