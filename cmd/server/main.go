package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Kenmaaa05/EchoChamber/internal/api"
	"github.com/Kenmaaa05/EchoChamber/internal/api/middleware"
	"github.com/Kenmaaa05/EchoChamber/internal/config"
	"github.com/Kenmaaa05/EchoChamber/internal/handlers"
	"github.com/Kenmaaa05/EchoChamber/internal/store"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			Level(zerolog.DebugLevel).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			Level(zerolog.InfoLevel).
			With().
			Timestamp().
			Logger()
	}

	ctx := context.Background()

	// Open the message store
	backend, err := store.Open(ctx, store.Options{
		Kind:        cfg.Backend,
		DatabaseURL: cfg.DatabaseURL,
		RedisURL:    cfg.RedisURL,
		SQLitePath:  cfg.SQLitePath,
	})
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.Backend).Msg("message store unavailable")
	}
	defer backend.Close()
	logger.Info().Str("backend", backend.Name()).Msg("message store ready")

	// Rate limiting needs Redis; share the store's client when it has one
	limiter := newRateLimiter(ctx, cfg, backend, logger)

	h := handlers.NewHandler(backend, logger)
	router := api.NewRouter(logger, h, limiter)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Msg("starting EchoChamber server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	// Sockets are hijacked, so Shutdown would not wait for them
	h.CloseStreams()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}

// newRateLimiter returns nil when no Redis is configured.
func newRateLimiter(ctx context.Context, cfg *config.Config, backend store.Backend, logger zerolog.Logger) *middleware.RateLimiter {
	var client redis.UniversalClient
	if rs, ok := backend.(*store.RedisStore); ok {
		client = rs.Client()
	} else if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		c := redis.NewClient(opts)
		if err := c.Ping(ctx).Err(); err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		client = c
	}

	if client == nil {
		logger.Warn().Msg("rate limiting disabled: REDIS_URL not set")
		return nil
	}

	return middleware.NewRateLimiter(client, logger, middleware.RateLimiterConfig{
		Whitelist:        cfg.RateLimitWhitelist,
		AutoBlockEnabled: cfg.AutoBlockEnabled,
	})
}
