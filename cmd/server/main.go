package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/chamberlink/chamberlink/internal/api"
	"github.com/chamberlink/chamberlink/internal/auth"
	"github.com/chamberlink/chamberlink/internal/config"
	"github.com/chamberlink/chamberlink/internal/handlers"
	"github.com/chamberlink/chamberlink/internal/hub"
	"github.com/chamberlink/chamberlink/internal/messaging"
	"github.com/chamberlink/chamberlink/internal/store"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Pick the message store: PostgreSQL when configured, embedded SQLite
	// otherwise.
	var dataStore store.DataStore
	if cfg.DatabaseURL != "" {
		logger.Info().Msg("running database migrations...")
		if err := store.RunMigrations(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
		logger.Info().Msg("migrations completed")

		pgStore, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		dataStore = pgStore
		logger.Info().Msg("connected to PostgreSQL")
	} else {
		sqliteStore, err := store.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("sqlite open failed")
		}
		dataStore = sqliteStore
		logger.Info().Str("path", cfg.SQLitePath).Msg("using embedded SQLite store")
	}
	defer dataStore.Close()

	// Initialize Redis store
	var redisStore *store.RedisStore
	if cfg.RedisURL != "" {
		var err error
		redisStore, err = store.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisStore.Close()
		logger.Info().Msg("connected to Redis")
	}

	// Event hub, bridged across instances when redis is available
	eventHub := hub.New(logger)
	if redisStore != nil {
		bridge := hub.NewBridge(eventHub, redisStore.Client(), logger)
		go func() {
			if err := bridge.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error().Err(err).Msg("event bridge stopped")
			}
		}()
	}

	// Domain services
	registry := messaging.NewRegistry(dataStore, messaging.ResolutionMode(cfg.ThreadResolution))
	messages := messaging.NewMessages(dataStore, eventHub, logger)
	receipts := messaging.NewReceipts(dataStore, eventHub, logger)
	conversations := messaging.NewConversations(dataStore, registry, receipts)
	analytics := messaging.NewAnalytics(dataStore, messaging.AnalyticsConfig{
		ResponseWeight:       cfg.AnalyticsResponseWeight,
		EngagementWeight:     cfg.AnalyticsEngagementWeight,
		DecayMinutesPerPoint: cfg.AnalyticsDecayMinutes,
	})
	authService := auth.NewService(dataStore, redisStore)

	handler := handlers.NewHandler(handlers.Deps{
		Registry:      registry,
		Messages:      messages,
		Receipts:      receipts,
		Conversations: conversations,
		Analytics:     analytics,
		Hub:           eventHub,
		Auth:          authService,
		Store:         dataStore,
		Redis:         redisStore,
		Logger:        logger,
	})

	// Create router
	router := api.NewRouter(api.RouterConfig{
		Logger:             logger,
		Handler:            handler,
		Auth:               authService,
		Redis:              redisStore,
		RateLimitWhitelist: cfg.RateLimitWhitelist,
		AllowedOrigins:     cfg.AllowedOrigins,
	})

	// Create server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Str("resolution", cfg.ThreadResolution).
			Msg("starting ChamberLink server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")
	cancel()

	// Graceful shutdown with 30 second timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}
