package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/skridlevsky/repopulse/internal/api"
	"github.com/skridlevsky/repopulse/internal/config"
	"github.com/skridlevsky/repopulse/internal/db"
	"github.com/skridlevsky/repopulse/internal/github"
	"github.com/skridlevsky/repopulse/internal/ingest"
	"github.com/skridlevsky/repopulse/internal/metrics"
	"github.com/skridlevsky/repopulse/internal/monitor"
	"github.com/skridlevsky/repopulse/internal/store"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(ctx)
	if err != nil {
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}
	setupLogging(cfg.LogLevel)

	// Initialize database connection
	database, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	// NOTE: database.Close() called explicitly in shutdown sequence below — no defer

	if err := db.RunMigrations(ctx, database.Pool()); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	eventStore := store.NewPostgres(database.Pool())

	client := github.NewClient(cfg.GitHubToken, cfg.UserAgent)
	coordinator := ingest.NewCoordinator(client, eventStore, cfg.PollInterval, cfg.MaxEventsPerFetch, cfg.Repos())
	go coordinator.Run(ctx)

	registry := monitor.NewRegistry(client, cfg.MaxEventsPerFetch)

	routerResult := api.NewRouter(&api.RouterConfig{
		Database:    database,
		Metrics:     metrics.NewService(eventStore),
		Coordinator: coordinator,
		Monitors:    registry,
		BaseCtx:     ctx,
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      routerResult.Router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("starting server", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")

	registry.StopAll()
	routerResult.RateLimiters.Stop()

	// Cancel context to stop the coordinator and any remaining workers
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	database.Close()
	slog.Info("server exited")
}

func setupLogging(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})))
}
