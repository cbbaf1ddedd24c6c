// Package api exposes the query engine, the ingestion trigger, and the
// monitor registry over HTTP.
package api

import (
	"context"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/skridlevsky/repopulse/internal/ingest"
	"github.com/skridlevsky/repopulse/internal/metrics"
	"github.com/skridlevsky/repopulse/internal/monitor"
)

// RouterConfig holds configuration for the router
type RouterConfig struct {
	Database    interface{ Health(context.Context) error }
	Metrics     *metrics.Service
	Coordinator *ingest.Coordinator
	Monitors    *monitor.Registry

	// BaseCtx parents monitor workers started via the API. Required when
	// Monitors is set.
	BaseCtx context.Context
}

// RouterResult holds the router and resources that need cleanup
type RouterResult struct {
	Router       *chi.Mux
	RateLimiters *RateLimiters
}

// NewRouter creates and configures the HTTP router.
// Caller must call result.RateLimiters.Stop() on shutdown.
func NewRouter(cfg *RouterConfig) *RouterResult {
	r := chi.NewRouter()

	rateLimiters := NewRateLimiters()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(CORSMiddleware)
	r.Use(rateLimiters.Global.Middleware)

	r.Get("/api/health", NewHealthHandler(cfg.Database, cfg.Coordinator))

	metricsHandler := NewMetricsHandler(cfg.Metrics)
	r.Route("/api/metrics", func(r chi.Router) {
		r.Get("/event-counts", metricsHandler.EventCounts)
		r.Get("/event-counts-timeseries", metricsHandler.Timeseries)
		r.Get("/avg-pr-interval", metricsHandler.AvgPRInterval)
		r.Get("/repository-activity", metricsHandler.RepoActivity)
		r.Get("/repository-health", metricsHandler.RepoHealth)
		r.Get("/trending", metricsHandler.Trending)
		r.Get("/pr-merge-time", metricsHandler.PRMergeTime)
		r.Get("/issue-first-response", metricsHandler.IssueFirstResponse)
		r.Get("/anomalies", metricsHandler.Anomalies)
		r.Get("/stars", metricsHandler.Stars)
		r.Get("/releases", metricsHandler.Releases)
		r.Get("/pushes", metricsHandler.Pushes)
	})

	if cfg.Coordinator != nil {
		collectHandler := NewCollectHandler(cfg.Coordinator)
		// Collect hits the upstream API: strict rate limit (6/min/IP)
		r.With(CollectGuardMiddleware(rateLimiters.Collect)).
			Post("/api/collect", collectHandler.CollectNow)
	}

	if cfg.Monitors != nil {
		monitorHandler := NewMonitorHandler(cfg.Monitors, cfg.BaseCtx)
		r.Route("/api/monitors", func(r chi.Router) {
			r.Post("/", monitorHandler.Start)
			r.Get("/", monitorHandler.List)
			r.Delete("/{id}", monitorHandler.Stop)
			r.Get("/{id}/events", monitorHandler.Events)
			r.Get("/{id}/grouped", monitorHandler.Grouped)
		})
	}

	return &RouterResult{
		Router:       r,
		RateLimiters: rateLimiters,
	}
}
