package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/skridlevsky/repopulse/internal/ingest"
	"github.com/skridlevsky/repopulse/internal/metrics"
	"github.com/skridlevsky/repopulse/internal/monitor"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services,omitempty"`
	Ingestion *ingest.Status    `json:"ingestion,omitempty"`
}

// NewHealthHandler creates a health handler reporting the database and
// the ingestion coordinator's last pass.
func NewHealthHandler(dbHealthChecker interface{ Health(context.Context) error }, coordinator *ingest.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		services := make(map[string]string)
		status := "ok"

		if dbHealthChecker != nil {
			if err := dbHealthChecker.Health(r.Context()); err != nil {
				slog.Error("Database health check failed", "error", err)
				services["database"] = "unhealthy"
				status = "degraded"
			} else {
				services["database"] = "healthy"
			}
		}

		response := HealthResponse{
			Status:    status,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Services:  services,
		}
		if coordinator != nil {
			st := coordinator.Status()
			response.Ingestion = &st
		}

		if status != "ok" {
			respondJSON(w, http.StatusServiceUnavailable, response)
			return
		}
		respondJSON(w, http.StatusOK, response)
	}
}

// parseJSON is a helper to decode JSON request bodies
func parseJSON(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError maps domain errors to status codes: bad arguments are the
// caller's fault, unknown monitors are 404, everything else is a 500.
func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, metrics.ErrInvalidArgument):
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, monitor.ErrNotFound):
		respondJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	default:
		slog.Error("request failed", "error", err)
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

// queryInt reads an integer query parameter, using def when absent.
// A malformed value is passed through as-is so the handler's validation
// rejects it with a 400 instead of silently applying the default.
func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return n
}
