package api

import (
	"net/http"

	"github.com/skridlevsky/repopulse/internal/metrics"
)

// defaultWindowHours is used when a windowed endpoint gets no hours
// parameter.
const defaultWindowHours = 24

// MetricsHandler serves the query engine over HTTP.
type MetricsHandler struct {
	service *metrics.Service
}

// NewMetricsHandler creates a metrics handler.
func NewMetricsHandler(service *metrics.Service) *MetricsHandler {
	return &MetricsHandler{service: service}
}

// EventCounts handles GET /api/metrics/event-counts
func (h *MetricsHandler) EventCounts(w http.ResponseWriter, r *http.Request) {
	offset := queryInt(r, "offset_minutes", 60)
	repo := r.URL.Query().Get("repo")

	counts, err := h.service.EventCounts(r.Context(), offset, repo)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, counts)
}

// AvgPRInterval handles GET /api/metrics/avg-pr-interval
func (h *MetricsHandler) AvgPRInterval(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.AvgPRInterval(r.Context(), r.URL.Query().Get("repo"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// RepoActivity handles GET /api/metrics/repository-activity
func (h *MetricsHandler) RepoActivity(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.RepoActivity(r.Context(), r.URL.Query().Get("repo"), queryInt(r, "hours", defaultWindowHours))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// Trending handles GET /api/metrics/trending
func (h *MetricsHandler) Trending(w http.ResponseWriter, r *http.Request) {
	repos, err := h.service.Trending(r.Context(), queryInt(r, "hours", defaultWindowHours), queryInt(r, "limit", 0))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, repos)
}

// Timeseries handles GET /api/metrics/event-counts-timeseries
func (h *MetricsHandler) Timeseries(w http.ResponseWriter, r *http.Request) {
	buckets, err := h.service.Timeseries(
		r.Context(),
		queryInt(r, "hours", defaultWindowHours),
		queryInt(r, "bucket_minutes", 60),
		r.URL.Query().Get("repo"),
	)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, buckets)
}

// PRMergeTime handles GET /api/metrics/pr-merge-time
func (h *MetricsHandler) PRMergeTime(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.PRMergeTime(r.Context(), r.URL.Query().Get("repo"), queryInt(r, "hours", defaultWindowHours))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// IssueFirstResponse handles GET /api/metrics/issue-first-response
func (h *MetricsHandler) IssueFirstResponse(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.IssueFirstResponse(r.Context(), r.URL.Query().Get("repo"), queryInt(r, "hours", defaultWindowHours))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// RepoHealth handles GET /api/metrics/repository-health
func (h *MetricsHandler) RepoHealth(w http.ResponseWriter, r *http.Request) {
	score, err := h.service.RepoHealth(r.Context(), r.URL.Query().Get("repo"), queryInt(r, "hours", 0))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, score)
}

// Anomalies handles GET /api/metrics/anomalies
func (h *MetricsHandler) Anomalies(w http.ResponseWriter, r *http.Request) {
	anomalies, err := h.service.Anomalies(r.Context(), r.URL.Query().Get("repo"), queryInt(r, "hours", defaultWindowHours))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, anomalies)
}

// Stars handles GET /api/metrics/stars
func (h *MetricsHandler) Stars(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.Stars(r.Context(), r.URL.Query().Get("repo"), queryInt(r, "hours", defaultWindowHours))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, count)
}

// Releases handles GET /api/metrics/releases
func (h *MetricsHandler) Releases(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.Releases(r.Context(), r.URL.Query().Get("repo"), queryInt(r, "hours", defaultWindowHours))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, count)
}

// Pushes handles GET /api/metrics/pushes
func (h *MetricsHandler) Pushes(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Pushes(r.Context(), r.URL.Query().Get("repo"), queryInt(r, "hours", defaultWindowHours))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
