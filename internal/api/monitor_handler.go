package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/skridlevsky/repopulse/internal/event"
	"github.com/skridlevsky/repopulse/internal/monitor"
)

// MonitorHandler serves the live monitor registry over HTTP.
type MonitorHandler struct {
	registry *monitor.Registry

	// baseCtx parents every worker so they die with the process, not
	// with the request that started them.
	baseCtx context.Context
}

// NewMonitorHandler creates a monitor handler. Workers started through it
// are parented to baseCtx.
func NewMonitorHandler(registry *monitor.Registry, baseCtx context.Context) *MonitorHandler {
	return &MonitorHandler{registry: registry, baseCtx: baseCtx}
}

type startMonitorRequest struct {
	Repo            string   `json:"repo"`
	Kinds           []string `json:"kinds,omitempty"`
	IntervalSeconds int      `json:"interval_seconds,omitempty"`
}

type startMonitorResponse struct {
	MonitorID string `json:"monitor_id"`
}

// Start handles POST /api/monitors
func (h *MonitorHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startMonitorRequest
	if err := parseJSON(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	if req.Repo == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "repo is required"})
		return
	}

	kinds := make([]event.Kind, 0, len(req.Kinds))
	for _, k := range req.Kinds {
		if !event.Monitored(k) {
			respondJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown kind: " + k})
			return
		}
		kinds = append(kinds, event.Kind(k))
	}

	id, err := h.registry.Start(h.baseCtx, req.Repo, kinds, time.Duration(req.IntervalSeconds)*time.Second)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	respondJSON(w, http.StatusCreated, startMonitorResponse{MonitorID: id})
}

// List handles GET /api/monitors
func (h *MonitorHandler) List(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.registry.List())
}

// Stop handles DELETE /api/monitors/{id}
func (h *MonitorHandler) Stop(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Stop(chi.URLParam(r, "id")); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

// Events handles GET /api/monitors/{id}/events
func (h *MonitorHandler) Events(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.registry.Events(chi.URLParam(r, "id"), queryInt(r, "limit", 0))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summaries)
}

// Grouped handles GET /api/monitors/{id}/grouped
func (h *MonitorHandler) Grouped(w http.ResponseWriter, r *http.Request) {
	grouped, err := h.registry.Grouped(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, grouped)
}
