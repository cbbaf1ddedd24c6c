package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/skridlevsky/repopulse/internal/ingest"
)

// CollectHandler triggers on-demand ingestion passes.
type CollectHandler struct {
	coordinator *ingest.Coordinator
}

// NewCollectHandler creates a collect handler.
func NewCollectHandler(coordinator *ingest.Coordinator) *CollectHandler {
	return &CollectHandler{coordinator: coordinator}
}

type collectRequest struct {
	Limit int      `json:"limit,omitempty"`
	Repos []string `json:"repos,omitempty"`
}

type collectResponse struct {
	Inserted int `json:"inserted"`
}

// CollectNow handles POST /api/collect. The body is optional; when present
// it may override the configured fetch limit and target repositories for
// this pass only. A pass already in flight is coalesced: the response then
// reports zero insertions.
func (h *CollectHandler) CollectNow(w http.ResponseWriter, r *http.Request) {
	var req collectRequest
	if err := parseJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}

	inserted, err := h.coordinator.CollectNow(r.Context(), req.Limit, req.Repos)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, collectResponse{Inserted: inserted})
}
