package handler

import (
	"encoding/json"
	"net/http"

	"github.com/alfreddev/alfred-gateway/analytics"
)

// AnalyticsHandler serves the snapshot and live-stream management
// endpoints over the shared analytics engine.
type AnalyticsHandler struct {
	engine *analytics.Engine
}

// NewAnalyticsHandler wires an analytics engine into the handler.
func NewAnalyticsHandler(engine *analytics.Engine) *AnalyticsHandler {
	return &AnalyticsHandler{engine: engine}
}

// Snapshot returns the current derived analytics view as JSON.
func (h *AnalyticsHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.engine.Snapshot())
}

// Stream serves the SSE live feed, per spec.md §4.3/§6.
func (h *AnalyticsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	h.engine.ServeSSE(w, r)
}
