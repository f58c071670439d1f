package http

import (
	"net/http"

	"github.com/go-chi/render"

	apierrors "evdash/internal/errors"
	"evdash/internal/websocket"
)

// HubStatsProvider reports WebSocket hub counters
type HubStatsProvider interface {
	Stats() websocket.HubStats
}

// MetricsHandler exposes Prometheus metrics and live hub counters
type MetricsHandler struct {
	prometheus http.Handler
	hub        HubStatsProvider
}

// NewMetricsHandler creates a metrics handler. prometheus is nil when the
// metric exporter is disabled.
func NewMetricsHandler(prometheus http.Handler, hub HubStatsProvider) *MetricsHandler {
	return &MetricsHandler{prometheus: prometheus, hub: hub}
}

// Prometheus handles GET /metrics
func (h *MetricsHandler) Prometheus(w http.ResponseWriter, r *http.Request) {
	if h.prometheus == nil {
		apierrors.WriteError(w, apierrors.NotFoundError("metrics exporter"))
		return
	}
	h.prometheus.ServeHTTP(w, r)
}

// GetStats handles GET /api/stats
func (h *MetricsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		render.JSON(w, r, map[string]interface{}{})
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"websocket": h.hub.Stats(),
	})
}
