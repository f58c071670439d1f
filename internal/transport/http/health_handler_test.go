package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evdash/internal/services"
	"evdash/internal/websocket"
	"evdash/pkg/contracts"
)

func TestHealthHandler(t *testing.T) {
	hs := services.NewHealthService(newRebateSource(), nil, quietLogger())
	h := NewHealthHandler(hs, quietLogger())

	r := chi.NewRouter()
	r.Mount("/api/health", h.Routes())
	r.Get("/api/version", h.Version)

	tests := []struct {
		target string
		want   string
	}{
		{"/api/health", `"status":"ok"`},
		{"/api/health/ready", `"status":"ready"`},
		{"/api/health/live", `"status":"alive"`},
		{"/api/version", `"version":"` + contracts.Version + `"`},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			w := doRequest(t, r, http.MethodGet, tt.target, nil)
			require.Equal(t, http.StatusOK, w.Code)
			assert.Contains(t, w.Body.String(), tt.want)
		})
	}
}

func TestHealthHandler_NotReady(t *testing.T) {
	hs := services.NewHealthService(nil, nil, quietLogger())
	h := NewHealthHandler(hs, quietLogger())

	w := httptest.NewRecorder()
	h.ReadinessCheck(w, httptest.NewRequest(http.MethodGet, "/api/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "not_ready")
}

type staticStats struct{}

func (staticStats) Stats() websocket.HubStats {
	return websocket.HubStats{ActiveClients: 3, TotalConnections: 5}
}

func TestMetricsHandler(t *testing.T) {
	prom := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("pipeline_runs_total 1\n"))
	})

	h := NewMetricsHandler(prom, staticStats{})
	w := httptest.NewRecorder()
	h.Prometheus(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pipeline_runs_total")

	w = httptest.NewRecorder()
	h.GetStats(w, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	assert.Contains(t, w.Body.String(), `"active_clients":3`)

	disabled := NewMetricsHandler(nil, nil)
	w = httptest.NewRecorder()
	disabled.Prometheus(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
