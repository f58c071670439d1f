package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"evdash/internal/infrastructure"
	"evdash/internal/shared/testutil"
)

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func TestRequestID(t *testing.T) {
	t.Run("generates id", func(t *testing.T) {
		var seen string
		h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = GetRequestID(r.Context())
			assert.Equal(t, seen, infrastructure.GetTraceID(r.Context()))
			assert.Equal(t, seen, chimw.GetReqID(r.Context()))
		}))

		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, w.Header().Get("X-Request-ID"))
	})

	t.Run("reuses client id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "client-42")

		w := httptest.NewRecorder()
		RequestID(http.HandlerFunc(okHandler)).ServeHTTP(w, req)
		assert.Equal(t, "client-42", w.Header().Get("X-Request-ID"))
	})
}

func TestStructuredLogger(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantLevel slog.Level
	}{
		{"success", http.StatusOK, slog.LevelInfo},
		{"client error", http.StatusNotFound, slog.LevelWarn},
		{"server error", http.StatusServiceUnavailable, slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, logs := testutil.NewTestLogger(t)
			h := RequestID(StructuredLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})))

			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))

			records := logs.GetRecordsByLevel(tt.wantLevel)
			require.Len(t, records, 1)
			assert.Equal(t, "request completed", records[0].Message)
			assert.True(t, logs.ContainsAttr("status", int64(tt.status)))
			assert.True(t, logs.ContainsAttr("path", "/api/dashboard"))
		})
	}
}

func TestStructuredLogger_SpanTraceID(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	logger, logs := testutil.NewTestLogger(t)
	var spanTraceID string
	inner := StructuredLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		spanTraceID = infrastructure.TraceIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	h := RequestID(NewOTelMiddleware(tp.Tracer("test"), nil).Handler(inner))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))

	require.NotEmpty(t, spanTraceID)
	assert.True(t, logs.ContainsAttr("otel_trace_id", spanTraceID))
}

func TestStructuredLogger_NoSpan(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	h := RequestID(StructuredLogger(logger)(http.HandlerFunc(okHandler)))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))

	records := logs.GetRecords()
	require.Len(t, records, 1)
	assert.NotContains(t, records[0].Attrs, "otel_trace_id")
}

func TestRateLimiter(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	rl := NewRateLimiter(0.5, 2, logger)
	h := rl.Handler(http.HandlerFunc(okHandler))

	send := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
		req.RemoteAddr = remote
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, send("10.0.0.1:1000").Code)
	assert.Equal(t, http.StatusOK, send("10.0.0.1:1001").Code)

	limited := send("10.0.0.1:1002")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "2", limited.Header().Get("Retry-After"))
	var problem map[string]interface{}
	require.NoError(t, json.Unmarshal(limited.Body.Bytes(), &problem))
	assert.Equal(t, "/errors/rate-limit", problem["type"])
	assert.Equal(t, float64(http.StatusTooManyRequests), problem["status"])
	assert.Equal(t, float64(2), problem["retry_after"])
	assert.Equal(t, "/api/dashboard", problem["instance"])
	assert.True(t, logs.ContainsMessage("rate limit exceeded"))

	assert.Equal(t, http.StatusOK, send("10.0.0.2:1000").Code, "other clients keep their own bucket")
}

func TestCORS(t *testing.T) {
	h := CORS(CORSConfig{AllowedOrigins: []string{"http://dash.example"}})(http.HandlerFunc(okHandler))

	t.Run("allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
		req.Header.Set("Origin", "http://dash.example")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, "http://dash.example", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "ETag")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("other origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
		req.Header.Set("Origin", "http://evil.example")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/dashboard/refresh", nil)
		req.Header.Set("Origin", "http://dash.example")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Body.String())
	})
}

func TestSecurityHeaders(t *testing.T) {
	w := httptest.NewRecorder()
	SecurityHeaders(http.HandlerFunc(okHandler)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))
}

func TestOTelMiddleware_RoutePattern(t *testing.T) {
	var route string
	r := chi.NewRouter()
	r.Use(NewOTelMiddleware(nil, nil).Handler)
	r.Get("/api/dashboard/categories/{category}/counties", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		route = routePattern(req)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/dashboard/categories/BEV/counties", nil))

	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Equal(t, "/api/dashboard/categories/{category}/counties", route)
	assert.Equal(t, "/raw", routePattern(httptest.NewRequest(http.MethodGet, "/raw", nil)))
}
