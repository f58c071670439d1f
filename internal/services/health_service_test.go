package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"evdash/pkg/contracts"
)

func TestHealthService_Readiness(t *testing.T) {
	hub := new(MockWebSocketHub)
	hub.On("ClientCount").Return(2)

	src := sampleSource("v1")
	hs := NewHealthService(src, hub, quietLogger())

	status := hs.ReadinessCheck(context.Background())
	assert.Equal(t, "ready", status.Status)
	assert.Equal(t, contracts.Version, status.Version)

	ws := status.Services["websocket"].(ServiceHealth)
	assert.Equal(t, "2 clients connected", ws.Message)

	src.versionErr = errors.New("workbook missing")
	status = hs.ReadinessCheck(context.Background())
	assert.Equal(t, "not_ready", status.Status)
	data := status.Services["data_source"].(ServiceHealth)
	assert.Contains(t, data.Message, "workbook missing")
}

func TestHealthService_NoSource(t *testing.T) {
	hs := NewHealthService(nil, nil, quietLogger())
	assert.Equal(t, "not_ready", hs.ReadinessCheck(context.Background()).Status)
}

func TestHealthService_LivenessAndVersion(t *testing.T) {
	hs := NewHealthService(sampleSource("v1"), nil, quietLogger())

	live := hs.LivenessCheck(context.Background())
	assert.Equal(t, "alive", live.Status)
	assert.Contains(t, live.Runtime, "goroutines")

	assert.Equal(t, "ok", hs.HealthCheck(context.Background()).Status)

	v := hs.Version()
	assert.Equal(t, contracts.Version, v["version"])
	assert.Equal(t, contracts.APIVersion, v["api_version"])
}
