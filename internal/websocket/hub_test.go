package websocket

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evdash/internal/shared/testutil"
	"evdash/pkg/contracts/events"
)

// quietLogger captures logs without tying them to t, so pump goroutines
// may log after the test returns
func quietLogger() *slog.Logger {
	return slog.New(testutil.NewBufferedSlogHandler(nil))
}

func startServer(t *testing.T, cfg HandlerConfig) (*Hub, string) {
	t.Helper()
	hub := NewHub(quietLogger(), nil, HubOptions{})
	hub.Start()

	srv := httptest.NewServer(NewHandler(hub, cfg, quietLogger()))
	t.Cleanup(func() {
		hub.Stop()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func readMessage(t *testing.T, conn *gorilla.Conn) events.WebSocketMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg events.WebSocketMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHub_ConnectAndBroadcast(t *testing.T) {
	hub, url := startServer(t, HandlerConfig{})

	conn, _, err := gorilla.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	connect := readMessage(t, conn)
	assert.Equal(t, events.MessageTypeConnect, connect.Type)
	assert.NotEmpty(t, connect.ID)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Broadcast(events.MessageTypeDashboardRefreshed, events.DashboardRefreshed{
		Source:      "xlsx:rebates.xlsx#Data",
		Fingerprint: "abc",
		Records:     2,
		Categories:  []string{"BEV", "PHEV"},
	})

	msg := readMessage(t, conn)
	assert.Equal(t, events.MessageTypeDashboardRefreshed, msg.Type)
	data, ok := msg.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "abc", data["fingerprint"])
	assert.Equal(t, float64(2), data["records"])

	stats := hub.Stats()
	assert.Equal(t, int64(1), stats.TotalConnections)
	assert.GreaterOrEqual(t, stats.MessagesSent, int64(2))
}

func TestHub_ClientDisconnect(t *testing.T) {
	hub, url := startServer(t, HandlerConfig{})

	conn, _, err := gorilla.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	readMessage(t, conn)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_StopClosesClients(t *testing.T) {
	hub, url := startServer(t, HandlerConfig{})

	conn, _, err := gorilla.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	readMessage(t, conn)

	hub.Stop()
	assert.Equal(t, 0, hub.ClientCount())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)

	// calls after stop return instead of blocking
	hub.Broadcast(events.MessageTypeDashboardRefreshed, nil)
	hub.Stop()
}

func TestHandler_OriginCheck(t *testing.T) {
	_, url := startServer(t, HandlerConfig{AllowedOrigins: []string{"http://dash.example"}})

	header := http.Header{}
	header.Set("Origin", "http://evil.example")
	_, resp, err := gorilla.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "http://dash.example")
	conn, _, err := gorilla.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	conn.Close()
}

func TestHub_BroadcastWithoutClients(t *testing.T) {
	hub := NewHub(quietLogger(), nil, HubOptions{})
	hub.Start()
	defer hub.Stop()

	for i := 0; i < 3; i++ {
		hub.Broadcast(events.MessageTypeDashboardError, events.DashboardError{Code: "DATA_SOURCE"})
	}
	assert.Eventually(t, func() bool { return len(hub.broadcast) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_BroadcastQueueFull(t *testing.T) {
	hub := NewHub(quietLogger(), nil, HubOptions{})
	// not started, so nothing drains the queue
	for i := 0; i < broadcastQueue+5; i++ {
		hub.Broadcast(events.MessageTypeDashboardRefreshed, nil)
	}
	assert.Equal(t, int64(5), hub.Stats().MessagesDropped)
}

func TestNewHub_Keepalive(t *testing.T) {
	hub := NewHub(quietLogger(), nil, HubOptions{PingPeriod: 2 * time.Minute, PongWait: time.Minute})
	assert.Equal(t, time.Minute, hub.pongWait)
	assert.Equal(t, 54*time.Second, hub.pingPeriod)
}
