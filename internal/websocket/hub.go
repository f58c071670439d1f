package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"evdash/internal/infrastructure"
	"evdash/pkg/contracts/events"
)

const (
	defaultPongWait = 60 * time.Second
	broadcastQueue  = 64
)

// HubOptions tunes client keepalive. Zero values take the defaults.
type HubOptions struct {
	PingPeriod time.Duration
	PongWait   time.Duration
}

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	running bool
	quit    chan struct{}
	done    chan struct{}

	logger  *slog.Logger
	metrics *infrastructure.BusinessMetrics

	pingPeriod time.Duration
	pongWait   time.Duration

	totalConnections atomic.Int64
	messagesSent     atomic.Int64
	messagesDropped  atomic.Int64
}

// HubStats is a snapshot of hub counters
type HubStats struct {
	ActiveClients    int   `json:"active_clients"`
	TotalConnections int64 `json:"total_connections"`
	MessagesSent     int64 `json:"messages_sent"`
	MessagesDropped  int64 `json:"messages_dropped"`
}

// NewHub creates a hub. Nil metrics disable the client gauge.
func NewHub(logger *slog.Logger, metrics *infrastructure.BusinessMetrics, opts HubOptions) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	if opts.PongWait <= 0 {
		opts.PongWait = defaultPongWait
	}
	if opts.PingPeriod <= 0 || opts.PingPeriod >= opts.PongWait {
		opts.PingPeriod = (opts.PongWait * 9) / 10
	}

	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, broadcastQueue),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		logger:     logger.With(slog.String("component", "websocket.hub")),
		metrics:    metrics,
		pingPeriod: opts.PingPeriod,
		pongWait:   opts.PongWait,
	}
}

// Start runs the hub loop in a goroutine. Calling it twice is a no-op.
func (h *Hub) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return
	}
	h.running = true
	go h.Run()
}

// Run is the hub's main loop
func (h *Hub) Run() {
	defer close(h.done)
	for {
		select {
		case <-h.quit:
			h.logger.Info("hub shutting down")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.totalConnections.Add(1)

			ctx := client.context()
			infrastructure.RecordWebSocketClients(ctx, h.metrics, 1)
			h.logger.InfoContext(ctx, "client registered",
				slog.String("client_id", client.id),
				slog.String("remote_addr", client.remoteAddr),
				slog.Int("total_clients", count))

			h.sendTo(client, events.MessageTypeConnect, events.ConnectData{
				Status:   "connected",
				ClientID: client.id,
			})

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				h.removeLocked(client)
				count := len(h.clients)
				h.mu.Unlock()

				h.logger.InfoContext(client.context(), "client unregistered",
					slog.String("client_id", client.id),
					slog.Duration("connection_duration", time.Since(client.connectedAt)),
					slog.Int("total_clients", count))
			} else {
				h.mu.Unlock()
			}

		case message := <-h.broadcast:
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mu.RUnlock()

			for _, client := range clients {
				select {
				case client.send <- message:
					h.messagesSent.Add(1)
				default:
					h.mu.Lock()
					h.removeLocked(client)
					h.mu.Unlock()
					h.logger.WarnContext(client.context(), "client send buffer full, disconnecting",
						slog.String("client_id", client.id))
				}
			}

			h.logger.Debug("message broadcast",
				slog.Int("clients", len(clients)),
				slog.Int("size", len(message)))
		}
	}
}

// removeLocked drops client and closes its send channel. h.mu must be held.
func (h *Hub) removeLocked(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)
	infrastructure.RecordWebSocketClients(context.Background(), h.metrics, -1)
}

// Register adds a client. It returns immediately once the hub has stopped.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.quit:
	}
}

// Unregister removes a client
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}

// Broadcast sends a typed message to every client. The message is dropped
// when the broadcast queue is full.
func (h *Hub) Broadcast(messageType events.MessageType, data interface{}) {
	payload, err := encode(messageType, data, "")
	if err != nil {
		h.logger.Error("failed to encode broadcast",
			slog.String("type", string(messageType)),
			slog.String("error", err.Error()))
		return
	}

	select {
	case h.broadcast <- payload:
	default:
		h.messagesDropped.Add(1)
		h.logger.Warn("broadcast queue full, message dropped",
			slog.String("type", string(messageType)))
	}
}

// sendTo queues a message for one client without blocking the loop
func (h *Hub) sendTo(client *Client, messageType events.MessageType, data interface{}) {
	payload, err := encode(messageType, data, client.traceID)
	if err != nil {
		return
	}
	select {
	case client.send <- payload:
		h.messagesSent.Add(1)
	default:
		h.messagesDropped.Add(1)
	}
}

func encode(messageType events.MessageType, data interface{}, traceID string) ([]byte, error) {
	return json.Marshal(events.WebSocketMessage{
		BaseMessage: events.BaseMessage{
			ID:        uuid.NewString(),
			Type:      messageType,
			Timestamp: time.Now().UTC(),
			TraceID:   traceID,
		},
		Data: data,
	})
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats returns current hub counters
func (h *Hub) Stats() HubStats {
	return HubStats{
		ActiveClients:    h.ClientCount(),
		TotalConnections: h.totalConnections.Load(),
		MessagesSent:     h.messagesSent.Load(),
		MessagesDropped:  h.messagesDropped.Load(),
	}
}

// Stop ends the hub loop and disconnects every client
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.mu.Unlock()

	close(h.quit)
	<-h.done

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		h.removeLocked(client)
	}
}
