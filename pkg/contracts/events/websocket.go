// Package events contains the WebSocket message contracts of the dashboard.
package events

import (
	"time"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// MessageTypeConnect is sent to a client right after it registers
	MessageTypeConnect MessageType = "connect"

	// MessageTypeDashboardRefreshed announces a newly built report
	MessageTypeDashboardRefreshed MessageType = "dashboard:refreshed"

	// MessageTypeDashboardError announces a failed rebuild
	MessageTypeDashboardError MessageType = "dashboard:error"
)

// BaseMessage represents the base structure for all WebSocket messages
type BaseMessage struct {
	ID        string      `json:"id,omitempty"`
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// WebSocketMessage represents a complete WebSocket message
type WebSocketMessage struct {
	BaseMessage
	Data interface{} `json:"data,omitempty"`
}

// ConnectData is the payload of a connect message
type ConnectData struct {
	Status   string `json:"status"`
	ClientID string `json:"client_id"`
}

// DashboardRefreshed is the payload of a dashboard:refreshed message
type DashboardRefreshed struct {
	Source      string    `json:"source"`
	Fingerprint string    `json:"fingerprint"`
	GeneratedAt time.Time `json:"generated_at"`
	Records     int       `json:"records"`
	Categories  []string  `json:"categories"`
}

// DashboardError is the payload of a dashboard:error message
type DashboardError struct {
	Source  string `json:"source"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
