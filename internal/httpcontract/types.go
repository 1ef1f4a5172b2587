// Package httpcontract defines the relay's HTTP and WebSocket wire types,
// shared between the relay and the CLI.
package httpcontract

import (
	"encoding/json"
	"time"
)

// Relay routes
const (
	RouteStatus    = "/api/status"
	RouteTopics    = "/api/topics"
	RouteSubscribe = "/ws/" // + optional {pattern}
)

// QueryParamTopics lists the patterns a WebSocket client wants.
// Example: /ws/?topics=hooker/hooks/h1/events,hooker/hooks/+/deleted
const QueryParamTopics = "topics"

// HeaderAuthorization carries "Bearer <token>" for relay clients.
const (
	HeaderAuthorization = "Authorization"
	BearerPrefix        = "Bearer "
)

// Component states reported by the status endpoint.
const (
	StateConnected    = "connected"
	StateDisconnected = "disconnected"
	StateDisabled     = "disabled"
	StateOK           = "ok"
	StateError        = "error"
)

// StatusResponse is returned by the status endpoint.
type StatusResponse struct {
	Status      string    `json:"status"`
	Uptime      string    `json:"uptime"`
	StartedAt   time.Time `json:"started_at"`
	Broker      string    `json:"broker"`
	RabbitMQ    string    `json:"rabbitmq"`
	Archive     string    `json:"archive"`
	Connections int       `json:"connections"`
}

// TopicsResponse lists the patterns subscribed at the broker.
type TopicsResponse struct {
	Topics []string `json:"topics"`
}

// ErrorResponse is returned on API errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// WebSocket frame types.
const (
	FrameAuth    = "auth"
	FrameAuthOK  = "auth_ok"
	FrameMessage = "message"
)

// AuthFrame is the first client frame when no Authorization header was sent.
type AuthFrame struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// AuthOKFrame acknowledges a connection.
type AuthOKFrame struct {
	Type     string   `json:"type"`
	Consumer string   `json:"consumer"`
	Topics   []string `json:"topics"`
}

// MessageFrame carries one notification.
type MessageFrame struct {
	Type    string          `json:"type"`
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}
