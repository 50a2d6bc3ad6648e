// Package constants provides shared constants used across the codebase.
package constants

import "time"

// Request size constants
const (
	// MaxFrameBodySize is the maximum size of a JSON request carrying a base64 frame
	MaxFrameBodySize = 10 << 20

	// MaxWebSocketMessageSize is the maximum size of an inbound websocket message
	MaxWebSocketMessageSize = 10 << 20
)

// WebSocket timing constants
const (
	// WebSocketReadTimeout is the read deadline, refreshed by every pong
	WebSocketReadTimeout = 60 * time.Second

	// WebSocketPingPeriod is how often the server pings idle clients
	WebSocketPingPeriod = 30 * time.Second

	// WebSocketWriteTimeout is the deadline for a single write
	WebSocketWriteTimeout = 10 * time.Second
)

// Event channel constants
const (
	// EventChannelBuffer is the buffer size for per-client outbound channels
	EventChannelBuffer = 100
)

// Server constants
const (
	// ShutdownTimeout is the graceful shutdown deadline
	ShutdownTimeout = 30 * time.Second

	// RequestTimeout is the chi request timeout for REST handlers
	RequestTimeout = 60 * time.Second
)
