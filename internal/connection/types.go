package connection

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected     = errors.New("not connected")
	ErrAuthRejected     = errors.New("authentication rejected")
	ErrLivenessTimeout  = errors.New("connection stale (no pong)")
	ErrMaxReconnects    = errors.New("reconnect attempts exhausted")
	ErrAlreadyConnected = errors.New("already connected")
	ErrAlreadyClosed    = errors.New("already closed")
)

// AuthCloseCode is the close code the server uses to reject a credential
// (policy violation). Any other close code is treated as a transient
// disconnect eligible for reconnection.
const AuthCloseCode = 1008

// RawFrame wraps raw inbound frame bytes with a receive timestamp.
type RawFrame struct {
	Data       []byte    // Raw frame bytes from the WebSocket
	ReceivedAt time.Time // Local timestamp when the read returned
}

// ClientConfig configures a single push connection.
type ClientConfig struct {
	// BaseURL is the WebSocket origin, e.g. "wss://calenote.example.com".
	// The scope path and token query are appended per connection.
	BaseURL string

	// Token is the bearer credential passed as the token query parameter.
	Token string

	// ScopeID is the calendar this connection serves.
	ScopeID string

	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration

	HeartbeatInterval time.Duration
	PongTimeout       time.Duration

	Backoff BackoffPolicy

	// MaxReconnectAttempts caps consecutive reconnect attempts; zero means
	// unbounded.
	MaxReconnectAttempts int

	// BufferSize is the capacity of the inbound frame channel.
	BufferSize int
}
