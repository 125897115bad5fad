package config

import "time"

// SyncConfig is the top-level configuration for the realtime sync client.
type SyncConfig struct {
	API  APIConfig  `yaml:"api"`
	WS   WSConfig   `yaml:"ws"`
	Auth AuthConfig `yaml:"auth"`
}

// APIConfig configures the REST collaborator used for authoritative
// reads and writes.
type APIConfig struct {
	BaseURL    string        `yaml:"base_url"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// WSConfig configures the push connection.
type WSConfig struct {
	// URL overrides the WebSocket endpoint. When empty it is derived from
	// API.BaseURL (https -> wss, http -> ws).
	URL string `yaml:"url"`

	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`

	// HeartbeatInterval is how often a ping frame is sent; PongTimeout is
	// the watchdog window for the matching pong.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	PongTimeout       time.Duration `yaml:"pong_timeout"`

	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`

	// MaxReconnectAttempts caps consecutive reconnect attempts.
	// Zero means unbounded.
	MaxReconnectAttempts int `yaml:"max_reconnect_attempts"`

	// BufferSize is the capacity of the inbound message channel.
	BufferSize int `yaml:"buffer_size"`
}

// AuthConfig supplies the bearer credential. Token takes precedence;
// TokenFile is read once at load time.
type AuthConfig struct {
	Token     string `yaml:"token"`
	TokenFile string `yaml:"token_file"`
}
