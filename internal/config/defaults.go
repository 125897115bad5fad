package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultAPITimeout         = 30 * time.Second
	DefaultMaxRetries         = 3
	DefaultHandshakeTimeout   = 10 * time.Second
	DefaultWriteTimeout       = 5 * time.Second
	DefaultHeartbeatInterval  = 15 * time.Second
	DefaultPongTimeout        = 10 * time.Second
	DefaultReconnectBaseDelay = 1 * time.Second
	DefaultReconnectMaxDelay  = 60 * time.Second
	DefaultBufferSize         = 256
)

func (c *SyncConfig) applyDefaults() {
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}

	if c.WS.HandshakeTimeout == 0 {
		c.WS.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.WS.WriteTimeout == 0 {
		c.WS.WriteTimeout = DefaultWriteTimeout
	}
	if c.WS.HeartbeatInterval == 0 {
		c.WS.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.WS.PongTimeout == 0 {
		c.WS.PongTimeout = DefaultPongTimeout
	}
	if c.WS.ReconnectBaseDelay == 0 {
		c.WS.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.WS.ReconnectMaxDelay == 0 {
		c.WS.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.WS.BufferSize == 0 {
		c.WS.BufferSize = DefaultBufferSize
	}
}
