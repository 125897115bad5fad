package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *SyncConfig) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}

	if c.WS.HeartbeatInterval <= 0 {
		return errors.New("ws.heartbeat_interval must be positive")
	}
	if c.WS.PongTimeout <= 0 {
		return errors.New("ws.pong_timeout must be positive")
	}
	if c.WS.PongTimeout >= c.WS.HeartbeatInterval {
		return fmt.Errorf("ws.pong_timeout (%v) must be shorter than ws.heartbeat_interval (%v)",
			c.WS.PongTimeout, c.WS.HeartbeatInterval)
	}

	if c.WS.ReconnectBaseDelay <= 0 {
		return errors.New("ws.reconnect_base_delay must be positive")
	}
	if c.WS.ReconnectMaxDelay < c.WS.ReconnectBaseDelay {
		return fmt.Errorf("ws.reconnect_max_delay (%v) cannot be less than ws.reconnect_base_delay (%v)",
			c.WS.ReconnectMaxDelay, c.WS.ReconnectBaseDelay)
	}

	if c.WS.MaxReconnectAttempts < 0 {
		return errors.New("ws.max_reconnect_attempts cannot be negative")
	}
	if c.WS.BufferSize < 1 {
		return errors.New("ws.buffer_size must be >= 1")
	}

	if c.Auth.Token == "" && c.Auth.TokenFile == "" {
		return errors.New("auth.token or auth.token_file is required")
	}

	return nil
}
