package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sync.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	yaml := `
api:
  base_url: https://calenote.example.com/api/v1
ws:
  heartbeat_interval: 20s
  pong_timeout: 5s
auth:
  token: abc123
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.API.BaseURL != "https://calenote.example.com/api/v1" {
		t.Errorf("API.BaseURL = %q, want %q", cfg.API.BaseURL, "https://calenote.example.com/api/v1")
	}
	if cfg.WS.HeartbeatInterval != 20*time.Second {
		t.Errorf("WS.HeartbeatInterval = %v, want %v", cfg.WS.HeartbeatInterval, 20*time.Second)
	}
	if cfg.Auth.Token != "abc123" {
		t.Errorf("Auth.Token = %q, want %q", cfg.Auth.Token, "abc123")
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_SYNC_TOKEN", "secret123")

	yaml := `
api:
  base_url: https://calenote.example.com/api/v1
auth:
  token: ${TEST_SYNC_TOKEN}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Auth.Token != "secret123" {
		t.Errorf("Auth.Token = %q, want %q", cfg.Auth.Token, "secret123")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
api:
  base_url: https://calenote.example.com/api/v1
auth:
  token: abc123
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.WS.HeartbeatInterval != DefaultHeartbeatInterval {
		t.Errorf("WS.HeartbeatInterval = %v, want %v", cfg.WS.HeartbeatInterval, DefaultHeartbeatInterval)
	}
	if cfg.WS.ReconnectBaseDelay != DefaultReconnectBaseDelay {
		t.Errorf("WS.ReconnectBaseDelay = %v, want %v", cfg.WS.ReconnectBaseDelay, DefaultReconnectBaseDelay)
	}
	if cfg.WS.ReconnectMaxDelay != DefaultReconnectMaxDelay {
		t.Errorf("WS.ReconnectMaxDelay = %v, want %v", cfg.WS.ReconnectMaxDelay, DefaultReconnectMaxDelay)
	}
	if cfg.WS.BufferSize != DefaultBufferSize {
		t.Errorf("WS.BufferSize = %d, want %d", cfg.WS.BufferSize, DefaultBufferSize)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *SyncConfig {
		cfg := &SyncConfig{}
		cfg.API.BaseURL = "https://calenote.example.com/api/v1"
		cfg.Auth.Token = "abc123"
		cfg.applyDefaults()
		return cfg
	}

	t.Run("valid config", func(t *testing.T) {
		if err := valid().Validate(); err != nil {
			t.Errorf("Validate failed: %v", err)
		}
	})

	t.Run("missing base url", func(t *testing.T) {
		cfg := valid()
		cfg.API.BaseURL = ""
		if err := cfg.Validate(); err == nil {
			t.Error("expected error for missing api.base_url")
		}
	})

	t.Run("missing credentials", func(t *testing.T) {
		cfg := valid()
		cfg.Auth.Token = ""
		cfg.Auth.TokenFile = ""
		if err := cfg.Validate(); err == nil {
			t.Error("expected error for missing auth credentials")
		}
	})

	t.Run("pong timeout exceeds heartbeat interval", func(t *testing.T) {
		cfg := valid()
		cfg.WS.PongTimeout = cfg.WS.HeartbeatInterval
		if err := cfg.Validate(); err == nil {
			t.Error("expected error for pong_timeout >= heartbeat_interval")
		}
	})

	t.Run("max delay below base delay", func(t *testing.T) {
		cfg := valid()
		cfg.WS.ReconnectMaxDelay = cfg.WS.ReconnectBaseDelay / 2
		if err := cfg.Validate(); err == nil {
			t.Error("expected error for reconnect_max_delay < reconnect_base_delay")
		}
	})
}
