package connection

import (
	"log/slog"
	"sync"
)

// Registry enforces the one-live-connection-per-scope invariant. It is an
// ordinary struct passed by reference, not module state, so tests can run
// independent registries side by side.
type Registry struct {
	logger *slog.Logger

	mu     sync.Mutex
	scope  string
	client *Client
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// GetOrCreate returns the client for scopeID, creating it if needed.
//
// Re-requesting the active scope returns the existing client unchanged, so
// a remount of the owning context never opens a duplicate socket. When the
// scope differs, the old client is fully disconnected before the new one is
// created; two live connections never coexist, even transiently. The caller
// owns the Connect call on the returned client.
func (r *Registry) GetOrCreate(scopeID string, cfg ClientConfig) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.client != nil {
		if r.scope == scopeID && !r.client.Closed() {
			return r.client
		}
		r.logger.Info("tearing down connection for scope change",
			"old_scope", r.scope,
			"new_scope", scopeID,
		)
		r.client.Disconnect()
		r.client = nil
	}

	cfg.ScopeID = scopeID
	r.scope = scopeID
	r.client = NewClient(cfg, r.logger)
	return r.client
}

// Current returns the active client, if any.
func (r *Registry) Current() (*Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client == nil || r.client.Closed() {
		return nil, false
	}
	return r.client, true
}

// DisconnectAll tears down the active client and clears the registry.
func (r *Registry) DisconnectAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client != nil {
		r.client.Disconnect()
		r.client = nil
		r.scope = ""
	}
}
