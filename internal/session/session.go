// Package session holds the bearer credential and the active scope
// (calendar id) for the sync client. The connection registry subscribes to
// scope changes; everything else treats this package as the single source of
// "who am I talking to, and as whom".
package session

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/WeichunK/calenote-sub000/internal/config"
)

// ErrNoToken is returned when no credential has been configured.
var ErrNoToken = errors.New("no bearer token configured")

// ChangeBufferSize is the capacity of the scope change channel.
const ChangeBufferSize = 16

// TokenProvider supplies the bearer credential used for both the REST
// collaborator and the push connection.
type TokenProvider interface {
	Token() (string, error)
}

// Static is a TokenProvider wrapping a fixed token string.
type Static string

// Token implements TokenProvider.
func (s Static) Token() (string, error) {
	if s == "" {
		return "", ErrNoToken
	}
	return string(s), nil
}

// FromConfig builds a TokenProvider from the auth section. An inline token
// takes precedence; otherwise the token file is read once.
func FromConfig(cfg config.AuthConfig) (TokenProvider, error) {
	if cfg.Token != "" {
		return Static(cfg.Token), nil
	}
	if cfg.TokenFile != "" {
		data, err := os.ReadFile(cfg.TokenFile)
		if err != nil {
			return nil, fmt.Errorf("read token file: %w", err)
		}
		return Static(strings.TrimSpace(string(data))), nil
	}
	return nil, ErrNoToken
}

// Claims are the subset of JWT claims the client cares about. The token is
// parsed without signature verification: the server is the verifier, the
// client only reads its own identity and expiry for logging and for warning
// before the credential goes stale.
type Claims struct {
	UserID    string
	ExpiresAt time.Time
}

// ParseClaims extracts Claims from a bearer token.
func ParseClaims(token string) (Claims, error) {
	var registered jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &registered); err != nil {
		return Claims{}, fmt.Errorf("parse token: %w", err)
	}

	c := Claims{UserID: registered.Subject}
	if registered.ExpiresAt != nil {
		c.ExpiresAt = registered.ExpiresAt.Time
	}
	return c, nil
}

// Expired reports whether the claims carry an expiry in the past.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && c.ExpiresAt.Before(now)
}

// ScopeChange notifies a subscriber that the active calendar changed.
type ScopeChange struct {
	Old string
	New string
}

// Holder tracks the active scope and credential. It is safe for concurrent
// use.
type Holder struct {
	provider TokenProvider

	mu     sync.Mutex
	scope  string
	change chan ScopeChange
}

// NewHolder creates a Holder with no active scope.
func NewHolder(provider TokenProvider) *Holder {
	return &Holder{
		provider: provider,
		change:   make(chan ScopeChange, ChangeBufferSize),
	}
}

// Token returns the current bearer credential.
func (h *Holder) Token() (string, error) {
	if h.provider == nil {
		return "", ErrNoToken
	}
	return h.provider.Token()
}

// Scope returns the active calendar id, or "" when none is active.
func (h *Holder) Scope() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.scope
}

// SetScope switches the active calendar and notifies the change channel.
// Setting the current scope again is a no-op.
func (h *Holder) SetScope(scopeID string) {
	h.mu.Lock()
	old := h.scope
	if old == scopeID {
		h.mu.Unlock()
		return
	}
	h.scope = scopeID
	h.mu.Unlock()

	select {
	case h.change <- ScopeChange{Old: old, New: scopeID}:
	default:
		// Subscriber is not draining; the latest scope is still readable
		// via Scope().
	}
}

// Changes returns the scope change channel.
func (h *Holder) Changes() <-chan ScopeChange {
	return h.change
}
