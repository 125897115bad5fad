package connection

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/WeichunK/calenote-sub000/internal/model"
)

// Client owns one WebSocket connection to a calendar scope.
type Client struct {
	cfg    ClientConfig
	logger *slog.Logger

	// Output channels
	frames   chan RawFrame
	statusCh chan Status
	errs     chan error

	// Write serialization
	writeMu sync.Mutex

	// State
	mu             sync.Mutex
	conn           *websocket.Conn
	status         Status
	attempt        int
	closed         bool
	generation     int
	reconnectTimer *time.Timer
	hb             *heartbeat
}

// NewClient creates a push connection client. It does not dial until
// Connect is called.
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		cfg:      cfg,
		logger:   logger.With("scope", cfg.ScopeID),
		frames:   make(chan RawFrame, cfg.BufferSize),
		statusCh: make(chan Status, 16),
		errs:     make(chan error, 1),
		status:   StatusDisconnected,
	}
}

// DeriveWSBase maps the REST base URL to the WebSocket origin: a secure
// API origin yields a secure socket scheme.
func DeriveWSBase(apiBaseURL string) (string, error) {
	u, err := url.Parse(apiBaseURL)
	if err != nil {
		return "", fmt.Errorf("parse api base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = ""
	u.RawQuery = ""
	return u.String(), nil
}

// endpoint builds {scheme}://{host}/ws/calendar/{scope}?token={credential}.
func (c *Client) endpoint() (string, error) {
	u, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse ws base url: %w", err)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/calendar/" + c.cfg.ScopeID
	q := u.Query()
	q.Set("token", c.cfg.Token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Connect dials the scope endpoint. On success the client is Connected,
// the attempt counter resets to zero, and the heartbeat starts. A transient
// dial failure schedules a reconnect; an authentication rejection puts the
// client in the terminal Error status.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrAlreadyClosed
	}
	if c.status == StatusConnected || c.status == StatusConnecting {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.setStatusLocked(StatusConnecting)
	c.generation++
	gen := c.generation
	c.mu.Unlock()

	target, err := c.endpoint()
	if err != nil {
		c.fail(gen, err)
		return err
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.HandshakeTimeout,
	}

	conn, resp, err := dialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			c.fail(gen, ErrAuthRejected)
			return ErrAuthRejected
		}
		c.lost(gen, fmt.Errorf("dial: %w", err))
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return ErrAlreadyClosed
	}
	c.conn = conn
	c.attempt = 0
	c.setStatusLocked(StatusConnected)
	hb := newHeartbeat(
		c.cfg.HeartbeatInterval,
		c.cfg.PongTimeout,
		c.sendPing,
		func() { c.lost(gen, ErrLivenessTimeout) },
		c.logger,
	)
	c.hb = hb
	c.mu.Unlock()

	go c.readLoop(conn, gen)
	hb.start()

	c.logger.Debug("websocket connected")

	return nil
}

// Disconnect is the intentional teardown: it synchronously cancels any
// pending reconnect timer and the heartbeat before returning, so no stale
// timer can revive the connection. Idempotent; the client is not reusable
// afterwards.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.generation++
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	hb := c.hb
	c.hb = nil
	conn := c.conn
	c.conn = nil
	c.setStatusLocked(StatusDisconnected)
	c.mu.Unlock()

	if hb != nil {
		hb.stop()
	}
	if conn != nil {
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		conn.Close()
	}
	return nil
}

// Closed reports whether Disconnect has been called.
func (c *Client) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Send writes a message frame. Outbound messages are not buffered: when the
// client is not connected the message is dropped with a warning and the
// caller owns any application-level retry.
func (c *Client) Send(msg model.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	if err := c.write(data); err != nil {
		c.logger.Warn("dropping outbound message, not connected", "type", msg.Type)
		return err
	}
	return nil
}

// PongReceived disarms the heartbeat watchdog. The dispatcher calls this
// for every pong frame; pong frames never reach domain handlers.
func (c *Client) PongReceived() {
	c.mu.Lock()
	hb := c.hb
	c.mu.Unlock()
	if hb != nil {
		hb.pongReceived()
	}
}

// Frames returns the inbound frame channel. The channel stays valid across
// reconnects.
func (c *Client) Frames() <-chan RawFrame {
	return c.frames
}

// StatusChanges returns the status transition channel.
func (c *Client) StatusChanges() <-chan Status {
	return c.statusCh
}

// Errors returns the asynchronous error channel.
func (c *Client) Errors() <-chan error {
	return c.errs
}

// Status returns the current connection status.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Scope returns the calendar id this client serves.
func (c *Client) Scope() string {
	return c.cfg.ScopeID
}

func (c *Client) write(data []byte) error {
	c.mu.Lock()
	conn := c.conn
	status := c.status
	c.mu.Unlock()

	if status != StatusConnected || conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) sendPing() error {
	data, err := json.Marshal(model.Message{
		Type:      model.TypePing,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		return err
	}
	return c.write(data)
}

// readLoop reads frames until the socket dies; each dial gets its own loop,
// identified by generation so a stale loop cannot trigger a second
// transition after the client has moved on.
func (c *Client) readLoop(conn *websocket.Conn, gen int) {
	for {
		_, data, err := conn.ReadMessage()
		receivedAt := time.Now()

		if err != nil {
			if websocket.IsCloseError(err, AuthCloseCode) {
				c.fail(gen, ErrAuthRejected)
				return
			}
			c.lost(gen, err)
			return
		}

		select {
		case c.frames <- RawFrame{Data: data, ReceivedAt: receivedAt}:
		default:
			c.logger.Warn("frame buffer full, dropping frame")
		}
	}
}

// lost handles an unexpected close, a dial failure, or a heartbeat liveness
// failure: the client transitions to Reconnecting (at most once per socket)
// and schedules the next attempt after the backoff delay.
func (c *Client) lost(gen int, cause error) {
	c.mu.Lock()
	if c.closed || gen != c.generation {
		c.mu.Unlock()
		return
	}
	c.generation++
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	hb := c.hb
	c.hb = nil

	if c.cfg.MaxReconnectAttempts > 0 && c.attempt >= c.cfg.MaxReconnectAttempts {
		c.setStatusLocked(StatusError)
		c.mu.Unlock()
		if hb != nil {
			hb.stop()
		}
		c.emitTerminal(ErrMaxReconnects)
		return
	}

	c.setStatusLocked(StatusReconnecting)
	delay := c.cfg.Backoff.DelayFor(c.attempt)
	c.attempt++

	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
	}
	c.reconnectTimer = time.AfterFunc(delay, c.retry)
	c.mu.Unlock()

	if hb != nil {
		hb.stop()
	}

	c.logger.Warn("connection lost, reconnect scheduled",
		"error", cause,
		"delay", delay,
		"attempt", c.attempt,
	)
	c.emitErr(cause)
}

func (c *Client) retry() {
	c.mu.Lock()
	if c.closed || c.status != StatusReconnecting {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	if err := c.Connect(context.Background()); err != nil {
		c.logger.Debug("reconnect attempt failed", "error", err)
	}
}

// fail is the terminal error path: no reconnect is scheduled and the owner
// must re-authenticate before creating a new client.
func (c *Client) fail(gen int, cause error) {
	c.mu.Lock()
	if c.closed || gen != c.generation {
		c.mu.Unlock()
		return
	}
	c.generation++
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	hb := c.hb
	c.hb = nil
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	c.setStatusLocked(StatusError)
	c.mu.Unlock()

	if hb != nil {
		hb.stop()
	}

	c.logger.Error("connection failed", "error", cause)
	c.emitTerminal(cause)
}

// setStatusLocked updates the status and publishes the transition.
// Caller must hold c.mu.
func (c *Client) setStatusLocked(s Status) {
	if c.status == s {
		return
	}
	c.status = s
	select {
	case c.statusCh <- s:
	default:
	}
}

// emitErr publishes a transient error; under backpressure it is dropped,
// the status channel still carries the transition.
func (c *Client) emitErr(err error) {
	select {
	case c.errs <- err:
	default:
	}
}

// emitTerminal publishes an error the owner must not miss. A stale
// transient error is evicted to make room; once the client is terminal it
// emits nothing further, so the loop converges.
func (c *Client) emitTerminal(err error) {
	for {
		select {
		case c.errs <- err:
			return
		default:
		}
		select {
		case <-c.errs:
		default:
		}
	}
}
