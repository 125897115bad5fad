package router

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/WeichunK/calenote-sub000/internal/connection"
	"github.com/WeichunK/calenote-sub000/internal/model"
)

// Handler processes one decoded message for a single tag.
type Handler func(msg model.Message) error

// Stats contains runtime statistics.
type Stats struct {
	Received    int64
	Dispatched  int64
	Pongs       int64
	ParseErrors int64
	Unknown     int64
}

// Dispatcher routes decoded frames to per-tag handlers. The handler table
// is closed after Start; registration happens during wiring.
type Dispatcher struct {
	logger *slog.Logger

	input    <-chan connection.RawFrame
	handlers map[string]Handler
	onPong   func()
	onPing   func()

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	stats Stats
}

// NewDispatcher creates a Dispatcher reading from input.
func NewDispatcher(input <-chan connection.RawFrame, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		logger:   logger,
		input:    input,
		handlers: make(map[string]Handler),
	}
}

// Handle registers the handler for a message tag. Must be called before
// Start.
func (d *Dispatcher) Handle(tag string, h Handler) {
	d.handlers[tag] = h
}

// OnPong sets the heartbeat acknowledgement callback. Must be called before
// Start.
func (d *Dispatcher) OnPong(fn func()) {
	d.onPong = fn
}

// OnPing sets the callback for server-originated pings, typically wired to
// send a pong back. Must be called before Start.
func (d *Dispatcher) OnPing(fn func()) {
	d.onPing = fn
}

// Start begins dispatching messages.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.ctx, d.cancel = context.WithCancel(ctx)

	d.wg.Add(1)
	go d.dispatchLoop()

	d.logger.Info("message dispatcher started", "handlers", len(d.handlers))
	return nil
}

// Stop gracefully shuts down the dispatcher.
func (d *Dispatcher) Stop(ctx context.Context) error {
	if d.cancel != nil {
		d.cancel()
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("message dispatcher stopped")
	case <-ctx.Done():
		d.logger.Warn("message dispatcher stop timed out")
	}
	return nil
}

// CurrentStats returns a snapshot of the dispatch counters.
func (d *Dispatcher) CurrentStats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

func (d *Dispatcher) dispatchLoop() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return
		case frame, ok := <-d.input:
			if !ok {
				return
			}
			d.Dispatch(frame.Data)
		}
	}
}

// Dispatch decodes and routes a single raw frame.
func (d *Dispatcher) Dispatch(data []byte) {
	d.count(func(s *Stats) { s.Received++ })

	var msg model.Message
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
		d.logger.Warn("discarding malformed frame", "error", err)
		d.count(func(s *Stats) { s.ParseErrors++ })
		return
	}

	if msg.Type == model.TypePong {
		d.count(func(s *Stats) { s.Pongs++ })
		if d.onPong != nil {
			d.onPong()
		}
		return
	}

	if msg.Type == model.TypePing {
		if d.onPing != nil {
			d.onPing()
		}
		return
	}

	h, ok := d.handlers[msg.Type]
	if !ok {
		// Forward compatible: servers may add tags this client does not
		// know yet.
		d.logger.Debug("no handler for message type, discarding", "type", msg.Type)
		d.count(func(s *Stats) { s.Unknown++ })
		return
	}

	if err := h(msg); err != nil {
		d.logger.Warn("handler failed", "type", msg.Type, "error", err)
		return
	}
	d.count(func(s *Stats) { s.Dispatched++ })
}

func (d *Dispatcher) count(apply func(*Stats)) {
	d.mu.Lock()
	apply(&d.stats)
	d.mu.Unlock()
}
