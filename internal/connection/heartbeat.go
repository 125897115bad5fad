package connection

import (
	"log/slog"
	"sync"
	"time"
)

// heartbeat detects silently-dead connections. Every interval it invokes
// the send primitive with a ping frame and arms a watchdog; a pong received
// before the watchdog fires disarms it, otherwise onFailure runs exactly
// once and the heartbeat stops itself.
type heartbeat struct {
	interval time.Duration
	timeout  time.Duration

	send      func() error
	onFailure func()
	logger    *slog.Logger

	mu       sync.Mutex
	watchdog *time.Timer
	stopped  bool
	stopCh   chan struct{}
}

func newHeartbeat(interval, timeout time.Duration, send func() error, onFailure func(), logger *slog.Logger) *heartbeat {
	return &heartbeat{
		interval:  interval,
		timeout:   timeout,
		send:      send,
		onFailure: onFailure,
		logger:    logger,
		stopCh:    make(chan struct{}),
	}
}

// start launches the ping loop goroutine.
func (h *heartbeat) start() {
	go h.run()
}

func (h *heartbeat) run() {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stopCh:
			return
		case <-ticker.C:
			if err := h.send(); err != nil {
				h.logger.Debug("failed to send ping", "error", err)
				// The read side reports the broken socket; the
				// heartbeat only watches for missing pongs.
				continue
			}
			h.arm()
		}
	}
}

// arm starts the pong watchdog. While a ping is still unanswered the
// existing watchdog keeps running; re-arming on every ping would push the
// deadline out indefinitely whenever the timeout exceeds the interval.
func (h *heartbeat) arm() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped || h.watchdog != nil {
		return
	}
	h.watchdog = time.AfterFunc(h.timeout, h.expire)
}

func (h *heartbeat) expire() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	close(h.stopCh)
	h.mu.Unlock()

	h.logger.Warn("no pong within watchdog window, liveness failed",
		"timeout", h.timeout,
	)
	h.onFailure()
}

// pongReceived disarms the watchdog.
func (h *heartbeat) pongReceived() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.watchdog != nil {
		h.watchdog.Stop()
		h.watchdog = nil
	}
}

// stop cancels the ping loop and watchdog synchronously. Idempotent.
func (h *heartbeat) stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return
	}
	h.stopped = true
	close(h.stopCh)
	if h.watchdog != nil {
		h.watchdog.Stop()
		h.watchdog = nil
	}
}
