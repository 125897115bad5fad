package refetch

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/WeichunK/calenote-sub000/internal/api"
	"github.com/WeichunK/calenote-sub000/internal/cache"
	"github.com/WeichunK/calenote-sub000/internal/model"
)

// Fetcher is the slice of the REST client the refetcher needs.
type Fetcher interface {
	GetEntry(ctx context.Context, id string) (model.Entry, error)
	GetTask(ctx context.Context, id string) (model.Task, error)
	ListEntries(ctx context.Context, f model.EntryFilter) ([]model.Entry, error)
	ListTasks(ctx context.Context, f model.TaskFilter) ([]model.Task, error)
}

// Config holds refetcher configuration.
type Config struct {
	Interval    time.Duration // Sweep interval (default: 5s)
	Concurrency int           // Max concurrent requests (default: 8)
	Timeout     time.Duration // Per-request timeout (default: 10s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:    5 * time.Second,
		Concurrency: 8,
		Timeout:     10 * time.Second,
	}
}

// Refetcher sweeps the staleness set and re-materializes flagged views.
type Refetcher struct {
	cfg    Config
	client Fetcher
	store  *cache.Store
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Refetcher.
func New(cfg Config, client Fetcher, store *cache.Store, logger *slog.Logger) *Refetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Refetcher{
		cfg:    cfg,
		client: client,
		store:  store,
		logger: logger,
	}
}

// Start begins the sweep loop.
func (r *Refetcher) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.run()

	r.logger.Info("stale-view refetcher started",
		"interval", r.cfg.Interval,
		"concurrency", r.cfg.Concurrency,
	)
	return nil
}

// Stop gracefully shuts down the refetcher.
func (r *Refetcher) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("stale-view refetcher stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Refetcher) run() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

// sweep re-fetches every currently stale key concurrently, bounded by the
// configured concurrency.
func (r *Refetcher) sweep() {
	keys := r.store.StaleKeys()
	if len(keys) == 0 {
		return
	}
	start := time.Now()

	sem := make(chan struct{}, r.cfg.Concurrency)
	var wg sync.WaitGroup
	var repaired, failed atomic.Int64

	for _, key := range keys {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-r.ctx.Done():
				return
			}

			if err := r.refetchKey(key); err != nil {
				r.logger.Warn("failed to refetch stale view",
					"key", key,
					"err", err,
				)
				failed.Add(1)
				return
			}
			repaired.Add(1)
		}(key)
	}

	wg.Wait()

	r.logger.Debug("stale sweep complete",
		"stale", len(keys),
		"repaired", repaired.Load(),
		"failed", failed.Load(),
		"duration", time.Since(start),
	)
}

// refetchKey dispatches on the key shape: detail keys carry an id, list keys
// carry the filter that materialized them.
func (r *Refetcher) refetchKey(key string) error {
	ctx, cancel := context.WithTimeout(r.ctx, r.cfg.Timeout)
	defer cancel()

	switch {
	case strings.HasPrefix(key, cache.PrefixTaskDetail):
		id := strings.TrimPrefix(key, cache.PrefixTaskDetail)
		t, err := r.client.GetTask(ctx, id)
		if err != nil {
			if errors.Is(err, api.ErrNotFound) {
				r.store.RemoveTask(id)
				return nil
			}
			return err
		}
		r.store.SetTaskDetail(t)

	case strings.HasPrefix(key, cache.PrefixEntryDetail):
		id := strings.TrimPrefix(key, cache.PrefixEntryDetail)
		e, err := r.client.GetEntry(ctx, id)
		if err != nil {
			if errors.Is(err, api.ErrNotFound) {
				r.store.RemoveEntry(id)
				return nil
			}
			return err
		}
		r.store.SetEntryDetail(e)

	case strings.HasPrefix(key, cache.PrefixTasks):
		f, ok := cache.ParseTaskListKey(key)
		if !ok {
			r.logger.Warn("unparseable stale key, skipping", "key", key)
			return nil
		}
		tasks, err := r.client.ListTasks(ctx, f)
		if err != nil {
			return err
		}
		r.store.SetTaskList(f, tasks)

	case strings.HasPrefix(key, cache.PrefixEntries):
		f, ok := cache.ParseEntryListKey(key)
		if !ok {
			r.logger.Warn("unparseable stale key, skipping", "key", key)
			return nil
		}
		entries, err := r.client.ListEntries(ctx, f)
		if err != nil {
			return err
		}
		r.store.SetEntryList(f, entries)

	default:
		r.logger.Warn("stale key with unknown shape, skipping", "key", key)
	}
	return nil
}
