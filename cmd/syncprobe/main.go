// syncprobe connects to a calendar's push endpoint and mirrors server state
// into the local cache, printing sync activity to the console.
// Usage: go run ./cmd/syncprobe --config configs/sync.example.yaml --calendar <calendar-id>
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/WeichunK/calenote-sub000/internal/api"
	"github.com/WeichunK/calenote-sub000/internal/cache"
	"github.com/WeichunK/calenote-sub000/internal/config"
	"github.com/WeichunK/calenote-sub000/internal/connection"
	"github.com/WeichunK/calenote-sub000/internal/model"
	"github.com/WeichunK/calenote-sub000/internal/optimistic"
	"github.com/WeichunK/calenote-sub000/internal/refetch"
	"github.com/WeichunK/calenote-sub000/internal/router"
	"github.com/WeichunK/calenote-sub000/internal/session"
	"github.com/WeichunK/calenote-sub000/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/sync.example.yaml", "path to config file")
	calendarID := flag.String("calendar", "", "calendar id to sync (required)")
	noteTitle := flag.String("note", "", "optimistically create a note entry with this title after connecting")
	completeID := flag.String("complete-entry", "", "optimistically mark this entry completed after connecting")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))

	logger.Info("syncprobe starting", "version", version.String())

	if *calendarID == "" {
		logger.Error("--calendar is required")
		os.Exit(1)
	}

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	provider, err := session.FromConfig(cfg.Auth)
	if err != nil {
		logger.Error("failed to load credential", "error", err)
		os.Exit(1)
	}
	holder := session.NewHolder(provider)

	if token, err := holder.Token(); err == nil {
		if claims, err := session.ParseClaims(token); err == nil {
			if claims.Expired(time.Now()) {
				logger.Warn("bearer token is expired; server will reject the connection",
					"expired_at", claims.ExpiresAt,
				)
			} else {
				logger.Info("authenticated", "user_id", claims.UserID, "expires_at", claims.ExpiresAt)
			}
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	apiClient := api.NewClient(cfg.API.BaseURL, holder,
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, time.Second),
		api.WithLogger(logger),
	)

	store := cache.NewStore()
	reconciler := cache.NewReconciler(store, logger)
	registry := connection.NewRegistry(logger)
	defer registry.DisconnectAll()

	wsBase := cfg.WS.URL
	if wsBase == "" {
		wsBase, err = connection.DeriveWSBase(cfg.API.BaseURL)
		if err != nil {
			logger.Error("failed to derive websocket url", "error", err)
			os.Exit(1)
		}
	}

	probe := &probe{
		cfg:         cfg,
		wsBase:      wsBase,
		holder:      holder,
		api:         apiClient,
		store:       store,
		reconciler:  reconciler,
		registry:    registry,
		coordinator: optimistic.NewCoordinator(store, apiClient, apiClient, logger),
		noteTitle:   *noteTitle,
		completeID:  *completeID,
		logger:      logger,
	}

	refetcher := refetch.New(refetch.DefaultConfig(), apiClient, store, logger)
	if err := refetcher.Start(ctx); err != nil {
		logger.Error("failed to start refetcher", "error", err)
		os.Exit(1)
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		refetcher.Stop(stopCtx)
	}()

	holder.SetScope(*calendarID)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return probe.supervise(gctx) })
	g.Go(func() error { return probe.printStats(gctx) })

	if err := g.Wait(); err != nil {
		logger.Error("syncprobe failed", "error", err)
		os.Exit(1)
	}
	logger.Info("syncprobe stopped")
}

// probe wires one scope at a time: client, dispatcher, reconciler, and the
// initial projection fetch.
type probe struct {
	cfg         *config.SyncConfig
	wsBase      string
	holder      *session.Holder
	api         *api.Client
	store       *cache.Store
	reconciler  *cache.Reconciler
	registry    *connection.Registry
	coordinator *optimistic.Coordinator
	noteTitle   string
	completeID  string
	logger      *slog.Logger

	dispatcher atomic.Pointer[router.Dispatcher]
	wrote      sync.Once
}

// supervise attaches to the initial scope and re-attaches on every scope
// change until the context ends.
func (p *probe) supervise(ctx context.Context) error {
	if err := p.attach(ctx, p.holder.Scope()); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			p.detach()
			return nil
		case change := <-p.holder.Changes():
			p.logger.Info("switching calendar", "old", change.Old, "new", change.New)
			p.detach()
			if err := p.attach(ctx, change.New); err != nil {
				return err
			}
		}
	}
}

func (p *probe) attach(ctx context.Context, scope string) error {
	token, err := p.holder.Token()
	if err != nil {
		return fmt.Errorf("credential for scope %s: %w", scope, err)
	}

	client := p.registry.GetOrCreate(scope, connection.ClientConfig{
		BaseURL:           p.wsBase,
		Token:             token,
		HandshakeTimeout:  p.cfg.WS.HandshakeTimeout,
		WriteTimeout:      p.cfg.WS.WriteTimeout,
		HeartbeatInterval: p.cfg.WS.HeartbeatInterval,
		PongTimeout:       p.cfg.WS.PongTimeout,
		Backoff: connection.BackoffPolicy{
			Base: p.cfg.WS.ReconnectBaseDelay,
			Cap:  p.cfg.WS.ReconnectMaxDelay,
		},
		MaxReconnectAttempts: p.cfg.WS.MaxReconnectAttempts,
		BufferSize:           p.cfg.WS.BufferSize,
	})

	d := router.NewDispatcher(client.Frames(), p.logger)
	d.OnPong(client.PongReceived)
	d.OnPing(func() {
		client.Send(model.Message{Type: model.TypePong, Timestamp: time.Now().UnixMilli()})
	})
	p.reconciler.Bind(d)
	if err := d.Start(ctx); err != nil {
		return fmt.Errorf("start dispatcher: %w", err)
	}
	p.dispatcher.Store(d)

	if err := client.Connect(ctx); err != nil {
		p.logger.Warn("initial connect failed", "scope", scope, "error", err)
	}

	// Materialize the baseline projections; pushes reconcile against these.
	entryFilter := model.EntryFilter{CalendarID: scope}
	entries, err := p.api.ListEntries(ctx, entryFilter)
	if err != nil {
		p.logger.Warn("failed to fetch entries", "error", err)
	} else {
		p.store.SetEntryList(entryFilter, entries)
		p.logger.Info("entries materialized", "count", len(entries))
	}

	taskFilter := model.TaskFilter{CalendarID: scope}
	tasks, err := p.api.ListTasks(ctx, taskFilter)
	if err != nil {
		p.logger.Warn("failed to fetch tasks", "error", err)
	} else {
		p.store.SetTaskList(taskFilter, tasks)
		p.logger.Info("tasks materialized", "count", len(tasks))
	}

	p.wrote.Do(func() { p.runWrites(ctx, scope) })

	return nil
}

// runWrites performs the requested optimistic mutations against the first
// attached scope. The write lands in the cache immediately; the server's
// broadcast of the same change then deduplicates against it.
func (p *probe) runWrites(ctx context.Context, scope string) {
	if p.noteTitle != "" {
		entry, err := p.coordinator.CreateEntry(ctx, model.EntryCreate{
			CalendarID: scope,
			Title:      p.noteTitle,
			EntryType:  model.EntryTypeNote,
		})
		if err != nil {
			p.logger.Error("note creation rolled back", "error", err)
		} else {
			p.logger.Info("note created", "entry_id", entry.ID)
		}
	}

	if p.completeID != "" {
		entry, err := p.coordinator.CompleteEntry(ctx, p.completeID, true)
		if err != nil {
			p.logger.Error("entry completion rolled back", "entry_id", p.completeID, "error", err)
		} else {
			p.logger.Info("entry completed", "entry_id", entry.ID, "completed_at", entry.CompletedAt)
		}
	}
}

func (p *probe) detach() {
	if d := p.dispatcher.Swap(nil); d != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		d.Stop(stopCtx)
	}
}

func (p *probe) printStats(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			status := "none"
			if client, ok := p.registry.Current(); ok {
				status = client.Status().String()
			}

			var stats router.Stats
			if d := p.dispatcher.Load(); d != nil {
				stats = d.CurrentStats()
			}

			p.logger.Info("sync stats",
				"connection", status,
				"received", stats.Received,
				"dispatched", stats.Dispatched,
				"pongs", stats.Pongs,
				"unknown", stats.Unknown,
				"stale_keys", len(p.store.StaleKeys()),
				"collaborators", len(p.store.Presences()),
			)
		}
	}
}
