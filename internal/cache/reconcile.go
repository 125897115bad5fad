package cache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/WeichunK/calenote-sub000/internal/model"
	"github.com/WeichunK/calenote-sub000/internal/router"
)

// Reconciler merges server pushes into the Store. One handler per
// lifecycle tag; side effects are confined to the cache, handlers never
// touch the network.
type Reconciler struct {
	store  *Store
	logger *slog.Logger
}

// NewReconciler creates a Reconciler over store.
func NewReconciler(store *Store, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{store: store, logger: logger}
}

// Bind registers every handler into the dispatcher's tag table.
func (r *Reconciler) Bind(d *router.Dispatcher) {
	d.Handle(model.TypeConnectionEstablished, r.handleEstablished)

	d.Handle(model.TypeEntryCreated, r.handleEntryCreated)
	d.Handle(model.TypeEntryUpdated, r.handleEntryUpdated)
	d.Handle(model.TypeEntryDeleted, r.handleEntryDeleted)
	d.Handle(model.TypeEntryCompleted, r.handleEntryCompleted)

	d.Handle(model.TypeTaskCreated, r.handleTaskCreated)
	d.Handle(model.TypeTaskUpdated, r.handleTaskUpdated)
	d.Handle(model.TypeTaskDeleted, r.handleTaskDeleted)
	d.Handle(model.TypeTaskCompleted, r.handleTaskCompleted)
	d.Handle(model.TypeTaskArchived, r.handleTaskArchived)

	d.Handle(model.TypeUserTyping, r.handleTyping)
	d.Handle(model.TypeUserCursor, r.handleCursor)
	d.Handle(model.TypeUserDisconnected, r.handleUserDisconnected)
}

func (r *Reconciler) handleEstablished(msg model.Message) error {
	var est model.Established
	if err := json.Unmarshal(msg.Data, &est); err != nil {
		return fmt.Errorf("decode connection:established: %w", err)
	}
	r.store.SetEstablished(est)
	r.logger.Info("connection established",
		"calendar_id", est.CalendarID,
		"subscribers", est.Subscribers,
	)
	return nil
}

func (r *Reconciler) handleEntryCreated(msg model.Message) error {
	var e model.Entry
	if err := json.Unmarshal(msg.Data, &e); err != nil {
		return fmt.Errorf("decode entry:created: %w", err)
	}
	// InsertEntry dedupes by id, so an optimistic copy already finalized
	// under the same id is not duplicated.
	r.store.InsertEntry(e)
	if e.TaskID != nil {
		r.store.InvalidateTask(*e.TaskID)
	}
	return nil
}

func (r *Reconciler) handleEntryUpdated(msg model.Message) error {
	var change model.EntryChange
	if err := json.Unmarshal(msg.Data, &change); err != nil {
		return fmt.Errorf("decode entry:updated: %w", err)
	}

	cur, ok := r.store.LookupEntry(change.ID)
	if !ok {
		// Not materialized anywhere on this client; nothing to update.
		r.logger.Debug("entry:updated for unknown entry", "id", change.ID)
		return nil
	}
	r.store.MergeEntry(change.Changes.Apply(cur))
	return nil
}

func (r *Reconciler) handleEntryDeleted(msg model.Message) error {
	var del model.Deleted
	if err := json.Unmarshal(msg.Data, &del); err != nil {
		return fmt.Errorf("decode entry:deleted: %w", err)
	}

	// The owning task's entry counts changed server-side; flag it before
	// the entry (and its task linkage) disappears from the cache.
	if cur, ok := r.store.LookupEntry(del.ID); ok && cur.TaskID != nil {
		r.store.InvalidateTask(*cur.TaskID)
	}
	r.store.RemoveEntry(del.ID)
	return nil
}

func (r *Reconciler) handleEntryCompleted(msg model.Message) error {
	var done model.Completed
	if err := json.Unmarshal(msg.Data, &done); err != nil {
		return fmt.Errorf("decode entry:completed: %w", err)
	}

	cur, ok := r.store.LookupEntry(done.ID)
	if !ok {
		return nil
	}
	cur.IsCompleted = done.IsCompleted
	if !done.IsCompleted {
		cur.CompletedAt = nil
		cur.CompletedBy = nil
	} else if cur.CompletedAt == nil {
		now := time.Now()
		cur.CompletedAt = &now
	}
	r.store.MergeEntry(cur)

	// Completion tallies on the owning task are computed server-side and
	// are not carried by the push, so the task must be refetched.
	if cur.TaskID != nil {
		r.store.InvalidateTask(*cur.TaskID)
	}
	return nil
}

func (r *Reconciler) handleTaskCreated(msg model.Message) error {
	var t model.Task
	if err := json.Unmarshal(msg.Data, &t); err != nil {
		return fmt.Errorf("decode task:created: %w", err)
	}
	r.store.InsertTask(t)
	return nil
}

func (r *Reconciler) handleTaskUpdated(msg model.Message) error {
	var change model.TaskChange
	if err := json.Unmarshal(msg.Data, &change); err != nil {
		return fmt.Errorf("decode task:updated: %w", err)
	}

	cur, ok := r.store.LookupTask(change.ID)
	if !ok {
		r.logger.Debug("task:updated for unknown task", "id", change.ID)
		return nil
	}
	r.store.MergeTask(change.Changes.Apply(cur))
	return nil
}

func (r *Reconciler) handleTaskDeleted(msg model.Message) error {
	var del model.Deleted
	if err := json.Unmarshal(msg.Data, &del); err != nil {
		return fmt.Errorf("decode task:deleted: %w", err)
	}
	r.store.RemoveTask(del.ID)
	return nil
}

func (r *Reconciler) handleTaskCompleted(msg model.Message) error {
	var done model.Completed
	if err := json.Unmarshal(msg.Data, &done); err != nil {
		return fmt.Errorf("decode task:completed: %w", err)
	}

	cur, ok := r.store.LookupTask(done.ID)
	if !ok {
		return nil
	}
	if done.IsCompleted {
		cur.Status = model.TaskStatusCompleted
		if cur.CompletedAt == nil {
			now := time.Now()
			cur.CompletedAt = &now
		}
	} else {
		cur.Status = model.TaskStatusActive
		cur.CompletedAt = nil
	}
	r.store.MergeTask(cur)
	r.store.RemoveTaskFromNonMatching(cur)
	return nil
}

func (r *Reconciler) handleTaskArchived(msg model.Message) error {
	var arch model.Archived
	if err := json.Unmarshal(msg.Data, &arch); err != nil {
		return fmt.Errorf("decode task:archived: %w", err)
	}

	cur, ok := r.store.LookupTask(arch.ID)
	if !ok {
		return nil
	}
	cur.Status = model.TaskStatusArchived
	r.store.MergeTask(cur)
	r.store.RemoveTaskFromNonMatching(cur)
	return nil
}

func (r *Reconciler) handleTyping(msg model.Message) error {
	var typing model.Typing
	if err := json.Unmarshal(msg.Data, &typing); err != nil {
		return fmt.Errorf("decode user:typing: %w", err)
	}
	r.store.SetPresence(Presence{
		UserID:   typing.UserID,
		EntryID:  typing.EntryID,
		Typing:   true,
		LastSeen: time.Now(),
	})
	return nil
}

func (r *Reconciler) handleCursor(msg model.Message) error {
	var cursor model.Cursor
	if err := json.Unmarshal(msg.Data, &cursor); err != nil {
		return fmt.Errorf("decode user:cursor: %w", err)
	}
	r.store.SetPresence(Presence{
		UserID:   cursor.UserID,
		EntryID:  cursor.EntryID,
		Position: cursor.Position,
		LastSeen: time.Now(),
	})
	return nil
}

func (r *Reconciler) handleUserDisconnected(msg model.Message) error {
	var gone model.Disconnected
	if err := json.Unmarshal(msg.Data, &gone); err != nil {
		return fmt.Errorf("decode user:disconnected: %w", err)
	}
	r.store.RemovePresence(gone.UserID)
	return nil
}
