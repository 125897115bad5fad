package optimistic

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/WeichunK/calenote-sub000/internal/cache"
	"github.com/WeichunK/calenote-sub000/internal/model"
)

// TempIDPrefix marks provisional ids synthesized for optimistic creates.
// The provisional entity is replaced, never duplicated, once the
// authoritative id is known.
const TempIDPrefix = "temp-"

// EntryWriter is the slice of the REST client the coordinator needs for
// entry mutations.
type EntryWriter interface {
	CreateEntry(ctx context.Context, in model.EntryCreate) (model.Entry, error)
	UpdateEntry(ctx context.Context, id string, in model.EntryUpdate) (model.Entry, error)
	DeleteEntry(ctx context.Context, id string) error
	CompleteEntry(ctx context.Context, id string, completed bool) (model.Entry, error)
}

// TaskWriter is the slice of the REST client the coordinator needs for
// task mutations.
type TaskWriter interface {
	CreateTask(ctx context.Context, in model.TaskCreate) (model.Task, error)
	UpdateTask(ctx context.Context, id string, in model.TaskUpdate) (model.Task, error)
	DeleteTask(ctx context.Context, id string) error
	ArchiveTask(ctx context.Context, id string) (model.Task, error)
}

// Coordinator applies optimistic patches to the store and reconciles them
// with authoritative results. It shares the store with the push reconciler;
// both converge on id-keyed merges, so a push for the same logical change
// arriving before, during, or after the round trip cannot duplicate an
// entity.
type Coordinator struct {
	store   *cache.Store
	entries EntryWriter
	tasks   TaskWriter
	logger  *slog.Logger

	now func() time.Time
}

// NewCoordinator creates a Coordinator over store.
func NewCoordinator(store *cache.Store, entries EntryWriter, tasks TaskWriter, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		store:   store,
		entries: entries,
		tasks:   tasks,
		logger:  logger,
		now:     time.Now,
	}
}

func tempID() string {
	return TempIDPrefix + uuid.NewString()
}

// CreateEntry inserts a provisional entry under a temporary id, then swaps
// it for the authoritative entity. On failure the snapshot is restored and
// the error reported; the cache is never left with the provisional entity.
func (c *Coordinator) CreateEntry(ctx context.Context, in model.EntryCreate) (model.Entry, error) {
	pending := c.store.SnapshotEntries()

	id := tempID()
	c.store.InsertEntry(c.provisionalEntry(id, in))

	authoritative, err := c.entries.CreateEntry(ctx, in)
	if err != nil {
		c.store.Restore(pending)
		c.logger.Warn("optimistic create rolled back", "temp_id", id, "error", err)
		return model.Entry{}, fmt.Errorf("create entry: %w", err)
	}

	c.store.ReplaceEntryID(id, authoritative)
	if in.TaskID != nil {
		c.store.InvalidateTask(*in.TaskID)
	}
	return authoritative, nil
}

// UpdateEntry overwrites the cached entity in place, then reconciles with
// the authoritative result.
func (c *Coordinator) UpdateEntry(ctx context.Context, id string, in model.EntryUpdate) (model.Entry, error) {
	pending := c.store.SnapshotEntries()

	if cur, ok := c.store.LookupEntry(id); ok {
		c.store.MergeEntry(in.Apply(cur))
	}

	authoritative, err := c.entries.UpdateEntry(ctx, id, in)
	if err != nil {
		c.store.Restore(pending)
		c.logger.Warn("optimistic update rolled back", "id", id, "error", err)
		return model.Entry{}, fmt.Errorf("update entry: %w", err)
	}

	c.store.MergeEntry(authoritative)
	return authoritative, nil
}

// DeleteEntry removes the entry from every projection, then confirms with
// the server.
func (c *Coordinator) DeleteEntry(ctx context.Context, id string) error {
	pending := c.store.SnapshotEntries()

	var owningTask *string
	if cur, ok := c.store.LookupEntry(id); ok {
		owningTask = cur.TaskID
	}
	c.store.RemoveEntry(id)

	if err := c.entries.DeleteEntry(ctx, id); err != nil {
		c.store.Restore(pending)
		c.logger.Warn("optimistic delete rolled back", "id", id, "error", err)
		return fmt.Errorf("delete entry: %w", err)
	}

	if owningTask != nil {
		c.store.InvalidateTask(*owningTask)
	}
	return nil
}

// CompleteEntry toggles the completion flag optimistically. The owning
// task's aggregates are server-computed, so its projections are flagged
// stale on success rather than patched.
func (c *Coordinator) CompleteEntry(ctx context.Context, id string, completed bool) (model.Entry, error) {
	pending := c.store.SnapshotEntries()

	var owningTask *string
	if cur, ok := c.store.LookupEntry(id); ok {
		owningTask = cur.TaskID
		cur.IsCompleted = completed
		if completed {
			now := c.now()
			cur.CompletedAt = &now
		} else {
			cur.CompletedAt = nil
			cur.CompletedBy = nil
		}
		c.store.MergeEntry(cur)
	}

	authoritative, err := c.entries.CompleteEntry(ctx, id, completed)
	if err != nil {
		c.store.Restore(pending)
		c.logger.Warn("optimistic complete rolled back", "id", id, "error", err)
		return model.Entry{}, fmt.Errorf("complete entry: %w", err)
	}

	c.store.MergeEntry(authoritative)
	if owningTask != nil {
		c.store.InvalidateTask(*owningTask)
	}
	return authoritative, nil
}

// CreateTask inserts a provisional task under a temporary id, then swaps it
// for the authoritative entity.
func (c *Coordinator) CreateTask(ctx context.Context, in model.TaskCreate) (model.Task, error) {
	pending := c.store.SnapshotTasks()

	id := tempID()
	c.store.InsertTask(c.provisionalTask(id, in))

	authoritative, err := c.tasks.CreateTask(ctx, in)
	if err != nil {
		c.store.Restore(pending)
		c.logger.Warn("optimistic task create rolled back", "temp_id", id, "error", err)
		return model.Task{}, fmt.Errorf("create task: %w", err)
	}

	c.store.ReplaceTaskID(id, authoritative)
	return authoritative, nil
}

// UpdateTask overwrites the cached task in place, then reconciles with the
// authoritative result.
func (c *Coordinator) UpdateTask(ctx context.Context, id string, in model.TaskUpdate) (model.Task, error) {
	pending := c.store.SnapshotTasks()

	if cur, ok := c.store.LookupTask(id); ok {
		patched := in.Apply(cur)
		c.store.MergeTask(patched)
		c.store.RemoveTaskFromNonMatching(patched)
	}

	authoritative, err := c.tasks.UpdateTask(ctx, id, in)
	if err != nil {
		c.store.Restore(pending)
		c.logger.Warn("optimistic task update rolled back", "id", id, "error", err)
		return model.Task{}, fmt.Errorf("update task: %w", err)
	}

	c.store.MergeTask(authoritative)
	return authoritative, nil
}

// DeleteTask removes the task from every projection, then confirms with the
// server.
func (c *Coordinator) DeleteTask(ctx context.Context, id string) error {
	pending := c.store.SnapshotTasks()
	c.store.RemoveTask(id)

	if err := c.tasks.DeleteTask(ctx, id); err != nil {
		c.store.Restore(pending)
		c.logger.Warn("optimistic task delete rolled back", "id", id, "error", err)
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

// ArchiveTask marks the task archived optimistically, dropping it from
// projections that exclude archived tasks.
func (c *Coordinator) ArchiveTask(ctx context.Context, id string) (model.Task, error) {
	pending := c.store.SnapshotTasks()

	if cur, ok := c.store.LookupTask(id); ok {
		cur.Status = model.TaskStatusArchived
		c.store.MergeTask(cur)
		c.store.RemoveTaskFromNonMatching(cur)
	}

	authoritative, err := c.tasks.ArchiveTask(ctx, id)
	if err != nil {
		c.store.Restore(pending)
		c.logger.Warn("optimistic task archive rolled back", "id", id, "error", err)
		return model.Task{}, fmt.Errorf("archive task: %w", err)
	}

	c.store.MergeTask(authoritative)
	return authoritative, nil
}

func (c *Coordinator) provisionalEntry(id string, in model.EntryCreate) model.Entry {
	now := c.now()
	entryType := in.EntryType
	if entryType == "" {
		entryType = model.EntryTypeNote
	}
	return model.Entry{
		ID:           id,
		CalendarID:   in.CalendarID,
		TaskID:       in.TaskID,
		Title:        in.Title,
		Content:      in.Content,
		EntryType:    entryType,
		Timestamp:    in.Timestamp,
		EndTimestamp: in.EndTimestamp,
		IsAllDay:     in.IsAllDay,
		Color:        in.Color,
		Tags:         in.Tags,
		Priority:     in.Priority,
		ReminderTime: in.ReminderTime,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (c *Coordinator) provisionalTask(id string, in model.TaskCreate) model.Task {
	now := c.now()
	return model.Task{
		ID:          id,
		CalendarID:  in.CalendarID,
		Title:       in.Title,
		Description: in.Description,
		DueDate:     in.DueDate,
		Status:      model.TaskStatusActive,
		Color:       in.Color,
		Icon:        in.Icon,
		Position:    in.Position,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
