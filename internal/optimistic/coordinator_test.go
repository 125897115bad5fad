package optimistic

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WeichunK/calenote-sub000/internal/cache"
	"github.com/WeichunK/calenote-sub000/internal/model"
)

var errServer = errors.New("server unavailable")

// writerStub implements EntryWriter and TaskWriter through per-call hooks so
// tests can observe the cache state mid round trip.
type writerStub struct {
	createEntry   func(in model.EntryCreate) (model.Entry, error)
	updateEntry   func(id string, in model.EntryUpdate) (model.Entry, error)
	deleteEntry   func(id string) error
	completeEntry func(id string, completed bool) (model.Entry, error)

	createTask  func(in model.TaskCreate) (model.Task, error)
	updateTask  func(id string, in model.TaskUpdate) (model.Task, error)
	deleteTask  func(id string) error
	archiveTask func(id string) (model.Task, error)
}

func (w *writerStub) CreateEntry(_ context.Context, in model.EntryCreate) (model.Entry, error) {
	return w.createEntry(in)
}

func (w *writerStub) UpdateEntry(_ context.Context, id string, in model.EntryUpdate) (model.Entry, error) {
	return w.updateEntry(id, in)
}

func (w *writerStub) DeleteEntry(_ context.Context, id string) error {
	return w.deleteEntry(id)
}

func (w *writerStub) CompleteEntry(_ context.Context, id string, completed bool) (model.Entry, error) {
	return w.completeEntry(id, completed)
}

func (w *writerStub) CreateTask(_ context.Context, in model.TaskCreate) (model.Task, error) {
	return w.createTask(in)
}

func (w *writerStub) UpdateTask(_ context.Context, id string, in model.TaskUpdate) (model.Task, error) {
	return w.updateTask(id, in)
}

func (w *writerStub) DeleteTask(_ context.Context, id string) error {
	return w.deleteTask(id)
}

func (w *writerStub) ArchiveTask(_ context.Context, id string) (model.Task, error) {
	return w.archiveTask(id)
}

func newTestCoordinator(store *cache.Store, w *writerStub) *Coordinator {
	logger := slog.New(slog.NewTextHandler(testWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewCoordinator(store, w, w, logger)
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

func testEntry(id, calendarID string, at time.Time) model.Entry {
	return model.Entry{
		ID:         id,
		CalendarID: calendarID,
		Title:      "entry " + id,
		EntryType:  model.EntryTypeNote,
		CreatedAt:  at,
		UpdatedAt:  at,
	}
}

func testTask(id, calendarID string, at time.Time) model.Task {
	return model.Task{
		ID:         id,
		CalendarID: calendarID,
		Title:      "task " + id,
		Status:     model.TaskStatusActive,
		CreatedAt:  at,
		UpdatedAt:  at,
	}
}

func TestCreateEntrySwapsTempID(t *testing.T) {
	store := cache.NewStore()
	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	filter := model.EntryFilter{CalendarID: "cal-1"}
	store.SetEntryList(filter, []model.Entry{testEntry("e-1", "cal-1", base)})

	authoritative := testEntry("e-2", "cal-1", base.Add(time.Minute))
	w := &writerStub{
		createEntry: func(in model.EntryCreate) (model.Entry, error) {
			// The provisional copy must already be visible while the
			// request is in flight.
			list, ok := store.EntryList(filter)
			require.True(t, ok)
			require.Len(t, list, 2)
			assert.True(t, strings.HasPrefix(list[0].ID, TempIDPrefix))
			return authoritative, nil
		},
	}
	c := newTestCoordinator(store, w)

	got, err := c.CreateEntry(context.Background(), model.EntryCreate{CalendarID: "cal-1", Title: "entry e-2"})
	require.NoError(t, err)
	assert.Equal(t, "e-2", got.ID)

	list, ok := store.EntryList(filter)
	require.True(t, ok)
	require.Len(t, list, 2)
	assert.Equal(t, "e-2", list[0].ID)
	for _, e := range list {
		assert.False(t, strings.HasPrefix(e.ID, TempIDPrefix), "temporary id survived reconciliation")
	}

	_, ok = store.EntryDetail("e-2")
	assert.True(t, ok)
}

func TestCreateEntryRollbackRestoresVerbatim(t *testing.T) {
	store := cache.NewStore()
	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	filter := model.EntryFilter{CalendarID: "cal-1"}
	seeded := []model.Entry{testEntry("e-1", "cal-1", base), testEntry("e-0", "cal-1", base.Add(-time.Hour))}
	store.SetEntryList(filter, seeded)

	w := &writerStub{
		createEntry: func(model.EntryCreate) (model.Entry, error) {
			return model.Entry{}, errServer
		},
	}
	c := newTestCoordinator(store, w)

	_, err := c.CreateEntry(context.Background(), model.EntryCreate{CalendarID: "cal-1", Title: "doomed"})
	require.ErrorIs(t, err, errServer)

	list, ok := store.EntryList(filter)
	require.True(t, ok)
	assert.Equal(t, seeded, list)
}

func TestCreateEntryPushArrivedFirst(t *testing.T) {
	store := cache.NewStore()
	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	filter := model.EntryFilter{CalendarID: "cal-1"}
	store.SetEntryList(filter, nil)

	authoritative := testEntry("e-9", "cal-1", base)
	w := &writerStub{
		createEntry: func(model.EntryCreate) (model.Entry, error) {
			// Simulate the push for the same create landing before the
			// response does.
			store.InsertEntry(authoritative)
			return authoritative, nil
		},
	}
	c := newTestCoordinator(store, w)

	_, err := c.CreateEntry(context.Background(), model.EntryCreate{CalendarID: "cal-1", Title: "entry e-9"})
	require.NoError(t, err)

	list, ok := store.EntryList(filter)
	require.True(t, ok)
	count := 0
	for _, e := range list {
		assert.False(t, strings.HasPrefix(e.ID, TempIDPrefix))
		if e.ID == "e-9" {
			count++
		}
	}
	assert.Equal(t, 1, count, "push plus response must not duplicate the entity")
}

func TestUpdateEntryAppliesPatchThenAuthoritative(t *testing.T) {
	store := cache.NewStore()
	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	filter := model.EntryFilter{CalendarID: "cal-1"}
	store.SetEntryList(filter, []model.Entry{testEntry("e-1", "cal-1", base)})

	newTitle := "renamed"
	authoritative := testEntry("e-1", "cal-1", base.Add(time.Minute))
	authoritative.Title = newTitle

	w := &writerStub{
		updateEntry: func(id string, in model.EntryUpdate) (model.Entry, error) {
			list, ok := store.EntryList(filter)
			require.True(t, ok)
			assert.Equal(t, newTitle, list[0].Title, "patch not visible during round trip")
			return authoritative, nil
		},
	}
	c := newTestCoordinator(store, w)

	got, err := c.UpdateEntry(context.Background(), "e-1", model.EntryUpdate{Title: &newTitle})
	require.NoError(t, err)
	assert.Equal(t, newTitle, got.Title)

	list, _ := store.EntryList(filter)
	assert.Equal(t, authoritative.UpdatedAt, list[0].UpdatedAt)
}

func TestUpdateEntryRollback(t *testing.T) {
	store := cache.NewStore()
	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	filter := model.EntryFilter{CalendarID: "cal-1"}
	seeded := []model.Entry{testEntry("e-1", "cal-1", base)}
	store.SetEntryList(filter, seeded)

	newTitle := "renamed"
	w := &writerStub{
		updateEntry: func(string, model.EntryUpdate) (model.Entry, error) {
			return model.Entry{}, errServer
		},
	}
	c := newTestCoordinator(store, w)

	_, err := c.UpdateEntry(context.Background(), "e-1", model.EntryUpdate{Title: &newTitle})
	require.ErrorIs(t, err, errServer)

	list, ok := store.EntryList(filter)
	require.True(t, ok)
	assert.Equal(t, seeded, list)
}

func TestDeleteEntryRemovesEverywhereAndInvalidatesTask(t *testing.T) {
	store := cache.NewStore()
	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	taskID := "t-1"

	e := testEntry("e-1", "cal-1", base)
	e.TaskID = &taskID
	all := model.EntryFilter{CalendarID: "cal-1"}
	byTask := model.EntryFilter{CalendarID: "cal-1", TaskID: &taskID}
	store.SetEntryList(all, []model.Entry{e})
	store.SetEntryList(byTask, []model.Entry{e})
	store.SetTaskList(model.TaskFilter{CalendarID: "cal-1"}, []model.Task{testTask(taskID, "cal-1", base)})

	w := &writerStub{
		deleteEntry: func(id string) error {
			assert.Equal(t, "e-1", id)
			return nil
		},
	}
	c := newTestCoordinator(store, w)

	require.NoError(t, c.DeleteEntry(context.Background(), "e-1"))

	for _, f := range []model.EntryFilter{all, byTask} {
		list, ok := store.EntryList(f)
		require.True(t, ok)
		assert.Empty(t, list)
	}
	_, ok := store.EntryDetail("e-1")
	assert.False(t, ok)
	assert.True(t, store.IsStale(cache.TaskDetailKey(taskID)), "owning task must be refetched")
}

func TestDeleteEntryRollback(t *testing.T) {
	store := cache.NewStore()
	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	filter := model.EntryFilter{CalendarID: "cal-1"}
	seeded := []model.Entry{testEntry("e-1", "cal-1", base)}
	store.SetEntryList(filter, seeded)

	w := &writerStub{
		deleteEntry: func(string) error { return errServer },
	}
	c := newTestCoordinator(store, w)

	err := c.DeleteEntry(context.Background(), "e-1")
	require.ErrorIs(t, err, errServer)

	list, ok := store.EntryList(filter)
	require.True(t, ok)
	assert.Equal(t, seeded, list)
}

func TestCompleteEntryInvalidatesOwningTask(t *testing.T) {
	store := cache.NewStore()
	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	taskID := "t-1"

	e := testEntry("e-1", "cal-1", base)
	e.TaskID = &taskID
	store.SetEntryDetail(e)
	store.SetTaskDetail(testTask(taskID, "cal-1", base))

	authoritative := e
	authoritative.IsCompleted = true
	done := base.Add(time.Minute)
	authoritative.CompletedAt = &done
	authoritative.UpdatedAt = done

	w := &writerStub{
		completeEntry: func(id string, completed bool) (model.Entry, error) {
			assert.True(t, completed)
			cur, ok := store.EntryDetail("e-1")
			require.True(t, ok)
			assert.True(t, cur.IsCompleted, "optimistic flag not visible during round trip")
			return authoritative, nil
		},
	}
	c := newTestCoordinator(store, w)

	got, err := c.CompleteEntry(context.Background(), "e-1", true)
	require.NoError(t, err)
	assert.True(t, got.IsCompleted)

	// Aggregates on the task are server-computed, so the cached task is
	// flagged stale rather than patched.
	cached, ok := store.TaskDetail(taskID)
	require.True(t, ok)
	assert.Equal(t, 0, cached.CompletedEntries)
	assert.True(t, store.IsStale(cache.TaskDetailKey(taskID)))
}

func TestCreateTaskRollback(t *testing.T) {
	store := cache.NewStore()
	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	filter := model.TaskFilter{CalendarID: "cal-1"}
	seeded := []model.Task{testTask("t-1", "cal-1", base)}
	store.SetTaskList(filter, seeded)

	w := &writerStub{
		createTask: func(model.TaskCreate) (model.Task, error) {
			return model.Task{}, errServer
		},
	}
	c := newTestCoordinator(store, w)

	_, err := c.CreateTask(context.Background(), model.TaskCreate{CalendarID: "cal-1", Title: "doomed"})
	require.ErrorIs(t, err, errServer)

	list, ok := store.TaskList(filter)
	require.True(t, ok)
	assert.Equal(t, seeded, list)
}

func TestArchiveTaskLeavesNonMatchingProjections(t *testing.T) {
	store := cache.NewStore()
	base := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	task := testTask("t-1", "cal-1", base)
	all := model.TaskFilter{CalendarID: "cal-1"}
	active := model.TaskFilter{CalendarID: "cal-1", Status: model.TaskStatusActive}
	store.SetTaskList(all, []model.Task{task})
	store.SetTaskList(active, []model.Task{task})

	authoritative := task
	authoritative.Status = model.TaskStatusArchived
	authoritative.UpdatedAt = base.Add(time.Minute)

	w := &writerStub{
		archiveTask: func(id string) (model.Task, error) {
			return authoritative, nil
		},
	}
	c := newTestCoordinator(store, w)

	got, err := c.ArchiveTask(context.Background(), "t-1")
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusArchived, got.Status)

	activeList, ok := store.TaskList(active)
	require.True(t, ok)
	assert.Empty(t, activeList, "archived task must leave the active projection")

	allList, ok := store.TaskList(all)
	require.True(t, ok)
	require.Len(t, allList, 1)
	assert.Equal(t, model.TaskStatusArchived, allList[0].Status)
}
