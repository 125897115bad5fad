package cache

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WeichunK/calenote-sub000/internal/model"
	"github.com/WeichunK/calenote-sub000/internal/router"
)

// boundDispatcher wires a Reconciler into a fresh dispatcher so tests push
// frames through the same tag table production uses.
func boundDispatcher(s *Store) *router.Dispatcher {
	d := router.NewDispatcher(nil, nil)
	NewReconciler(s, nil).Bind(d)
	return d
}

func push(t *testing.T, d *router.Dispatcher, tag string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	raw, err := json.Marshal(model.Message{Type: tag, Data: data, Timestamp: time.Now().UnixMilli()})
	require.NoError(t, err)
	d.Dispatch(raw)
}

func TestReconcileEstablished(t *testing.T) {
	s := NewStore()
	d := boundDispatcher(s)

	push(t, d, model.TypeConnectionEstablished, model.Established{
		CalendarID:  "cal-1",
		UserID:      "u-1",
		Subscribers: 3,
	})

	est, ok := s.Established()
	require.True(t, ok)
	assert.Equal(t, "cal-1", est.CalendarID)
	assert.Equal(t, 3, est.Subscribers)
}

func TestReconcileEntryCreated(t *testing.T) {
	s := NewStore()
	d := boundDispatcher(s)
	taskID := "t-1"

	all := model.EntryFilter{CalendarID: "cal-1"}
	s.SetEntryList(all, nil)
	s.SetTaskDetail(task("t-1", t0))

	push(t, d, model.TypeEntryCreated, entry("e-1", t0, func(e *model.Entry) { e.TaskID = &taskID }))

	list, _ := s.EntryList(all)
	require.Len(t, list, 1)
	assert.Equal(t, "e-1", list[0].ID)
	assert.True(t, s.IsStale(TaskDetailKey("t-1")), "owning task aggregates changed server-side")
}

func TestReconcileEntryCreatedAfterOptimisticFinalize(t *testing.T) {
	s := NewStore()
	d := boundDispatcher(s)

	all := model.EntryFilter{CalendarID: "cal-1"}
	s.SetEntryList(all, []model.Entry{entry("e-1", t0)})

	// The push echoing our own create arrives after the REST response
	// already finalized the entity.
	push(t, d, model.TypeEntryCreated, entry("e-1", t0))

	list, _ := s.EntryList(all)
	assert.Len(t, list, 1, "echo of an already-finalized create must not duplicate")
}

func TestReconcileEntryUpdatedPartial(t *testing.T) {
	s := NewStore()
	d := boundDispatcher(s)

	f := model.EntryFilter{CalendarID: "cal-1"}
	orig := entry("e-1", t0, func(e *model.Entry) { e.Content = "keep me" })
	s.SetEntryList(f, []model.Entry{orig})

	newTitle := "renamed"
	push(t, d, model.TypeEntryUpdated, model.EntryChange{
		ID:      "e-1",
		Changes: model.EntryUpdate{Title: &newTitle},
	})

	list, _ := s.EntryList(f)
	require.Len(t, list, 1)
	assert.Equal(t, "renamed", list[0].Title)
	assert.Equal(t, "keep me", list[0].Content, "fields absent from the change set must survive")
}

func TestReconcileEntryUpdatedUnknownID(t *testing.T) {
	s := NewStore()
	d := boundDispatcher(s)
	f := model.EntryFilter{CalendarID: "cal-1"}
	s.SetEntryList(f, nil)

	title := "ghost"
	push(t, d, model.TypeEntryUpdated, model.EntryChange{ID: "e-404", Changes: model.EntryUpdate{Title: &title}})

	list, _ := s.EntryList(f)
	assert.Empty(t, list, "an update for an unmaterialized entry is a no-op")
}

func TestReconcileEntryDeletedTwice(t *testing.T) {
	s := NewStore()
	d := boundDispatcher(s)
	taskID := "t-1"

	f := model.EntryFilter{CalendarID: "cal-1"}
	s.SetEntryList(f, []model.Entry{entry("e-1", t0, func(e *model.Entry) { e.TaskID = &taskID })})
	s.SetTaskDetail(task("t-1", t0))

	push(t, d, model.TypeEntryDeleted, model.Deleted{ID: "e-1"})
	push(t, d, model.TypeEntryDeleted, model.Deleted{ID: "e-1"})

	list, _ := s.EntryList(f)
	assert.Empty(t, list)
	assert.True(t, s.IsStale(TaskDetailKey("t-1")))
}

func TestReconcileEntryCompleted(t *testing.T) {
	s := NewStore()
	d := boundDispatcher(s)
	taskID := "t-1"

	s.SetEntryDetail(entry("e-1", t0, func(e *model.Entry) { e.TaskID = &taskID }))
	s.SetTaskDetail(task("t-1", t0))

	push(t, d, model.TypeEntryCompleted, model.Completed{ID: "e-1", IsCompleted: true})

	cur, _ := s.EntryDetail("e-1")
	assert.True(t, cur.IsCompleted)
	assert.NotNil(t, cur.CompletedAt)
	assert.True(t, s.IsStale(TaskDetailKey("t-1")))

	// Un-complete clears the completion stamp.
	push(t, d, model.TypeEntryCompleted, model.Completed{ID: "e-1", IsCompleted: false})
	cur, _ = s.EntryDetail("e-1")
	assert.False(t, cur.IsCompleted)
	assert.Nil(t, cur.CompletedAt)
}

func TestReconcileTaskCompletedMovesProjections(t *testing.T) {
	s := NewStore()
	d := boundDispatcher(s)

	active := model.TaskFilter{CalendarID: "cal-1", Status: model.TaskStatusActive}
	all := model.TaskFilter{CalendarID: "cal-1"}
	tk := task("t-1", t0)
	s.SetTaskList(active, []model.Task{tk})
	s.SetTaskList(all, []model.Task{tk})

	push(t, d, model.TypeTaskCompleted, model.Completed{ID: "t-1", IsCompleted: true})

	activeList, _ := s.TaskList(active)
	assert.Empty(t, activeList, "completed task must leave the active projection")

	allList, _ := s.TaskList(all)
	require.Len(t, allList, 1)
	assert.Equal(t, model.TaskStatusCompleted, allList[0].Status)
}

func TestReconcileTaskArchived(t *testing.T) {
	s := NewStore()
	d := boundDispatcher(s)

	active := model.TaskFilter{CalendarID: "cal-1", Status: model.TaskStatusActive}
	s.SetTaskList(active, []model.Task{task("t-1", t0)})
	s.SetTaskDetail(task("t-1", t0))

	push(t, d, model.TypeTaskArchived, model.Archived{ID: "t-1"})

	list, _ := s.TaskList(active)
	assert.Empty(t, list)
	cur, _ := s.TaskDetail("t-1")
	assert.Equal(t, model.TaskStatusArchived, cur.Status)
}

func TestReconcilePresence(t *testing.T) {
	s := NewStore()
	d := boundDispatcher(s)

	push(t, d, model.TypeUserTyping, model.Typing{UserID: "u-1", EntryID: "e-1"})
	push(t, d, model.TypeUserCursor, model.Cursor{UserID: "u-1", EntryID: "e-1", Position: 12})

	all := s.Presences()
	require.Len(t, all, 1)
	assert.Equal(t, 12, all["u-1"].Position)

	push(t, d, model.TypeUserDisconnected, model.Disconnected{UserID: "u-1"})
	assert.Empty(t, s.Presences())
}
