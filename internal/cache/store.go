package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/WeichunK/calenote-sub000/internal/model"
)

// Detail cache key prefixes, also used in the staleness set.
const (
	PrefixEntryDetail = "entry/"
	PrefixTaskDetail  = "task/"
)

// EntryDetailKey is the cache key for a single-entry detail view.
func EntryDetailKey(id string) string { return PrefixEntryDetail + id }

// TaskDetailKey is the cache key for a single-task detail view.
func TaskDetailKey(id string) string { return PrefixTaskDetail + id }

// Presence is the ephemeral collaborator state derived from user:* pushes.
type Presence struct {
	UserID   string
	EntryID  string
	Position int
	Typing   bool
	LastSeen time.Time
}

// Store is the in-memory cache shared by the reconciler and the optimistic
// mutation coordinator. Entities are treated as immutable values: every
// write replaces a whole Entry or Task, so snapshots only need to copy the
// containers.
//
// Merges are keyed by id and drop stale data: an incoming entity whose
// updated_at is older than the cached copy does not overwrite it. That is
// the only conflict resolution between pushes and optimistic writes; there
// is no transactional isolation.
type Store struct {
	mu sync.RWMutex

	entryLists  map[string][]model.Entry
	taskLists   map[string][]model.Task
	entryDetail map[string]model.Entry
	taskDetail  map[string]model.Task

	// Keys (collection or detail) whose cached value is known to be
	// outdated and should be refetched.
	stale map[string]struct{}

	presence map[string]Presence

	established    model.Established
	hasEstablished bool
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		entryLists:  make(map[string][]model.Entry),
		taskLists:   make(map[string][]model.Task),
		entryDetail: make(map[string]model.Entry),
		taskDetail:  make(map[string]model.Task),
		stale:       make(map[string]struct{}),
		presence:    make(map[string]Presence),
	}
}

// SetEntryList materializes (or replaces) an entry projection, typically
// after a successful fetch.
func (s *Store) SetEntryList(f model.EntryFilter, entries []model.Entry) {
	key := EntryListKey(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entryLists[key] = append([]model.Entry(nil), entries...)
	delete(s.stale, key)
}

// EntryList returns a copy of a materialized entry projection.
func (s *Store) EntryList(f model.EntryFilter) ([]model.Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list, ok := s.entryLists[EntryListKey(f)]
	if !ok {
		return nil, false
	}
	return append([]model.Entry(nil), list...), true
}

// SetTaskList materializes (or replaces) a task projection.
func (s *Store) SetTaskList(f model.TaskFilter, tasks []model.Task) {
	key := TaskListKey(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.taskLists[key] = append([]model.Task(nil), tasks...)
	delete(s.stale, key)
}

// TaskList returns a copy of a materialized task projection.
func (s *Store) TaskList(f model.TaskFilter) ([]model.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list, ok := s.taskLists[TaskListKey(f)]
	if !ok {
		return nil, false
	}
	return append([]model.Task(nil), list...), true
}

// SetEntryDetail stores a single-entry detail snapshot.
func (s *Store) SetEntryDetail(e model.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entryDetail[e.ID] = e
	delete(s.stale, EntryDetailKey(e.ID))
}

// EntryDetail returns the detail snapshot for an entry id.
func (s *Store) EntryDetail(id string) (model.Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entryDetail[id]
	return e, ok
}

// SetTaskDetail stores a single-task detail snapshot.
func (s *Store) SetTaskDetail(t model.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.taskDetail[t.ID] = t
	delete(s.stale, TaskDetailKey(t.ID))
}

// TaskDetail returns the detail snapshot for a task id.
func (s *Store) TaskDetail(id string) (model.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.taskDetail[id]
	return t, ok
}

// LookupEntry finds an entry by id in the detail cache or any projection.
func (s *Store) LookupEntry(id string) (model.Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookupEntryLocked(id)
}

func (s *Store) lookupEntryLocked(id string) (model.Entry, bool) {
	if e, ok := s.entryDetail[id]; ok {
		return e, true
	}
	for _, list := range s.entryLists {
		for _, e := range list {
			if e.ID == id {
				return e, true
			}
		}
	}
	return model.Entry{}, false
}

// LookupTask finds a task by id in the detail cache or any projection.
func (s *Store) LookupTask(id string) (model.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookupTaskLocked(id)
}

func (s *Store) lookupTaskLocked(id string) (model.Task, bool) {
	if t, ok := s.taskDetail[id]; ok {
		return t, true
	}
	for _, list := range s.taskLists {
		for _, t := range list {
			if t.ID == id {
				return t, true
			}
		}
	}
	return model.Task{}, false
}

// InsertEntry places a new entry into every materialized projection whose
// parameters admit it, skipping any projection that already holds the id
// (an optimistic copy under the same final id must not be duplicated).
func (s *Store) InsertEntry(e model.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, list := range s.entryLists {
		if containsEntry(list, e.ID) {
			continue
		}
		f, ok := parseEntryFilter(key)
		if !ok || !matchesEntry(f, e) {
			continue
		}
		// Newest first, matching the default list order.
		s.entryLists[key] = append([]model.Entry{e}, list...)
	}
	s.entryDetail[e.ID] = e
}

// InsertTask places a new task into every materialized projection whose
// parameters admit it, deduplicating by id.
func (s *Store) InsertTask(t model.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, list := range s.taskLists {
		if containsTask(list, t.ID) {
			continue
		}
		f, ok := parseTaskFilter(key)
		if !ok || !matchesTask(f, t) {
			continue
		}
		s.taskLists[key] = append(list, t)
	}
	s.taskDetail[t.ID] = t
}

// MergeEntry replaces the entry with e.ID in every projection containing it
// and in the detail cache. Projections that do not hold the id are left
// untouched. Returns false when the merge was dropped because the cached
// copy is newer, or when the id is unknown everywhere.
func (s *Store) MergeEntry(e model.Entry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.lookupEntryLocked(e.ID); ok {
		if staleUpdate(cur.UpdatedAt, e.UpdatedAt) {
			return false
		}
	}

	touched := false
	for key, list := range s.entryLists {
		for i := range list {
			if list[i].ID == e.ID {
				updated := append([]model.Entry(nil), list...)
				updated[i] = e
				s.entryLists[key] = updated
				touched = true
				break
			}
		}
	}
	if _, ok := s.entryDetail[e.ID]; ok {
		s.entryDetail[e.ID] = e
		touched = true
	}
	return touched
}

// MergeTask replaces the task with t.ID in every projection containing it
// and in the detail cache.
func (s *Store) MergeTask(t model.Task) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.lookupTaskLocked(t.ID); ok {
		if staleUpdate(cur.UpdatedAt, t.UpdatedAt) {
			return false
		}
	}

	touched := false
	for key, list := range s.taskLists {
		for i := range list {
			if list[i].ID == t.ID {
				updated := append([]model.Task(nil), list...)
				updated[i] = t
				s.taskLists[key] = updated
				touched = true
				break
			}
		}
	}
	if _, ok := s.taskDetail[t.ID]; ok {
		s.taskDetail[t.ID] = t
		touched = true
	}
	return touched
}

// RemoveEntry deletes the entry from every projection and purges its detail
// snapshot. Removing an absent id is a no-op.
func (s *Store) RemoveEntry(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, list := range s.entryLists {
		if !containsEntry(list, id) {
			continue
		}
		filtered := make([]model.Entry, 0, len(list)-1)
		for _, e := range list {
			if e.ID != id {
				filtered = append(filtered, e)
			}
		}
		s.entryLists[key] = filtered
	}
	delete(s.entryDetail, id)
	delete(s.stale, EntryDetailKey(id))
}

// RemoveTask deletes the task from every projection and purges its detail
// snapshot.
func (s *Store) RemoveTask(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, list := range s.taskLists {
		if !containsTask(list, id) {
			continue
		}
		filtered := make([]model.Task, 0, len(list)-1)
		for _, t := range list {
			if t.ID != id {
				filtered = append(filtered, t)
			}
		}
		s.taskLists[key] = filtered
	}
	delete(s.taskDetail, id)
	delete(s.stale, TaskDetailKey(id))
}

// ReplaceEntryID swaps a temporary-id entry for its authoritative version:
// the temporary entity disappears from every projection and exactly one
// entity with the final id remains. Used when an optimistic create is
// acknowledged.
func (s *Store) ReplaceEntryID(tempID string, e model.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, list := range s.entryLists {
		updated := make([]model.Entry, 0, len(list))
		seen := false
		for _, cur := range list {
			switch cur.ID {
			case tempID:
				if !seen {
					updated = append(updated, e)
					seen = true
				}
			case e.ID:
				// A push for the same create may have landed first.
				if !seen {
					updated = append(updated, e)
					seen = true
				}
			default:
				updated = append(updated, cur)
			}
		}
		s.entryLists[key] = updated
	}
	delete(s.entryDetail, tempID)
	s.entryDetail[e.ID] = e
}

// ReplaceTaskID swaps a temporary-id task for its authoritative version.
func (s *Store) ReplaceTaskID(tempID string, t model.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, list := range s.taskLists {
		updated := make([]model.Task, 0, len(list))
		seen := false
		for _, cur := range list {
			switch cur.ID {
			case tempID:
				if !seen {
					updated = append(updated, t)
					seen = true
				}
			case t.ID:
				if !seen {
					updated = append(updated, t)
					seen = true
				}
			default:
				updated = append(updated, cur)
			}
		}
		s.taskLists[key] = updated
	}
	delete(s.taskDetail, tempID)
	s.taskDetail[t.ID] = t
}

// RemoveTaskFromNonMatching drops a task from every projection whose
// parameters no longer admit it, e.g. an archived task leaving a
// status=active list. Projections that still match keep the merged value.
func (s *Store) RemoveTaskFromNonMatching(t model.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, list := range s.taskLists {
		if !containsTask(list, t.ID) {
			continue
		}
		f, ok := parseTaskFilter(key)
		if !ok || matchesTask(f, t) {
			continue
		}
		filtered := make([]model.Task, 0, len(list)-1)
		for _, cur := range list {
			if cur.ID != t.ID {
				filtered = append(filtered, cur)
			}
		}
		s.taskLists[key] = filtered
	}
}

// MarkStale flags a cache key for refetch.
func (s *Store) MarkStale(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stale[key] = struct{}{}
}

// IsStale reports whether a cache key is flagged for refetch.
func (s *Store) IsStale(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.stale[key]
	return ok
}

// StaleKeys returns all keys currently flagged for refetch.
func (s *Store) StaleKeys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.stale))
	for k := range s.stale {
		keys = append(keys, k)
	}
	return keys
}

// InvalidateTask flags a task's detail view and every task projection as
// stale. Task aggregates (entry counts, completion percentage) are computed
// server-side, so whenever a contained entry changes completion state the
// cached task cannot be patched locally and must be refetched.
func (s *Store) InvalidateTask(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stale[TaskDetailKey(id)] = struct{}{}
	for key := range s.taskLists {
		if strings.HasPrefix(key, PrefixTasks) {
			s.stale[key] = struct{}{}
		}
	}
}

// SetPresence records collaborator presence from a user:typing or
// user:cursor push.
func (s *Store) SetPresence(p Presence) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presence[p.UserID] = p
}

// RemovePresence drops a collaborator after a user:disconnected push.
func (s *Store) RemovePresence(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.presence, userID)
}

// Presences returns a copy of the current presence map.
func (s *Store) Presences() map[string]Presence {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Presence, len(s.presence))
	for k, v := range s.presence {
		out[k] = v
	}
	return out
}

// SetEstablished records the connection:established metadata.
func (s *Store) SetEstablished(e model.Established) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.established = e
	s.hasEstablished = true
}

// Established returns the last connection:established metadata.
func (s *Store) Established() (model.Established, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.established, s.hasEstablished
}

// staleUpdate reports whether an incoming updated_at would move the cached
// entity backward in time. Zero timestamps fall back to last write wins.
func staleUpdate(cached, incoming time.Time) bool {
	if cached.IsZero() || incoming.IsZero() {
		return false
	}
	return incoming.Before(cached)
}

func containsEntry(list []model.Entry, id string) bool {
	for _, e := range list {
		if e.ID == id {
			return true
		}
	}
	return false
}

func containsTask(list []model.Task, id string) bool {
	for _, t := range list {
		if t.ID == id {
			return true
		}
	}
	return false
}
