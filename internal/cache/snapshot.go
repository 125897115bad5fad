package cache

import "github.com/WeichunK/calenote-sub000/internal/model"

// Snapshot is a verbatim copy of one region of the store, taken before an
// optimistic patch and held until the mutation's outcome is known. Restoring
// it rolls the region back exactly; entities are immutable values so copying
// the containers is sufficient.
type Snapshot struct {
	entryLists  map[string][]model.Entry
	entryDetail map[string]model.Entry
	taskLists   map[string][]model.Task
	taskDetail  map[string]model.Task

	hasEntries bool
	hasTasks   bool
}

// SnapshotEntries captures the entry region: every entry projection and the
// entry detail cache.
func (s *Store) SnapshotEntries() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &Snapshot{
		entryLists:  make(map[string][]model.Entry, len(s.entryLists)),
		entryDetail: make(map[string]model.Entry, len(s.entryDetail)),
		hasEntries:  true,
	}
	for key, list := range s.entryLists {
		snap.entryLists[key] = append([]model.Entry(nil), list...)
	}
	for id, e := range s.entryDetail {
		snap.entryDetail[id] = e
	}
	return snap
}

// SnapshotTasks captures the task region: every task projection and the task
// detail cache.
func (s *Store) SnapshotTasks() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &Snapshot{
		taskLists:  make(map[string][]model.Task, len(s.taskLists)),
		taskDetail: make(map[string]model.Task, len(s.taskDetail)),
		hasTasks:   true,
	}
	for key, list := range s.taskLists {
		snap.taskLists[key] = append([]model.Task(nil), list...)
	}
	for id, t := range s.taskDetail {
		snap.taskDetail[id] = t
	}
	return snap
}

// Restore puts a snapshotted region back verbatim, discarding every write
// made to that region since the snapshot was taken.
func (s *Store) Restore(snap *Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap.hasEntries {
		s.entryLists = make(map[string][]model.Entry, len(snap.entryLists))
		for key, list := range snap.entryLists {
			s.entryLists[key] = append([]model.Entry(nil), list...)
		}
		s.entryDetail = make(map[string]model.Entry, len(snap.entryDetail))
		for id, e := range snap.entryDetail {
			s.entryDetail[id] = e
		}
	}
	if snap.hasTasks {
		s.taskLists = make(map[string][]model.Task, len(snap.taskLists))
		for key, list := range snap.taskLists {
			s.taskLists[key] = append([]model.Task(nil), list...)
		}
		s.taskDetail = make(map[string]model.Task, len(snap.taskDetail))
		for id, t := range snap.taskDetail {
			s.taskDetail[id] = t
		}
	}
}
