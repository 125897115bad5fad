package cache

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/WeichunK/calenote-sub000/internal/model"
)

// Collection key prefixes. A pushed event does not know which filters are
// currently materialized, so reconciliation scans by prefix rather than by
// exact parameter match.
const (
	PrefixEntries = "entries?"
	PrefixTasks   = "tasks?"
)

// EntryListKey builds the canonical collection key for an entry projection.
// Parameters are encoded in fixed order so the same filter always yields the
// same key.
func EntryListKey(f model.EntryFilter) string {
	q := url.Values{}
	q.Set("calendar_id", f.CalendarID)
	if f.TaskID != nil {
		q.Set("task_id", *f.TaskID)
	}
	if f.EntryType != "" {
		q.Set("entry_type", f.EntryType)
	}
	if f.IsCompleted != nil {
		q.Set("is_completed", strconv.FormatBool(*f.IsCompleted))
	}
	if f.HasTimestamp != nil {
		q.Set("has_timestamp", strconv.FormatBool(*f.HasTimestamp))
	}
	if f.RangeStart != nil {
		q.Set("range_start", f.RangeStart.UTC().Format(time.RFC3339))
	}
	if f.RangeEnd != nil {
		q.Set("range_end", f.RangeEnd.UTC().Format(time.RFC3339))
	}
	if len(f.Tags) > 0 {
		q.Set("tags", strings.Join(f.Tags, ","))
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	return PrefixEntries + q.Encode()
}

// TaskListKey builds the canonical collection key for a task projection.
func TaskListKey(f model.TaskFilter) string {
	q := url.Values{}
	q.Set("calendar_id", f.CalendarID)
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	return PrefixTasks + q.Encode()
}

// matchesEntry reports whether an entry can appear in the projection
// described by f. Used when inserting a newly created entity: an update or
// delete only touches projections that already contain the id, but a create
// must be placed into every projection whose parameters admit it.
func matchesEntry(f model.EntryFilter, e model.Entry) bool {
	if f.CalendarID != "" && f.CalendarID != e.CalendarID {
		return false
	}
	if f.TaskID != nil {
		if e.TaskID == nil || *e.TaskID != *f.TaskID {
			return false
		}
	}
	if f.EntryType != "" && f.EntryType != e.EntryType {
		return false
	}
	if f.IsCompleted != nil && *f.IsCompleted != e.IsCompleted {
		return false
	}
	if f.HasTimestamp != nil && *f.HasTimestamp != (e.Timestamp != nil) {
		return false
	}
	if f.RangeStart != nil || f.RangeEnd != nil {
		if e.Timestamp == nil {
			return false
		}
		if f.RangeStart != nil && e.Timestamp.Before(*f.RangeStart) {
			return false
		}
		if f.RangeEnd != nil && e.Timestamp.After(*f.RangeEnd) {
			return false
		}
	}
	if len(f.Tags) > 0 && !containsAll(e.Tags, f.Tags) {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(e.Title), needle) &&
			!strings.Contains(strings.ToLower(e.Content), needle) {
			return false
		}
	}
	return true
}

// matchesTask reports whether a task can appear in the projection described
// by f.
func matchesTask(f model.TaskFilter, t model.Task) bool {
	if f.CalendarID != "" && f.CalendarID != t.CalendarID {
		return false
	}
	if f.Status != "" && f.Status != t.Status {
		return false
	}
	return true
}

// ParseEntryListKey recovers the filter parameters from an entry collection
// key, so a stale key can be refetched without tracking the filter that
// created it.
func ParseEntryListKey(key string) (model.EntryFilter, bool) {
	return parseEntryFilter(key)
}

// ParseTaskListKey recovers the filter parameters from a task collection key.
func ParseTaskListKey(key string) (model.TaskFilter, bool) {
	return parseTaskFilter(key)
}

// parseEntryFilter recovers the filter parameters from a collection key.
func parseEntryFilter(key string) (model.EntryFilter, bool) {
	raw, ok := strings.CutPrefix(key, PrefixEntries)
	if !ok {
		return model.EntryFilter{}, false
	}
	q, err := url.ParseQuery(raw)
	if err != nil {
		return model.EntryFilter{}, false
	}

	f := model.EntryFilter{
		CalendarID: q.Get("calendar_id"),
		EntryType:  q.Get("entry_type"),
		Search:     q.Get("search"),
	}
	if v := q.Get("task_id"); v != "" {
		f.TaskID = &v
	}
	if v := q.Get("is_completed"); v != "" {
		b := v == "true"
		f.IsCompleted = &b
	}
	if v := q.Get("has_timestamp"); v != "" {
		b := v == "true"
		f.HasTimestamp = &b
	}
	if v := q.Get("range_start"); v != "" {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			f.RangeStart = &ts
		}
	}
	if v := q.Get("range_end"); v != "" {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			f.RangeEnd = &ts
		}
	}
	if v := q.Get("tags"); v != "" {
		f.Tags = strings.Split(v, ",")
	}
	return f, true
}

// parseTaskFilter recovers the filter parameters from a collection key.
func parseTaskFilter(key string) (model.TaskFilter, bool) {
	raw, ok := strings.CutPrefix(key, PrefixTasks)
	if !ok {
		return model.TaskFilter{}, false
	}
	q, err := url.ParseQuery(raw)
	if err != nil {
		return model.TaskFilter{}, false
	}
	return model.TaskFilter{
		CalendarID: q.Get("calendar_id"),
		Status:     q.Get("status"),
	}, true
}

func containsAll(haystack, needles []string) bool {
	for _, n := range needles {
		found := false
		for _, h := range haystack {
			if h == n {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
