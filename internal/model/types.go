package model

import "time"

// Entry types.
const (
	EntryTypeNote  = "note"
	EntryTypeTask  = "task"
	EntryTypeEvent = "event"
)

// Task statuses.
const (
	TaskStatusActive    = "active"
	TaskStatusCompleted = "completed"
	TaskStatusArchived  = "archived"
	TaskStatusCancelled = "cancelled"
)

// Entry is a single calendar entry. Entries are the first-class records of
// the system; an entry may optionally belong to a task.
type Entry struct {
	ID         string  `json:"id"`
	CalendarID string  `json:"calendar_id"`
	TaskID     *string `json:"task_id,omitempty"`

	Title   string `json:"title"`
	Content string `json:"content,omitempty"`

	EntryType   string     `json:"entry_type"`
	IsCompleted bool       `json:"is_completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CompletedBy *string    `json:"completed_by,omitempty"`

	Timestamp    *time.Time `json:"timestamp,omitempty"`
	EndTimestamp *time.Time `json:"end_timestamp,omitempty"`
	IsAllDay     bool       `json:"is_all_day"`

	PositionInTask *int `json:"position_in_task,omitempty"`

	Color    string   `json:"color,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Priority int      `json:"priority"`

	ReminderTime *time.Time `json:"reminder_time,omitempty"`

	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Task is a container for entries. The three aggregate fields
// (TotalEntries, CompletedEntries, CompletionPercentage) are computed
// server-side; the client never patches them locally.
type Task struct {
	ID         string `json:"id"`
	CalendarID string `json:"calendar_id"`

	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	DueDate *time.Time `json:"due_date,omitempty"`

	Status      string     `json:"status"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	TotalEntries         int `json:"total_entries"`
	CompletedEntries     int `json:"completed_entries"`
	CompletionPercentage int `json:"completion_percentage"`

	Color    string `json:"color,omitempty"`
	Icon     string `json:"icon,omitempty"`
	Position int    `json:"position"`

	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EntryFilter is the set of projection parameters for a cached entry list.
// Two lists with different filters are distinct cache collections over the
// same entries.
type EntryFilter struct {
	CalendarID   string     `json:"calendar_id"`
	TaskID       *string    `json:"task_id,omitempty"`
	EntryType    string     `json:"entry_type,omitempty"`
	IsCompleted  *bool      `json:"is_completed,omitempty"`
	HasTimestamp *bool      `json:"has_timestamp,omitempty"`
	RangeStart   *time.Time `json:"range_start,omitempty"`
	RangeEnd     *time.Time `json:"range_end,omitempty"`
	Tags         []string   `json:"tags,omitempty"`
	Search       string     `json:"search,omitempty"`
}

// TaskFilter is the set of projection parameters for a cached task list.
type TaskFilter struct {
	CalendarID string `json:"calendar_id"`
	Status     string `json:"status,omitempty"`
}

// EntryCreate is the payload for creating an entry.
type EntryCreate struct {
	CalendarID   string     `json:"calendar_id"`
	TaskID       *string    `json:"task_id,omitempty"`
	Title        string     `json:"title"`
	Content      string     `json:"content,omitempty"`
	EntryType    string     `json:"entry_type,omitempty"`
	Timestamp    *time.Time `json:"timestamp,omitempty"`
	EndTimestamp *time.Time `json:"end_timestamp,omitempty"`
	IsAllDay     bool       `json:"is_all_day,omitempty"`
	Color        string     `json:"color,omitempty"`
	Tags         []string   `json:"tags,omitempty"`
	Priority     int        `json:"priority,omitempty"`
	ReminderTime *time.Time `json:"reminder_time,omitempty"`
}

// EntryUpdate is a partial update; nil fields are left unchanged.
type EntryUpdate struct {
	Title        *string    `json:"title,omitempty"`
	Content      *string    `json:"content,omitempty"`
	EntryType    *string    `json:"entry_type,omitempty"`
	TaskID       *string    `json:"task_id,omitempty"`
	Timestamp    *time.Time `json:"timestamp,omitempty"`
	EndTimestamp *time.Time `json:"end_timestamp,omitempty"`
	IsAllDay     *bool      `json:"is_all_day,omitempty"`
	Color        *string    `json:"color,omitempty"`
	Tags         []string   `json:"tags,omitempty"`
	Priority     *int       `json:"priority,omitempty"`
	ReminderTime *time.Time `json:"reminder_time,omitempty"`
}

// TaskCreate is the payload for creating a task.
type TaskCreate struct {
	CalendarID  string     `json:"calendar_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Color       string     `json:"color,omitempty"`
	Icon        string     `json:"icon,omitempty"`
	Position    int        `json:"position,omitempty"`
}

// TaskUpdate is a partial update; nil fields are left unchanged.
type TaskUpdate struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Status      *string    `json:"status,omitempty"`
	Color       *string    `json:"color,omitempty"`
	Icon        *string    `json:"icon,omitempty"`
	Position    *int       `json:"position,omitempty"`
}

// Apply merges the non-nil fields of u into e and returns the result.
func (u EntryUpdate) Apply(e Entry) Entry {
	if u.Title != nil {
		e.Title = *u.Title
	}
	if u.Content != nil {
		e.Content = *u.Content
	}
	if u.EntryType != nil {
		e.EntryType = *u.EntryType
	}
	if u.TaskID != nil {
		e.TaskID = u.TaskID
	}
	if u.Timestamp != nil {
		e.Timestamp = u.Timestamp
	}
	if u.EndTimestamp != nil {
		e.EndTimestamp = u.EndTimestamp
	}
	if u.IsAllDay != nil {
		e.IsAllDay = *u.IsAllDay
	}
	if u.Color != nil {
		e.Color = *u.Color
	}
	if u.Tags != nil {
		e.Tags = u.Tags
	}
	if u.Priority != nil {
		e.Priority = *u.Priority
	}
	if u.ReminderTime != nil {
		e.ReminderTime = u.ReminderTime
	}
	return e
}

// Apply merges the non-nil fields of u into t and returns the result.
func (u TaskUpdate) Apply(t Task) Task {
	if u.Title != nil {
		t.Title = *u.Title
	}
	if u.Description != nil {
		t.Description = *u.Description
	}
	if u.DueDate != nil {
		t.DueDate = u.DueDate
	}
	if u.Status != nil {
		t.Status = *u.Status
	}
	if u.Color != nil {
		t.Color = *u.Color
	}
	if u.Icon != nil {
		t.Icon = *u.Icon
	}
	if u.Position != nil {
		t.Position = *u.Position
	}
	return t
}
