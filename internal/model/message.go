package model

import "encoding/json"

// Message tags pushed by the server. The set is closed on the client side:
// unknown tags are logged and dropped, never treated as errors, so newer
// servers can add tags without breaking older clients.
const (
	TypeConnectionEstablished = "connection:established"

	TypeEntryCreated   = "entry:created"
	TypeEntryUpdated   = "entry:updated"
	TypeEntryDeleted   = "entry:deleted"
	TypeEntryCompleted = "entry:completed"

	TypeTaskCreated   = "task:created"
	TypeTaskUpdated   = "task:updated"
	TypeTaskDeleted   = "task:deleted"
	TypeTaskCompleted = "task:completed"
	TypeTaskArchived  = "task:archived"

	TypeUserTyping       = "user:typing"
	TypeUserCursor       = "user:cursor"
	TypeUserDisconnected = "user:disconnected"

	TypePing = "ping"
	TypePong = "pong"
)

// Message is the wire envelope for every frame in both directions.
// Data is decoded lazily by the handler registered for Type.
type Message struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"` // epoch ms, optional
}

// Established is the payload of a connection:established frame, sent by the
// server immediately after accepting the socket.
type Established struct {
	CalendarID  string `json:"calendar_id"`
	UserID      string `json:"user_id"`
	Subscribers int    `json:"subscribers"`
}

// EntryChange is the payload of an entry:updated push. The server sends only
// the id plus the fields that changed, not the whole entity.
type EntryChange struct {
	ID      string      `json:"id"`
	Changes EntryUpdate `json:"changes"`
}

// TaskChange is the payload of a task:updated push.
type TaskChange struct {
	ID      string     `json:"id"`
	Changes TaskUpdate `json:"changes"`
}

// Deleted is the payload of entry:deleted and task:deleted pushes.
type Deleted struct {
	ID string `json:"id"`
}

// Completed is the payload of entry:completed and task:completed pushes.
type Completed struct {
	ID          string `json:"id"`
	IsCompleted bool   `json:"is_completed"`
}

// Archived is the payload of a task:archived push.
type Archived struct {
	ID string `json:"id"`
}

// Typing is the payload of a user:typing presence push.
type Typing struct {
	UserID  string `json:"user_id"`
	EntryID string `json:"entry_id,omitempty"`
}

// Cursor is the payload of a user:cursor presence push.
type Cursor struct {
	UserID   string `json:"user_id"`
	EntryID  string `json:"entry_id,omitempty"`
	Position int    `json:"position"`
}

// Disconnected is the payload of a user:disconnected presence push.
type Disconnected struct {
	UserID string `json:"user_id"`
}
