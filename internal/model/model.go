// Package model defines domain entities shared by the store, the sync engine and the server.
package model

import "time"

// Task is a single to-do item owned by the local store.
// DueDate is nil when the task has no due date; nil is a distinct state,
// never collapsed to the epoch.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Completed   bool       `json:"completed"`
	DueDate     *time.Time `json:"dueDate"`
	IsImportant bool       `json:"isImportant"`
	ListID      string     `json:"listId"`
}

// TaskUpdate carries a partial task mutation. Nil fields are left untouched.
// SetDueDate distinguishes "clear the due date" from "leave it alone".
type TaskUpdate struct {
	Title       *string
	Completed   *bool
	DueDate     *time.Time
	SetDueDate  bool
	IsImportant *bool
	ListID      *string
}

// Workspace groups tasks. Exactly one workspace is the immutable default.
type Workspace struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// WireTask is the transmissible form of Task: dueDate as RFC 3339 string or null.
type WireTask struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Completed   bool    `json:"completed"`
	DueDate     *string `json:"dueDate"`
	IsImportant bool    `json:"isImportant"`
	ListID      string  `json:"listId"`
}

// SyncPayload is the unit of encryption: one full snapshot of tasks and workspaces.
type SyncPayload struct {
	Tasks      []WireTask  `json:"tasks"`
	Workspaces []Workspace `json:"workspaces"`
}

// DueTime parses the wire due date. Returns nil for absent or unparseable values.
func (t WireTask) DueTime() *time.Time {
	if t.DueDate == nil {
		return nil
	}
	ts, err := time.Parse(time.RFC3339Nano, *t.DueDate)
	if err != nil {
		return nil
	}
	ts = ts.UTC()
	return &ts
}

// Blob is one encrypted snapshot stored by the sync server, keyed by the
// chain's public key. The server never sees plaintext.
type Blob struct {
	PublicKey       string
	EncryptedString string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
