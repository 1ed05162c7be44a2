// Package payload normalizes decrypted sync payloads and snapshots local state.
//
// Remote payloads are untrusted: the peer may run an older or buggy client.
// Every field is coerced defensively instead of rejected, so one bad record
// never discards the rest of the remote data.
package payload

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/uledev/taskchain/internal/errs"
	"github.com/uledev/taskchain/internal/model"
)

// Normalize validates and coerces raw decrypted JSON into a SyncPayload.
// Missing arrays become empty, malformed scalars fall back to zero values,
// and entries without a non-empty id are dropped. The only hard failure is
// a top-level value that is not a JSON object: errs.ErrInvalidPayloadShape.
func Normalize(raw []byte) (model.SyncPayload, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return model.SyncPayload{}, fmt.Errorf("%w: %v", errs.ErrInvalidPayloadShape, err)
	}
	if top == nil {
		return model.SyncPayload{}, fmt.Errorf("%w: null payload", errs.ErrInvalidPayloadShape)
	}

	out := model.SyncPayload{
		Tasks:      []model.WireTask{},
		Workspaces: []model.Workspace{},
	}

	for _, rawTask := range rawArray(top["tasks"]) {
		var rec map[string]any
		if json.Unmarshal(rawTask, &rec) != nil || rec == nil {
			continue
		}
		t := model.WireTask{
			ID:          coerceString(rec["id"]),
			Title:       coerceString(rec["title"]),
			Completed:   coerceBool(rec["completed"]),
			IsImportant: coerceBool(rec["isImportant"]),
			ListID:      coerceString(rec["listId"]),
			DueDate:     coerceDueDate(rec["dueDate"]),
		}
		if t.ID == "" {
			continue
		}
		out.Tasks = append(out.Tasks, t)
	}

	for _, rawWs := range rawArray(top["workspaces"]) {
		var rec map[string]any
		if json.Unmarshal(rawWs, &rec) != nil || rec == nil {
			continue
		}
		w := model.Workspace{
			ID:   coerceString(rec["id"]),
			Name: coerceString(rec["name"]),
		}
		if w.ID == "" {
			continue
		}
		out.Workspaces = append(out.Workspaces, w)
	}

	return out, nil
}

// Snapshot serializes the mutation-relevant fields of the given state into
// the transmissible payload form. The due date travels as RFC 3339 or null;
// absence is never encoded as the epoch.
func Snapshot(tasks []model.Task, workspaces []model.Workspace) model.SyncPayload {
	p := model.SyncPayload{
		Tasks:      make([]model.WireTask, 0, len(tasks)),
		Workspaces: make([]model.Workspace, 0, len(workspaces)),
	}
	for _, t := range tasks {
		var due *string
		if t.DueDate != nil {
			s := t.DueDate.UTC().Format(time.RFC3339Nano)
			due = &s
		}
		p.Tasks = append(p.Tasks, model.WireTask{
			ID:          t.ID,
			Title:       t.Title,
			Completed:   t.Completed,
			DueDate:     due,
			IsImportant: t.IsImportant,
			ListID:      t.ListID,
		})
	}
	for _, w := range workspaces {
		p.Workspaces = append(p.Workspaces, model.Workspace{ID: w.ID, Name: w.Name})
	}
	return p
}

func rawArray(raw json.RawMessage) []json.RawMessage {
	if raw == nil {
		return nil
	}
	var arr []json.RawMessage
	if json.Unmarshal(raw, &arr) != nil {
		return nil
	}
	return arr
}

func coerceString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		// numeric ids from sloppy clients keep their textual form
		return fmt.Sprintf("%v", s)
	default:
		return ""
	}
}

func coerceBool(v any) bool {
	b, ok := v.(bool)
	return ok && b
}

func coerceDueDate(v any) *string {
	s, ok := v.(string)
	if !ok || s == "" {
		return nil
	}
	return &s
}
