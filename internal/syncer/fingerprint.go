package syncer

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/uledev/taskchain/internal/model"
)

// Fingerprint computes a cheap stable digest of the mutation-relevant fields
// of tasks and workspaces. Volatile bookkeeping (current workspace, UI
// state) is excluded, so only sync-worthy changes alter the fingerprint.
// Entries are sorted by id to keep the digest independent of slice order.
func Fingerprint(tasks []model.Task, workspaces []model.Workspace) string {
	type taskKey struct {
		ID          string `json:"id"`
		Title       string `json:"title"`
		Completed   bool   `json:"completed"`
		IsImportant bool   `json:"isImportant"`
		ListID      string `json:"listId"`
		DueMs       *int64 `json:"dueMs"`
	}
	type wsKey struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	ts := make([]taskKey, 0, len(tasks))
	for _, t := range tasks {
		k := taskKey{
			ID:          t.ID,
			Title:       t.Title,
			Completed:   t.Completed,
			IsImportant: t.IsImportant,
			ListID:      t.ListID,
		}
		if t.DueDate != nil {
			ms := t.DueDate.UnixMilli()
			k.DueMs = &ms
		}
		ts = append(ts, k)
	}
	sort.Slice(ts, func(i, j int) bool { return ts[i].ID < ts[j].ID })

	ws := make([]wsKey, 0, len(workspaces))
	for _, w := range workspaces {
		ws = append(ws, wsKey{ID: w.ID, Name: w.Name})
	}
	sort.Slice(ws, func(i, j int) bool { return ws[i].ID < ws[j].ID })

	b, _ := json.Marshal(struct {
		T []taskKey `json:"t"`
		W []wsKey   `json:"w"`
	}{ts, ws})
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
