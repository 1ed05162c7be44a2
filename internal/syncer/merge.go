// Package syncer reconciles local and remote state and schedules sync runs.
package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/uledev/taskchain/internal/model"
	"github.com/uledev/taskchain/internal/store"
)

// Merge applies a remote payload into the local store, one direction only.
// Remote entities are inserted under their remote ids or overwrite local
// fields when any differ. Local entities absent from remote are kept:
// deletions only ever happen through explicit local operations.
//
// Known limitation: without per-field timestamps this is last-push-wins on
// concurrently edited tasks.
func Merge(ctx context.Context, remote model.SyncPayload, st *store.Store) error {
	_, workspaces := st.Snapshot()
	wsByID := make(map[string]model.Workspace, len(workspaces))
	for _, w := range workspaces {
		wsByID[w.ID] = w
	}

	for _, rw := range remote.Workspaces {
		lw, ok := wsByID[rw.ID]
		switch {
		case !ok:
			if _, err := st.AddWorkspace(ctx, rw); err != nil {
				return fmt.Errorf("merge workspace %s: %w", rw.ID, err)
			}
		case lw.Name != rw.Name:
			// UpdateWorkspace refuses to rename the default workspace.
			if err := st.UpdateWorkspace(ctx, rw.ID, rw.Name); err != nil {
				return fmt.Errorf("merge workspace %s: %w", rw.ID, err)
			}
		}
	}

	// Re-snapshot after the workspace pass so remote workspaces count as known.
	tasks, workspaces := st.Snapshot()
	taskByID := make(map[string]model.Task, len(tasks))
	for _, t := range tasks {
		taskByID[t.ID] = t
	}
	known := make(map[string]struct{}, len(workspaces))
	for _, w := range workspaces {
		known[w.ID] = struct{}{}
	}

	for _, rt := range remote.Tasks {
		due := rt.DueTime()
		lt, ok := taskByID[rt.ID]
		if !ok {
			// AddTask repairs an unknown listId to the default workspace.
			_, err := st.AddTask(ctx, model.Task{
				ID:          rt.ID,
				Title:       rt.Title,
				Completed:   rt.Completed,
				DueDate:     due,
				IsImportant: rt.IsImportant,
				ListID:      rt.ListID,
			})
			if err != nil {
				return fmt.Errorf("merge task %s: %w", rt.ID, err)
			}
			continue
		}
		// A missing listId keeps the local one; an unknown one is repaired
		// to the default workspace, same as the insert path. One bad record
		// must never abort the rest of the payload.
		listID := rt.ListID
		if listID == "" {
			listID = lt.ListID
		} else if _, ok := known[listID]; !ok {
			listID = store.DefaultWorkspaceID
		}
		if lt.Title == rt.Title &&
			lt.Completed == rt.Completed &&
			lt.IsImportant == rt.IsImportant &&
			lt.ListID == listID &&
			dueEqual(lt.DueDate, due) {
			continue
		}
		upd := model.TaskUpdate{
			Title:       &rt.Title,
			Completed:   &rt.Completed,
			IsImportant: &rt.IsImportant,
			DueDate:     due,
			SetDueDate:  true,
			ListID:      &listID,
		}
		if err := st.UpdateTask(ctx, rt.ID, upd); err != nil {
			return fmt.Errorf("merge task %s: %w", rt.ID, err)
		}
	}

	return nil
}

// dueEqual compares due dates by millisecond with "no date" distinct from
// every real instant, including the epoch.
func dueEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.UnixMilli() == b.UnixMilli()
}
