package syncer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/uledev/taskchain/internal/model"
	"github.com/uledev/taskchain/internal/store"
)

// memRepo is an in-memory store.Repository for tests.
type memRepo struct {
	tasks      map[string]model.Task
	workspaces map[string]model.Workspace
}

func newMemRepo() *memRepo {
	return &memRepo{
		tasks:      make(map[string]model.Task),
		workspaces: make(map[string]model.Workspace),
	}
}

func (r *memRepo) LoadTasks(context.Context) ([]model.Task, error) {
	out := make([]model.Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, t)
	}
	return out, nil
}

func (r *memRepo) LoadWorkspaces(context.Context) ([]model.Workspace, error) {
	out := make([]model.Workspace, 0, len(r.workspaces))
	for _, w := range r.workspaces {
		out = append(out, w)
	}
	return out, nil
}

func (r *memRepo) SaveTask(_ context.Context, t model.Task) error {
	r.tasks[t.ID] = t
	return nil
}

func (r *memRepo) DeleteTask(_ context.Context, id string) error {
	delete(r.tasks, id)
	return nil
}

func (r *memRepo) DeleteTasksByList(_ context.Context, listID string) error {
	for id, t := range r.tasks {
		if t.ListID == listID {
			delete(r.tasks, id)
		}
	}
	return nil
}

func (r *memRepo) SaveWorkspace(_ context.Context, w model.Workspace) error {
	r.workspaces[w.ID] = w
	return nil
}

func (r *memRepo) DeleteWorkspace(_ context.Context, id string) error {
	delete(r.workspaces, id)
	return nil
}

// newHydratedStore builds a store over a fresh memRepo and hydrates it.
func newHydratedStore(t *testing.T) *store.Store {
	t.Helper()
	s := store.New(newMemRepo(), zap.NewNop())
	require.NoError(t, s.Init(context.Background()))
	return s
}

func strptr(s string) *string { return &s }
