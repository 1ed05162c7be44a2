package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/uledev/taskchain/internal/errs"
	"github.com/uledev/taskchain/internal/model"
)

// memRepo is an in-memory Repository for tests.
type memRepo struct {
	tasks      map[string]model.Task
	workspaces map[string]model.Workspace
	failSave   error
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
	if r.failSave != nil {
		return r.failSave
	}
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
	if r.failSave != nil {
		return r.failSave
	}
	r.workspaces[w.ID] = w
	return nil
}

func (r *memRepo) DeleteWorkspace(_ context.Context, id string) error {
	delete(r.workspaces, id)
	return nil
}

func hydrated(t *testing.T) (*Store, *memRepo) {
	t.Helper()
	repo := newMemRepo()
	s := New(repo, zap.NewNop())
	require.NoError(t, s.Init(context.Background()))
	return s, repo
}

func TestInit_CreatesDefaultWorkspace(t *testing.T) {
	t.Parallel()
	s, repo := hydrated(t)

	require.True(t, s.Hydrated())
	_, workspaces := s.Snapshot()
	require.Len(t, workspaces, 1)
	require.Equal(t, DefaultWorkspaceID, workspaces[0].ID)
	require.Equal(t, DefaultWorkspaceName, workspaces[0].Name)
	// persisted too
	require.Contains(t, repo.workspaces, DefaultWorkspaceID)

	require.Equal(t, DefaultWorkspaceID, s.CurrentWorkspaceID())
}

func TestInit_Idempotent(t *testing.T) {
	t.Parallel()
	s, _ := hydrated(t)
	ctx := context.Background()

	_, err := s.AddTask(ctx, model.Task{Title: "x", ListID: DefaultWorkspaceID})
	require.NoError(t, err)

	require.NoError(t, s.Init(ctx))
	tasks, _ := s.Snapshot()
	require.Len(t, tasks, 1)
}

func TestInit_RepairsOrphanedTasks(t *testing.T) {
	t.Parallel()
	repo := newMemRepo()
	repo.workspaces[DefaultWorkspaceID] = model.Workspace{ID: DefaultWorkspaceID, Name: DefaultWorkspaceName}
	repo.tasks["orphan"] = model.Task{ID: "orphan", Title: "lost", ListID: "gone"}

	s := New(repo, zap.NewNop())
	require.NoError(t, s.Init(context.Background()))

	got, ok := s.GetTask("orphan")
	require.True(t, ok)
	require.Equal(t, DefaultWorkspaceID, got.ListID)
	require.Equal(t, DefaultWorkspaceID, repo.tasks["orphan"].ListID)
}

func TestMutations_RequireHydration(t *testing.T) {
	t.Parallel()
	s := New(newMemRepo(), zap.NewNop())
	ctx := context.Background()

	_, err := s.AddTask(ctx, model.Task{Title: "x"})
	require.ErrorIs(t, err, errs.ErrNotHydrated)
	require.ErrorIs(t, s.UpdateTask(ctx, "id", model.TaskUpdate{}), errs.ErrNotHydrated)
	require.ErrorIs(t, s.RemoveTask(ctx, "id"), errs.ErrNotHydrated)
	_, err = s.AddWorkspace(ctx, model.Workspace{Name: "w"})
	require.ErrorIs(t, err, errs.ErrNotHydrated)
}

func TestAddTask_GeneratesAndPreservesIDs(t *testing.T) {
	t.Parallel()
	s, _ := hydrated(t)
	ctx := context.Background()

	generated, err := s.AddTask(ctx, model.Task{Title: "a", ListID: DefaultWorkspaceID})
	require.NoError(t, err)
	require.NotEmpty(t, generated.ID)

	remote, err := s.AddTask(ctx, model.Task{ID: "remote-1", Title: "b", ListID: DefaultWorkspaceID})
	require.NoError(t, err)
	require.Equal(t, "remote-1", remote.ID)

	_, err = s.AddTask(ctx, model.Task{ID: "remote-1", Title: "dup"})
	require.Error(t, err)
}

func TestAddTask_UnknownWorkspaceFallsBackToDefault(t *testing.T) {
	t.Parallel()
	s, _ := hydrated(t)

	got, err := s.AddTask(context.Background(), model.Task{Title: "x", ListID: "missing"})
	require.NoError(t, err)
	require.Equal(t, DefaultWorkspaceID, got.ListID)
}

func TestUpdateTask_PartialAndDueDateClear(t *testing.T) {
	t.Parallel()
	s, _ := hydrated(t)
	ctx := context.Background()

	due := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)
	task, err := s.AddTask(ctx, model.Task{Title: "a", DueDate: &due, ListID: DefaultWorkspaceID})
	require.NoError(t, err)

	// partial update leaves the due date alone
	title := "b"
	require.NoError(t, s.UpdateTask(ctx, task.ID, model.TaskUpdate{Title: &title}))
	got, _ := s.GetTask(task.ID)
	require.Equal(t, "b", got.Title)
	require.NotNil(t, got.DueDate)

	// explicit clear sets it to nil, not the epoch
	require.NoError(t, s.UpdateTask(ctx, task.ID, model.TaskUpdate{SetDueDate: true}))
	got, _ = s.GetTask(task.ID)
	require.Nil(t, got.DueDate)

	require.ErrorIs(t, s.UpdateTask(ctx, "nope", model.TaskUpdate{Title: &title}), errs.ErrNotFound)
}

func TestRemoveWorkspace_CascadesTasks(t *testing.T) {
	t.Parallel()
	s, repo := hydrated(t)
	ctx := context.Background()

	ws, err := s.AddWorkspace(ctx, model.Workspace{Name: "Work"})
	require.NoError(t, err)
	_, err = s.AddTask(ctx, model.Task{Title: "in ws", ListID: ws.ID})
	require.NoError(t, err)
	keep, err := s.AddTask(ctx, model.Task{Title: "kept", ListID: DefaultWorkspaceID})
	require.NoError(t, err)
	s.SetCurrentWorkspace(ws.ID)

	require.NoError(t, s.RemoveWorkspace(ctx, ws.ID))

	tasks, workspaces := s.Snapshot()
	require.Len(t, workspaces, 1)
	require.Len(t, tasks, 1)
	require.Equal(t, keep.ID, tasks[0].ID)
	require.NotContains(t, repo.workspaces, ws.ID)
	require.Equal(t, DefaultWorkspaceID, s.CurrentWorkspaceID())
}

func TestDefaultWorkspace_Immutable(t *testing.T) {
	t.Parallel()
	s, _ := hydrated(t)
	ctx := context.Background()

	_, err := s.AddTask(ctx, model.Task{Title: "x", ListID: DefaultWorkspaceID})
	require.NoError(t, err)

	require.NoError(t, s.RemoveWorkspace(ctx, DefaultWorkspaceID))
	require.NoError(t, s.UpdateWorkspace(ctx, DefaultWorkspaceID, "renamed"))

	tasks, workspaces := s.Snapshot()
	require.Len(t, tasks, 1)
	require.Len(t, workspaces, 1)
	require.Equal(t, DefaultWorkspaceName, workspaces[0].Name)
}

func TestSetCurrentWorkspace_FallsBackToDefault(t *testing.T) {
	t.Parallel()
	s, _ := hydrated(t)

	ws, err := s.AddWorkspace(context.Background(), model.Workspace{Name: "Work"})
	require.NoError(t, err)

	s.SetCurrentWorkspace(ws.ID)
	require.Equal(t, ws.ID, s.CurrentWorkspaceID())

	s.SetCurrentWorkspace("bogus")
	require.Equal(t, DefaultWorkspaceID, s.CurrentWorkspaceID())
}

func TestSubscribe_NotifiesAndUnsubscribes(t *testing.T) {
	t.Parallel()
	s, _ := hydrated(t)
	ctx := context.Background()

	var calls int
	unsub := s.Subscribe(func() { calls++ })

	_, err := s.AddTask(ctx, model.Task{Title: "a", ListID: DefaultWorkspaceID})
	require.NoError(t, err)
	require.Equal(t, 1, calls)

	unsub()
	unsub() // second call harmless
	_, err = s.AddTask(ctx, model.Task{Title: "b", ListID: DefaultWorkspaceID})
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestMutation_PersistenceFailureLeavesStateUntouched(t *testing.T) {
	t.Parallel()
	s, repo := hydrated(t)
	ctx := context.Background()

	repo.failSave = errors.New("disk full")
	_, err := s.AddTask(ctx, model.Task{Title: "x", ListID: DefaultWorkspaceID})
	require.Error(t, err)

	tasks, _ := s.Snapshot()
	require.Empty(t, tasks)
}
