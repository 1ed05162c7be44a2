// Package store holds the mutable local copy of tasks and workspaces.
//
// The store is the single source of truth for the UI and the sync engine.
// It hydrates from a Repository on startup, mirrors every mutation back to
// it, and notifies subscribers after each change.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/uledev/taskchain/internal/errs"
	"github.com/uledev/taskchain/internal/model"
)

// DefaultWorkspaceID identifies the workspace that always exists and can
// never be renamed or deleted.
const DefaultWorkspaceID = "default"

// DefaultWorkspaceName is the display name of the default workspace.
const DefaultWorkspaceName = "My Tasks"

// Repository is the durable persistence collaborator behind the store.
type Repository interface {
	// LoadTasks returns all persisted tasks.
	LoadTasks(ctx context.Context) ([]model.Task, error)
	// LoadWorkspaces returns all persisted workspaces.
	LoadWorkspaces(ctx context.Context) ([]model.Workspace, error)
	// SaveTask inserts or replaces a task.
	SaveTask(ctx context.Context, t model.Task) error
	// DeleteTask removes a task by id.
	DeleteTask(ctx context.Context, id string) error
	// DeleteTasksByList removes every task referencing the workspace.
	DeleteTasksByList(ctx context.Context, listID string) error
	// SaveWorkspace inserts or replaces a workspace.
	SaveWorkspace(ctx context.Context, w model.Workspace) error
	// DeleteWorkspace removes a workspace by id.
	DeleteWorkspace(ctx context.Context, id string) error
}

// Store is the in-memory state plus its persistence mirror.
// Safe for concurrent use; the sync worker and caller code share it.
type Store struct {
	mu sync.RWMutex

	tasks      []model.Task
	workspaces []model.Workspace
	currentWS  string
	hydrated   bool

	subMu  sync.Mutex
	nextID int
	subs   map[int]func()

	repo Repository
	log  *zap.Logger
}

// New constructs a store over the given repository.
func New(repo Repository, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		repo: repo,
		log:  log,
		subs: make(map[int]func()),
	}
}

// Init hydrates the store from the repository. Idempotent: a second call is
// a no-op. The default workspace is created if missing, tasks referencing a
// vanished workspace are reassigned to it, and the current workspace falls
// back to the default when invalid.
func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hydrated {
		return nil
	}

	workspaces, err := s.repo.LoadWorkspaces(ctx)
	if err != nil {
		return fmt.Errorf("load workspaces: %w", err)
	}
	tasks, err := s.repo.LoadTasks(ctx)
	if err != nil {
		return fmt.Errorf("load tasks: %w", err)
	}

	hasDefault := false
	byID := make(map[string]struct{}, len(workspaces))
	for _, w := range workspaces {
		byID[w.ID] = struct{}{}
		if w.ID == DefaultWorkspaceID {
			hasDefault = true
		}
	}
	if !hasDefault {
		def := model.Workspace{ID: DefaultWorkspaceID, Name: DefaultWorkspaceName}
		if err := s.repo.SaveWorkspace(ctx, def); err != nil {
			return fmt.Errorf("create default workspace: %w", err)
		}
		workspaces = append(workspaces, def)
		byID[DefaultWorkspaceID] = struct{}{}
	}

	for i := range tasks {
		if _, ok := byID[tasks[i].ListID]; ok {
			continue
		}
		s.log.Warn("task references missing workspace, reassigning to default",
			zap.String("task", tasks[i].ID),
			zap.String("listId", tasks[i].ListID),
		)
		tasks[i].ListID = DefaultWorkspaceID
		if err := s.repo.SaveTask(ctx, tasks[i]); err != nil {
			return fmt.Errorf("repair task %s: %w", tasks[i].ID, err)
		}
	}

	s.workspaces = workspaces
	s.tasks = tasks
	if _, ok := byID[s.currentWS]; !ok {
		s.currentWS = DefaultWorkspaceID
	}
	s.hydrated = true
	return nil
}

// Hydrated reports whether Init has completed.
func (s *Store) Hydrated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hydrated
}

// Snapshot returns copies of the current tasks and workspaces.
func (s *Store) Snapshot() ([]model.Task, []model.Workspace) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tasks := make([]model.Task, len(s.tasks))
	copy(tasks, s.tasks)
	workspaces := make([]model.Workspace, len(s.workspaces))
	copy(workspaces, s.workspaces)
	return tasks, workspaces
}

// CurrentWorkspaceID returns the active workspace, always a valid id.
func (s *Store) CurrentWorkspaceID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.currentWS == "" {
		return DefaultWorkspaceID
	}
	return s.currentWS
}

// SetCurrentWorkspace switches the active workspace; unknown ids fall back
// to the default.
func (s *Store) SetCurrentWorkspace(id string) {
	s.mu.Lock()
	if s.findWorkspace(id) < 0 {
		id = DefaultWorkspaceID
	}
	s.currentWS = id
	s.mu.Unlock()
	s.notify()
}

// GetTask returns a task by id.
func (s *Store) GetTask(id string) (model.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.findTask(id); i >= 0 {
		return s.tasks[i], true
	}
	return model.Task{}, false
}

// AddTask inserts a task. An empty ID is filled with a fresh UUID; a
// provided ID is preserved (the merge engine inserts under remote ids).
// Tasks pointing at an unknown workspace land in the default one.
func (s *Store) AddTask(ctx context.Context, t model.Task) (model.Task, error) {
	s.mu.Lock()
	if !s.hydrated {
		s.mu.Unlock()
		return model.Task{}, errs.ErrNotHydrated
	}
	if t.ID == "" {
		id, err := uuid.NewV4()
		if err != nil {
			s.mu.Unlock()
			return model.Task{}, err
		}
		t.ID = id.String()
	}
	if s.findTask(t.ID) >= 0 {
		s.mu.Unlock()
		return model.Task{}, fmt.Errorf("task %s: already exists", t.ID)
	}
	if s.findWorkspace(t.ListID) < 0 {
		t.ListID = DefaultWorkspaceID
	}
	if err := s.repo.SaveTask(ctx, t); err != nil {
		s.mu.Unlock()
		return model.Task{}, err
	}
	s.tasks = append(s.tasks, t)
	s.mu.Unlock()
	s.notify()
	return t, nil
}

// UpdateTask applies a partial update to a task.
func (s *Store) UpdateTask(ctx context.Context, id string, upd model.TaskUpdate) error {
	s.mu.Lock()
	if !s.hydrated {
		s.mu.Unlock()
		return errs.ErrNotHydrated
	}
	i := s.findTask(id)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("task %s: %w", id, errs.ErrNotFound)
	}
	t := s.tasks[i]
	if upd.Title != nil {
		t.Title = *upd.Title
	}
	if upd.Completed != nil {
		t.Completed = *upd.Completed
	}
	if upd.IsImportant != nil {
		t.IsImportant = *upd.IsImportant
	}
	if upd.ListID != nil {
		if s.findWorkspace(*upd.ListID) < 0 {
			s.mu.Unlock()
			return fmt.Errorf("workspace %s: %w", *upd.ListID, errs.ErrNotFound)
		}
		t.ListID = *upd.ListID
	}
	if upd.SetDueDate {
		t.DueDate = upd.DueDate
	}
	if err := s.repo.SaveTask(ctx, t); err != nil {
		s.mu.Unlock()
		return err
	}
	s.tasks[i] = t
	s.mu.Unlock()
	s.notify()
	return nil
}

// RemoveTask deletes a task by id. Unknown ids are a no-op.
func (s *Store) RemoveTask(ctx context.Context, id string) error {
	s.mu.Lock()
	if !s.hydrated {
		s.mu.Unlock()
		return errs.ErrNotHydrated
	}
	i := s.findTask(id)
	if i < 0 {
		s.mu.Unlock()
		return nil
	}
	if err := s.repo.DeleteTask(ctx, id); err != nil {
		s.mu.Unlock()
		return err
	}
	s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
	s.mu.Unlock()
	s.notify()
	return nil
}

// AddWorkspace inserts a workspace, generating an id when absent.
func (s *Store) AddWorkspace(ctx context.Context, w model.Workspace) (model.Workspace, error) {
	s.mu.Lock()
	if !s.hydrated {
		s.mu.Unlock()
		return model.Workspace{}, errs.ErrNotHydrated
	}
	if w.ID == "" {
		id, err := uuid.NewV4()
		if err != nil {
			s.mu.Unlock()
			return model.Workspace{}, err
		}
		w.ID = id.String()
	}
	if s.findWorkspace(w.ID) >= 0 {
		s.mu.Unlock()
		return model.Workspace{}, fmt.Errorf("workspace %s: already exists", w.ID)
	}
	if err := s.repo.SaveWorkspace(ctx, w); err != nil {
		s.mu.Unlock()
		return model.Workspace{}, err
	}
	s.workspaces = append(s.workspaces, w)
	s.mu.Unlock()
	s.notify()
	return w, nil
}

// UpdateWorkspace renames a workspace. Renaming the default workspace is a
// no-op with a warning.
func (s *Store) UpdateWorkspace(ctx context.Context, id, name string) error {
	s.mu.Lock()
	if !s.hydrated {
		s.mu.Unlock()
		return errs.ErrNotHydrated
	}
	if id == DefaultWorkspaceID {
		s.mu.Unlock()
		s.log.Warn("refusing to rename default workspace")
		return nil
	}
	i := s.findWorkspace(id)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("workspace %s: %w", id, errs.ErrNotFound)
	}
	w := s.workspaces[i]
	w.Name = name
	if err := s.repo.SaveWorkspace(ctx, w); err != nil {
		s.mu.Unlock()
		return err
	}
	s.workspaces[i] = w
	s.mu.Unlock()
	s.notify()
	return nil
}

// RemoveWorkspace deletes a workspace and every task it contains.
// Removing the default workspace is a no-op with a warning.
func (s *Store) RemoveWorkspace(ctx context.Context, id string) error {
	s.mu.Lock()
	if !s.hydrated {
		s.mu.Unlock()
		return errs.ErrNotHydrated
	}
	if id == DefaultWorkspaceID {
		s.mu.Unlock()
		s.log.Warn("refusing to remove default workspace")
		return nil
	}
	i := s.findWorkspace(id)
	if i < 0 {
		s.mu.Unlock()
		return nil
	}
	if err := s.repo.DeleteTasksByList(ctx, id); err != nil {
		s.mu.Unlock()
		return err
	}
	if err := s.repo.DeleteWorkspace(ctx, id); err != nil {
		s.mu.Unlock()
		return err
	}
	kept := s.tasks[:0]
	for _, t := range s.tasks {
		if t.ListID != id {
			kept = append(kept, t)
		}
	}
	s.tasks = kept
	s.workspaces = append(s.workspaces[:i], s.workspaces[i+1:]...)
	if s.currentWS == id {
		s.currentWS = DefaultWorkspaceID
	}
	s.mu.Unlock()
	s.notify()
	return nil
}

// Subscribe registers a listener invoked after every mutation. The returned
// function removes the listener; calling it twice is harmless.
func (s *Store) Subscribe(fn func()) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify() {
	s.subMu.Lock()
	fns := make([]func(), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// callers hold s.mu
func (s *Store) findTask(id string) int {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) findWorkspace(id string) int {
	for i := range s.workspaces {
		if s.workspaces[i].ID == id {
			return i
		}
	}
	return -1
}
