// Package sqlite persists the local store in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/uledev/taskchain/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS workspaces (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS tasks (
	id           TEXT PRIMARY KEY,
	title        TEXT NOT NULL,
	completed    INTEGER NOT NULL DEFAULT 0,
	due_date     TEXT,
	is_important INTEGER NOT NULL DEFAULT 0,
	list_id      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_list_id ON tasks(list_id);
`

// Repo implements store.Repository on a SQLite file.
// A missing due date is stored as NULL, never as the epoch.
type Repo struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and ensures the schema.
func Open(ctx context.Context, path string) (*Repo, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Repo{db: db}, nil
}

// Close closes the underlying database.
func (r *Repo) Close() error { return r.db.Close() }

// LoadTasks returns all persisted tasks.
func (r *Repo) LoadTasks(ctx context.Context) ([]model.Task, error) {
	const q = `SELECT id, title, completed, due_date, is_important, list_id FROM tasks`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Task
	for rows.Next() {
		var (
			t   model.Task
			due sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.Title, &t.Completed, &due, &t.IsImportant, &t.ListID); err != nil {
			return nil, err
		}
		if due.Valid {
			ts, err := time.Parse(time.RFC3339Nano, due.String)
			if err != nil {
				return nil, fmt.Errorf("task %s: bad due_date: %w", t.ID, err)
			}
			ts = ts.UTC()
			t.DueDate = &ts
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// LoadWorkspaces returns all persisted workspaces.
func (r *Repo) LoadWorkspaces(ctx context.Context) ([]model.Workspace, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM workspaces`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Workspace
	for rows.Next() {
		var w model.Workspace
		if err := rows.Scan(&w.ID, &w.Name); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// SaveTask inserts or replaces a task.
func (r *Repo) SaveTask(ctx context.Context, t model.Task) error {
	const q = `
INSERT INTO tasks (id, title, completed, due_date, is_important, list_id)
VALUES (?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET
	title=excluded.title, completed=excluded.completed,
	due_date=excluded.due_date, is_important=excluded.is_important,
	list_id=excluded.list_id`
	var due sql.NullString
	if t.DueDate != nil {
		due = sql.NullString{String: t.DueDate.UTC().Format(time.RFC3339Nano), Valid: true}
	}
	_, err := r.db.ExecContext(ctx, q, t.ID, t.Title, t.Completed, due, t.IsImportant, t.ListID)
	return err
}

// DeleteTask removes a task by id.
func (r *Repo) DeleteTask(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id)
	return err
}

// DeleteTasksByList removes every task referencing the workspace.
func (r *Repo) DeleteTasksByList(ctx context.Context, listID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE list_id=?`, listID)
	return err
}

// SaveWorkspace inserts or replaces a workspace.
func (r *Repo) SaveWorkspace(ctx context.Context, w model.Workspace) error {
	const q = `
INSERT INTO workspaces (id, name) VALUES (?,?)
ON CONFLICT(id) DO UPDATE SET name=excluded.name`
	_, err := r.db.ExecContext(ctx, q, w.ID, w.Name)
	return err
}

// DeleteWorkspace removes a workspace by id.
func (r *Repo) DeleteWorkspace(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM workspaces WHERE id=?`, id)
	return err
}
