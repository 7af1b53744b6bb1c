// Package taskindex maintains a disposable SQLite catalog of task state,
// giving callers fast listing filtered by status ("all FAILED_EXECUTION
// tasks", newest first) without walking the filesystem memory bank on every
// query.
// It is an accelerator over the canonical per-task JSON state, never the
// source of truth: Rebuild can always reconstruct it from disk.
package taskindex

import (
	"context"
	_ "embed"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/taskgraph/taskgraph/internal/fileutil"
	"github.com/taskgraph/taskgraph/internal/models"
)

//go:embed schema.sql
var schemaSQL string

// Store wraps the SQLite catalog database.
type Store struct {
	db *sql.DB
}

// Open creates (if necessary) and opens the catalog database at dbPath,
// initializing its schema.
func Open(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("taskindex: create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("taskindex: open database: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("taskindex: init schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Upsert inserts or replaces the catalog row for one task, called by the
// orchestrator right after it persists task_state.json.
func (s *Store) Upsert(ctx context.Context, task models.Task, taskDir string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (parent_task_id, user_task_string, mode, status, created_at, updated_at, task_dir)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(parent_task_id) DO UPDATE SET
			user_task_string = excluded.user_task_string,
			mode = excluded.mode,
			status = excluded.status,
			updated_at = excluded.updated_at,
			task_dir = excluded.task_dir
	`, task.ParentTaskID, task.UserTaskString, string(task.Mode), string(task.Status),
		task.CreatedAt.Format(time.RFC3339Nano), task.UpdatedAt.Format(time.RFC3339Nano), taskDir)
	if err != nil {
		return fmt.Errorf("taskindex: upsert %s: %w", task.ParentTaskID, err)
	}
	return nil
}

// Row is one catalog entry as returned by List.
type Row struct {
	ParentTaskID   string
	UserTaskString string
	Mode           models.Mode
	Status         models.Status
	CreatedAt      string
	UpdatedAt      string
	TaskDir        string
}

// List returns catalog rows, optionally filtered by status, newest first.
func (s *Store) List(ctx context.Context, status models.Status) ([]Row, error) {
	query := `SELECT parent_task_id, user_task_string, mode, status, created_at, updated_at, task_dir FROM tasks`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY updated_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("taskindex: list: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		var mode, st string
		if err := rows.Scan(&r.ParentTaskID, &r.UserTaskString, &mode, &st, &r.CreatedAt, &r.UpdatedAt, &r.TaskDir); err != nil {
			return nil, fmt.Errorf("taskindex: scan row: %w", err)
		}
		r.Mode = models.Mode(mode)
		r.Status = models.Status(st)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Rebuild clears and repopulates the catalog by scanning baseDir for
// per-task "task_state.json" files, used to recover from a deleted or
// stale catalog without losing any task history.
func (s *Store) Rebuild(ctx context.Context, baseDir string) (int, error) {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tasks`); err != nil {
		return 0, fmt.Errorf("taskindex: clear catalog: %w", err)
	}

	scan, err := fileutil.ScanDirectory(baseDir, fileutil.ScanOptions{
		Extensions: []string{".json"},
		Pattern:    "task_state",
		Recursive:  true,
	})
	if err != nil {
		return 0, fmt.Errorf("taskindex: scan %s: %w", baseDir, err)
	}

	count := 0
	for _, path := range scan.Files {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var task models.Task
		if err := json.Unmarshal(data, &task); err != nil {
			continue
		}
		if err := s.Upsert(ctx, task, filepath.Dir(path)); err != nil {
			continue
		}
		count++
	}
	return count, nil
}
