package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dohr-michael/taskflow/internal/tasks"
)

// ReplaceTasks overwrites the whole tasks table with c in one transaction.
func (db *DB) ReplaceTasks(ctx context.Context, c tasks.Collection) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM tasks`); err != nil {
			return fmt.Errorf("clear tasks: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx, insertTaskSQL)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, t := range c {
			args, err := taskArgs(t)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return fmt.Errorf("insert task %s: %w", t.ID, err)
			}
		}
		return nil
	})
}

// LoadTasks reads every row into a collection.
func (db *DB) LoadTasks(ctx context.Context) (tasks.Collection, error) {
	list, err := db.queryTasks(ctx, `SELECT `+taskColumns+` FROM tasks`)
	if err != nil {
		return nil, err
	}
	c := make(tasks.Collection, len(list))
	for _, t := range list {
		c[t.ID] = t
	}
	return c, nil
}

// CreateTask inserts a new task.
func (db *DB) CreateTask(ctx context.Context, t *tasks.Task) error {
	return insertTask(ctx, db.DB, t)
}

func insertTask(ctx context.Context, exec executor, t *tasks.Task) error {
	args, err := taskArgs(t)
	if err != nil {
		return err
	}
	if _, err := exec.ExecContext(ctx, insertTaskSQL, args...); err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// GetTask retrieves a task by its ID.
func (db *DB) GetTask(ctx context.Context, id string) (*tasks.Task, error) {
	row := db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tasks.TaskNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// UpdateTask writes every mutable column of t.
func (db *DB) UpdateTask(ctx context.Context, t *tasks.Task) error {
	args, err := taskArgs(t)
	if err != nil {
		return err
	}
	// args[0] is the id; move it to the WHERE clause.
	args = append(args[1:], t.ID)
	res, err := db.ExecContext(ctx, `
		UPDATE tasks SET title = ?, description = ?, status = ?, priority = ?, tags = ?,
		       created_at = ?, updated_at = ?, due_date = ?, completed_at = ?, started_at = ?,
		       created_by = ?, assigned_to = ?
		WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return tasks.TaskNotFound(t.ID)
	}
	return nil
}

// DeleteTask removes a task by its ID.
func (db *DB) DeleteTask(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return tasks.TaskNotFound(id)
	}
	return nil
}

// ListTasksForUser returns the tasks created by or assigned to userID,
// newest first.
func (db *DB) ListTasksForUser(ctx context.Context, userID string) ([]*tasks.Task, error) {
	return db.queryTasks(ctx, `SELECT `+taskColumns+` FROM tasks
		WHERE created_by = ? OR assigned_to = ?
		ORDER BY created_at DESC`, userID, userID)
}

// PurgeCompleted deletes Completed tasks finished before cutoff and returns them.
func (db *DB) PurgeCompleted(ctx context.Context, cutoff time.Time) ([]*tasks.Task, error) {
	var removed []*tasks.Task
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		list, err := queryTasks(ctx, tx, `SELECT `+taskColumns+` FROM tasks
			WHERE status = ? AND completed_at IS NOT NULL AND completed_at < ?`,
			string(tasks.StatusCompleted), encodeTime(cutoff))
		if err != nil {
			return err
		}
		for _, t := range list {
			if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, t.ID); err != nil {
				return fmt.Errorf("purge task %s: %w", t.ID, err)
			}
		}
		removed = list
		return nil
	})
	return removed, err
}

func (db *DB) queryTasks(ctx context.Context, query string, args ...any) ([]*tasks.Task, error) {
	return queryTasks(ctx, db.DB, query, args...)
}

func queryTasks(ctx context.Context, exec executor, query string, args ...any) ([]*tasks.Task, error) {
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var list []*tasks.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		list = append(list, t)
	}
	return list, rows.Err()
}
