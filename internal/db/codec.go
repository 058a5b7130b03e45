package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dohr-michael/taskflow/internal/tasks"
)

// DecodeError reports a stored value that cannot be turned back into a task.
type DecodeError struct {
	ID     string
	Column string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode task %s column %s: %v", e.ID, e.Column, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

const taskColumns = `id, title, description, status, priority, tags, created_at, updated_at,
	due_date, completed_at, started_at, created_by, assigned_to`

const insertTaskSQL = `INSERT INTO tasks (` + taskColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// timeLayout is RFC 3339 with a fixed-width fraction so stored values sort
// lexicographically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func encodeTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func encodeTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return encodeTime(*t)
}

func taskArgs(t *tasks.Task) ([]any, error) {
	tags := t.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("encode tags: %w", err)
	}
	return []any{
		t.ID, t.Title, t.Description, string(t.Status), string(t.Priority), string(tagsJSON),
		encodeTime(t.CreatedAt), encodeTime(t.UpdatedAt),
		encodeTimePtr(t.DueDate), encodeTimePtr(t.CompletedAt), encodeTimePtr(t.StartedAt),
		t.CreatedBy, t.AssignedTo,
	}, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanTask decodes one row selected with taskColumns.
func scanTask(row scanner) (*tasks.Task, error) {
	var (
		t                          tasks.Task
		status, priority, tagsJSON string
		created, updated           string
		due, completed, started    sql.NullString
	)
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &status, &priority, &tagsJSON,
		&created, &updated, &due, &completed, &started, &t.CreatedBy, &t.AssignedTo); err != nil {
		return nil, err
	}

	t.Status = decodeStatus(status)
	t.Priority = decodePriority(priority)

	t.Tags = []string{}
	if tagsJSON != "" {
		if err := json.Unmarshal([]byte(tagsJSON), &t.Tags); err != nil {
			return nil, &DecodeError{ID: t.ID, Column: "tags", Err: err}
		}
	}

	var err error
	if t.CreatedAt, err = decodeTime(created); err != nil {
		return nil, &DecodeError{ID: t.ID, Column: "created_at", Err: err}
	}
	if t.UpdatedAt, err = decodeTime(updated); err != nil {
		return nil, &DecodeError{ID: t.ID, Column: "updated_at", Err: err}
	}
	for _, c := range []struct {
		name string
		src  sql.NullString
		dst  **time.Time
	}{
		{"due_date", due, &t.DueDate},
		{"completed_at", completed, &t.CompletedAt},
		{"started_at", started, &t.StartedAt},
	} {
		if !c.src.Valid {
			continue
		}
		v, err := decodeTime(c.src.String)
		if err != nil {
			return nil, &DecodeError{ID: t.ID, Column: c.name, Err: err}
		}
		*c.dst = &v
	}
	return &t, nil
}

func decodeTime(s string) (time.Time, error) {
	v, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return v.UTC(), nil
}

// decodeStatus also accepts display labels ("In Progress") written by older
// builds. Unknown text falls back to Todo.
func decodeStatus(s string) tasks.Status {
	if st, err := tasks.ParseStatus(s); err == nil {
		return st
	}
	return tasks.StatusTodo
}

// decodePriority falls back to Medium for unknown text.
func decodePriority(s string) tasks.Priority {
	if p, err := tasks.ParsePriority(s); err == nil {
		return p
	}
	return tasks.PriorityMedium
}
