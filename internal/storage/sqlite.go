package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/dohr-michael/taskflow/internal/db"
	"github.com/dohr-michael/taskflow/internal/tasks"
)

// SQLite stores the collection in the tasks table of an embedded database.
type SQLite struct {
	db *db.DB
}

// OpenSQLite opens (and migrates) the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	d, err := db.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	return &SQLite{db: d}, nil
}

// Save replaces every row with the content of c in one transaction.
func (s *SQLite) Save(ctx context.Context, c tasks.Collection) error {
	return s.db.ReplaceTasks(ctx, c)
}

func (s *SQLite) Load(ctx context.Context) (tasks.Collection, error) {
	c, err := s.db.LoadTasks(ctx)
	if err != nil {
		var de *db.DecodeError
		if errors.As(err, &de) {
			return nil, &SerializationError{Path: s.db.Path(), Err: err}
		}
		return nil, err
	}
	return c, nil
}

// Backup checkpoints the WAL so the main file is complete, then copies it.
func (s *SQLite) Backup(ctx context.Context) error {
	if s.db.Path() == ":memory:" {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE);"); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	return copyFile(s.db.Path(), BackupPath(s.db.Path()))
}

func (s *SQLite) Close() error { return s.db.Close() }
