// Package storage persists a whole task collection through interchangeable
// backends.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dohr-michael/taskflow/internal/tasks"
)

var (
	ErrUnsupportedStorage = errors.New("unsupported storage backend")
	ErrSerialization      = errors.New("serialization error")
)

// SerializationError reports stored content that cannot be decoded.
type SerializationError struct {
	Path string
	Err  error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialization error in %s: %v", e.Path, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

func (e *SerializationError) Is(target error) bool { return target == ErrSerialization }

// Backend saves and loads a whole collection.
type Backend interface {
	Save(ctx context.Context, c tasks.Collection) error
	Load(ctx context.Context) (tasks.Collection, error)
	// Backup copies the current store next to itself with a .backup suffix.
	// It is a no-op when nothing has been saved yet.
	Backup(ctx context.Context) error
	Close() error
}

// Kind names a backend.
type Kind string

const (
	KindFile   Kind = "file"
	KindSQLite Kind = "embedded-db"
)

// ParseKind maps a user-facing backend name to a Kind.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "file", "json":
		return KindFile, nil
	case "embedded-db", "sqlite", "db":
		return KindSQLite, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedStorage, name)
	}
}

// DefaultFileName returns the data file name used by a backend kind.
func DefaultFileName(k Kind) string {
	if k == KindSQLite {
		return "tasks.db"
	}
	return "tasks.json"
}

// New opens the backend called name at path. Unknown names fail before any I/O.
func New(ctx context.Context, name, path string) (Backend, error) {
	kind, err := ParseKind(name)
	if err != nil {
		return nil, err
	}
	switch kind {
	case KindSQLite:
		return OpenSQLite(ctx, path)
	default:
		return NewJSONFile(path), nil
	}
}

// BackupPath is where Backup writes a copy of path.
func BackupPath(path string) string {
	return path + ".backup"
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create backup: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("copy backup: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close backup: %w", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		return fmt.Errorf("rename backup: %w", err)
	}
	return nil
}
