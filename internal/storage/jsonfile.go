package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dohr-michael/taskflow/internal/tasks"
)

// JSONFile stores the collection as one indented JSON object keyed by id.
type JSONFile struct {
	mu   sync.Mutex
	path string
}

func NewJSONFile(path string) *JSONFile {
	return &JSONFile{path: path}
}

func (s *JSONFile) Path() string { return s.path }

// Load reads the file. A missing or blank file yields an empty collection.
func (s *JSONFile) Load(_ context.Context) (tasks.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(tasks.Collection), nil
		}
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	return DecodeJSON(s.path, data)
}

// DecodeJSON decodes a collection document; origin names the source in errors.
// Null entries are dropped and a missing id is taken from the key. The result
// must pass tasks.Collection.Validate.
func DecodeJSON(origin string, data []byte) (tasks.Collection, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return make(tasks.Collection), nil
	}
	var c tasks.Collection
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, &SerializationError{Path: origin, Err: err}
	}
	return Normalize(c)
}

// Normalize fills the defaults an external document may omit and validates
// the result. The collection is returned only when every task is valid.
func Normalize(c tasks.Collection) (tasks.Collection, error) {
	if c == nil {
		return make(tasks.Collection), nil
	}
	for id, t := range c {
		if t == nil {
			delete(c, id)
			continue
		}
		if t.ID == "" {
			t.ID = id
		}
		if t.Tags == nil {
			t.Tags = []string{}
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Save atomically writes the collection using a temp file + rename.
func (s *JSONFile) Save(_ context.Context, c tasks.Collection) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return &SerializationError{Path: s.path, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write tasks tmp: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename tasks: %w", err)
	}
	return nil
}

func (s *JSONFile) Backup(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyFile(s.path, BackupPath(s.path))
}

func (s *JSONFile) Close() error { return nil }
