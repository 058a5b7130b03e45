package tasks

import (
	"fmt"
	"slices"
	"strings"
)

// Validate checks the invariants every stored task must hold. It is used on
// documents read from outside the registry, before they replace anything.
func (t *Task) Validate() error {
	invalid := func(field, format string, args ...any) error {
		return &ValidationError{Field: field, Message: fmt.Sprintf("task %s: ", t.ID) + fmt.Sprintf(format, args...)}
	}

	if strings.TrimSpace(t.ID) == "" {
		return &ValidationError{Field: "id", Message: "task without id"}
	}
	if strings.TrimSpace(t.Title) == "" {
		return invalid("title", "title cannot be empty")
	}
	if !t.Status.Valid() {
		return invalid("status", "unknown status %q", t.Status)
	}
	if !t.Priority.Valid() {
		return invalid("priority", "unknown priority %q", t.Priority)
	}
	for i, tag := range t.Tags {
		if strings.TrimSpace(tag) == "" {
			return invalid("tags", "empty tag")
		}
		if slices.Contains(t.Tags[:i], tag) {
			return invalid("tags", "duplicate tag %q", tag)
		}
	}
	if t.UpdatedAt.Before(t.CreatedAt) {
		return invalid("updated_at", "updated_at is before created_at")
	}
	switch {
	case t.Status == StatusCompleted && t.CompletedAt == nil:
		return invalid("completed_at", "completed task without completed_at")
	case t.Status != StatusCompleted && t.CompletedAt != nil:
		return invalid("completed_at", "completed_at set on a %s task", t.Status.Label())
	}
	return nil
}

// Validate checks every task and that each key is the id of its task.
// Tasks are visited in key order so the reported error is deterministic.
func (c Collection) Validate() error {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		t := c[k]
		if t == nil {
			return &ValidationError{Field: "id", Message: fmt.Sprintf("entry %q is empty", k)}
		}
		if t.ID != k {
			return &ValidationError{Field: "id", Message: fmt.Sprintf("entry %q holds task %q", k, t.ID)}
		}
		if err := t.Validate(); err != nil {
			return err
		}
	}
	return nil
}
