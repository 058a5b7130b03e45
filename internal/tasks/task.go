// Package tasks provides the task entity, its state machine and the in-memory registry.
package tasks

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of a task.
type Status string

const (
	StatusTodo       Status = "Todo"
	StatusInProgress Status = "InProgress"
	StatusCompleted  Status = "Completed"
	StatusCancelled  Status = "Cancelled"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusTodo, StatusInProgress, StatusCompleted, StatusCancelled}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return slices.Contains(Statuses, s)
}

// Label returns the human-readable form ("In Progress").
func (s Status) Label() string {
	if s == StatusInProgress {
		return "In Progress"
	}
	return string(s)
}

// ParseStatus accepts canonical names as well as common CLI spellings
// ("in-progress", "in_progress", "todo").
func ParseStatus(s string) (Status, error) {
	norm := strings.ToLower(strings.NewReplacer("-", "", "_", "", " ", "").Replace(s))
	for _, st := range Statuses {
		if strings.ToLower(string(st)) == norm {
			return st, nil
		}
	}
	return "", &ValidationError{Field: "status", Message: "unknown status " + s}
}

// Priority represents how urgent a task is.
type Priority string

const (
	PriorityLow      Priority = "Low"
	PriorityMedium   Priority = "Medium"
	PriorityHigh     Priority = "High"
	PriorityCritical Priority = "Critical"
)

// Priorities lists every priority by increasing severity.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	return slices.Contains(Priorities, p)
}

// Rank orders priorities by severity; unknown values rank below Low.
func (p Priority) Rank() int {
	return slices.Index(Priorities, p)
}

// ParsePriority parses a priority name case-insensitively.
func ParsePriority(s string) (Priority, error) {
	for _, p := range Priorities {
		if strings.EqualFold(string(p), strings.TrimSpace(s)) {
			return p, nil
		}
	}
	return "", &ValidationError{Field: "priority", Message: "unknown priority " + s}
}

// Task is one trackable unit of work.
type Task struct {
	ID          string     `json:"id" yaml:"id"`
	Title       string     `json:"title" yaml:"title"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Status      Status     `json:"status" yaml:"status"`
	Priority    Priority   `json:"priority" yaml:"priority"`
	Tags        []string   `json:"tags" yaml:"tags"`
	CreatedAt   time.Time  `json:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" yaml:"updated_at"`
	DueDate     *time.Time `json:"due_date,omitempty" yaml:"due_date,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	CreatedBy   string     `json:"created_by,omitempty" yaml:"created_by,omitempty"`
	AssignedTo  string     `json:"assigned_to,omitempty" yaml:"assigned_to,omitempty"`
}

// Collection maps task IDs to tasks.
type Collection map[string]*Task

// New creates a Todo task with Medium priority and a fresh identifier.
func New(title string) (*Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, &ValidationError{Field: "title", Message: "title cannot be empty"}
	}
	now := Now()
	return &Task{
		ID:        uuid.New().String(),
		Title:     title,
		Status:    StatusTodo,
		Priority:  PriorityMedium,
		Tags:      []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Now returns the current time in UTC. Every timestamp on a task comes from here.
func Now() time.Time {
	return time.Now().UTC()
}

// ShortID returns the first 8 characters of the ID, upper-cased, as shown in listings.
func (t *Task) ShortID() string {
	if len(t.ID) < 8 {
		return strings.ToUpper(t.ID)
	}
	return strings.ToUpper(t.ID[:8])
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	c := *t
	c.Tags = slices.Clone(t.Tags)
	if c.Tags == nil {
		c.Tags = []string{}
	}
	c.DueDate = cloneTime(t.DueDate)
	c.CompletedAt = cloneTime(t.CompletedAt)
	c.StartedAt = cloneTime(t.StartedAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func (t *Task) touch() {
	now := Now()
	if now.Before(t.CreatedAt) {
		now = t.CreatedAt
	}
	t.UpdatedAt = now
}

// Start moves the task to InProgress.
func (t *Task) Start(p Policy) error {
	if err := t.transition(p, StatusInProgress); err != nil {
		return err
	}
	now := t.UpdatedAt
	t.StartedAt = &now
	return nil
}

// Complete moves the task to Completed and stamps CompletedAt.
func (t *Task) Complete(p Policy) error {
	if err := t.transition(p, StatusCompleted); err != nil {
		return err
	}
	now := t.UpdatedAt
	t.CompletedAt = &now
	return nil
}

// Cancel moves the task to Cancelled.
func (t *Task) Cancel(p Policy) error {
	return t.transition(p, StatusCancelled)
}

func (t *Task) transition(p Policy, to Status) error {
	if p == nil {
		p = Strict
	}
	if !p.Allow(t.Status, to) {
		return &InvalidTransitionError{From: t.Status, To: to}
	}
	t.Status = to
	if to != StatusCompleted {
		t.CompletedAt = nil
	}
	t.touch()
	return nil
}

// SetTitle replaces the title. Blank titles are rejected.
func (t *Task) SetTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return &ValidationError{Field: "title", Message: "title cannot be empty"}
	}
	t.Title = title
	t.touch()
	return nil
}

// SetDescription replaces the description; an empty string clears it.
func (t *Task) SetDescription(desc string) {
	t.Description = desc
	t.touch()
}

// SetPriority replaces the priority.
func (t *Task) SetPriority(p Priority) error {
	if !p.Valid() {
		return &ValidationError{Field: "priority", Message: "unknown priority " + string(p)}
	}
	t.Priority = p
	t.touch()
	return nil
}

// SetDueDate sets or clears (nil) the due date.
func (t *Task) SetDueDate(due *time.Time) {
	if due != nil {
		d := due.UTC()
		due = &d
	}
	t.DueDate = due
	t.touch()
}

// AddTag appends tag unless it is already present. It reports whether the
// task changed; only a change stamps UpdatedAt.
func (t *Task) AddTag(tag string) (bool, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return false, &ValidationError{Field: "tag", Message: "tag cannot be empty"}
	}
	if slices.Contains(t.Tags, tag) {
		return false, nil
	}
	t.Tags = append(t.Tags, tag)
	t.touch()
	return true, nil
}

// RemoveTag removes tag and reports whether it was present.
func (t *Task) RemoveTag(tag string) bool {
	i := slices.Index(t.Tags, tag)
	if i < 0 {
		return false
	}
	t.Tags = slices.Delete(t.Tags, i, i+1)
	t.touch()
	return true
}

// SetTags replaces the whole tag set, dropping blanks and duplicates.
func (t *Task) SetTags(tags []string) {
	clean := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || slices.Contains(clean, tag) {
			continue
		}
		clean = append(clean, tag)
	}
	t.Tags = clean
	t.touch()
}

// Assign sets or clears (empty) the assignee.
func (t *Task) Assign(userID string) {
	t.AssignedTo = userID
	t.touch()
}

// HasTags reports whether every tag in tags is present on the task.
func (t *Task) HasTags(tags []string) bool {
	for _, tag := range tags {
		if !slices.Contains(t.Tags, tag) {
			return false
		}
	}
	return true
}

// MatchesText performs a case-insensitive substring match against the
// title, the description and every tag.
func (t *Task) MatchesText(query string) bool {
	q := strings.ToLower(query)
	if strings.Contains(strings.ToLower(t.Title), q) {
		return true
	}
	if strings.Contains(strings.ToLower(t.Description), q) {
		return true
	}
	for _, tag := range t.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}

// IsOverdue reports whether the due date is strictly before now and the task
// is not Completed. Cancelled tasks past their due date count as overdue.
func (t *Task) IsOverdue(now time.Time) bool {
	if t.DueDate == nil {
		return false
	}
	return t.DueDate.Before(now) && t.Status != StatusCompleted
}

// ParseTags splits a comma-separated list, trimming entries and dropping blanks.
func ParseTags(s string) []string {
	tags := []string{}
	for _, tag := range strings.Split(s, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
