package tasks

import (
	"slices"
	"strings"
	"time"
)

// Filter selects tasks. The zero value of each field means "no constraint";
// constraints combine with AND.
type Filter struct {
	Status      Status
	Priority    Priority
	Tags        []string // task must carry all of them
	Query       string   // case-insensitive text match
	OverdueOnly bool
	CreatedBy   string
	AssignedTo  string
}

// Match reports whether t satisfies every constraint of f at instant now.
func (f Filter) Match(t *Task, now time.Time) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	if len(f.Tags) > 0 && !t.HasTags(f.Tags) {
		return false
	}
	if f.Query != "" && !t.MatchesText(f.Query) {
		return false
	}
	if f.OverdueOnly && !t.IsOverdue(now) {
		return false
	}
	if f.CreatedBy != "" && t.CreatedBy != f.CreatedBy {
		return false
	}
	if f.AssignedTo != "" && t.AssignedTo != f.AssignedTo {
		return false
	}
	return true
}

// Apply returns copies of the tasks in list matching f, order preserved.
func (f Filter) Apply(list []Task, now time.Time) []Task {
	out := make([]Task, 0, len(list))
	for i := range list {
		if f.Match(&list[i], now) {
			out = append(out, list[i])
		}
	}
	return out
}

// Stats holds per-status counts over a set of tasks.
type Stats struct {
	Total      int `json:"total"`
	Todo       int `json:"todo"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
	Cancelled  int `json:"cancelled"`
	Overdue    int `json:"overdue"`
}

// CompletionRate is the percentage of completed tasks, 0 when empty.
func (s Stats) CompletionRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Completed) / float64(s.Total) * 100
}

func (s *Stats) add(t *Task, now time.Time) {
	s.Total++
	switch t.Status {
	case StatusTodo:
		s.Todo++
	case StatusInProgress:
		s.InProgress++
	case StatusCompleted:
		s.Completed++
	case StatusCancelled:
		s.Cancelled++
	}
	if t.IsOverdue(now) {
		s.Overdue++
	}
}

// ComputeStats counts list at instant now.
func ComputeStats(list []Task, now time.Time) Stats {
	var s Stats
	for i := range list {
		s.add(&list[i], now)
	}
	return s
}

// SortNewest orders by creation time, newest first. Ties break on id so the
// result is deterministic.
func SortNewest(list []Task) {
	slices.SortStableFunc(list, func(a, b Task) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

// SortBySearchRelevance moves tasks whose title matches query ahead of the
// others, keeping the relative order within each group.
func SortBySearchRelevance(list []Task, query string) {
	q := strings.ToLower(query)
	rank := func(t Task) int {
		if strings.Contains(strings.ToLower(t.Title), q) {
			return 0
		}
		return 1
	}
	slices.SortStableFunc(list, func(a, b Task) int {
		return rank(a) - rank(b)
	})
}
