package tasks

import (
	"slices"
	"strings"
	"time"
)

// Registry is the in-memory owner of a task collection. It is not safe for
// concurrent use; each CLI invocation owns one.
type Registry struct {
	tasks  Collection
	policy Policy
	now    func() time.Time
}

// NewRegistry creates an empty registry enforcing policy (nil means Strict).
func NewRegistry(policy Policy) *Registry {
	if policy == nil {
		policy = Strict
	}
	return &Registry{tasks: make(Collection), policy: policy, now: Now}
}

// Policy returns the transition policy in force.
func (r *Registry) Policy() Policy { return r.policy }

// Add creates a Todo task and returns its id.
func (r *Registry) Add(title string) (string, error) {
	t, err := New(title)
	if err != nil {
		return "", err
	}
	r.tasks[t.ID] = t
	return t.ID, nil
}

// Insert stores an already built task, replacing any task with the same id.
func (r *Registry) Insert(t *Task) {
	r.tasks[t.ID] = t
}

// Get returns a copy of the task.
func (r *Registry) Get(id string) (Task, bool) {
	t, ok := r.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *t.Clone(), true
}

// GetMutable returns the stored task itself.
func (r *Registry) GetMutable(id string) (*Task, bool) {
	t, ok := r.tasks[id]
	return t, ok
}

func (r *Registry) lookup(id string) (*Task, error) {
	t, ok := r.tasks[id]
	if !ok {
		return nil, TaskNotFound(id)
	}
	return t, nil
}

// Update applies fn to the task with id. Errors from fn are returned as is.
func (r *Registry) Update(id string, fn func(*Task) error) error {
	t, err := r.lookup(id)
	if err != nil {
		return err
	}
	return fn(t)
}

func (r *Registry) SetTitle(id, title string) error {
	return r.Update(id, func(t *Task) error { return t.SetTitle(title) })
}

func (r *Registry) SetDescription(id, desc string) error {
	return r.Update(id, func(t *Task) error { t.SetDescription(desc); return nil })
}

func (r *Registry) SetPriority(id string, p Priority) error {
	return r.Update(id, func(t *Task) error { return t.SetPriority(p) })
}

func (r *Registry) SetDueDate(id string, due *time.Time) error {
	return r.Update(id, func(t *Task) error { t.SetDueDate(due); return nil })
}

// AddTag adds tag to the task; it reports whether the tag was new.
func (r *Registry) AddTag(id, tag string) (bool, error) {
	t, err := r.lookup(id)
	if err != nil {
		return false, err
	}
	return t.AddTag(tag)
}

// RemoveTag removes tag from the task; it reports whether the tag was present.
func (r *Registry) RemoveTag(id, tag string) (bool, error) {
	t, err := r.lookup(id)
	if err != nil {
		return false, err
	}
	return t.RemoveTag(tag), nil
}

func (r *Registry) Start(id string) error {
	return r.Update(id, func(t *Task) error { return t.Start(r.policy) })
}

func (r *Registry) Complete(id string) error {
	return r.Update(id, func(t *Task) error { return t.Complete(r.policy) })
}

func (r *Registry) Cancel(id string) error {
	return r.Update(id, func(t *Task) error { return t.Cancel(r.policy) })
}

// Delete removes the task and returns it.
func (r *Registry) Delete(id string) (Task, error) {
	t, err := r.lookup(id)
	if err != nil {
		return Task{}, err
	}
	delete(r.tasks, id)
	return *t, nil
}

// All returns copies of every task in unspecified order.
func (r *Registry) All() []Task {
	out := make([]Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, *t.Clone())
	}
	return out
}

// Filter returns copies of the tasks matching f, in unspecified order.
func (r *Registry) Filter(f Filter) []Task {
	now := r.now()
	out := make([]Task, 0)
	for _, t := range r.tasks {
		if f.Match(t, now) {
			out = append(out, *t.Clone())
		}
	}
	return out
}

// Search is Filter with only a text query.
func (r *Registry) Search(query string) []Task {
	return r.Filter(Filter{Query: query})
}

func (r *Registry) Stats() Stats {
	now := r.now()
	var s Stats
	for _, t := range r.tasks {
		s.add(t, now)
	}
	return s
}

// AllTags returns every tag in use, sorted and deduplicated.
func (r *Registry) AllTags() []string {
	var tags []string
	for _, t := range r.tasks {
		tags = append(tags, t.Tags...)
	}
	slices.Sort(tags)
	return slices.Compact(tags)
}

// Load replaces the whole content with c. The registry takes ownership of c.
func (r *Registry) Load(c Collection) {
	if c == nil {
		c = make(Collection)
	}
	r.tasks = c
}

// Export returns a deep copy of the collection.
func (r *Registry) Export() Collection {
	out := make(Collection, len(r.tasks))
	for id, t := range r.tasks {
		out[id] = t.Clone()
	}
	return out
}

func (r *Registry) Len() int { return len(r.tasks) }

// Resolve maps a user-typed id to a stored id: an exact match or a unique
// case-insensitive prefix. No match or an ambiguous prefix reports false.
func (r *Registry) Resolve(prefix string) (string, bool) {
	p := strings.ToLower(strings.TrimSpace(prefix))
	if p == "" {
		return "", false
	}
	if _, ok := r.tasks[p]; ok {
		return p, true
	}
	var found string
	for id := range r.tasks {
		if strings.HasPrefix(strings.ToLower(id), p) {
			if found != "" {
				return "", false
			}
			found = id
		}
	}
	return found, found != ""
}

// Purge deletes Completed tasks whose CompletedAt is before cutoff and
// returns them.
func (r *Registry) Purge(cutoff time.Time) []Task {
	var removed []Task
	for id, t := range r.tasks {
		if t.Status == StatusCompleted && t.CompletedAt != nil && t.CompletedAt.Before(cutoff) {
			removed = append(removed, *t)
			delete(r.tasks, id)
		}
	}
	return removed
}
