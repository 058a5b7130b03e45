package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dohr-michael/taskflow/internal/auth"
	"github.com/dohr-michael/taskflow/internal/events"
	"github.com/dohr-michael/taskflow/internal/tasks"
)

// CreateTaskRequest is the body of POST /api/v1/tasks.
type CreateTaskRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    string     `json:"priority"`
	Tags        []string   `json:"tags"`
	DueDate     *time.Time `json:"due_date"`
	AssignedTo  string     `json:"assigned_to"`
}

// UpdateTaskRequest is the body of PUT /api/v1/tasks/{id}. Nil fields are
// left unchanged; ClearDueDate removes the due date.
type UpdateTaskRequest struct {
	Title        *string    `json:"title"`
	Description  *string    `json:"description"`
	Priority     *string    `json:"priority"`
	Tags         *[]string  `json:"tags"`
	DueDate      *time.Time `json:"due_date"`
	ClearDueDate bool       `json:"clear_due_date"`
	AssignedTo   *string    `json:"assigned_to"`
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeErr(w, r, err)
		return
	}

	t, err := tasks.New(req.Title)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	t.Description = req.Description
	if req.Priority != "" {
		p, err := tasks.ParsePriority(req.Priority)
		if err != nil {
			s.writeErr(w, r, err)
			return
		}
		t.Priority = p
	}
	t.SetTags(req.Tags)
	if req.DueDate != nil {
		t.SetDueDate(req.DueDate)
	}
	if req.AssignedTo != "" {
		if err := s.checkAssignee(r.Context(), req.AssignedTo); err != nil {
			s.writeErr(w, r, err)
			return
		}
		t.AssignedTo = req.AssignedTo
	}
	t.CreatedBy = auth.UserIDFrom(r.Context())
	t.UpdatedAt = t.CreatedAt

	if err := s.store.CreateTask(r.Context(), t); err != nil {
		s.writeErr(w, r, err)
		return
	}

	s.publish(r, events.TaskCreatedPayload{Task: *t})
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}

	mine, err := s.store.ListTasksForUser(r.Context(), auth.UserIDFrom(r.Context()))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	list := make([]tasks.Task, len(mine))
	for i, t := range mine {
		list[i] = *t
	}
	list = f.Apply(list, tasks.Now())
	tasks.SortNewest(list)

	writeJSON(w, http.StatusOK, list)
}

// filterFromQuery builds a tasks.Filter from ?status&priority&tags&q&overdue&assigned_to.
func filterFromQuery(r *http.Request) (tasks.Filter, error) {
	q := r.URL.Query()
	var f tasks.Filter
	if v := q.Get("status"); v != "" {
		st, err := tasks.ParseStatus(v)
		if err != nil {
			return f, err
		}
		f.Status = st
	}
	if v := q.Get("priority"); v != "" {
		p, err := tasks.ParsePriority(v)
		if err != nil {
			return f, err
		}
		f.Priority = p
	}
	if v := q.Get("tags"); v != "" {
		f.Tags = tasks.ParseTags(v)
	}
	f.Query = q.Get("q")
	if v := q.Get("overdue"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, &tasks.ValidationError{Field: "overdue", Message: "overdue must be a boolean"}
		}
		f.OverdueOnly = b
	}
	f.AssignedTo = q.Get("assigned_to")
	return f, nil
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.loadTask(r, false)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var req UpdateTaskRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeErr(w, r, err)
		return
	}
	t, err := s.loadTask(r, false)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	if err := s.applyUpdate(r.Context(), t, req); err != nil {
		s.writeErr(w, r, err)
		return
	}
	if err := s.store.UpdateTask(r.Context(), t); err != nil {
		s.writeErr(w, r, err)
		return
	}

	s.publish(r, events.TaskUpdatedPayload{Task: *t})
	writeJSON(w, http.StatusOK, t)
}

// applyUpdate mutates a copy first so a rejected field leaves t untouched.
func (s *Server) applyUpdate(ctx context.Context, t *tasks.Task, req UpdateTaskRequest) error {
	next := t.Clone()
	if req.Title != nil {
		if err := next.SetTitle(*req.Title); err != nil {
			return err
		}
	}
	if req.Description != nil {
		next.SetDescription(*req.Description)
	}
	if req.Priority != nil {
		p, err := tasks.ParsePriority(*req.Priority)
		if err != nil {
			return err
		}
		if err := next.SetPriority(p); err != nil {
			return err
		}
	}
	if req.Tags != nil {
		next.SetTags(*req.Tags)
	}
	switch {
	case req.ClearDueDate:
		next.SetDueDate(nil)
	case req.DueDate != nil:
		next.SetDueDate(req.DueDate)
	}
	if req.AssignedTo != nil {
		if *req.AssignedTo != "" {
			if err := s.checkAssignee(ctx, *req.AssignedTo); err != nil {
				return err
			}
		}
		next.Assign(*req.AssignedTo)
	}
	*t = *next
	return nil
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.loadTask(r, true)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	if err := s.store.DeleteTask(r.Context(), t.ID); err != nil {
		s.writeErr(w, r, err)
		return
	}

	s.publish(r, events.TaskDeletedPayload{
		TaskID: t.ID, Title: t.Title, CreatedBy: t.CreatedBy, AssignedTo: t.AssignedTo,
	})
	w.WriteHeader(http.StatusNoContent)
}

type transition func(*tasks.Task, tasks.Policy) error

var (
	transitionStart    transition = (*tasks.Task).Start
	transitionComplete transition = (*tasks.Task).Complete
	transitionCancel   transition = (*tasks.Task).Cancel
)

func (s *Server) handleTransition(apply transition) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := s.loadTask(r, false)
		if err != nil {
			s.writeErr(w, r, err)
			return
		}
		from := t.Status
		if err := apply(t, s.policy); err != nil {
			s.writeErr(w, r, err)
			return
		}
		if err := s.store.UpdateTask(r.Context(), t); err != nil {
			s.writeErr(w, r, err)
			return
		}

		s.publish(r, events.TaskStatusChangedPayload{Task: *t, From: from, To: t.Status})
		writeJSON(w, http.StatusOK, t)
	}
}

// loadTask fetches the {id} task and checks the caller may act on it:
// creator or assignee, or creator only when ownerOnly is set.
func (s *Server) loadTask(r *http.Request, ownerOnly bool) (*tasks.Task, error) {
	t, err := s.store.GetTask(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return nil, err
	}
	userID := auth.UserIDFrom(r.Context())
	switch {
	case t.CreatedBy == userID:
		return t, nil
	case ownerOnly:
		return nil, fmt.Errorf("only the creator can delete a task: %w", auth.ErrForbidden)
	case t.AssignedTo != "" && t.AssignedTo == userID:
		return t, nil
	default:
		return nil, fmt.Errorf("no access to task %s: %w", t.ID, auth.ErrForbidden)
	}
}

func (s *Server) checkAssignee(ctx context.Context, userID string) error {
	_, err := s.store.GetUser(ctx, userID)
	if errors.Is(err, tasks.ErrNotFound) {
		return &tasks.ValidationError{Field: "assigned_to", Message: "unknown user " + userID}
	}
	return err
}

func (s *Server) publish(r *http.Request, payload events.EventPayload) {
	s.bus.Publish(events.NewTypedEvent(events.SourceAPI, auth.UserIDFrom(r.Context()), payload))
}
