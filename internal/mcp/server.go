package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dohr-michael/taskflow/internal/storage"
	"github.com/dohr-michael/taskflow/internal/tasks"
)

// Tools runs task operations against a storage backend. Every call loads the
// collection, applies one operation and saves when something changed.
type Tools struct {
	mu      sync.Mutex
	backend storage.Backend
	policy  tasks.Policy
}

// NewTools creates the tool set. A nil policy means tasks.Strict.
func NewTools(backend storage.Backend, policy tasks.Policy) *Tools {
	return &Tools{backend: backend, policy: policy}
}

type listArgs struct {
	Status   string   `json:"status"`
	Priority string   `json:"priority"`
	Tags     []string `json:"tags"`
	Query    string   `json:"query"`
	Overdue  bool     `json:"overdue"`
	Limit    int      `json:"limit"`
}

type addArgs struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    string   `json:"priority"`
	Tags        []string `json:"tags"`
	Due         string   `json:"due"`
}

type idArgs struct {
	ID string `json:"id"`
}

type statsResult struct {
	tasks.Stats
	CompletionRate float64 `json:"completion_rate"`
}

func priorityNames() []string {
	names := make([]string, len(tasks.Priorities))
	for i, p := range tasks.Priorities {
		names[i] = string(p)
	}
	return names
}

func statusNames() []string {
	names := make([]string, len(tasks.Statuses))
	for i, s := range tasks.Statuses {
		names[i] = string(s)
	}
	return names
}

func idParam() map[string]paramSpec {
	return map[string]paramSpec{
		"id": {Type: "string", Description: "Task id or a unique prefix of it", Required: true},
	}
}

func (t *Tools) specs() []toolSpec {
	return []toolSpec{
		{
			Name:        "list_tasks",
			Description: "List tasks, newest first, optionally filtered.",
			Parameters: map[string]paramSpec{
				"status":   {Type: "string", Description: "Only tasks in this status", Enum: statusNames()},
				"priority": {Type: "string", Description: "Only tasks with this priority", Enum: priorityNames()},
				"tags":     {Type: "array", Description: "Only tasks carrying all of these tags"},
				"query":    {Type: "string", Description: "Case-insensitive text match on title, description and tags"},
				"overdue":  {Type: "boolean", Description: "Only overdue tasks"},
				"limit":    {Type: "integer", Description: "Maximum number of tasks returned"},
			},
		},
		{
			Name:        "add_task",
			Description: "Create a Todo task.",
			Parameters: map[string]paramSpec{
				"title":       {Type: "string", Description: "Task title", Required: true},
				"description": {Type: "string", Description: "Longer description, markdown allowed"},
				"priority":    {Type: "string", Description: "Priority (default Medium)", Enum: priorityNames()},
				"tags":        {Type: "array", Description: "Tags"},
				"due":         {Type: "string", Description: "Due date: YYYY-MM-DD, YYYY-MM-DD HH:MM, DD/MM/YYYY or DD/MM/YYYY HH:MM (UTC)"},
			},
		},
		{Name: "start_task", Description: "Move a task to In Progress.", Parameters: idParam()},
		{Name: "complete_task", Description: "Mark a task Completed.", Parameters: idParam()},
		{Name: "cancel_task", Description: "Cancel a task.", Parameters: idParam()},
		{Name: "task_stats", Description: "Count tasks per status, overdue tasks and the completion rate.", Parameters: map[string]paramSpec{}},
	}
}

// Call runs the named tool with raw JSON arguments and returns its JSON result.
func (t *Tools) Call(ctx context.Context, name string, args json.RawMessage) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	c, err := t.backend.Load(ctx)
	if err != nil {
		return "", err
	}
	reg := tasks.NewRegistry(t.policy)
	reg.Load(c)

	var (
		result  any
		changed bool
	)
	switch name {
	case "list_tasks":
		result, err = list(reg, args)
	case "add_task":
		result, err = add(reg, args)
		changed = err == nil
	case "start_task":
		result, err = transition(reg, args, reg.Start)
		changed = err == nil
	case "complete_task":
		result, err = transition(reg, args, reg.Complete)
		changed = err == nil
	case "cancel_task":
		result, err = transition(reg, args, reg.Cancel)
		changed = err == nil
	case "task_stats":
		s := reg.Stats()
		result = statsResult{Stats: s, CompletionRate: s.CompletionRate()}
	default:
		return "", fmt.Errorf("unknown tool %q", name)
	}
	if err != nil {
		return "", err
	}

	if changed {
		if err := t.backend.Save(ctx, reg.Export()); err != nil {
			return "", fmt.Errorf("save tasks: %w", err)
		}
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}
	return string(out), nil
}

func decodeArgs(raw json.RawMessage, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return &tasks.ValidationError{Field: "arguments", Message: err.Error()}
	}
	return nil
}

func list(reg *tasks.Registry, raw json.RawMessage) ([]tasks.Task, error) {
	var a listArgs
	if err := decodeArgs(raw, &a); err != nil {
		return nil, err
	}
	f := tasks.Filter{Tags: a.Tags, Query: a.Query, OverdueOnly: a.Overdue}
	if a.Status != "" {
		st, err := tasks.ParseStatus(a.Status)
		if err != nil {
			return nil, err
		}
		f.Status = st
	}
	if a.Priority != "" {
		p, err := tasks.ParsePriority(a.Priority)
		if err != nil {
			return nil, err
		}
		f.Priority = p
	}
	out := reg.Filter(f)
	tasks.SortNewest(out)
	if a.Limit > 0 && len(out) > a.Limit {
		out = out[:a.Limit]
	}
	return out, nil
}

func add(reg *tasks.Registry, raw json.RawMessage) (tasks.Task, error) {
	var a addArgs
	if err := decodeArgs(raw, &a); err != nil {
		return tasks.Task{}, err
	}
	t, err := tasks.New(a.Title)
	if err != nil {
		return tasks.Task{}, err
	}
	if a.Priority != "" {
		p, err := tasks.ParsePriority(a.Priority)
		if err != nil {
			return tasks.Task{}, err
		}
		t.Priority = p
	}
	if a.Due != "" {
		due, err := tasks.ParseDate(a.Due)
		if err != nil {
			return tasks.Task{}, err
		}
		t.DueDate = &due
	}
	t.Description = a.Description
	t.SetTags(a.Tags)
	t.UpdatedAt = t.CreatedAt
	reg.Insert(t)
	return *t.Clone(), nil
}

func transition(reg *tasks.Registry, raw json.RawMessage, apply func(id string) error) (tasks.Task, error) {
	var a idArgs
	if err := decodeArgs(raw, &a); err != nil {
		return tasks.Task{}, err
	}
	id, ok := reg.Resolve(a.ID)
	if !ok {
		return tasks.Task{}, tasks.TaskNotFound(a.ID)
	}
	if err := apply(id); err != nil {
		return tasks.Task{}, err
	}
	t, _ := reg.Get(id)
	return t, nil
}

// NewServer creates an MCP server exposing the task tools.
func NewServer(tools *Tools, version string) *mcpsdk.Server {
	server := mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    "taskflow",
		Version: version,
	}, nil)

	for _, spec := range tools.specs() {
		toolName := spec.Name
		server.AddTool(spec.tool(), func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
			result, err := tools.Call(ctx, toolName, req.Params.Arguments)
			if err != nil {
				slog.Debug("mcp tool error", "tool", toolName, "error", err)
				return &mcpsdk.CallToolResult{
					IsError: true,
					Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: err.Error()}},
				}, nil
			}
			return &mcpsdk.CallToolResult{
				Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: result}},
			}, nil
		})

		slog.Debug("mcp tool registered", "tool", toolName)
	}

	return server
}
