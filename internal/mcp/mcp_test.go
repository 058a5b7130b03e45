package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dohr-michael/taskflow/internal/storage"
	"github.com/dohr-michael/taskflow/internal/tasks"
)

func newTestTools(t *testing.T) (*Tools, *storage.JSONFile) {
	t.Helper()
	backend := storage.NewJSONFile(filepath.Join(t.TempDir(), "tasks.json"))
	return NewTools(backend, tasks.Strict), backend
}

func call[T any](t *testing.T, tools *Tools, name string, args any) T {
	t.Helper()
	raw, err := json.Marshal(args)
	if err != nil {
		t.Fatalf("marshal args: %v", err)
	}
	out, err := tools.Call(context.Background(), name, raw)
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	var v T
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("unmarshal %s result: %v", name, err)
	}
	return v
}

func TestToolSpec_Schema(t *testing.T) {
	spec := toolSpec{
		Name:        "test_tool",
		Description: "A test tool",
		Parameters: map[string]paramSpec{
			"name":  {Type: "string", Description: "The name", Required: true},
			"tags":  {Type: "array", Description: "Tags"},
			"level": {Type: "string", Description: "Level", Required: true, Enum: []string{"Low", "High"}},
		},
	}

	tool := spec.tool()
	if tool.Name != "test_tool" {
		t.Errorf("Name = %q, want %q", tool.Name, "test_tool")
	}

	data, err := json.Marshal(tool.InputSchema)
	if err != nil {
		t.Fatalf("marshal InputSchema: %v", err)
	}
	var schema map[string]any
	if err := json.Unmarshal(data, &schema); err != nil {
		t.Fatalf("unmarshal InputSchema: %v", err)
	}
	if schema["type"] != "object" {
		t.Errorf("schema type = %v, want %q", schema["type"], "object")
	}
	req, _ := schema["required"].([]any)
	if len(req) != 2 || req[0] != "level" || req[1] != "name" {
		t.Errorf("schema required = %v, want [level name]", req)
	}
	props := schema["properties"].(map[string]any)
	tags := props["tags"].(map[string]any)
	if _, ok := tags["items"]; !ok {
		t.Error("array property should declare items")
	}
}

func TestToolSpec_NoRequired(t *testing.T) {
	tool := toolSpec{Name: "simple", Parameters: map[string]paramSpec{}}.tool()
	schema := tool.InputSchema.(map[string]any)
	if _, ok := schema["required"]; ok {
		t.Error("schema should not have required field when no params are required")
	}
}

func TestTools_AddAndList(t *testing.T) {
	tools, backend := newTestTools(t)

	added := call[tasks.Task](t, tools, "add_task", map[string]any{
		"title":    "Buy milk",
		"priority": "high",
		"tags":     []string{"home"},
		"due":      "2030-01-02",
	})
	if added.Status != tasks.StatusTodo || added.Priority != tasks.PriorityHigh {
		t.Fatalf("unexpected task %+v", added)
	}
	if added.DueDate == nil || added.DueDate.Hour() != 23 {
		t.Fatalf("expected end-of-day due date, got %v", added.DueDate)
	}

	c, err := backend.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(c) != 1 {
		t.Fatalf("expected 1 persisted task, got %d", len(c))
	}

	call[tasks.Task](t, tools, "add_task", map[string]any{"title": "Walk dog"})

	list := call[[]tasks.Task](t, tools, "list_tasks", map[string]any{"tags": []string{"home"}})
	if len(list) != 1 || list[0].ID != added.ID {
		t.Fatalf("tag filter returned %d tasks", len(list))
	}
	list = call[[]tasks.Task](t, tools, "list_tasks", map[string]any{"limit": 1})
	if len(list) != 1 {
		t.Fatalf("limit: expected 1 task, got %d", len(list))
	}
}

func TestTools_TransitionsByPrefix(t *testing.T) {
	tools, _ := newTestTools(t)
	added := call[tasks.Task](t, tools, "add_task", map[string]any{"title": "Write report"})

	started := call[tasks.Task](t, tools, "start_task", map[string]any{"id": added.ID[:8]})
	if started.Status != tasks.StatusInProgress {
		t.Fatalf("got status %q, want InProgress", started.Status)
	}

	_, err := tools.Call(context.Background(), "start_task", json.RawMessage(`{"id":"`+added.ID+`"}`))
	if !errors.Is(err, tasks.ErrInvalidTransition) {
		t.Fatalf("second start: expected invalid transition, got %v", err)
	}

	done := call[tasks.Task](t, tools, "complete_task", map[string]any{"id": added.ID})
	if done.Status != tasks.StatusCompleted || done.CompletedAt == nil {
		t.Fatalf("after complete: %+v", done)
	}

	stats := call[statsResult](t, tools, "task_stats", nil)
	if stats.Total != 1 || stats.Completed != 1 || stats.CompletionRate != 100 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestTools_Errors(t *testing.T) {
	tools, _ := newTestTools(t)
	ctx := context.Background()

	if _, err := tools.Call(ctx, "cancel_task", json.RawMessage(`{"id":"nope"}`)); !errors.Is(err, tasks.ErrNotFound) {
		t.Errorf("unknown id: expected not found, got %v", err)
	}
	if _, err := tools.Call(ctx, "add_task", json.RawMessage(`{"title":"  "}`)); !errors.Is(err, tasks.ErrValidation) {
		t.Errorf("blank title: expected validation error, got %v", err)
	}
	if _, err := tools.Call(ctx, "delete_everything", nil); err == nil {
		t.Error("unknown tool: expected error")
	}
}

func TestNewServer_OverInMemoryTransport(t *testing.T) {
	tools, _ := newTestTools(t)
	server := NewServer(tools, "test")

	ctx := context.Background()
	clientTransport, serverTransport := mcpsdk.NewInMemoryTransports()
	if _, err := server.Connect(ctx, serverTransport, nil); err != nil {
		t.Fatalf("server.Connect: %v", err)
	}
	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test-client", Version: "test"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client.Connect: %v", err)
	}
	defer session.Close()

	listed, err := session.ListTools(ctx, nil)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	if len(listed.Tools) != 6 {
		t.Errorf("expected 6 tools, got %d", len(listed.Tools))
	}

	res, err := session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      "add_task",
		Arguments: map[string]any{"title": "from mcp"},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if res.IsError {
		t.Fatalf("add_task reported an error: %+v", res.Content)
	}
	text := res.Content[0].(*mcpsdk.TextContent).Text
	if !strings.Contains(text, "from mcp") {
		t.Errorf("unexpected result %s", text)
	}

	res, err = session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      "start_task",
		Arguments: map[string]any{"id": "missing"},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if !res.IsError {
		t.Error("expected IsError for an unknown task")
	}
}
