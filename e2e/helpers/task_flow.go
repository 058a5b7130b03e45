// Command task_flow exercises the multi-user task lifecycle against a
// running taskflow server.
//
// It registers a throwaway user over HTTP, opens an authenticated WebSocket,
// creates a task, starts and completes it, and checks that every change is
// pushed back as an event.
//
// Usage: task_flow -server http://127.0.0.1:PORT
//
// Exit codes:
//
//	0 = all checks passed
//	1 = a check failed
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	wsclient "github.com/dohr-michael/taskflow/clients/ws"
	"github.com/dohr-michael/taskflow/internal/auth"
	"github.com/dohr-michael/taskflow/internal/events"
	"github.com/dohr-michael/taskflow/internal/tasks"
)

func main() {
	server := flag.String("server", "http://127.0.0.1:3000", "Server base URL")
	timeout := flag.Duration("timeout", 30*time.Second, "Overall timeout")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := run(ctx, strings.TrimRight(*server, "/")); err != nil {
		fmt.Fprintf(os.Stderr, "FAIL: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, base string) error {
	// ── Step 1: Register a user ─────────────────────────────────────────
	suffix := uuid.NewString()[:8]
	var session auth.AuthResponse
	err := post(ctx, base+"/api/v1/auth/register", "", auth.RegisterRequest{
		Username: "e2e-" + suffix,
		Email:    "e2e-" + suffix + "@example.com",
		Password: "e2e-password",
	}, http.StatusCreated, &session)
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}
	fmt.Printf("CHECK registered user %s\n", session.User.ID)

	// ── Step 2: Open the event stream ───────────────────────────────────
	client, err := wsclient.Dial(ctx, "ws"+strings.TrimPrefix(base, "http")+"/ws", session.Token)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer client.Close()

	if _, err := client.Subscribe(string(events.EventTaskCreated), string(events.EventTaskStatusChanged)); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	fmt.Println("CHECK websocket connected")

	// ── Step 3: Create and drive a task ─────────────────────────────────
	var task tasks.Task
	err = post(ctx, base+"/api/v1/tasks", session.Token, map[string]any{
		"title": "e2e task " + suffix,
		"tags":  []string{"e2e"},
	}, http.StatusCreated, &task)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	fmt.Printf("CHECK task created: %s\n", task.ID)

	for _, action := range []string{"start", "complete"} {
		if err := post(ctx, base+"/api/v1/tasks/"+task.ID+"/"+action, session.Token, nil, http.StatusOK, &task); err != nil {
			return fmt.Errorf("%s task: %w", action, err)
		}
	}
	if task.Status != tasks.StatusCompleted || task.CompletedAt == nil {
		return fmt.Errorf("task status = %s, want Completed", task.Status)
	}
	fmt.Println("CHECK task completed over HTTP")

	// ── Step 4: Expect the pushed events ────────────────────────────────
	created := false
	var changes []tasks.Status
	for !created || len(changes) < 2 {
		frame, err := client.ReadFrame()
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("timeout waiting for events")
			}
			return fmt.Errorf("read frame: %w", err)
		}
		if frame.Event == "" {
			continue
		}
		evt, err := wsclient.DecodeEvent(frame)
		if err != nil {
			return err
		}

		switch evt.Type {
		case events.EventTaskCreated:
			p, ok := events.ExtractPayload[events.TaskCreatedPayload](evt)
			if ok && p.Task.ID == task.ID {
				created = true
				fmt.Println("CHECK task.created received")
			}
		case events.EventTaskStatusChanged:
			p, ok := events.ExtractPayload[events.TaskStatusChangedPayload](evt)
			if ok && p.Task.ID == task.ID {
				changes = append(changes, p.To)
				fmt.Printf("CHECK task.status_changed received: %s → %s\n", p.From, p.To)
			}
		}
	}

	if changes[0] != tasks.StatusInProgress || changes[1] != tasks.StatusCompleted {
		return fmt.Errorf("status changes = %v, want [InProgress Completed]", changes)
	}

	fmt.Println("CHECK all flow checks passed")
	return nil
}

func post(ctx context.Context, url, token string, body any, want int, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != want {
		var e struct {
			Error string `json:"error"`
		}
		json.NewDecoder(res.Body).Decode(&e)
		return fmt.Errorf("status %d, want %d: %s", res.StatusCode, want, e.Error)
	}
	return json.NewDecoder(res.Body).Decode(out)
}
