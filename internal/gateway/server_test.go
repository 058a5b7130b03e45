package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/dohr-michael/taskflow/internal/auth"
	"github.com/dohr-michael/taskflow/internal/db"
	"github.com/dohr-michael/taskflow/internal/events"
	"github.com/dohr-michael/taskflow/internal/tasks"
)

// waitForEvents polls the bus history until at least n events are present.
func waitForEvents(bus *events.Bus, n int) {
	for i := 0; i < 200; i++ {
		if len(bus.History(100)) >= n {
			return
		}
		runtime.Gosched()
		time.Sleep(time.Millisecond)
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	bus := events.NewBus(64)
	t.Cleanup(func() { bus.Close() })

	store, err := db.Open(context.Background(), filepath.Join(t.TempDir(), "server.db"))
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	srv := NewServer(bus, store, Options{
		Host:   "localhost",
		Port:   0,
		JWT:    auth.NewJWTManager("test-secret", time.Hour),
		Hasher: auth.NewPasswordHasher(bcrypt.MinCost),
	})
	t.Cleanup(srv.hub.Close)
	return srv
}

func do(t *testing.T, srv *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return v
}

// register creates an account and returns its token and user id.
func register(t *testing.T, srv *Server, username string) (string, string) {
	t.Helper()
	w := do(t, srv, http.MethodPost, "/api/v1/auth/register", "", auth.RegisterRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: "secret123",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register %s: status %d: %s", username, w.Code, w.Body.String())
	}
	resp := decode[auth.AuthResponse](t, w)
	return resp.Token, resp.User.ID
}

func createTask(t *testing.T, srv *Server, token string, req CreateTaskRequest) tasks.Task {
	t.Helper()
	w := do(t, srv, http.MethodPost, "/api/v1/tasks", token, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create task: status %d: %s", w.Code, w.Body.String())
	}
	return decode[tasks.Task](t, w)
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t)

	w := do(t, srv, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	body := decode[map[string]string](t, w)
	if body["status"] != "ok" || body["service"] != "taskflow" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestHandleEvents_Empty(t *testing.T) {
	srv := newTestServer(t)

	w := do(t, srv, http.MethodGet, "/api/events", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if body := decode[[]any](t, w); len(body) != 0 {
		t.Fatalf("expected empty array, got %d items", len(body))
	}
}

func TestHandleEvents_WithHistory(t *testing.T) {
	srv := newTestServer(t)

	srv.bus.Publish(events.NewTypedEvent(events.SourceAPI, "u1", events.NotificationPayload{Message: "hello", Level: "info"}))
	srv.bus.Publish(events.NewTypedEvent(events.SourceAPI, "u1", events.TaskDeletedPayload{TaskID: "t1"}))
	waitForEvents(srv.bus, 2)

	w := do(t, srv, http.MethodGet, "/api/events?limit=10", "", nil)
	body := decode[[]map[string]any](t, w)
	if len(body) != 2 {
		t.Fatalf("expected 2 events, got %d", len(body))
	}
	if body[0]["user_id"] != "u1" {
		t.Errorf("expected user_id u1, got %v", body[0]["user_id"])
	}

	w = do(t, srv, http.MethodGet, "/api/events?type=task.deleted", "", nil)
	body = decode[[]map[string]any](t, w)
	if len(body) != 1 || body[0]["type"] != "task.deleted" {
		t.Fatalf("type filter: got %v", body)
	}

	w = do(t, srv, http.MethodGet, "/api/events?limit=abc", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", w.Code)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	srv := newTestServer(t)
	_, id := register(t, srv, "alice")

	w := do(t, srv, http.MethodPost, "/api/v1/auth/login", "", auth.LoginRequest{
		Email: "ALICE@example.com", Password: "secret123",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login: status %d: %s", w.Code, w.Body.String())
	}
	resp := decode[auth.AuthResponse](t, w)
	if resp.User.ID != id {
		t.Errorf("got user %q, want %q", resp.User.ID, id)
	}
	if resp.Token == "" {
		t.Error("expected a token")
	}

	w = do(t, srv, http.MethodGet, "/api/v1/auth/me", resp.Token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("me: status %d", w.Code)
	}
	me := decode[auth.UserResponse](t, w)
	if me.Username != "alice" {
		t.Errorf("got username %q, want %q", me.Username, "alice")
	}
}

func TestRegister_Rejections(t *testing.T) {
	srv := newTestServer(t)
	register(t, srv, "alice")

	tests := []struct {
		name string
		req  auth.RegisterRequest
		want int
	}{
		{"duplicate email", auth.RegisterRequest{Username: "other", Email: "alice@example.com", Password: "secret123"}, http.StatusConflict},
		{"short password", auth.RegisterRequest{Username: "bob", Email: "bob@example.com", Password: "12345"}, http.StatusBadRequest},
		{"missing username", auth.RegisterRequest{Email: "carol@example.com", Password: "secret123"}, http.StatusBadRequest},
		{"missing email", auth.RegisterRequest{Username: "dave", Password: "secret123"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv, http.MethodPost, "/api/v1/auth/register", "", tt.req)
			if w.Code != tt.want {
				t.Fatalf("got status %d, want %d: %s", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	srv := newTestServer(t)
	register(t, srv, "alice")

	for _, req := range []auth.LoginRequest{
		{Email: "alice@example.com", Password: "wrong-password"},
		{Email: "nobody@example.com", Password: "secret123"},
	} {
		w := do(t, srv, http.MethodPost, "/api/v1/auth/login", "", req)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("login %s: got status %d, want 401", req.Email, w.Code)
		}
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/api/v1/auth/me", "/api/v1/tasks", "/api/v1/users"} {
		w := do(t, srv, http.MethodGet, path, "", nil)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s without token: got %d, want 401", path, w.Code)
		}
		w = do(t, srv, http.MethodGet, path, "not-a-jwt", nil)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s with bad token: got %d, want 401", path, w.Code)
		}
	}
}

func TestCreateTask(t *testing.T) {
	srv := newTestServer(t)
	token, userID := register(t, srv, "alice")

	due := time.Date(2030, 1, 2, 23, 59, 59, 0, time.UTC)
	task := createTask(t, srv, token, CreateTaskRequest{
		Title:    "Buy milk",
		Priority: "high",
		Tags:     []string{"home", "home", " errands "},
		DueDate:  &due,
	})
	if task.Status != tasks.StatusTodo {
		t.Errorf("got status %q, want Todo", task.Status)
	}
	if task.Priority != tasks.PriorityHigh {
		t.Errorf("got priority %q, want High", task.Priority)
	}
	if task.CreatedBy != userID {
		t.Errorf("got created_by %q, want %q", task.CreatedBy, userID)
	}
	if len(task.Tags) != 2 {
		t.Errorf("expected 2 tags, got %q", task.Tags)
	}
	if task.DueDate == nil || !task.DueDate.Equal(due) {
		t.Errorf("got due %v, want %v", task.DueDate, due)
	}

	waitForEvents(srv.bus, 1)
	var found bool
	for _, e := range srv.bus.History(10) {
		if e.Type == events.EventTaskCreated && e.UserID == userID && events.TaskID(e) == task.ID {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a task.created event carrying the user id")
	}
}

func TestCreateTask_Invalid(t *testing.T) {
	srv := newTestServer(t)
	token, _ := register(t, srv, "alice")

	for _, req := range []CreateTaskRequest{
		{Title: "   "},
		{Title: "ok", Priority: "urgent"},
		{Title: "ok", AssignedTo: "no-such-user"},
	} {
		w := do(t, srv, http.MethodPost, "/api/v1/tasks", token, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("create %+v: got %d, want 400", req, w.Code)
		}
	}
}

func TestListTasks_OwnNewestFirstAndFiltered(t *testing.T) {
	srv := newTestServer(t)
	alice, _ := register(t, srv, "alice")
	bob, _ := register(t, srv, "bob")

	first := createTask(t, srv, alice, CreateTaskRequest{Title: "first", Tags: []string{"work"}})
	time.Sleep(2 * time.Millisecond)
	second := createTask(t, srv, alice, CreateTaskRequest{Title: "second"})
	createTask(t, srv, bob, CreateTaskRequest{Title: "bob's"})

	w := do(t, srv, http.MethodGet, "/api/v1/tasks", alice, nil)
	list := decode[[]tasks.Task](t, w)
	if len(list) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(list))
	}
	if list[0].ID != second.ID || list[1].ID != first.ID {
		t.Errorf("expected newest first, got %q then %q", list[0].Title, list[1].Title)
	}

	do(t, srv, http.MethodPost, "/api/v1/tasks/"+first.ID+"/start", alice, nil)

	w = do(t, srv, http.MethodGet, "/api/v1/tasks?status=in-progress", alice, nil)
	list = decode[[]tasks.Task](t, w)
	if len(list) != 1 || list[0].ID != first.ID {
		t.Fatalf("status filter: got %d tasks", len(list))
	}

	w = do(t, srv, http.MethodGet, "/api/v1/tasks?tags=work&q=FIR", alice, nil)
	list = decode[[]tasks.Task](t, w)
	if len(list) != 1 || list[0].ID != first.ID {
		t.Fatalf("tag+query filter: got %d tasks", len(list))
	}

	w = do(t, srv, http.MethodGet, "/api/v1/tasks?status=bogus", alice, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad status filter: got %d, want 400", w.Code)
	}
}

func TestTaskAccessControl(t *testing.T) {
	srv := newTestServer(t)
	alice, _ := register(t, srv, "alice")
	bob, bobID := register(t, srv, "bob")
	carol, _ := register(t, srv, "carol")

	task := createTask(t, srv, alice, CreateTaskRequest{Title: "shared", AssignedTo: bobID})
	path := "/api/v1/tasks/" + task.ID

	if w := do(t, srv, http.MethodGet, path, bob, nil); w.Code != http.StatusOK {
		t.Errorf("assignee get: got %d, want 200", w.Code)
	}
	if w := do(t, srv, http.MethodGet, path, carol, nil); w.Code != http.StatusForbidden {
		t.Errorf("stranger get: got %d, want 403", w.Code)
	}
	if w := do(t, srv, http.MethodPost, path+"/start", bob, nil); w.Code != http.StatusOK {
		t.Errorf("assignee start: got %d, want 200", w.Code)
	}
	if w := do(t, srv, http.MethodDelete, path, bob, nil); w.Code != http.StatusForbidden {
		t.Errorf("assignee delete: got %d, want 403", w.Code)
	}

	w := do(t, srv, http.MethodGet, "/api/v1/tasks", bob, nil)
	if list := decode[[]tasks.Task](t, w); len(list) != 1 {
		t.Errorf("assignee list: expected 1 task, got %d", len(list))
	}

	if w := do(t, srv, http.MethodDelete, path, alice, nil); w.Code != http.StatusNoContent {
		t.Fatalf("creator delete: got %d, want 204", w.Code)
	}
	if w := do(t, srv, http.MethodGet, path, alice, nil); w.Code != http.StatusNotFound {
		t.Errorf("get after delete: got %d, want 404", w.Code)
	}
}

func TestTaskTransitions(t *testing.T) {
	srv := newTestServer(t)
	token, userID := register(t, srv, "alice")
	task := createTask(t, srv, token, CreateTaskRequest{Title: "Write report"})
	path := "/api/v1/tasks/" + task.ID

	w := do(t, srv, http.MethodPost, path+"/start", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("start: got %d", w.Code)
	}
	if got := decode[tasks.Task](t, w); got.Status != tasks.StatusInProgress || got.StartedAt == nil {
		t.Fatalf("after start: status %q started_at %v", got.Status, got.StartedAt)
	}

	if w := do(t, srv, http.MethodPost, path+"/start", token, nil); w.Code != http.StatusConflict {
		t.Fatalf("second start: got %d, want 409", w.Code)
	}

	w = do(t, srv, http.MethodPost, path+"/complete", token, nil)
	got := decode[tasks.Task](t, w)
	if got.Status != tasks.StatusCompleted || got.CompletedAt == nil {
		t.Fatalf("after complete: status %q completed_at %v", got.Status, got.CompletedAt)
	}

	if w := do(t, srv, http.MethodPost, path+"/cancel", token, nil); w.Code != http.StatusConflict {
		t.Fatalf("cancel completed: got %d, want 409", w.Code)
	}

	w = do(t, srv, http.MethodGet, path, token, nil)
	if stored := decode[tasks.Task](t, w); stored.Status != tasks.StatusCompleted {
		t.Fatalf("failed transition changed the stored status to %q", stored.Status)
	}

	waitForEvents(srv.bus, 3)
	var changes int
	for _, e := range srv.bus.History(20) {
		if e.Type == events.EventTaskStatusChanged && e.UserID == userID {
			changes++
		}
	}
	if changes != 2 {
		t.Errorf("expected 2 status_changed events, got %d", changes)
	}
}

func TestUpdateTask(t *testing.T) {
	srv := newTestServer(t)
	token, _ := register(t, srv, "alice")
	due := time.Date(2030, 5, 1, 12, 0, 0, 0, time.UTC)
	task := createTask(t, srv, token, CreateTaskRequest{Title: "draft", DueDate: &due})
	path := "/api/v1/tasks/" + task.ID

	title := "final"
	w := do(t, srv, http.MethodPut, path, token, map[string]any{
		"title":          title,
		"tags":           []string{"a", "b"},
		"clear_due_date": true,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update: got %d: %s", w.Code, w.Body.String())
	}
	got := decode[tasks.Task](t, w)
	if got.Title != "final" || len(got.Tags) != 2 || got.DueDate != nil {
		t.Fatalf("unexpected task after update: %+v", got)
	}
	if got.UpdatedAt.Before(got.CreatedAt) {
		t.Error("updated_at before created_at")
	}

	w = do(t, srv, http.MethodPut, path, token, map[string]any{"title": "ignored", "priority": "urgent"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad priority: got %d, want 400", w.Code)
	}
	w = do(t, srv, http.MethodGet, path, token, nil)
	if stored := decode[tasks.Task](t, w); stored.Title != "final" {
		t.Fatalf("rejected update changed title to %q", stored.Title)
	}
}

func TestUnknownTask(t *testing.T) {
	srv := newTestServer(t)
	token, _ := register(t, srv, "alice")

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/tasks/missing"},
		{http.MethodDelete, "/api/v1/tasks/missing"},
		{http.MethodPost, "/api/v1/tasks/missing/complete"},
	} {
		if w := do(t, srv, tc.method, tc.path, token, nil); w.Code != http.StatusNotFound {
			t.Errorf("%s %s: got %d, want 404", tc.method, tc.path, w.Code)
		}
	}
}

func TestUsers(t *testing.T) {
	srv := newTestServer(t)
	token, _ := register(t, srv, "bob")
	_, aliceID := register(t, srv, "alice")

	w := do(t, srv, http.MethodGet, "/api/v1/users", token, nil)
	users := decode[[]auth.UserResponse](t, w)
	if len(users) != 2 || users[0].Username != "alice" {
		t.Fatalf("expected alice then bob, got %+v", users)
	}

	w = do(t, srv, http.MethodGet, "/api/v1/users/"+aliceID, token, nil)
	if got := decode[auth.UserResponse](t, w); got.ID != aliceID {
		t.Errorf("got %q, want %q", got.ID, aliceID)
	}
	if w := do(t, srv, http.MethodGet, "/api/v1/users/nope", token, nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown user: got %d, want 404", w.Code)
	}
}
