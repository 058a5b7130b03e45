// Package gateway serves the multi-user HTTP API and the WebSocket endpoint.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dohr-michael/taskflow/internal/auth"
	"github.com/dohr-michael/taskflow/internal/db"
	"github.com/dohr-michael/taskflow/internal/events"
	"github.com/dohr-michael/taskflow/internal/gateway/ws"
	"github.com/dohr-michael/taskflow/internal/tasks"
)

// Options configures a Server. JWT is required.
type Options struct {
	Host   string
	Port   int
	JWT    *auth.JWTManager
	Hasher *auth.PasswordHasher
	Policy tasks.Policy
}

// Server is the TaskFlow HTTP server.
type Server struct {
	httpServer *http.Server
	hub        *ws.Hub
	bus        *events.Bus
	store      *db.DB
	jwt        *auth.JWTManager
	hasher     *auth.PasswordHasher
	policy     tasks.Policy
}

// NewServer creates a new gateway server.
func NewServer(bus *events.Bus, store *db.DB, opts Options) *Server {
	if opts.Hasher == nil {
		opts.Hasher = auth.NewPasswordHasher(0)
	}
	if opts.Policy == nil {
		opts.Policy = tasks.Strict
	}

	s := &Server{
		hub:    ws.NewHub(bus, opts.JWT),
		bus:    bus,
		store:  store,
		jwt:    opts.JWT,
		hasher: opts.Hasher,
		policy: opts.Policy,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Get("/health", s.handleHealth)
	r.Get("/ws", s.hub.ServeWS)
	r.Get("/api/events", s.handleEvents)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.jwt.Middleware)

			r.Get("/auth/me", s.handleMe)
			r.Get("/users", s.handleListUsers)
			r.Get("/users/{id}", s.handleGetUser)

			r.Route("/tasks", func(r chi.Router) {
				r.Post("/", s.handleCreateTask)
				r.Get("/", s.handleListTasks)
				r.Get("/{id}", s.handleGetTask)
				r.Put("/{id}", s.handleUpdateTask)
				r.Delete("/{id}", s.handleDeleteTask)
				r.Post("/{id}/start", s.handleTransition(transitionStart))
				r.Post("/{id}/complete", s.handleTransition(transitionComplete))
				r.Post("/{id}/cancel", s.handleTransition(transitionCancel))
			})
		})
	})

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *ws.Hub { return s.hub }

// Addr returns the configured listen address.
func (s *Server) Addr() string { return s.httpServer.Addr }

// Start begins listening. It blocks until the server is stopped.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	slog.Info("taskflow server listening", "addr", ln.Addr().String())
	err = s.httpServer.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "taskflow"})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	// ?type=task.created,task.deleted narrows the history to those types.
	var types []events.EventType
	for _, t := range tasks.ParseTags(r.URL.Query().Get("type")) {
		types = append(types, events.EventType(t))
	}

	history := s.bus.History(limit, types...)
	if history == nil {
		history = []events.Event{}
	}
	writeJSON(w, http.StatusOK, history)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return &tasks.ValidationError{Field: "body", Message: "invalid request body"}
	}
	return nil
}

// writeErr maps domain errors to HTTP statuses. Anything unrecognized is a
// 500 and gets logged; the client only sees a generic message.
func (s *Server) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	var fieldErr *auth.FieldError
	switch {
	case errors.Is(err, tasks.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, tasks.ErrInvalidTransition), errors.Is(err, auth.ErrUserExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, tasks.ErrValidation), errors.As(err, &fieldErr):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, auth.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
