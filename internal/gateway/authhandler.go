package gateway

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dohr-michael/taskflow/internal/auth"
	"github.com/dohr-michael/taskflow/internal/tasks"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeErr(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		s.writeErr(w, r, err)
		return
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	u := auth.NewUser(req.Username, req.Email, hash)
	if err := s.store.CreateUser(r.Context(), u); err != nil {
		s.writeErr(w, r, err)
		return
	}

	s.respondWithToken(w, r, http.StatusCreated, u)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeErr(w, r, err)
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	u, err := s.store.GetUserByEmail(r.Context(), email)
	switch {
	case errors.Is(err, tasks.ErrNotFound):
		s.writeErr(w, r, auth.ErrInvalidCredentials)
		return
	case err != nil:
		s.writeErr(w, r, err)
		return
	}
	if !u.IsActive || !s.hasher.Verify(req.Password, u.PasswordHash) {
		s.writeErr(w, r, auth.ErrInvalidCredentials)
		return
	}

	s.respondWithToken(w, r, http.StatusOK, u)
}

func (s *Server) respondWithToken(w http.ResponseWriter, r *http.Request, status int, u *auth.User) {
	token, err := s.jwt.Generate(u)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, status, auth.AuthResponse{Token: token, User: u.Response()})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := s.store.GetUser(r.Context(), auth.UserIDFrom(r.Context()))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u.Response())
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	result := make([]auth.UserResponse, len(users))
	for i, u := range users {
		result[i] = u.Response()
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	u, err := s.store.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u.Response())
}
