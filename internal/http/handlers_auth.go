package http

import (
	"net/http"
	"time"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// userView is the public part of a user record.
type userView struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, "register")
		return
	}
	session, err := s.svc.Auth.Register(r.Context(), sanitizeInput(req.Email), req.Password)
	if err != nil {
		writeError(w, r, err, "register")
		return
	}
	s.logger.InfoContext(r.Context(), "User registered", "user_id", session.UserID)
	NewResponse().Status(http.StatusCreated).JSON(session).Write(w)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, "login")
		return
	}
	session, err := s.svc.Auth.SignIn(r.Context(), sanitizeInput(req.Email), req.Password)
	if err != nil {
		writeError(w, r, err, "login")
		return
	}
	NewResponse().JSON(session).Write(w)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := s.svc.Auth.User(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err, "me")
		return
	}
	NewResponse().JSON(userView{ID: u.ID, Email: u.Email, CreatedAt: u.CreatedAt}).Write(w)
}
