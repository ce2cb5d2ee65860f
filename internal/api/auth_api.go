package api

import (
	"errors"
	"net/http"
	"strings"

	"chargehub/internal/auth"
	"chargehub/internal/database"
	"chargehub/internal/metrics"
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("register")

	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if req.Email == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "email and name are required")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	user, err := s.db.CreateUser(r.Context(), req.Email, hash, req.Name, req.Phone)
	if err != nil {
		if errors.Is(err, database.ErrDuplicateEmail) {
			writeError(w, http.StatusBadRequest, "email already registered")
			return
		}
		s.writeDomainError(w, err)
		return
	}

	s.logger.Info().Str("user_id", user.ID).Str("email", user.Email).Msg("user registered")
	s.issueSession(w, user.ID, user.Email, user.Name)
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("login")

	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))

	user, err := s.db.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		s.writeDomainError(w, err)
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	s.issueSession(w, user.ID, user.Email, user.Name)
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("logout")
	http.SetCookie(w, auth.ClearSessionCookie())
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (s *Server) issueSession(w http.ResponseWriter, userID, email, name string) {
	token, err := auth.Issue([]byte(s.cfg.Auth.JWTSecret), auth.Claims{
		UserID: userID,
		Email:  email,
		Name:   name,
	}, s.cfg.SessionTTL())
	if err != nil {
		// The account exists; the client can retry via login.
		s.logger.Error().Err(err).Msg("failed to sign session token")
		return
	}
	http.SetCookie(w, auth.SessionCookie(token, s.cfg.SessionTTL(), s.cfg.Server.SecureCookies))
}
