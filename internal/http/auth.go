package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/DrumilPatell/edumanage-sms/internal/crypto"
	"github.com/DrumilPatell/edumanage-sms/internal/model"
	"github.com/DrumilPatell/edumanage-sms/internal/repository"
)

type userResponse struct {
	ID             int64      `json:"id"`
	Email          string     `json:"email"`
	FullName       string     `json:"full_name"`
	Role           model.Role `json:"role"`
	ProfilePicture *string    `json:"profile_picture"`
	OAuthProvider  *string    `json:"oauth_provider"`
	IsActive       bool       `json:"is_active"`
	CreatedAt      time.Time  `json:"created_at"`
}

func mapUser(user model.User) userResponse {
	return userResponse{
		ID:             user.ID,
		Email:          user.Email,
		FullName:       user.FullName,
		Role:           user.Role,
		ProfilePicture: user.ProfilePicture,
		OAuthProvider:  user.OAuthProvider,
		IsActive:       user.IsActive,
		CreatedAt:      user.CreatedAt,
	}
}

type tokenEnvelope struct {
	User        userResponse `json:"user"`
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	FullName string `json:"full_name" validate:"required"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"required,oneof=admin faculty student"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !s.decode(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)

	if _, err := s.store.GetUserByEmail(r.Context(), req.Email); err == nil {
		writeError(w, http.StatusBadRequest, "email_taken", "Email already registered")
		return
	} else if !errors.Is(err, pgx.ErrNoRows) {
		serverError(w, r, err)
		return
	}

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		serverError(w, r, err)
		return
	}
	user, err := s.store.CreateUser(r.Context(), model.User{
		Email:          req.Email,
		FullName:       strings.TrimSpace(req.FullName),
		HashedPassword: &hash,
		Role:           model.Role(req.Role),
		IsActive:       true,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			writeError(w, http.StatusBadRequest, "email_taken", "Email already registered")
			return
		}
		serverError(w, r, err)
		return
	}
	countAuth("register", "ok")
	s.writeTokenEnvelope(w, r, http.StatusCreated, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decode(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)

	user, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			countAuth("password", "unknown_user")
			writeError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password")
			return
		}
		serverError(w, r, err)
		return
	}
	if !user.HasPassword() {
		countAuth("password", "oauth_account")
		writeError(w, http.StatusBadRequest, "oauth_account",
			"This account uses OAuth login. Please login with Google, Microsoft, or GitHub.")
		return
	}
	if !crypto.VerifyPassword(req.Password, *user.HashedPassword) {
		countAuth("password", "bad_password")
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password")
		return
	}
	if !user.IsActive {
		countAuth("password", "inactive")
		writeError(w, http.StatusForbidden, "inactive_user", "Account is inactive")
		return
	}
	countAuth("password", "ok")
	s.writeTokenEnvelope(w, r, http.StatusOK, user)
}

func (s *Server) writeTokenEnvelope(w http.ResponseWriter, r *http.Request, status int, user model.User) {
	token, err := s.svc.Tokens.Issue(user.ID, user.Email, string(user.Role), 0)
	if err != nil {
		serverError(w, r, err)
		return
	}
	writeJSON(w, status, tokenEnvelope{User: mapUser(user), AccessToken: token, TokenType: "bearer"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())
	writeJSON(w, http.StatusOK, mapUser(user))
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, "Successfully logged out")
}

func (s *Server) handleDebugToken(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = bearerToken(r.Header.Get("Authorization"))
	}
	if token == "" {
		writeJSON(w, http.StatusOK, map[string]interface{}{"ok": false, "detail": "No token provided"})
		return
	}
	claims, err := s.svc.Tokens.Verify(token)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"ok": false, "detail": "Invalid or expired token"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "payload": claims})
}

func (s *Server) handleLastJWT(w http.ResponseWriter, _ *http.Request) {
	token, ok := s.svc.LastToken.Get()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]interface{}{"ok": false, "detail": "No JWT generated yet"})
		return
	}
	resp := map[string]interface{}{"ok": true, "token": token, "token_len": len(token)}
	if claims, err := s.svc.Tokens.Verify(token); err == nil {
		resp["payload"] = claims
	} else {
		resp["payload"] = nil
	}
	writeJSON(w, http.StatusOK, resp)
}
