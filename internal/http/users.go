package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/DrumilPatell/edumanage-sms/internal/crypto"
	"github.com/DrumilPatell/edumanage-sms/internal/model"
	"github.com/DrumilPatell/edumanage-sms/internal/repository"
)

type updateUserRequest struct {
	Email          *string `json:"email" validate:"omitempty,email"`
	FullName       *string `json:"full_name" validate:"omitempty,min=1"`
	Password       *string `json:"password" validate:"omitempty,min=6"`
	Role           *string `json:"role" validate:"omitempty,oneof=admin faculty student"`
	ProfilePicture *string `json:"profile_picture"`
	IsActive       *bool   `json:"is_active"`
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	filter := repository.UserFilter{Page: page(r, 100, 1000)}
	if raw := r.URL.Query().Get("role"); raw != "" {
		role := model.Role(raw)
		if !role.Valid() {
			writeError(w, http.StatusBadRequest, "invalid_role", "role must be one of: admin faculty student")
			return
		}
		filter.Role = role
	}
	users, err := s.store.ListUsers(r.Context(), filter)
	if err != nil {
		serverError(w, r, err)
		return
	}
	out := make([]userResponse, 0, len(users))
	for _, user := range users {
		out = append(out, mapUser(user))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	caller, _ := userFromContext(r.Context())
	if caller.ID != id && caller.Role != model.RoleAdmin {
		writeError(w, http.StatusForbidden, "forbidden", "Not enough permissions")
		return
	}
	user, err := s.store.GetUserByID(r.Context(), id)
	if err != nil {
		lookupError(w, r, err, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, mapUser(user))
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req updateUserRequest
	if !s.decode(w, r, &req) {
		return
	}
	user, err := s.store.GetUserByID(r.Context(), id)
	if err != nil {
		lookupError(w, r, err, "User not found")
		return
	}

	if req.Email != nil {
		user.Email = strings.TrimSpace(*req.Email)
	}
	if req.FullName != nil {
		user.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.Password != nil {
		hash, err := crypto.HashPassword(*req.Password)
		if err != nil {
			serverError(w, r, err)
			return
		}
		user.HashedPassword = &hash
	}
	if req.Role != nil {
		user.Role = model.Role(*req.Role)
	}
	if req.ProfilePicture != nil {
		user.ProfilePicture = req.ProfilePicture
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}

	updated, err := s.store.UpdateUser(r.Context(), user)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			writeError(w, http.StatusBadRequest, "email_taken", "Email already registered")
			return
		}
		lookupError(w, r, err, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, mapUser(updated))
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	caller, _ := userFromContext(r.Context())
	if caller.ID == id {
		writeError(w, http.StatusBadRequest, "self_delete", "You cannot delete your own account")
		return
	}
	if err := s.store.DeleteUser(r.Context(), id); err != nil {
		lookupError(w, r, err, "User not found")
		return
	}
	writeMessage(w, "User deleted successfully")
}
