package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/DrumilPatell/edumanage-sms/internal/model"
	"github.com/DrumilPatell/edumanage-sms/internal/oauth"
)

type Allowlists struct {
	Admin   []string
	Faculty []string
	Student []string
}

// Store persists OAuth logins. UpsertByEmail runs apply against the current
// row (nil when absent) inside one transaction and stores the result.
type Store interface {
	UpsertByEmail(ctx context.Context, email string, apply func(existing *model.User) model.User) (model.User, error)
}

var ErrMissingEmail = errors.New("oauth profile has no email")

type Resolver struct {
	store Store
	lists func() Allowlists
}

// NewResolver reads the allowlists through lists on every call, so edits to
// them apply on a user's next login.
func NewResolver(store Store, lists func() Allowlists) *Resolver {
	return &Resolver{store: store, lists: lists}
}

func StaticAllowlists(admin, faculty, student []string) func() Allowlists {
	lists := Allowlists{Admin: admin, Faculty: faculty, Student: student}
	return func() Allowlists { return lists }
}

func (r *Resolver) ResolveRole(email string) model.Role {
	lists := r.lists()
	switch {
	case contains(lists.Admin, email):
		return model.RoleAdmin
	case contains(lists.Faculty, email):
		return model.RoleFaculty
	case contains(lists.Student, email):
		return model.RoleStudent
	default:
		return model.RoleStudent
	}
}

// CreateOrUpdate upserts the user behind an OAuth profile. Concurrent
// callbacks for one email are last-writer-wins.
func (r *Resolver) CreateOrUpdate(ctx context.Context, profile oauth.Profile) (model.User, error) {
	if profile.Email == "" {
		return model.User{}, ErrMissingEmail
	}
	role := r.ResolveRole(profile.Email)

	user, err := r.store.UpsertByEmail(ctx, profile.Email, func(existing *model.User) model.User {
		if existing == nil {
			return model.User{
				Email:          profile.Email,
				FullName:       profile.FullName,
				Role:           role,
				OAuthProvider:  optional(profile.Provider),
				OAuthID:        optional(profile.OAuthID),
				ProfilePicture: optional(profile.Picture),
				IsActive:       true,
			}
		}
		updated := *existing
		if profile.FullName != "" {
			updated.FullName = profile.FullName
		}
		if profile.Picture != "" {
			updated.ProfilePicture = optional(profile.Picture)
		}
		if profile.Provider != "" {
			updated.OAuthProvider = optional(profile.Provider)
		}
		if profile.OAuthID != "" {
			updated.OAuthID = optional(profile.OAuthID)
		}
		updated.Role = role
		return updated
	})
	if err != nil {
		return model.User{}, fmt.Errorf("upsert oauth user: %w", err)
	}
	return user, nil
}

func contains(values []string, target string) bool {
	for _, value := range values {
		if strings.TrimSpace(value) == target {
			return true
		}
	}
	return false
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
