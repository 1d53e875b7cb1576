package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/DrumilPatell/edumanage-sms/internal/model"
)

const userColumns = `id, email, full_name, hashed_password, role, oauth_provider, oauth_id, profile_picture, is_active, created_at, updated_at`

type UserFilter struct {
	Role model.Role
	Page
}

func scanUser(row scanner) (model.User, error) {
	var user model.User
	var role string
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.FullName,
		&user.HashedPassword,
		&role,
		&user.OAuthProvider,
		&user.OAuthID,
		&user.ProfilePicture,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	user.Role = model.Role(role)
	return user, err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	return scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (model.User, error) {
	return scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (s *Store) CreateUser(ctx context.Context, user model.User) (model.User, error) {
	created, err := scanUser(s.db.QueryRow(ctx, `
		INSERT INTO users (email, full_name, hashed_password, role, oauth_provider, oauth_id, profile_picture, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+userColumns,
		user.Email, user.FullName, user.HashedPassword, string(user.Role),
		user.OAuthProvider, user.OAuthID, user.ProfilePicture, user.IsActive,
	))
	return created, mapErr(err)
}

// UpdateUser writes every mutable column of user.
func (s *Store) UpdateUser(ctx context.Context, user model.User) (model.User, error) {
	updated, err := scanUser(s.db.QueryRow(ctx, `
		UPDATE users
		SET email = $2, full_name = $3, hashed_password = $4, role = $5, oauth_provider = $6,
		    oauth_id = $7, profile_picture = $8, is_active = $9, updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns,
		user.ID, user.Email, user.FullName, user.HashedPassword, string(user.Role),
		user.OAuthProvider, user.OAuthID, user.ProfilePicture, user.IsActive,
	))
	return updated, mapErr(err)
}

func (s *Store) UpdatePassword(ctx context.Context, userID int64, hash string) error {
	return affected(s.db.Exec(ctx, `UPDATE users SET hashed_password = $1, updated_at = NOW() WHERE id = $2`, hash, userID))
}

func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	return affected(s.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id))
}

func (s *Store) ListUsers(ctx context.Context, filter UserFilter) ([]model.User, error) {
	var w where
	if filter.Role != "" {
		w.add("role = ?", string(filter.Role))
	}
	query := `SELECT ` + userColumns + ` FROM users` + w.String() + ` ORDER BY id` + w.page(filter.Page)
	rows, err := s.db.Query(ctx, query, w.args...)
	return collect(rows, err, scanUser)
}

// UpsertByEmail loads the user for email, passes it (nil when absent) to
// apply, and writes the result back inside one transaction.
func (s *Store) UpsertByEmail(ctx context.Context, email string, apply func(existing *model.User) model.User) (model.User, error) {
	var out model.User
	err := s.WithTx(ctx, func(tx *Store) error {
		existing, err := tx.GetUserByEmail(ctx, email)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			out, err = tx.CreateUser(ctx, apply(nil))
			return err
		case err != nil:
			return err
		}
		next := apply(&existing)
		next.ID = existing.ID
		out, err = tx.UpdateUser(ctx, next)
		return err
	})
	return out, err
}
