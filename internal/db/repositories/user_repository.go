// user_repository.go implements UserRepository, the backing store for known
// accounts and the admin capability check consulted by the authz resolver.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/openboard/openboard/internal/db/models"
)

// UserRepository handles database operations for users.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID retrieves a user by id, or nil when unknown.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT id, email, name, is_admin, created_at
		FROM users
		WHERE id = $1
	`

	user := &models.User{}
	if err := r.db.GetContext(ctx, user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// Upsert creates the user row on first sight of an identity, or refreshes its
// email and display name. The admin flag is never touched here — it is an
// operator-managed column.
func (r *UserRepository) Upsert(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, email, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET email = EXCLUDED.email, name = EXCLUDED.name
		RETURNING is_admin, created_at
	`

	err := r.db.QueryRowxContext(ctx, query, user.ID, user.Email, user.Name).
		Scan(&user.IsAdmin, &user.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}

	return nil
}

// SetAdmin grants or revokes the admin override. Called at login when the
// identity provider carries an admin claim, making the IdP the source of
// truth; deployments without the claim manage the column by hand instead.
func (r *UserRepository) SetAdmin(ctx context.Context, userID string, isAdmin bool) error {
	query := `UPDATE users SET is_admin = $2 WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, userID, isAdmin); err != nil {
		return fmt.Errorf("failed to set admin flag: %w", err)
	}

	return nil
}

// IsAdmin reports whether the user holds the admin override. Unknown users
// are not admins. This satisfies the authz.Authorizer interface.
func (r *UserRepository) IsAdmin(ctx context.Context, userID string) (bool, error) {
	query := `SELECT is_admin FROM users WHERE id = $1`

	var isAdmin bool
	if err := r.db.GetContext(ctx, &isAdmin, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check admin flag: %w", err)
	}

	return isAdmin, nil
}
