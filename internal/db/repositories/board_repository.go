// board_repository.go implements BoardRepository, providing database queries
// for board CRUD, publishing, and the template/public listings used by clone.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/openboard/openboard/internal/db/models"
	"github.com/openboard/openboard/internal/lineage"
)

const boardColumns = `id, user_id, name, description, is_public, owner_email, email_notifications_enabled, created_at`

// BoardRepository handles database operations for boards.
type BoardRepository struct {
	db *sqlx.DB
}

// NewBoardRepository creates a new board repository.
func NewBoardRepository(db *sqlx.DB) *BoardRepository {
	return &BoardRepository{db: db}
}

// Create inserts a new board record.
func (r *BoardRepository) Create(ctx context.Context, board *models.Board) error {
	query := `
		INSERT INTO boards (id, user_id, name, description, is_public, email_notifications_enabled)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		board.ID,
		board.UserID,
		board.Name,
		board.Description,
		board.IsPublic,
		board.EmailNotificationsEnabled,
	).Scan(&board.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create board: %w", err)
	}

	return nil
}

// GetByID retrieves a board by id, or nil when it does not exist.
func (r *BoardRepository) GetByID(ctx context.Context, id string) (*models.Board, error) {
	query := `SELECT ` + boardColumns + ` FROM boards WHERE id = $1`

	board := &models.Board{}
	if err := r.db.GetContext(ctx, board, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get board: %w", err)
	}

	return board, nil
}

// ListByOwner returns all boards owned by the user, newest first.
func (r *BoardRepository) ListByOwner(ctx context.Context, userID string) ([]models.Board, error) {
	query := `SELECT ` + boardColumns + ` FROM boards WHERE user_id = $1 ORDER BY created_at DESC`

	boards := []models.Board{}
	if err := r.db.SelectContext(ctx, &boards, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list boards: %w", err)
	}

	return boards, nil
}

// ListPublic returns public, non-template boards, newest first.
func (r *BoardRepository) ListPublic(ctx context.Context, limit, offset int) ([]models.Board, error) {
	query := `
		SELECT ` + boardColumns + `
		FROM boards
		WHERE is_public = TRUE AND id NOT LIKE $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	boards := []models.Board{}
	if err := r.db.SelectContext(ctx, &boards, query, lineage.SystemBoardPrefix+"%", limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list public boards: %w", err)
	}

	return boards, nil
}

// ListTemplates returns the system template boards.
func (r *BoardRepository) ListTemplates(ctx context.Context) ([]models.Board, error) {
	query := `SELECT ` + boardColumns + ` FROM boards WHERE id LIKE $1 ORDER BY name`

	boards := []models.Board{}
	if err := r.db.SelectContext(ctx, &boards, query, lineage.SystemBoardPrefix+"%"); err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}

	return boards, nil
}

// Update persists the caller-editable board fields.
func (r *BoardRepository) Update(ctx context.Context, board *models.Board) error {
	query := `
		UPDATE boards
		SET name = $2, description = $3, is_public = $4, email_notifications_enabled = $5
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		board.ID,
		board.Name,
		board.Description,
		board.IsPublic,
		board.EmailNotificationsEnabled,
	)
	if err != nil {
		return fmt.Errorf("failed to update board: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// Publish marks the board public. The owner email is captured lazily: only
// written when the column is still null, never overwritten on re-publish.
func (r *BoardRepository) Publish(ctx context.Context, id string, ownerEmail *string) error {
	query := `
		UPDATE boards
		SET is_public = TRUE, owner_email = COALESCE(owner_email, $2)
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, ownerEmail)
	if err != nil {
		return fmt.Errorf("failed to publish board: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read publish result: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// Delete removes the board row. Cards cascade at the datastore level, so the
// board and its cards disappear atomically. Returns false when no such board
// existed.
func (r *BoardRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM boards WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete board: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read delete result: %w", err)
	}

	return rows > 0, nil
}
