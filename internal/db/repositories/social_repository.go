// social_repository.go implements SocialRepository, covering comments and
// likes on public boards.
package repositories

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/openboard/openboard/internal/db/models"
)

// SocialRepository handles database operations for board comments and likes.
type SocialRepository struct {
	db *sqlx.DB
}

// NewSocialRepository creates a new social repository.
func NewSocialRepository(db *sqlx.DB) *SocialRepository {
	return &SocialRepository{db: db}
}

// AddComment inserts a comment on a board.
func (r *SocialRepository) AddComment(ctx context.Context, comment *models.BoardComment) error {
	query := `
		INSERT INTO board_comments (id, board_id, user_id, body)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		comment.ID,
		comment.BoardID,
		comment.UserID,
		comment.Body,
	).Scan(&comment.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to add comment: %w", err)
	}

	return nil
}

// ListComments returns the board's comments, oldest first, with the commenter
// name joined in.
func (r *SocialRepository) ListComments(ctx context.Context, boardID string) ([]models.BoardComment, error) {
	query := `
		SELECT c.id, c.board_id, c.user_id, c.body, c.created_at, u.name AS user_name
		FROM board_comments c
		LEFT JOIN users u ON c.user_id = u.id
		WHERE c.board_id = $1
		ORDER BY c.created_at
	`

	comments := []models.BoardComment{}
	if err := r.db.SelectContext(ctx, &comments, query, boardID); err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}

	return comments, nil
}

// Like records a like. Liking a board twice is a no-op, not an error.
func (r *SocialRepository) Like(ctx context.Context, boardID, userID string) error {
	query := `
		INSERT INTO board_likes (board_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (board_id, user_id) DO NOTHING
	`

	if _, err := r.db.ExecContext(ctx, query, boardID, userID); err != nil {
		return fmt.Errorf("failed to like board: %w", err)
	}

	return nil
}

// Unlike removes a like if present.
func (r *SocialRepository) Unlike(ctx context.Context, boardID, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM board_likes WHERE board_id = $1 AND user_id = $2`, boardID, userID); err != nil {
		return fmt.Errorf("failed to unlike board: %w", err)
	}

	return nil
}

// LikeCount returns how many users liked the board.
func (r *SocialRepository) LikeCount(ctx context.Context, boardID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM board_likes WHERE board_id = $1`, boardID); err != nil {
		return 0, fmt.Errorf("failed to count likes: %w", err)
	}

	return count, nil
}
