// card_repository.go implements CardRepository, providing database queries for
// card CRUD, label lookups, media-reference collection, and transactional
// reordering.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/openboard/openboard/internal/db/models"
)

const cardColumns = `id, board_id, label, image_url, audio_url, color, category, position, source_board_id, template_key, created_at`

// CardRepository handles database operations for cards.
type CardRepository struct {
	db *sqlx.DB
}

// NewCardRepository creates a new card repository.
func NewCardRepository(db *sqlx.DB) *CardRepository {
	return &CardRepository{db: db}
}

// Create inserts a new card record.
func (r *CardRepository) Create(ctx context.Context, card *models.Card) error {
	query := `
		INSERT INTO cards (id, board_id, label, image_url, audio_url, color, category, position, source_board_id, template_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		card.ID,
		card.BoardID,
		card.Label,
		card.ImageURL,
		card.AudioURL,
		card.Color,
		card.Category,
		card.Position,
		card.SourceBoardID,
		card.TemplateKey,
	).Scan(&card.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create card: %w", err)
	}

	return nil
}

// CreateBatch inserts several cards in one transaction, so a failed batch
// upload leaves nothing behind.
func (r *CardRepository) CreateBatch(ctx context.Context, cards []*models.Card) error {
	if len(cards) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin batch insert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	query := `
		INSERT INTO cards (id, board_id, label, image_url, audio_url, color, category, position, source_board_id, template_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`

	for _, card := range cards {
		err := tx.QueryRowxContext(ctx, query,
			card.ID,
			card.BoardID,
			card.Label,
			card.ImageURL,
			card.AudioURL,
			card.Color,
			card.Category,
			card.Position,
			card.SourceBoardID,
			card.TemplateKey,
		).Scan(&card.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert card %s: %w", card.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch insert: %w", err)
	}

	return nil
}

// GetByID retrieves a card by id, or nil when it does not exist.
func (r *CardRepository) GetByID(ctx context.Context, id string) (*models.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE id = $1`

	card := &models.Card{}
	if err := r.db.GetContext(ctx, card, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get card: %w", err)
	}

	return card, nil
}

// ListByBoard returns the board's cards in display order.
func (r *CardRepository) ListByBoard(ctx context.Context, boardID string) ([]models.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards WHERE board_id = $1 ORDER BY position, created_at`

	cards := []models.Card{}
	if err := r.db.SelectContext(ctx, &cards, query, boardID); err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}

	return cards, nil
}

// Labels returns the raw labels currently used on the board, optionally
// excluding one card (the card being renamed). Normalization is the label
// index's concern, not the store's.
func (r *CardRepository) Labels(ctx context.Context, boardID, excludeCardID string) ([]string, error) {
	query := `SELECT label FROM cards WHERE board_id = $1 AND id <> $2`

	labels := []string{}
	if err := r.db.SelectContext(ctx, &labels, query, boardID, excludeCardID); err != nil {
		return nil, fmt.Errorf("failed to load board labels: %w", err)
	}

	return labels, nil
}

// UpdateContent persists the editable card fields.
func (r *CardRepository) UpdateContent(ctx context.Context, card *models.Card) error {
	query := `
		UPDATE cards
		SET label = $2, image_url = $3, audio_url = $4, color = $5, category = $6
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		card.ID,
		card.Label,
		card.ImageURL,
		card.AudioURL,
		card.Color,
		card.Category,
	)
	if err != nil {
		return fmt.Errorf("failed to update card: %w", err)
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

// MoveToBoard reparents a card onto another board at the given position.
func (r *CardRepository) MoveToBoard(ctx context.Context, cardID, destBoardID string, position int) error {
	query := `UPDATE cards SET board_id = $2, position = $3 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, cardID, destBoardID, position)
	if err != nil {
		return fmt.Errorf("failed to move card: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read move result: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// Delete removes a card. Returns false when no such card existed.
func (r *CardRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM cards WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete card: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read delete result: %w", err)
	}

	return rows > 0, nil
}

// NextPosition returns the position one past the board's highest. Positions
// may hold gaps after deletions, so this is MAX+1, not a row count; an empty
// board starts at 0.
func (r *CardRepository) NextPosition(ctx context.Context, boardID string) (int, error) {
	var position int
	query := `SELECT COALESCE(MAX(position) + 1, 0) FROM cards WHERE board_id = $1`
	if err := r.db.GetContext(ctx, &position, query, boardID); err != nil {
		return 0, fmt.Errorf("failed to compute next position: %w", err)
	}

	return position, nil
}

// CardIDsByBoard returns the ids of every card on the board.
func (r *CardRepository) CardIDsByBoard(ctx context.Context, boardID string) ([]string, error) {
	ids := []string{}
	if err := r.db.SelectContext(ctx, &ids, `SELECT id FROM cards WHERE board_id = $1`, boardID); err != nil {
		return nil, fmt.Errorf("failed to list card ids: %w", err)
	}

	return ids, nil
}

// ApplyOrdering sets each card's position to its index in orderedIDs, inside
// a single transaction: either the whole new ordering lands or none of it.
func (r *CardRepository) ApplyOrdering(ctx context.Context, boardID string, orderedIDs []string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin reorder: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	query := `UPDATE cards SET position = $3 WHERE id = $1 AND board_id = $2`

	for i, id := range orderedIDs {
		result, err := tx.ExecContext(ctx, query, id, boardID, i)
		if err != nil {
			return fmt.Errorf("failed to reposition card %s: %w", id, err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read reposition result: %w", err)
		}
		if rows == 0 {
			return fmt.Errorf("card %s is not on board %s: %w", id, boardID, sql.ErrNoRows)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reorder: %w", err)
	}

	return nil
}

// MediaURLs collects the non-empty image and audio URLs of every card on the
// board, for best-effort blob cleanup after a cascade delete.
func (r *CardRepository) MediaURLs(ctx context.Context, boardID string) ([]string, error) {
	query := `SELECT image_url, audio_url FROM cards WHERE board_id = $1`

	rows, err := r.db.QueryxContext(ctx, query, boardID)
	if err != nil {
		return nil, fmt.Errorf("failed to collect media urls: %w", err)
	}
	defer rows.Close()

	urls := []string{}
	for rows.Next() {
		var imageURL, audioURL string
		if err := rows.Scan(&imageURL, &audioURL); err != nil {
			return nil, fmt.Errorf("failed to scan media urls: %w", err)
		}
		if imageURL != "" {
			urls = append(urls, imageURL)
		}
		if audioURL != "" {
			urls = append(urls, audioURL)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate media urls: %w", err)
	}

	return urls, nil
}
