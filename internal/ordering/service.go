// Package ordering maintains the per-board display order of cards.
//
// Clients reorder optimistically: the UI moves the card immediately, then
// sends the complete new ordering here. The service validates that the
// supplied ids are exactly the board's cards and persists position = index
// for each. Persistence is transactional — either the whole ordering lands or
// the previous ordering survives — so a client that receives an error can
// roll its local view back to the last known-good state without wondering
// about partial server state.
package ordering

import (
	"context"
	"fmt"

	"github.com/openboard/openboard/internal/apperr"
)

// Store is the slice of the card store the ordering service needs.
// Implemented by repositories.CardRepository.
type Store interface {
	CardIDsByBoard(ctx context.Context, boardID string) ([]string, error)
	ApplyOrdering(ctx context.Context, boardID string, orderedIDs []string) error
}

// Service applies reorder requests.
type Service struct {
	store Store
}

// NewService creates an ordering service over the given store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Reorder persists the supplied ordering for the board. The ordering must
// mention every card on the board exactly once; unknown or duplicate ids are
// a validation error, and missing ids are too (a stale client should refetch
// rather than silently drop cards to the end).
func (s *Service) Reorder(ctx context.Context, boardID string, orderedCardIDs []string) error {
	current, err := s.store.CardIDsByBoard(ctx, boardID)
	if err != nil {
		return fmt.Errorf("%w: card listing: %v", apperr.ErrUnavailable, err)
	}

	onBoard := make(map[string]bool, len(current))
	for _, id := range current {
		onBoard[id] = true
	}

	seen := make(map[string]bool, len(orderedCardIDs))
	for _, id := range orderedCardIDs {
		if !onBoard[id] {
			return apperr.Validation("card %s is not on board %s", id, boardID)
		}
		if seen[id] {
			return apperr.Validation("card %s appears twice in ordering", id)
		}
		seen[id] = true
	}
	if len(seen) != len(current) {
		return apperr.Validation("ordering names %d of %d cards", len(seen), len(current))
	}

	if err := s.store.ApplyOrdering(ctx, boardID, orderedCardIDs); err != nil {
		return fmt.Errorf("%w: apply ordering: %v", apperr.ErrUnavailable, err)
	}

	return nil
}
