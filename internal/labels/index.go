// Package labels enforces per-board label uniqueness for cards.
//
// Labels are compared trimmed and lower-cased. Empty normalized labels are
// exempt so bulk uploads can stage unlabeled cards and fill the labels in
// later. The check runs after authorization and before any card insert,
// rename, or cross-board move (checked against the destination board).
package labels

import (
	"context"
	"fmt"
	"strings"

	"github.com/openboard/openboard/internal/apperr"
)

// Source provides the raw labels currently used on a board, optionally
// excluding one card (the card being renamed, which must not conflict with
// itself). Implemented by repositories.CardRepository.
type Source interface {
	Labels(ctx context.Context, boardID, excludeCardID string) ([]string, error)
}

// Index answers label-uniqueness questions for one board at a time.
type Index struct {
	source Source
}

// NewIndex creates an Index over the given label source.
func NewIndex(source Source) *Index {
	return &Index{source: source}
}

// Normalize trims and lower-cases a label for comparison.
func Normalize(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

// CheckUnique returns nil when candidate may be used on the board, or a
// Conflict error when another card already holds it. excludeCardID names the
// card being updated, or empty for inserts.
func (i *Index) CheckUnique(ctx context.Context, boardID, candidate, excludeCardID string) error {
	normalized := Normalize(candidate)
	if normalized == "" {
		return nil
	}

	taken, err := i.usedLabels(ctx, boardID, excludeCardID)
	if err != nil {
		return err
	}
	if taken[normalized] {
		return fmt.Errorf("%w: %q already used on board %s", apperr.ErrConflict, candidate, boardID)
	}

	return nil
}

// CheckBatch validates a batch of candidate labels for one board: each
// candidate is checked against the board's existing labels AND against the
// other candidates in the same batch, so two new cards in one request cannot
// collide with each other before either exists in the datastore.
func (i *Index) CheckBatch(ctx context.Context, boardID string, candidates []string) error {
	taken, err := i.usedLabels(ctx, boardID, "")
	if err != nil {
		return err
	}

	for _, candidate := range candidates {
		normalized := Normalize(candidate)
		if normalized == "" {
			continue
		}
		if taken[normalized] {
			return fmt.Errorf("%w: %q already used on board %s", apperr.ErrConflict, candidate, boardID)
		}
		taken[normalized] = true
	}

	return nil
}

func (i *Index) usedLabels(ctx context.Context, boardID, excludeCardID string) (map[string]bool, error) {
	raw, err := i.source.Labels(ctx, boardID, excludeCardID)
	if err != nil {
		// Uniqueness checks never fail open.
		return nil, fmt.Errorf("%w: label lookup: %v", apperr.ErrUnavailable, err)
	}

	taken := make(map[string]bool, len(raw))
	for _, label := range raw {
		if n := Normalize(label); n != "" {
			taken[n] = true
		}
	}
	return taken, nil
}
