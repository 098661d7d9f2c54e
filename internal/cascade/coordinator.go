// Package cascade coordinates board deletion across the database and blob
// storage. The database side is atomic: deleting the board row removes its
// cards through the schema's foreign keys. Blob cleanup is deliberately
// best-effort and asynchronous. A board deletion must never fail or block
// because object storage is slow or unreachable, so orphaned media is
// tolerated and surfaced through metrics rather than retried.
package cascade

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/openboard/openboard/internal/apperr"
	"github.com/openboard/openboard/internal/authz"
	"github.com/openboard/openboard/internal/db/models"
	"github.com/openboard/openboard/internal/safego"
	"github.com/openboard/openboard/internal/telemetry"
)

// blobCleanupTimeout bounds the background deletion pass for one board's
// media. It is generous because a board can hold many cards, each with an
// image and an audio object.
const blobCleanupTimeout = 30 * time.Second

// BoardStore is the slice of the board repository the coordinator needs.
type BoardStore interface {
	GetByID(ctx context.Context, id string) (*models.Board, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// MediaStore lists the storage paths referenced by a board's cards.
type MediaStore interface {
	MediaURLs(ctx context.Context, boardID string) ([]string, error)
}

// BlobDeleter removes a single object from blob storage.
type BlobDeleter interface {
	Delete(ctx context.Context, path string) error
}

// Coordinator runs the board deletion sequence.
type Coordinator struct {
	boards   BoardStore
	media    MediaStore
	blobs    BlobDeleter
	resolver *authz.Resolver
	logger   *slog.Logger

	// cleanupDone is closed by the background cleanup goroutine when it
	// finishes. Nil outside of tests.
	cleanupDone chan struct{}
}

// NewCoordinator wires a Coordinator. blobs may be nil when the deployment
// has no blob storage configured; media cleanup is then skipped entirely.
func NewCoordinator(boards BoardStore, media MediaStore, blobs BlobDeleter, resolver *authz.Resolver, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		boards:   boards,
		media:    media,
		blobs:    blobs,
		resolver: resolver,
		logger:   logger,
	}
}

// DeleteBoard authorizes and executes the deletion of a board and everything
// under it. Card rows are removed by the database cascade in the same
// statement as the board row, so a reader never observes a half-deleted
// board. Media objects are collected before the row disappears and cleaned
// up in the background after the transaction commits.
func (c *Coordinator) DeleteBoard(ctx context.Context, caller *authz.Caller, boardID string) error {
	board, err := c.boards.GetByID(ctx, boardID)
	if err != nil {
		return fmt.Errorf("%w: load board: %v", apperr.ErrUnavailable, err)
	}
	if err := c.resolver.ResolveBoard(ctx, caller, board, authz.ActionDelete); err != nil {
		return err
	}

	// Snapshot media paths now; the rows are gone after Delete.
	var paths []string
	if c.blobs != nil {
		paths, err = c.media.MediaURLs(ctx, boardID)
		if err != nil {
			// Losing the media listing orphans blobs but must not veto the
			// deletion itself.
			c.logger.Warn("media listing failed, blobs will be orphaned",
				"board_id", boardID, "error", err)
			paths = nil
		}
	}

	deleted, err := c.boards.Delete(ctx, boardID)
	if err != nil {
		return fmt.Errorf("%w: delete board: %v", apperr.ErrUnavailable, err)
	}
	if !deleted {
		return apperr.ErrNotFound
	}
	telemetry.BoardDeletionsTotal.Inc()

	if len(paths) > 0 {
		c.cleanupBlobs(boardID, paths)
	}
	return nil
}

// cleanupBlobs deletes the given storage paths in a recovered background
// goroutine with its own deadline, detached from the request context.
func (c *Coordinator) cleanupBlobs(boardID string, paths []string) {
	done := c.cleanupDone
	safego.Go(func() {
		if done != nil {
			defer close(done)
		}
		ctx, cancel := context.WithTimeout(context.Background(), blobCleanupTimeout)
		defer cancel()

		var failed int
		for _, p := range paths {
			if err := c.blobs.Delete(ctx, p); err != nil {
				failed++
				telemetry.BlobCleanupFailuresTotal.Inc()
				c.logger.Warn("blob cleanup failed",
					"board_id", boardID, "path", p, "error", err)
			}
		}
		c.logger.Debug("blob cleanup finished",
			"board_id", boardID, "total", len(paths), "failed", failed)
	})
}
