package cascade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/openboard/openboard/internal/apperr"
	"github.com/openboard/openboard/internal/authz"
	"github.com/openboard/openboard/internal/db/models"
)

type fakeBoardStore struct {
	board     *models.Board
	getErr    error
	deleted   []string
	deleteErr error
	deleteOK  bool
}

func (f *fakeBoardStore) GetByID(ctx context.Context, id string) (*models.Board, error) {
	return f.board, f.getErr
}

func (f *fakeBoardStore) Delete(ctx context.Context, id string) (bool, error) {
	f.deleted = append(f.deleted, id)
	return f.deleteOK, f.deleteErr
}

type fakeMediaStore struct {
	paths []string
	err   error
}

func (f *fakeMediaStore) MediaURLs(ctx context.Context, boardID string) ([]string, error) {
	return f.paths, f.err
}

type fakeBlobDeleter struct {
	mu      sync.Mutex
	deleted []string
	failOn  map[string]bool
}

func (f *fakeBlobDeleter) Delete(ctx context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn[path] {
		return fmt.Errorf("backend refused %s", path)
	}
	f.deleted = append(f.deleted, path)
	return nil
}

type staticAuthorizer struct{ admin bool }

func (s staticAuthorizer) IsAdmin(ctx context.Context, userID string) (bool, error) {
	return s.admin, nil
}

func testBoard(id, owner string) *models.Board {
	return &models.Board{ID: id, UserID: owner, Name: "trip photos"}
}

func newCoordinator(boards *fakeBoardStore, media *fakeMediaStore, blobs BlobDeleter) *Coordinator {
	c := NewCoordinator(boards, media, blobs,
		authz.NewResolver(staticAuthorizer{}), slog.Default())
	c.cleanupDone = make(chan struct{})
	return c
}

func waitCleanup(t *testing.T, c *Coordinator) {
	t.Helper()
	select {
	case <-c.cleanupDone:
	case <-time.After(2 * time.Second):
		t.Fatal("blob cleanup goroutine did not finish")
	}
}

func TestDeleteBoard_RemovesRowAndBlobs(t *testing.T) {
	boards := &fakeBoardStore{board: testBoard("b-1", "u-1"), deleteOK: true}
	media := &fakeMediaStore{paths: []string{"boards/b-1/img1.png", "boards/b-1/aud1.mp3"}}
	blobs := &fakeBlobDeleter{}
	c := newCoordinator(boards, media, blobs)

	err := c.DeleteBoard(context.Background(), authz.NewCaller("u-1"), "b-1")
	if err != nil {
		t.Fatalf("DeleteBoard: %v", err)
	}
	if len(boards.deleted) != 1 || boards.deleted[0] != "b-1" {
		t.Errorf("deleted rows = %v, want [b-1]", boards.deleted)
	}

	waitCleanup(t, c)
	if len(blobs.deleted) != 2 {
		t.Errorf("deleted blobs = %v, want both media paths", blobs.deleted)
	}
}

func TestDeleteBoard_NonOwnerForbidden(t *testing.T) {
	boards := &fakeBoardStore{board: testBoard("b-1", "u-1"), deleteOK: true}
	c := newCoordinator(boards, &fakeMediaStore{}, &fakeBlobDeleter{})

	err := c.DeleteBoard(context.Background(), authz.NewCaller("u-2"), "b-1")
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
	if len(boards.deleted) != 0 {
		t.Errorf("board deleted despite denial: %v", boards.deleted)
	}
}

func TestDeleteBoard_AnonymousUnauthenticated(t *testing.T) {
	boards := &fakeBoardStore{board: testBoard("b-1", "u-1"), deleteOK: true}
	c := newCoordinator(boards, &fakeMediaStore{}, &fakeBlobDeleter{})

	err := c.DeleteBoard(context.Background(), authz.NewCaller(""), "b-1")
	if !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Fatalf("err = %v, want ErrUnauthenticated", err)
	}
}

func TestDeleteBoard_SystemTemplateImmutable(t *testing.T) {
	boards := &fakeBoardStore{board: testBoard("tmpl-starter", "u-1"), deleteOK: true}
	c := newCoordinator(boards, &fakeMediaStore{}, &fakeBlobDeleter{})

	// Even the owner cannot delete a system template board.
	err := c.DeleteBoard(context.Background(), authz.NewCaller("u-1"), "tmpl-starter")
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestDeleteBoard_MissingBoardNotFound(t *testing.T) {
	boards := &fakeBoardStore{board: nil, deleteOK: false}
	c := newCoordinator(boards, &fakeMediaStore{}, &fakeBlobDeleter{})

	err := c.DeleteBoard(context.Background(), authz.NewCaller("u-1"), "b-gone")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteBoard_RaceLostNotFound(t *testing.T) {
	// GetByID still sees the board but another request deletes it first.
	boards := &fakeBoardStore{board: testBoard("b-1", "u-1"), deleteOK: false}
	c := newCoordinator(boards, &fakeMediaStore{}, &fakeBlobDeleter{})

	err := c.DeleteBoard(context.Background(), authz.NewCaller("u-1"), "b-1")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteBoard_MediaListingFailureDoesNotBlockDeletion(t *testing.T) {
	boards := &fakeBoardStore{board: testBoard("b-1", "u-1"), deleteOK: true}
	media := &fakeMediaStore{err: errors.New("db gone")}
	c := newCoordinator(boards, media, &fakeBlobDeleter{})

	if err := c.DeleteBoard(context.Background(), authz.NewCaller("u-1"), "b-1"); err != nil {
		t.Fatalf("DeleteBoard: %v", err)
	}
	if len(boards.deleted) != 1 {
		t.Errorf("board row not deleted")
	}
}

func TestDeleteBoard_BlobFailuresDoNotAffectResult(t *testing.T) {
	boards := &fakeBoardStore{board: testBoard("b-1", "u-1"), deleteOK: true}
	media := &fakeMediaStore{paths: []string{"a.png", "b.mp3", "c.png"}}
	blobs := &fakeBlobDeleter{failOn: map[string]bool{"b.mp3": true}}
	c := newCoordinator(boards, media, blobs)

	if err := c.DeleteBoard(context.Background(), authz.NewCaller("u-1"), "b-1"); err != nil {
		t.Fatalf("DeleteBoard: %v", err)
	}

	waitCleanup(t, c)
	blobs.mu.Lock()
	defer blobs.mu.Unlock()
	if len(blobs.deleted) != 2 {
		t.Errorf("deleted blobs = %v, want the two non-failing paths", blobs.deleted)
	}
}

func TestDeleteBoard_NoBlobStorageConfigured(t *testing.T) {
	boards := &fakeBoardStore{board: testBoard("b-1", "u-1"), deleteOK: true}
	media := &fakeMediaStore{paths: []string{"a.png"}}
	c := NewCoordinator(boards, media, nil, authz.NewResolver(staticAuthorizer{}), slog.Default())

	if err := c.DeleteBoard(context.Background(), authz.NewCaller("u-1"), "b-1"); err != nil {
		t.Fatalf("DeleteBoard: %v", err)
	}
	if len(boards.deleted) != 1 {
		t.Errorf("board row not deleted")
	}
}

func TestDeleteBoard_AdminMayDelete(t *testing.T) {
	boards := &fakeBoardStore{board: testBoard("b-1", "u-1"), deleteOK: true}
	c := NewCoordinator(boards, &fakeMediaStore{}, nil,
		authz.NewResolver(staticAuthorizer{admin: true}), slog.Default())

	if err := c.DeleteBoard(context.Background(), authz.NewCaller("u-9"), "b-1"); err != nil {
		t.Fatalf("DeleteBoard: %v", err)
	}
}
