// Package social implements comments and likes on public boards.
package social

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/openboard/openboard/internal/api/respond"
	"github.com/openboard/openboard/internal/apperr"
	"github.com/openboard/openboard/internal/authz"
	"github.com/openboard/openboard/internal/db/models"
	"github.com/openboard/openboard/internal/db/repositories"
	"github.com/openboard/openboard/internal/middleware"
	"github.com/openboard/openboard/internal/validation"
)

// Handlers bundles the dependencies of the comment and like endpoints.
type Handlers struct {
	boards   *repositories.BoardRepository
	social   *repositories.SocialRepository
	resolver *authz.Resolver
}

// NewHandlers wires the social endpoints.
func NewHandlers(
	boards *repositories.BoardRepository,
	social *repositories.SocialRepository,
	resolver *authz.Resolver,
) *Handlers {
	return &Handlers{boards: boards, social: social, resolver: resolver}
}

// ListComments returns the board's comments, oldest first. Readable by
// anyone who can read the board.
// GET /v1/boards/:id/comments
func (h *Handlers) ListComments(c *gin.Context) {
	ctx := c.Request.Context()

	board, err := h.loadBoard(c)
	if err != nil {
		respond.Error(c, err)
		return
	}

	caller := middleware.CallerFrom(c)
	if err := h.resolver.ResolveBoard(ctx, caller, board, authz.ActionRead); err != nil {
		respond.Error(c, err)
		return
	}

	comments, err := h.social.ListComments(ctx, board.ID)
	if err != nil {
		respond.Error(c, apperr.Unavailable("datastore", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"comments": comments})
}

type commentRequest struct {
	Body string `json:"body"`
}

// AddComment posts a comment on a public board. Owners may also comment on
// their own private boards; everyone else needs the board to be public.
// POST /v1/boards/:id/comments
func (h *Handlers) AddComment(c *gin.Context) {
	ctx := c.Request.Context()

	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, apperr.Validation("malformed request body"))
		return
	}
	if err := validation.ValidateComment(req.Body); err != nil {
		respond.Error(c, err)
		return
	}

	board, err := h.loadBoard(c)
	if err != nil {
		respond.Error(c, err)
		return
	}

	caller := middleware.CallerFrom(c)
	if err := h.resolver.ResolveBoard(ctx, caller, board, authz.ActionRead); err != nil {
		respond.Error(c, err)
		return
	}

	comment := &models.BoardComment{
		ID:      uuid.New().String(),
		BoardID: board.ID,
		UserID:  caller.UserID,
		Body:    strings.TrimSpace(req.Body),
	}
	if err := h.social.AddComment(ctx, comment); err != nil {
		respond.Error(c, apperr.Unavailable("datastore", err))
		return
	}

	c.JSON(http.StatusCreated, comment)
}

// Like records the caller's like on a board. Idempotent: liking twice is a
// no-op, not an error.
// POST /v1/boards/:id/like
func (h *Handlers) Like(c *gin.Context) {
	h.setLike(c, true)
}

// Unlike removes the caller's like. Removing an absent like is a no-op.
// DELETE /v1/boards/:id/like
func (h *Handlers) Unlike(c *gin.Context) {
	h.setLike(c, false)
}

func (h *Handlers) setLike(c *gin.Context, liked bool) {
	ctx := c.Request.Context()

	board, err := h.loadBoard(c)
	if err != nil {
		respond.Error(c, err)
		return
	}

	caller := middleware.CallerFrom(c)
	if err := h.resolver.ResolveBoard(ctx, caller, board, authz.ActionRead); err != nil {
		respond.Error(c, err)
		return
	}

	if liked {
		err = h.social.Like(ctx, board.ID, caller.UserID)
	} else {
		err = h.social.Unlike(ctx, board.ID, caller.UserID)
	}
	if err != nil {
		respond.Error(c, apperr.Unavailable("datastore", err))
		return
	}

	count, err := h.social.LikeCount(ctx, board.ID)
	if err != nil {
		respond.Error(c, apperr.Unavailable("datastore", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"board_id": board.ID, "like_count": count, "liked": liked})
}

func (h *Handlers) loadBoard(c *gin.Context) (*models.Board, error) {
	board, err := h.boards.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		return nil, apperr.Unavailable("datastore", err)
	}
	if board == nil {
		return nil, apperr.ErrNotFound
	}
	return board, nil
}
