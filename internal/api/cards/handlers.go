// Package cards implements the card endpoints: create (single and batch),
// content update, move, delete, and board-level reordering. Label uniqueness
// is enforced through the labels index before any write.
package cards

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
	"github.com/openboard/openboard/internal/labels"
	"github.com/openboard/openboard/internal/middleware"
	"github.com/openboard/openboard/internal/ordering"
	"github.com/openboard/openboard/internal/validation"
)

// MaxBatchSize caps how many cards one batch request may create.
const MaxBatchSize = 50

// Handlers bundles the dependencies of the card endpoints.
type Handlers struct {
	boards   *repositories.BoardRepository
	cards    *repositories.CardRepository
	resolver *authz.Resolver
	labels   *labels.Index
	ordering *ordering.Service
}

// NewHandlers wires the card endpoints.
func NewHandlers(
	boards *repositories.BoardRepository,
	cards *repositories.CardRepository,
	resolver *authz.Resolver,
	index *labels.Index,
	orderer *ordering.Service,
) *Handlers {
	return &Handlers{
		boards:   boards,
		cards:    cards,
		resolver: resolver,
		labels:   index,
		ordering: orderer,
	}
}

type cardRequest struct {
	Label    string  `json:"label"`
	ImageURL string  `json:"image_url"`
	AudioURL string  `json:"audio_url"`
	Color    string  `json:"color"`
	Category *string `json:"category"`
}

// validate checks the request fields and returns the normalized category.
func (r *cardRequest) validate() (*string, error) {
	// Blank labels are allowed: bulk uploads stage unlabeled cards and fill
	// the labels in later. Blanks are exempt from uniqueness too.
	if err := validation.ValidateLabel(r.Label); err != nil {
		return nil, err
	}
	if r.Color != "" {
		if err := validation.ValidateColor(r.Color); err != nil {
			return nil, err
		}
	}
	if err := validation.ValidateMediaURL(r.ImageURL); err != nil {
		return nil, err
	}
	if err := validation.ValidateMediaURL(r.AudioURL); err != nil {
		return nil, err
	}
	if r.Category == nil || strings.TrimSpace(*r.Category) == "" {
		return nil, nil
	}
	normalized := validation.NormalizeCategory(*r.Category)
	return &normalized, nil
}

// List returns the board's cards in position order.
// GET /v1/boards/:id/cards
func (h *Handlers) List(c *gin.Context) {
	ctx := c.Request.Context()

	board, err := h.loadBoard(c, c.Param("id"))
	if err != nil {
		respond.Error(c, err)
		return
	}

	caller := middleware.CallerFrom(c)
	if err := h.resolver.ResolveBoard(ctx, caller, board, authz.ActionRead); err != nil {
		respond.Error(c, err)
		return
	}

	list, err := h.cards.ListByBoard(ctx, board.ID)
	if err != nil {
		respond.Error(c, apperr.Unavailable("datastore", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"cards": list})
}

// Create adds one card to the board, appended after the existing cards.
// POST /v1/boards/:id/cards
func (h *Handlers) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req cardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, apperr.Validation("malformed request body"))
		return
	}
	category, err := req.validate()
	if err != nil {
		respond.Error(c, err)
		return
	}

	board, err := h.loadBoard(c, c.Param("id"))
	if err != nil {
		respond.Error(c, err)
		return
	}

	caller := middleware.CallerFrom(c)
	if err := h.resolver.ResolveBoard(ctx, caller, board, authz.ActionUpdate); err != nil {
		respond.Error(c, err)
		return
	}

	if err := h.labels.CheckUnique(ctx, board.ID, req.Label, ""); err != nil {
		respond.Error(c, err)
		return
	}

	position, err := h.nextPosition(c, board.ID)
	if err != nil {
		respond.Error(c, err)
		return
	}

	card := &models.Card{
		ID:       uuid.New().String(),
		BoardID:  board.ID,
		Label:    strings.TrimSpace(req.Label),
		ImageURL: req.ImageURL,
		AudioURL: req.AudioURL,
		Color:    req.Color,
		Category: category,
		Position: position,
	}
	if err := h.cards.Create(ctx, card); err != nil {
		respond.Error(c, apperr.Unavailable("datastore", err))
		return
	}

	c.JSON(http.StatusCreated, card)
}

type batchRequest struct {
	Cards []cardRequest `json:"cards"`
}

// CreateBatch adds several cards in one transaction. The whole batch is
// validated (including label uniqueness against the board and within the
// batch itself) before anything is written.
// POST /v1/boards/:id/cards/batch
func (h *Handlers) CreateBatch(c *gin.Context) {
	ctx := c.Request.Context()

	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, apperr.Validation("malformed request body"))
		return
	}
	if len(req.Cards) == 0 {
		respond.Error(c, apperr.Validation("batch contains no cards"))
		return
	}
	if len(req.Cards) > MaxBatchSize {
		respond.Error(c, apperr.Validation("batch exceeds %d cards", MaxBatchSize))
		return
	}

	board, err := h.loadBoard(c, c.Param("id"))
	if err != nil {
		respond.Error(c, err)
		return
	}

	caller := middleware.CallerFrom(c)
	if err := h.resolver.ResolveBoard(ctx, caller, board, authz.ActionUpdate); err != nil {
		respond.Error(c, err)
		return
	}

	categories := make([]*string, len(req.Cards))
	candidates := make([]string, len(req.Cards))
	for i := range req.Cards {
		category, err := req.Cards[i].validate()
		if err != nil {
			respond.Error(c, err)
			return
		}
		categories[i] = category
		candidates[i] = req.Cards[i].Label
	}

	if err := h.labels.CheckBatch(ctx, board.ID, candidates); err != nil {
		respond.Error(c, err)
		return
	}

	position, err := h.nextPosition(c, board.ID)
	if err != nil {
		respond.Error(c, err)
		return
	}

	created := make([]*models.Card, len(req.Cards))
	for i := range req.Cards {
		created[i] = &models.Card{
			ID:       uuid.New().String(),
			BoardID:  board.ID,
			Label:    strings.TrimSpace(req.Cards[i].Label),
			ImageURL: req.Cards[i].ImageURL,
			AudioURL: req.Cards[i].AudioURL,
			Color:    req.Cards[i].Color,
			Category: categories[i],
			Position: position + i,
		}
	}

	if err := h.cards.CreateBatch(ctx, created); err != nil {
		respond.Error(c, apperr.Unavailable("datastore", err))
		return
	}

	c.JSON(http.StatusCreated, gin.H{"cards": created})
}

// Update replaces the card's content. Inherited and template-origin cards
// are frozen and rejected by the resolver.
// PUT /v1/cards/:id
func (h *Handlers) Update(c *gin.Context) {
	ctx := c.Request.Context()

	var req cardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, apperr.Validation("malformed request body"))
		return
	}
	category, err := req.validate()
	if err != nil {
		respond.Error(c, err)
		return
	}

	card, board, err := h.loadCard(c)
	if err != nil {
		respond.Error(c, err)
		return
	}

	caller := middleware.CallerFrom(c)
	if err := h.resolver.ResolveCard(ctx, caller, board, card, authz.ActionUpdate); err != nil {
		respond.Error(c, err)
		return
	}

	if err := h.labels.CheckUnique(ctx, board.ID, req.Label, card.ID); err != nil {
		respond.Error(c, err)
		return
	}

	card.Label = strings.TrimSpace(req.Label)
	card.ImageURL = req.ImageURL
	card.AudioURL = req.AudioURL
	card.Color = req.Color
	card.Category = category

	if err := h.cards.UpdateContent(ctx, card); err != nil {
		respond.Error(c, apperr.Unavailable("datastore", err))
		return
	}

	c.JSON(http.StatusOK, card)
}

type moveRequest struct {
	BoardID string `json:"board_id"`
}

// Move reparents a card onto another board owned by the caller, appended
// after the destination's existing cards. The card's label must not collide
// on the destination board.
// POST /v1/cards/:id/move
func (h *Handlers) Move(c *gin.Context) {
	ctx := c.Request.Context()

	var req moveRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.BoardID == "" {
		respond.Error(c, apperr.Validation("destination board_id is required"))
		return
	}

	card, source, err := h.loadCard(c)
	if err != nil {
		respond.Error(c, err)
		return
	}

	caller := middleware.CallerFrom(c)
	// Moving removes the card from its board, so the delete rules apply on
	// the source side (template cards stay put, inherited cards may move).
	if err := h.resolver.ResolveCard(ctx, caller, source, card, authz.ActionDelete); err != nil {
		respond.Error(c, err)
		return
	}

	dest, err := h.loadBoard(c, req.BoardID)
	if err != nil {
		respond.Error(c, err)
		return
	}
	if err := h.resolver.ResolveBoard(ctx, caller, dest, authz.ActionUpdate); err != nil {
		respond.Error(c, err)
		return
	}

	if dest.ID == source.ID {
		c.JSON(http.StatusOK, card)
		return
	}

	if err := h.labels.CheckUnique(ctx, dest.ID, card.Label, ""); err != nil {
		respond.Error(c, err)
		return
	}

	position, err := h.nextPosition(c, dest.ID)
	if err != nil {
		respond.Error(c, err)
		return
	}

	if err := h.cards.MoveToBoard(ctx, card.ID, dest.ID, position); err != nil {
		respond.Error(c, apperr.Unavailable("datastore", err))
		return
	}

	card.BoardID = dest.ID
	card.Position = position
	c.JSON(http.StatusOK, card)
}

// Delete removes one card. Template-origin cards are immutable and rejected.
// DELETE /v1/cards/:id
func (h *Handlers) Delete(c *gin.Context) {
	ctx := c.Request.Context()

	card, board, err := h.loadCard(c)
	if err != nil {
		respond.Error(c, err)
		return
	}

	caller := middleware.CallerFrom(c)
	if err := h.resolver.ResolveCard(ctx, caller, board, card, authz.ActionDelete); err != nil {
		respond.Error(c, err)
		return
	}

	deleted, err := h.cards.Delete(ctx, card.ID)
	if err != nil {
		respond.Error(c, apperr.Unavailable("datastore", err))
		return
	}
	if !deleted {
		respond.Error(c, apperr.ErrNotFound)
		return
	}

	c.Status(http.StatusNoContent)
}

type orderRequest struct {
	CardIDs []string `json:"card_ids"`
}

// Reorder persists a full ordering of the board's cards. The ordering must
// name every card exactly once; partial orderings are rejected so a stale
// client cannot silently shuffle cards it has never seen.
// PUT /v1/boards/:id/order
func (h *Handlers) Reorder(c *gin.Context) {
	ctx := c.Request.Context()

	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, apperr.Validation("malformed request body"))
		return
	}

	board, err := h.loadBoard(c, c.Param("id"))
	if err != nil {
		respond.Error(c, err)
		return
	}

	caller := middleware.CallerFrom(c)
	if err := h.resolver.ResolveBoard(ctx, caller, board, authz.ActionUpdate); err != nil {
		respond.Error(c, err)
		return
	}

	if err := h.ordering.Reorder(ctx, board.ID, req.CardIDs); err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"board_id": board.ID, "card_ids": req.CardIDs})
}

func (h *Handlers) loadBoard(c *gin.Context, id string) (*models.Board, error) {
	board, err := h.boards.GetByID(c.Request.Context(), id)
	if err != nil {
		return nil, apperr.Unavailable("datastore", err)
	}
	if board == nil {
		return nil, apperr.ErrNotFound
	}
	return board, nil
}

// loadCard fetches the card named by :id along with its board.
func (h *Handlers) loadCard(c *gin.Context) (*models.Card, *models.Board, error) {
	card, err := h.cards.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		return nil, nil, apperr.Unavailable("datastore", err)
	}
	if card == nil {
		return nil, nil, apperr.ErrNotFound
	}
	board, err := h.loadBoard(c, card.BoardID)
	if err != nil {
		return nil, nil, err
	}
	return card, board, nil
}

// nextPosition appends after the board's current cards. Positions keep gaps
// after deletions, so the repository computes MAX(position)+1 rather than
// counting rows.
func (h *Handlers) nextPosition(c *gin.Context, boardID string) (int, error) {
	position, err := h.cards.NextPosition(c.Request.Context(), boardID)
	if err != nil {
		return 0, apperr.Unavailable("datastore", err)
	}
	return position, nil
}
