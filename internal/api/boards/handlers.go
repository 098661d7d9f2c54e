// Package boards implements the board lifecycle endpoints: CRUD, publishing,
// cloning, and deletion. Authorization decisions are delegated to the authz
// resolver; handlers only orchestrate.
package boards

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/openboard/openboard/internal/api/respond"
	"github.com/openboard/openboard/internal/apperr"
	"github.com/openboard/openboard/internal/authz"
	"github.com/openboard/openboard/internal/cascade"
	"github.com/openboard/openboard/internal/db/models"
	"github.com/openboard/openboard/internal/db/repositories"
	"github.com/openboard/openboard/internal/lineage"
	"github.com/openboard/openboard/internal/middleware"
	"github.com/openboard/openboard/internal/telemetry"
	"github.com/openboard/openboard/internal/validation"
)

// Handlers bundles the dependencies of the board endpoints.
type Handlers struct {
	boards   *repositories.BoardRepository
	cards    *repositories.CardRepository
	users    *repositories.UserRepository
	social   *repositories.SocialRepository
	resolver *authz.Resolver
	deleter  *cascade.Coordinator
}

// NewHandlers wires the board endpoints.
func NewHandlers(
	boards *repositories.BoardRepository,
	cards *repositories.CardRepository,
	users *repositories.UserRepository,
	social *repositories.SocialRepository,
	resolver *authz.Resolver,
	deleter *cascade.Coordinator,
) *Handlers {
	return &Handlers{
		boards:   boards,
		cards:    cards,
		users:    users,
		social:   social,
		resolver: resolver,
		deleter:  deleter,
	}
}

type boardRequest struct {
	Name                      string  `json:"name"`
	Description               *string `json:"description"`
	IsPublic                  bool    `json:"is_public"`
	EmailNotificationsEnabled bool    `json:"email_notifications_enabled"`
}

// Get returns one board. Public boards are visible to everyone, private
// boards only to their owner or an admin.
// GET /v1/boards/:id
func (h *Handlers) Get(c *gin.Context) {
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

	likes, err := h.social.LikeCount(ctx, board.ID)
	if err != nil {
		respond.Error(c, wrapStore(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"board":      board,
		"like_count": likes,
	})
}

// ListMine returns the caller's own boards, private ones included.
// GET /v1/boards
func (h *Handlers) ListMine(c *gin.Context) {
	caller := middleware.CallerFrom(c)

	list, err := h.boards.ListByOwner(c.Request.Context(), caller.UserID)
	if err != nil {
		respond.Error(c, wrapStore(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"boards": list})
}

// ListPublic returns a page of community boards.
// GET /v1/boards/public?limit=&offset=
func (h *Handlers) ListPublic(c *gin.Context) {
	limit := intQuery(c, "limit", 20, 100)
	offset := intQuery(c, "offset", 0, 1<<30)

	list, err := h.boards.ListPublic(c.Request.Context(), limit, offset)
	if err != nil {
		respond.Error(c, wrapStore(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"boards": list, "limit": limit, "offset": offset})
}

// ListTemplates returns the system template boards available for cloning.
// GET /v1/templates
func (h *Handlers) ListTemplates(c *gin.Context) {
	list, err := h.boards.ListTemplates(c.Request.Context())
	if err != nil {
		respond.Error(c, wrapStore(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"templates": list})
}

// Create makes a new private board owned by the caller.
// POST /v1/boards
func (h *Handlers) Create(c *gin.Context) {
	var req boardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, apperr.Validation("malformed request body"))
		return
	}
	if err := validation.ValidateBoardName(req.Name); err != nil {
		respond.Error(c, err)
		return
	}

	caller := middleware.CallerFrom(c)
	board := &models.Board{
		ID:                        uuid.New().String(),
		UserID:                    caller.UserID,
		Name:                      strings.TrimSpace(req.Name),
		Description:               req.Description,
		IsPublic:                  req.IsPublic,
		EmailNotificationsEnabled: req.EmailNotificationsEnabled,
	}

	if err := h.boards.Create(c.Request.Context(), board); err != nil {
		respond.Error(c, wrapStore(err))
		return
	}

	c.JSON(http.StatusCreated, board)
}

// Update replaces the board's mutable fields.
// PUT /v1/boards/:id
func (h *Handlers) Update(c *gin.Context) {
	ctx := c.Request.Context()

	var req boardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, apperr.Validation("malformed request body"))
		return
	}
	if err := validation.ValidateBoardName(req.Name); err != nil {
		respond.Error(c, err)
		return
	}

	board, err := h.loadBoard(c)
	if err != nil {
		respond.Error(c, err)
		return
	}

	caller := middleware.CallerFrom(c)
	if err := h.resolver.ResolveBoard(ctx, caller, board, authz.ActionUpdate); err != nil {
		respond.Error(c, err)
		return
	}

	board.Name = strings.TrimSpace(req.Name)
	board.Description = req.Description
	board.IsPublic = req.IsPublic
	board.EmailNotificationsEnabled = req.EmailNotificationsEnabled

	if err := h.boards.Update(ctx, board); err != nil {
		respond.Error(c, wrapStore(err))
		return
	}

	c.JSON(http.StatusOK, board)
}

// Publish makes the board public. The owner's email is captured on first
// publish so comment notifications have a destination; it is never
// overwritten on re-publish.
// POST /v1/boards/:id/publish
func (h *Handlers) Publish(c *gin.Context) {
	ctx := c.Request.Context()

	board, err := h.loadBoard(c)
	if err != nil {
		respond.Error(c, err)
		return
	}

	caller := middleware.CallerFrom(c)
	if err := h.resolver.ResolveBoard(ctx, caller, board, authz.ActionUpdate); err != nil {
		respond.Error(c, err)
		return
	}

	var ownerEmail *string
	if board.OwnerEmail == nil {
		user, err := h.users.GetByID(ctx, board.UserID)
		if err != nil {
			respond.Error(c, wrapStore(err))
			return
		}
		if user != nil && user.Email != "" {
			ownerEmail = &user.Email
		}
	}

	if err := h.boards.Publish(ctx, board.ID, ownerEmail); err != nil {
		respond.Error(c, wrapStore(err))
		return
	}

	board.IsPublic = true
	if board.OwnerEmail == nil {
		board.OwnerEmail = ownerEmail
	}
	c.JSON(http.StatusOK, board)
}

type cloneRequest struct {
	Name string `json:"name"`
}

// Clone copies a template or public board into a new board owned by the
// caller. Cards from a template keep their template_key; cards from a public
// board are stamped with source_board_id. Either way the copies are frozen
// (inherited or template-origin) on the new board.
// POST /v1/boards/:id/clone
func (h *Handlers) Clone(c *gin.Context) {
	ctx := c.Request.Context()

	var req cloneRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.Error(c, apperr.Validation("malformed request body"))
			return
		}
	}

	source, err := h.loadBoard(c)
	if err != nil {
		respond.Error(c, err)
		return
	}

	caller := middleware.CallerFrom(c)
	// Cloning requires read access: templates and public boards for anyone
	// authenticated, private boards only for their owner.
	if err := h.resolver.ResolveBoard(ctx, caller, source, authz.ActionRead); err != nil {
		respond.Error(c, err)
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = source.Name
	}
	if err := validation.ValidateBoardName(name); err != nil {
		respond.Error(c, err)
		return
	}

	clone := &models.Board{
		ID:          uuid.New().String(),
		UserID:      caller.UserID,
		Name:        name,
		Description: source.Description,
	}
	if err := h.boards.Create(ctx, clone); err != nil {
		respond.Error(c, wrapStore(err))
		return
	}

	sourceCards, err := h.cards.ListByBoard(ctx, source.ID)
	if err != nil {
		respond.Error(c, wrapStore(err))
		return
	}

	fromTemplate := lineage.IsSystemBoard(source.ID)
	copies := make([]*models.Card, 0, len(sourceCards))
	for i := range sourceCards {
		src := sourceCards[i]
		dup := &models.Card{
			ID:       uuid.New().String(),
			BoardID:  clone.ID,
			Label:    src.Label,
			ImageURL: src.ImageURL,
			AudioURL: src.AudioURL,
			Color:    src.Color,
			Category: src.Category,
			Position: src.Position,
		}
		if src.TemplateKey != nil && *src.TemplateKey != "" {
			key := *src.TemplateKey
			dup.TemplateKey = &key
		} else {
			sourceID := source.ID
			dup.SourceBoardID = &sourceID
		}
		copies = append(copies, dup)
	}

	if err := h.cards.CreateBatch(ctx, copies); err != nil {
		// Orphaned empty board; cheap to clean up inline rather than leave
		// a shell the user never asked for.
		if _, delErr := h.boards.Delete(ctx, clone.ID); delErr != nil {
			respond.Error(c, wrapStore(delErr))
			return
		}
		respond.Error(c, wrapStore(err))
		return
	}

	sourceKind := "public"
	if fromTemplate {
		sourceKind = "template"
	}
	telemetry.BoardClonesTotal.WithLabelValues(sourceKind).Inc()

	c.JSON(http.StatusCreated, gin.H{
		"board":      clone,
		"card_count": len(copies),
		"cloned_from": gin.H{
			"board_id": source.ID,
			"source":   sourceKind,
		},
	})
}

// Delete removes the board, its cards, and (best effort, asynchronously)
// their stored media.
// DELETE /v1/boards/:id
func (h *Handlers) Delete(c *gin.Context) {
	caller := middleware.CallerFrom(c)

	if err := h.deleter.DeleteBoard(c.Request.Context(), caller, c.Param("id")); err != nil {
		respond.Error(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// loadBoard fetches the board named by the :id path parameter, translating
// storage failures and absence into the error taxonomy.
func (h *Handlers) loadBoard(c *gin.Context) (*models.Board, error) {
	board, err := h.boards.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		return nil, wrapStore(err)
	}
	if board == nil {
		return nil, apperr.ErrNotFound
	}
	return board, nil
}

func wrapStore(err error) error {
	return apperr.Unavailable("datastore", err)
}

func intQuery(c *gin.Context, name string, def, max int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
