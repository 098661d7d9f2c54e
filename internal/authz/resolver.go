// Package authz decides whether a caller may read, mutate, or delete a board
// or card. It is a pure decision layer over already-fetched resource state:
// it performs no writes and owns no storage.
//
// Rule order matters and mirrors the product's permission model:
//
//  1. Reads are allowed on public boards, and on any board for the owner or
//     an admin.
//  2. Mutations and deletions require the owner or an admin; anonymous
//     callers are always denied.
//  3. System-template boards and template-origin cards are immutable to
//     everyone, owner and admin included.
//  4. Inherited cards are deletable under rule 2 but never editable.
//
// Ownership is compared before consulting the Authorizer because ownership
// alone satisfies most requests and the admin lookup is the expensive path.
package authz

import (
	"context"
	"fmt"

	"github.com/openboard/openboard/internal/apperr"
	"github.com/openboard/openboard/internal/db/models"
	"github.com/openboard/openboard/internal/lineage"
)

// Action is the kind of access being requested.
type Action int

const (
	ActionRead Action = iota
	ActionUpdate
	ActionDelete
)

func (a Action) String() string {
	switch a {
	case ActionUpdate:
		return "update"
	case ActionDelete:
		return "delete"
	default:
		return "read"
	}
}

// Authorizer answers the admin question. It is injected so the resolver can
// be tested without a live user store, and so the backing lookup can be
// swapped (DB row today, identity-provider claim tomorrow).
type Authorizer interface {
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

// Caller identifies who is asking. The zero value is the anonymous caller.
// The admin determination is memoized on the Caller so a single request never
// pays for the lookup twice.
type Caller struct {
	UserID string

	admin *bool
}

// NewCaller builds a Caller for an authenticated user id, or the anonymous
// caller when id is empty.
func NewCaller(id string) *Caller {
	return &Caller{UserID: id}
}

// Anonymous reports whether no identity was resolved for this request.
func (c *Caller) Anonymous() bool {
	return c == nil || c.UserID == ""
}

// Resolver evaluates the permission rules.
type Resolver struct {
	admin Authorizer
}

// NewResolver creates a Resolver backed by the given admin capability.
func NewResolver(admin Authorizer) *Resolver {
	return &Resolver{admin: admin}
}

// isAdmin resolves and memoizes the caller's admin status. A store failure
// surfaces as ErrUnavailable; authorization never fails open.
func (r *Resolver) isAdmin(ctx context.Context, caller *Caller) (bool, error) {
	if caller.Anonymous() {
		return false, nil
	}
	if caller.admin != nil {
		return *caller.admin, nil
	}
	admin, err := r.admin.IsAdmin(ctx, caller.UserID)
	if err != nil {
		return false, fmt.Errorf("%w: admin lookup: %v", apperr.ErrUnavailable, err)
	}
	caller.admin = &admin
	return admin, nil
}

// ResolveBoard returns nil when the caller may perform action on the board.
func (r *Resolver) ResolveBoard(ctx context.Context, caller *Caller, board *models.Board, action Action) error {
	if board == nil {
		return apperr.ErrNotFound
	}

	if action == ActionRead {
		if board.IsPublic {
			return nil
		}
		return r.requireOwnerOrAdmin(ctx, caller, board, "board is private")
	}

	// Template immutability outranks ownership: nobody mutates or deletes a
	// system board.
	if lineage.IsSystemBoard(board.ID) {
		return apperr.Forbidden("system template boards are immutable")
	}

	return r.requireOwnerOrAdmin(ctx, caller, board, "only the owner may modify a board")
}

// ResolveCard returns nil when the caller may perform action on the card.
// The card's board must be supplied for the ownership and visibility checks.
func (r *Resolver) ResolveCard(ctx context.Context, caller *Caller, board *models.Board, card *models.Card, action Action) error {
	if board == nil || card == nil {
		return apperr.ErrNotFound
	}

	if action == ActionRead {
		return r.ResolveBoard(ctx, caller, board, ActionRead)
	}

	switch lineage.ClassifyCard(card) {
	case lineage.TemplateOrigin:
		return apperr.Forbidden("template cards are immutable")
	case lineage.Inherited:
		// Inherited content is frozen; removal is the one permitted change.
		if action != ActionDelete {
			return apperr.Forbidden("inherited cards cannot be edited")
		}
	}

	if lineage.IsSystemBoard(board.ID) {
		return apperr.Forbidden("system template boards are immutable")
	}

	return r.requireOwnerOrAdmin(ctx, caller, board, "only the board owner may modify its cards")
}

func (r *Resolver) requireOwnerOrAdmin(ctx context.Context, caller *Caller, board *models.Board, reason string) error {
	if caller.Anonymous() {
		return apperr.ErrUnauthenticated
	}
	if caller.UserID == board.UserID {
		return nil
	}
	admin, err := r.isAdmin(ctx, caller)
	if err != nil {
		return err
	}
	if admin {
		return nil
	}
	return apperr.Forbidden("%s", reason)
}
