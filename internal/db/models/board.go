// Package models - board.go defines the Board model, a named collection of cards
// owned by a user and optionally shared publicly.
package models

import "time"

// Board represents a collection of cards. Boards whose id carries the system
// prefix are platform-owned templates and are immutable to every caller.
type Board struct {
	ID          string  `json:"id" db:"id"`
	UserID      string  `json:"user_id" db:"user_id"`
	Name        string  `json:"name" db:"name"`
	Description *string `json:"description,omitempty" db:"description"`
	IsPublic    bool    `json:"is_public" db:"is_public"`
	// OwnerEmail is captured lazily the first time the board is published so
	// comment notifications have somewhere to go.
	OwnerEmail                *string   `json:"owner_email,omitempty" db:"owner_email"`
	EmailNotificationsEnabled bool      `json:"email_notifications_enabled" db:"email_notifications_enabled"`
	CreatedAt                 time.Time `json:"created_at" db:"created_at"`
}
