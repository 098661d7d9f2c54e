// Package models - social.go defines the comment and like models attached to
// public boards.
package models

import "time"

// BoardComment is a comment left on a public board.
type BoardComment struct {
	ID        string    `json:"id" db:"id"`
	BoardID   string    `json:"board_id" db:"board_id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Body      string    `json:"body" db:"body"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	// Joined field (not stored in board_comments)
	UserName *string `json:"user_name,omitempty" db:"user_name"`
}

// BoardLike records that a user liked a public board. One like per
// (board, user) pair, enforced by a unique constraint.
type BoardLike struct {
	BoardID   string    `json:"board_id" db:"board_id"`
	UserID    string    `json:"user_id" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
