// Package models - user.go defines the User model backing the admin capability
// check. Identity itself is resolved from bearer tokens; this row only records
// who the user is and whether they hold the admin override.
package models

import "time"

// User represents a known account.
type User struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	Name      string    `json:"name" db:"name"`
	IsAdmin   bool      `json:"is_admin" db:"is_admin"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
