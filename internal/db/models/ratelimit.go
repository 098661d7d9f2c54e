// Package models - ratelimit.go defines the ephemeral counter rows backing
// admission control: sliding-window entries and per-day usage counters.
package models

import "time"

// RateLimitEntry is one sliding-window counter row. Rows older than the
// retention horizon (5 minutes) are swept opportunistically.
type RateLimitEntry struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Endpoint  string    `json:"endpoint" db:"endpoint"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// DailyUsage is one (user, endpoint, day) quota counter, incremented via an
// atomic upsert. Rows older than 7 days are swept opportunistically.
//
// The reserved user id admission.GlobalUserID shares this mechanism and acts
// as a cross-user circuit breaker for an endpoint.
type DailyUsage struct {
	UserID    string    `json:"user_id" db:"user_id"`
	Endpoint  string    `json:"endpoint" db:"endpoint"`
	UsageDate time.Time `json:"usage_date" db:"usage_date"`
	Count     int       `json:"count" db:"count"`
}
