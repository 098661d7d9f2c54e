// Package apperr defines the error taxonomy shared by every component of the
// OpenBoard backend and its mapping to HTTP status codes.
//
// Components return these sentinels (optionally wrapped with %w) instead of
// ad-hoc error strings so the HTTP layer can translate any error to the right
// status with a single errors.Is chain, and tests can assert on error identity
// rather than message text.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// ErrUnauthenticated means no caller identity could be resolved.
	ErrUnauthenticated = errors.New("authentication required")

	// ErrForbidden means the caller is known but not allowed: wrong owner,
	// admin required, or the target is an immutable template record.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound means the referenced board or card does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict means a card label collides (case-insensitive, trimmed)
	// with another card on the same board.
	ErrConflict = errors.New("duplicate label on board")

	// ErrQuotaExceeded means a daily (or global) usage cap was reached.
	ErrQuotaExceeded = errors.New("daily quota exceeded")

	// ErrValidation means the input is malformed (oversized strings, bad
	// color values, unknown card ids in a reorder, and so on).
	ErrValidation = errors.New("invalid input")

	// ErrUnavailable means a required dependency (datastore, blob store)
	// failed. Outside the admission path this is never swallowed.
	ErrUnavailable = errors.New("dependency unavailable")
)

// RateLimitedError is returned when the sliding-window limiter rejects a
// request. It carries the retry hint surfaced as a Retry-After header.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// RateLimited builds a RateLimitedError with the given retry hint.
func RateLimited(retryAfter time.Duration) error {
	return &RateLimitedError{RetryAfter: retryAfter}
}

// Validation wraps ErrValidation with a human-readable reason.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Forbidden wraps ErrForbidden with the denial reason.
func Forbidden(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrForbidden, fmt.Sprintf(format, args...))
}

// Unavailable wraps ErrUnavailable naming the dependency that failed.
func Unavailable(dep string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, dep, err)
}

// Status maps an error to its HTTP status code. Unknown errors map to 500.
func Status(err error) int {
	var rl *RateLimitedError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.As(err, &rl), errors.Is(err, ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	default:
		// ErrUnavailable and anything unrecognised surface as a generic
		// server error; authorization and invariant checks never fail open.
		return http.StatusInternalServerError
	}
}

// RetryAfter extracts the retry hint from a rate-limit error, or zero.
func RetryAfter(err error) time.Duration {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl.RetryAfter
	}
	return 0
}
