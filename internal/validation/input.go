// Package validation holds the request-payload checks applied before any
// board or card write reaches the database. Checks return apperr.ErrValidation
// wrapped errors so handlers map them to 400 responses uniformly.
package validation

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/openboard/openboard/internal/apperr"
)

const (
	// MaxNameLength bounds board names.
	MaxNameLength = 120

	// MaxLabelLength bounds card labels.
	MaxLabelLength = 60

	// MaxCommentLength bounds board comments.
	MaxCommentLength = 2000
)

var hexColorRe = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// ValidateBoardName checks a board name for presence and length.
func ValidateBoardName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return apperr.Validation("board name is required")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return apperr.Validation("board name exceeds %d characters", MaxNameLength)
	}
	return nil
}

// ValidateLabel checks a card label. Empty labels are allowed; the uniqueness
// rules exempt them too.
func ValidateLabel(label string) error {
	if utf8.RuneCountInString(label) > MaxLabelLength {
		return apperr.Validation("label exceeds %d characters", MaxLabelLength)
	}
	return nil
}

// ValidateColor checks an optional card color. Accepts the empty string or a
// six-digit hex value like #1A2B3C.
func ValidateColor(color string) error {
	if color == "" {
		return nil
	}
	if !hexColorRe.MatchString(color) {
		return apperr.Validation("color must be a hex value like #RRGGBB")
	}
	return nil
}

// ValidateMediaURL checks an optional media reference. Storage keys (relative
// paths) and absolute http(s) URLs are both accepted; anything else is
// rejected before it can end up rendered into a page.
func ValidateMediaURL(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return apperr.Validation("media reference is not a valid URL: %v", err)
	}
	if u.Scheme == "" {
		// Relative storage key. Refuse traversal.
		if strings.Contains(raw, "..") {
			return apperr.Validation("media path may not contain '..'")
		}
		return nil
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return apperr.Validation("media URL scheme %q is not allowed", u.Scheme)
	}
	return nil
}

// ValidateComment checks a comment body.
func ValidateComment(body string) error {
	body = strings.TrimSpace(body)
	if body == "" {
		return apperr.Validation("comment body is required")
	}
	if utf8.RuneCountInString(body) > MaxCommentLength {
		return apperr.Validation("comment exceeds %d characters", MaxCommentLength)
	}
	return nil
}

// NormalizeCategory canonicalizes a free-form board category to Title Case
// with single spaces, so "science  FICTION" and "Science Fiction" land in the
// same bucket. Empty input stays empty.
func NormalizeCategory(category string) string {
	fields := strings.Fields(strings.ToLower(category))
	for i, f := range fields {
		r, size := utf8.DecodeRuneInString(f)
		fields[i] = strings.ToUpper(string(r)) + f[size:]
	}
	return strings.Join(fields, " ")
}
