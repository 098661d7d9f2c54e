// Package models - card.go defines the Card model, a single labeled image+audio
// content item belonging to exactly one board.
package models

import "time"

// Card represents one item on a board.
//
// Exactly one lineage classification holds per card, derived from which of the
// optional columns is set: TemplateKey → template-origin (never editable or
// deletable), SourceBoardID → inherited (deletable but not editable), neither
// → ordinary. See the lineage package for the classification rules.
type Card struct {
	ID       string `json:"id" db:"id"`
	BoardID  string `json:"board_id" db:"board_id"`
	Label    string `json:"label" db:"label"`
	ImageURL string `json:"image_url" db:"image_url"`
	AudioURL string `json:"audio_url" db:"audio_url"`
	Color    string `json:"color" db:"color"`
	// Category is normalized to title case on write.
	Category *string `json:"category,omitempty" db:"category"`
	// Position defines the card's place within the board. Gaps are permitted;
	// only relative order is meaningful.
	Position      int       `json:"position" db:"position"`
	SourceBoardID *string   `json:"source_board_id,omitempty" db:"source_board_id"`
	TemplateKey   *string   `json:"template_key,omitempty" db:"template_key"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
