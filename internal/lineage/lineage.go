// Package lineage classifies boards and cards by provenance: system template,
// inherited copy, or ordinary user content.
//
// The classification drives mutability rules (template content is immutable,
// inherited cards are deletable but not editable) and is needed both by the
// authorization resolver and by API responses. Keeping it in one package
// prevents the two enforcement points from drifting apart.
package lineage

import "github.com/openboard/openboard/internal/db/models"

const (
	// SystemBoardPrefix marks platform-owned template boards. Boards with
	// this id prefix can never be mutated or deleted, by anyone.
	SystemBoardPrefix = "tmpl-"

	// SystemCardPrefix marks card ids minted by the template seeder. It is
	// informational only; card classification keys off the columns below.
	SystemCardPrefix = "tmplcard-"
)

// CardClass is the provenance classification of a card.
type CardClass int

const (
	// Ordinary cards were created directly by the board owner.
	Ordinary CardClass = iota
	// TemplateOrigin cards belong to a system template. Never editable,
	// never deletable.
	TemplateOrigin
	// Inherited cards were copied from another board's public or template
	// content. Deletable, but their content is frozen.
	Inherited
)

func (c CardClass) String() string {
	switch c {
	case TemplateOrigin:
		return "template_origin"
	case Inherited:
		return "inherited"
	default:
		return "ordinary"
	}
}

// ClassifyCard derives the card's classification from its columns.
// TemplateKey takes priority over SourceBoardID when both are set.
func ClassifyCard(card *models.Card) CardClass {
	if card.TemplateKey != nil && *card.TemplateKey != "" {
		return TemplateOrigin
	}
	if card.SourceBoardID != nil && *card.SourceBoardID != "" {
		return Inherited
	}
	return Ordinary
}

// IsSystemBoard reports whether the board id names a platform-owned template.
func IsSystemBoard(boardID string) bool {
	return len(boardID) >= len(SystemBoardPrefix) && boardID[:len(SystemBoardPrefix)] == SystemBoardPrefix
}

// CardEditable reports whether the card's content (label, image, audio,
// color, category) may change. Only ordinary cards are editable.
func CardEditable(card *models.Card) bool {
	return ClassifyCard(card) == Ordinary
}

// CardDeletable reports whether the card may be removed from its board.
// Template-origin cards are the only undeletable class.
func CardDeletable(card *models.Card) bool {
	return ClassifyCard(card) != TemplateOrigin
}
