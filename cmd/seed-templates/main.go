// Command seed-templates installs the built-in starter boards. It is run once
// against a fresh database (and re-run safely after upgrades; boards that
// already exist are skipped). Template boards carry the tmpl- ID prefix that
// marks them immutable to the API, and every card is stamped with a stable
// template key so boards cloned from them keep their lineage across reseeds.
package main

import (
	"context"
	"fmt"
	"html"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/openboard/openboard/internal/config"
	"github.com/openboard/openboard/internal/db"
	"github.com/openboard/openboard/internal/db/models"
	"github.com/openboard/openboard/internal/db/repositories"
	"github.com/openboard/openboard/internal/storage"
	"github.com/openboard/openboard/internal/telemetry"

	// Import storage backends to register them
	_ "github.com/openboard/openboard/internal/storage/azure"
	_ "github.com/openboard/openboard/internal/storage/gcs"
	_ "github.com/openboard/openboard/internal/storage/local"
	_ "github.com/openboard/openboard/internal/storage/s3"
)

// systemUserID owns all template boards. The row is upserted on every run so
// the boards.user_id foreign key is always satisfiable.
const systemUserID = "system"

type templateCard struct {
	label    string
	color    string
	category string
}

type templateBoard struct {
	slug        string
	name        string
	description string
	cards       []templateCard
}

// builtinTemplates is the full starter catalogue. Each card gets a generated
// placeholder tile uploaded to the blob store; real artwork replaces the
// tiles by overwriting the same storage path.
var builtinTemplates = []templateBoard{
	{
		slug:        "first-words",
		name:        "First Words",
		description: "Core everyday vocabulary to get started.",
		cards: []templateCard{
			{label: "Yes", color: "#4caf50", category: "Core"},
			{label: "No", color: "#f44336", category: "Core"},
			{label: "More", color: "#2196f3", category: "Core"},
			{label: "Stop", color: "#ff9800", category: "Core"},
			{label: "Help", color: "#9c27b0", category: "Core"},
			{label: "Please", color: "#00bcd4", category: "Social"},
			{label: "Thank You", color: "#8bc34a", category: "Social"},
		},
	},
	{
		slug:        "animals",
		name:        "Animals",
		description: "Common animals with sounds and pictures.",
		cards: []templateCard{
			{label: "Dog", color: "#795548", category: "Pets"},
			{label: "Cat", color: "#607d8b", category: "Pets"},
			{label: "Bird", color: "#03a9f4", category: "Wild"},
			{label: "Fish", color: "#009688", category: "Pets"},
			{label: "Horse", color: "#a1887f", category: "Farm"},
			{label: "Cow", color: "#ffffff", category: "Farm"},
		},
	},
	{
		slug:        "food",
		name:        "Food & Drink",
		description: "Meals, snacks, and drinks.",
		cards: []templateCard{
			{label: "Water", color: "#2196f3", category: "Drinks"},
			{label: "Milk", color: "#eceff1", category: "Drinks"},
			{label: "Apple", color: "#e53935", category: "Fruit"},
			{label: "Banana", color: "#fdd835", category: "Fruit"},
			{label: "Bread", color: "#d7ccc8", category: "Meals"},
			{label: "Cookie", color: "#8d6e63", category: "Snacks"},
		},
	},
	{
		slug:        "feelings",
		name:        "Feelings",
		description: "Words for expressing emotions.",
		cards: []templateCard{
			{label: "Happy", color: "#ffeb3b", category: "Feelings"},
			{label: "Sad", color: "#3f51b5", category: "Feelings"},
			{label: "Angry", color: "#f44336", category: "Feelings"},
			{label: "Tired", color: "#9e9e9e", category: "Feelings"},
			{label: "Scared", color: "#673ab7", category: "Feelings"},
		},
	},
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v\n", err)
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	telemetry.SetupLogger(cfg.Logging.Format, cfg.Logging.Level)

	conn, err := db.Connect(cfg.Database.GetDSN(), cfg.Database.MaxConnections, cfg.Database.MinIdleConnections)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer conn.Close()

	if err := db.RunMigrations(conn.DB, "up"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	store, err := storage.NewStorage(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage backend: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	users := repositories.NewUserRepository(conn)
	boards := repositories.NewBoardRepository(conn)
	cards := repositories.NewCardRepository(conn)

	if err := users.Upsert(ctx, &models.User{
		ID:    systemUserID,
		Email: "",
		Name:  "System",
	}); err != nil {
		return fmt.Errorf("failed to ensure system user: %w", err)
	}

	var created, skipped int
	for _, tmpl := range builtinTemplates {
		boardID := "tmpl-" + tmpl.slug

		existing, err := boards.GetByID(ctx, boardID)
		if err != nil {
			return fmt.Errorf("failed to check template %s: %w", boardID, err)
		}
		if existing != nil {
			slog.Info("template already present, skipping", "board_id", boardID)
			skipped++
			continue
		}

		desc := tmpl.description
		board := &models.Board{
			ID:          boardID,
			UserID:      systemUserID,
			Name:        tmpl.name,
			Description: &desc,
			IsPublic:    true,
		}
		if err := boards.Create(ctx, board); err != nil {
			return fmt.Errorf("failed to create template %s: %w", boardID, err)
		}

		batch := make([]*models.Card, 0, len(tmpl.cards))
		for i, tc := range tmpl.cards {
			key := tmpl.slug + "/" + labelSlug(tc.label)

			tile := placeholderSVG(tc.label, tc.color)
			asset, err := store.Upload(ctx, "templates/"+key+".svg",
				strings.NewReader(tile), int64(len(tile)))
			if err != nil {
				return fmt.Errorf("failed to upload artwork for %s: %w", key, err)
			}

			category := tc.category
			batch = append(batch, &models.Card{
				ID:          fmt.Sprintf("tmplcard-%s-%d", tmpl.slug, i+1),
				BoardID:     boardID,
				Label:       tc.label,
				ImageURL:    "/v1/media/" + asset.Path,
				Color:       tc.color,
				Category:    &category,
				Position:    i,
				TemplateKey: &key,
			})
		}
		if err := cards.CreateBatch(ctx, batch); err != nil {
			return fmt.Errorf("failed to seed cards for %s: %w", boardID, err)
		}

		slog.Info("seeded template", "board_id", boardID, "cards", len(batch))
		created++
	}

	slog.Info("template seeding complete", "created", created, "skipped", skipped)
	return nil
}

// labelSlug turns a card label into the stable suffix of its template key,
// e.g. "Thank You" -> "thank-you".
func labelSlug(label string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(label), " ", "-"))
}

// placeholderSVG renders a flat tile in the card's color with the label
// centered on it. Uploaded artwork overwrites the tile at the same path.
func placeholderSVG(label, color string) string {
	return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="256" height="256">`+
		`<rect width="256" height="256" rx="16" fill="%s"/>`+
		`<text x="128" y="138" font-family="sans-serif" font-size="28" text-anchor="middle" fill="#212121">%s</text>`+
		`</svg>`, color, html.EscapeString(label))
}
