package main

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/openboard/openboard/internal/config"
	"github.com/openboard/openboard/internal/storage/local"
)

func TestPlaceholderSVG(t *testing.T) {
	tile := placeholderSVG("Thank You <3", "#8bc34a")
	if !strings.Contains(tile, "Thank You &lt;3") {
		t.Errorf("label not escaped in tile: %s", tile)
	}
	if !strings.Contains(tile, `fill="#8bc34a"`) {
		t.Errorf("tile missing card color: %s", tile)
	}
}

func TestPlaceholderTileUpload(t *testing.T) {
	store, err := local.New(&config.LocalStorageConfig{BasePath: t.TempDir()}, "http://localhost:8080")
	if err != nil {
		t.Fatal("local.New:", err)
	}

	key := "animals/" + labelSlug("Dog")
	tile := placeholderSVG("Dog", "#795548")
	asset, err := store.Upload(context.Background(), "templates/"+key+".svg",
		strings.NewReader(tile), int64(len(tile)))
	if err != nil {
		t.Fatal("Upload:", err)
	}
	if asset.Path != "templates/animals/dog.svg" {
		t.Errorf("asset path = %q, want templates/animals/dog.svg", asset.Path)
	}

	// The tile must be retrievable at the path the card's image URL names.
	reader, err := store.Download(context.Background(), asset.Path)
	if err != nil {
		t.Fatal("Download:", err)
	}
	defer reader.Close()
	stored, err := io.ReadAll(reader)
	if err != nil {
		t.Fatal("ReadAll:", err)
	}
	if string(stored) != tile {
		t.Error("stored tile does not match the generated tile")
	}
}
