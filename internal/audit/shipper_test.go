package audit_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/openboard/openboard/internal/audit"
	"github.com/openboard/openboard/internal/config"
)

func TestNewTrail_Disabled(t *testing.T) {
	trail, err := audit.NewTrail(config.AuditConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewTrail error: %v", err)
	}
	// Recording on an empty trail is a safe no-op.
	trail.Record(context.Background(), &audit.Entry{Action: "board.delete"})
	if err := trail.Close(); err != nil {
		t.Errorf("Close() = %v, want nil", err)
	}
}

func TestNewTrail_FilePathUnwritable(t *testing.T) {
	_, err := audit.NewTrail(config.AuditConfig{
		Enabled: true,
		File:    config.AuditFileConfig{Enabled: true, Path: "/nonexistent-dir/audit.log"},
	})
	if err == nil {
		t.Error("expected error for unwritable audit file path, got nil")
	}
}

func TestFileShipper_WritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	trail, err := audit.NewTrail(config.AuditConfig{
		Enabled: true,
		File:    config.AuditFileConfig{Enabled: true, Path: path},
	})
	if err != nil {
		t.Fatalf("NewTrail error: %v", err)
	}

	trail.Record(context.Background(), &audit.Entry{
		Action:  "board.delete",
		UserID:  "u-1",
		BoardID: "b-1",
		Detail:  map[string]any{"cards": float64(4)},
	})
	trail.Record(context.Background(), &audit.Entry{Action: "auth.login", UserID: "u-2"})

	if err := trail.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open audit log: %v", err)
	}
	defer f.Close()

	var entries []audit.Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e audit.Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("line is not valid JSON: %v", err)
		}
		entries = append(entries, e)
	}

	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Action != "board.delete" || entries[0].BoardID != "b-1" {
		t.Errorf("first entry = %+v", entries[0])
	}
	if entries[0].Timestamp.IsZero() {
		t.Error("timestamp was not stamped on record")
	}
	if entries[1].Action != "auth.login" || entries[1].UserID != "u-2" {
		t.Errorf("second entry = %+v", entries[1])
	}
}

func TestFileShipper_RotatesBySize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	shipper, err := audit.NewFileShipper(config.AuditFileConfig{
		Path:       path,
		MaxSizeMB:  1,
		MaxBackups: 2,
	})
	if err != nil {
		t.Fatalf("NewFileShipper error: %v", err)
	}
	defer shipper.Close()

	// Pad entries so a handful of writes crosses the 1 MB threshold.
	entry := &audit.Entry{
		Timestamp: time.Now(),
		Action:    "board.publish",
		Detail:    map[string]any{"pad": strings.Repeat("x", 256*1024)},
	}
	for i := 0; i < 6; i++ {
		if err := shipper.Ship(context.Background(), entry); err != nil {
			t.Fatalf("ship %d failed: %v", i, err)
		}
	}

	if _, err := os.Stat(path + ".1"); err != nil {
		t.Errorf("expected rotated backup %s.1: %v", path, err)
	}
}

func TestWebhookShipper_PostsEntry(t *testing.T) {
	var (
		mu       sync.Mutex
		received audit.Entry
		gotToken string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		gotToken = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	shipper := audit.NewWebhookShipper(config.AuditWebhookConfig{
		URL:     srv.URL,
		Headers: map[string]string{"Authorization": "Bearer collect"},
	})
	err := shipper.Ship(context.Background(), &audit.Entry{
		Timestamp: time.Now(),
		Action:    "board.clone",
		UserID:    "u-1",
		BoardID:   "b-2",
	})
	if err != nil {
		t.Fatalf("Ship error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if received.Action != "board.clone" || received.BoardID != "b-2" {
		t.Errorf("collector received %+v", received)
	}
	if gotToken != "Bearer collect" {
		t.Errorf("Authorization header = %q", gotToken)
	}
}

func TestWebhookShipper_CollectorErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	shipper := audit.NewWebhookShipper(config.AuditWebhookConfig{URL: srv.URL})
	if err := shipper.Ship(context.Background(), &audit.Entry{Action: "auth.login"}); err == nil {
		t.Error("expected error for collector 500, got nil")
	}
}

func TestTrail_CollectorFailureDoesNotPropagate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	trail, err := audit.NewTrail(config.AuditConfig{
		Enabled: true,
		Webhook: config.AuditWebhookConfig{Enabled: true, URL: srv.URL},
	})
	if err != nil {
		t.Fatalf("NewTrail error: %v", err)
	}
	defer trail.Close()

	// Record logs the failure internally; the caller never sees it.
	trail.Record(context.Background(), &audit.Entry{Action: "board.delete"})
}
