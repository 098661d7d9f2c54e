// Package audit emits an immutable record of security-relevant events:
// logins, board deletions, publishes, and clones. Audit records are kept
// separate from the application log because they have different consumers
// and retention requirements; the application log is ephemeral debug output,
// while the audit trail may be subject to compliance retention measured in
// years. Records can be routed to a local JSON-lines file, an external
// collector over HTTP, or both.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/openboard/openboard/internal/config"
)

// Entry is one audit record.
type Entry struct {
	Timestamp  time.Time      `json:"timestamp"`
	Action     string         `json:"action"`
	UserID     string         `json:"user_id,omitempty"`
	BoardID    string         `json:"board_id,omitempty"`
	CardID     string         `json:"card_id,omitempty"`
	IPAddress  string         `json:"ip_address,omitempty"`
	StatusCode int            `json:"status_code,omitempty"`
	Detail     map[string]any `json:"detail,omitempty"`
}

// Shipper sends audit entries to one destination.
type Shipper interface {
	Ship(ctx context.Context, entry *Entry) error
	Close() error
}

// Trail fans each entry out to every configured destination. A Trail with no
// destinations is valid and ships nothing, so callers never need a nil check.
type Trail struct {
	mu       sync.RWMutex
	shippers []Shipper
}

// NewTrail builds the trail from configuration. Returns an empty trail when
// auditing is disabled.
func NewTrail(cfg config.AuditConfig) (*Trail, error) {
	t := &Trail{}
	if !cfg.Enabled {
		return t, nil
	}

	if cfg.File.Enabled {
		s, err := NewFileShipper(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit file sink: %w", err)
		}
		t.shippers = append(t.shippers, s)
	}
	if cfg.Webhook.Enabled {
		t.shippers = append(t.shippers, NewWebhookShipper(cfg.Webhook))
	}

	return t, nil
}

// Record stamps and ships an entry. Shipping failures are logged and do not
// propagate: the request that triggered the event must not fail because a
// collector is down.
func (t *Trail) Record(ctx context.Context, entry *Entry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, s := range t.shippers {
		if err := s.Ship(ctx, entry); err != nil {
			slog.Warn("audit shipment failed", "action", entry.Action, "error", err)
		}
	}
}

// Close closes every destination, returning the last error seen.
func (t *Trail) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var lastErr error
	for _, s := range t.shippers {
		if err := s.Close(); err != nil {
			lastErr = err
		}
	}
	t.shippers = nil
	return lastErr
}

// WebhookShipper posts each entry to an external collector.
type WebhookShipper struct {
	cfg    config.AuditWebhookConfig
	client *http.Client
}

// NewWebhookShipper creates a webhook shipper with a bounded request timeout.
func NewWebhookShipper(cfg config.AuditWebhookConfig) *WebhookShipper {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &WebhookShipper{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

// Ship posts the entry as JSON.
func (w *WebhookShipper) Ship(ctx context.Context, entry *Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.URL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create audit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post audit entry: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("audit collector returned status %d", resp.StatusCode)
	}
	return nil
}

// Close is a no-op; the shipper holds no resources beyond the HTTP client.
func (w *WebhookShipper) Close() error { return nil }

// FileShipper appends JSON lines to a local file, rotating by size.
type FileShipper struct {
	cfg  config.AuditFileConfig
	mu   sync.Mutex
	file *os.File
}

// NewFileShipper opens (or creates) the audit file in append mode.
func NewFileShipper(cfg config.AuditFileConfig) (*FileShipper, error) {
	file, err := os.OpenFile(cfg.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	return &FileShipper{cfg: cfg, file: file}, nil
}

// Ship appends the entry as one JSON line.
func (f *FileShipper) Ship(_ context.Context, entry *Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cfg.MaxSizeMB > 0 {
		if info, err := f.file.Stat(); err == nil && info.Size() > int64(f.cfg.MaxSizeMB)*1024*1024 {
			if err := f.rotate(); err != nil {
				slog.Warn("audit file rotation failed", "path", f.cfg.Path, "error", err)
			}
		}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}
	if _, err := f.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}
	return nil
}

// rotate shifts existing backups up by one and starts a fresh file. Rename
// failures for missing backups are expected and ignored.
func (f *FileShipper) rotate() error {
	if err := f.file.Close(); err != nil {
		return err
	}

	for i := f.cfg.MaxBackups - 1; i >= 1; i-- {
		_ = os.Rename(fmt.Sprintf("%s.%d", f.cfg.Path, i), fmt.Sprintf("%s.%d", f.cfg.Path, i+1))
	}
	_ = os.Rename(f.cfg.Path, f.cfg.Path+".1")
	if f.cfg.MaxBackups > 0 {
		_ = os.Remove(fmt.Sprintf("%s.%d", f.cfg.Path, f.cfg.MaxBackups+1))
	}

	file, err := os.OpenFile(f.cfg.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	f.file = file
	return nil
}

// Close closes the underlying file.
func (f *FileShipper) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.file.Close()
}
