package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeConfig writes a YAML config file into a temp dir and returns its path.
func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalYAML = `
auth:
  jwt:
    secret: test-secret
`

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("server.port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.SSLMode != "require" {
		t.Errorf("database.ssl_mode = %q, want require", cfg.Database.SSLMode)
	}
	if cfg.Storage.DefaultBackend != "local" {
		t.Errorf("storage.default_backend = %q, want local", cfg.Storage.DefaultBackend)
	}
	if cfg.Auth.JWT.TokenTTL != 24*time.Hour {
		t.Errorf("auth.jwt.token_ttl = %v, want 24h", cfg.Auth.JWT.TokenTTL)
	}
	if !cfg.RateLimits.Enabled {
		t.Error("rate_limits.enabled should default to true")
	}

	w, ok := cfg.RateLimits.WindowFor("generate-audio")
	if !ok {
		t.Fatal("generate-audio window missing from defaults")
	}
	if w.MaxRequests != 3 || w.Window != time.Minute {
		t.Errorf("generate-audio window = %+v, want 3 per minute", w)
	}
	if cfg.RateLimits.Daily["clone-board"] != 20 {
		t.Errorf("clone-board daily = %d, want 20", cfg.RateLimits.Daily["clone-board"])
	}
	if cfg.RateLimits.GlobalDaily["generate-image"] != 5000 {
		t.Errorf("generate-image global daily = %d, want 5000", cfg.RateLimits.GlobalDaily["generate-image"])
	}
}

func TestLoad_YAMLOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  port: 9000
  base_url: https://boards.example.com
database:
  name: boards_prod
  max_connections: 50
auth:
  jwt:
    secret: test-secret
    token_ttl: 2h
rate_limits:
  windows:
    generate-audio:
      max_requests: 10
      window: 5m
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("server.port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Database.Name != "boards_prod" {
		t.Errorf("database.name = %q, want boards_prod", cfg.Database.Name)
	}
	if cfg.Auth.JWT.TokenTTL != 2*time.Hour {
		t.Errorf("token_ttl = %v, want 2h", cfg.Auth.JWT.TokenTTL)
	}

	w, _ := cfg.RateLimits.WindowFor("generate-audio")
	if w.MaxRequests != 10 || w.Window != 5*time.Minute {
		t.Errorf("generate-audio window = %+v, want 10 per 5m", w)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("OB_DATABASE_HOST", "db.internal")
	t.Setenv("OB_DATABASE_PASSWORD", "hunter2")
	t.Setenv("OB_AUTH_JWT_SECRET", "env-secret")
	t.Setenv("OB_LOGGING_LEVEL", "debug")

	cfg, err := Load(writeConfig(t, minimalYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Database.Host != "db.internal" {
		t.Errorf("database.host = %q, want db.internal", cfg.Database.Host)
	}
	if cfg.Database.Password != "hunter2" {
		t.Errorf("database.password not taken from env")
	}
	if cfg.Auth.JWT.Secret != "env-secret" {
		t.Errorf("auth.jwt.secret = %q, want env-secret", cfg.Auth.JWT.Secret)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("logging.level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoad_ExpandsSecretReferences(t *testing.T) {
	t.Setenv("BOARD_JWT_SECRET", "expanded-secret")

	cfg, err := Load(writeConfig(t, `
auth:
  jwt:
    secret: ${BOARD_JWT_SECRET}
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Auth.JWT.Secret != "expanded-secret" {
		t.Errorf("secret = %q, want expanded value", cfg.Auth.JWT.Secret)
	}
}

func TestLoad_ValidationFailures(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"missing jwt secret", `
logging:
  level: info
`},
		{"bad storage backend", `
auth:
  jwt:
    secret: s
storage:
  default_backend: ftp
`},
		{"zero window", `
auth:
  jwt:
    secret: s
rate_limits:
  windows:
    generate-audio:
      max_requests: 3
      window: 0s
`},
		{"edge limiter without redis", `
auth:
  jwt:
    secret: s
security:
  edge:
    enabled: true
`},
		{"bad log level", `
auth:
  jwt:
    secret: s
logging:
  level: verbose
`},
		{"oidc missing client", `
auth:
  jwt:
    secret: s
  oidc:
    enabled: true
    issuer_url: https://idp.example.com
`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.yaml)); err == nil {
				t.Error("Load succeeded, want validation error")
			}
		})
	}
}

func TestGetDSN(t *testing.T) {
	db := DatabaseConfig{
		Host: "localhost", Port: 5432, User: "openboard",
		Password: "pw", Name: "openboard", SSLMode: "disable",
	}
	want := "host=localhost port=5432 user=openboard password=pw dbname=openboard sslmode=disable"
	if got := db.GetDSN(); got != want {
		t.Errorf("GetDSN() = %q, want %q", got, want)
	}
}

func TestGetPublicURL(t *testing.T) {
	s := ServerConfig{BaseURL: "http://internal:8080"}
	if got := s.GetPublicURL(); got != "http://internal:8080" {
		t.Errorf("GetPublicURL() = %q, want base_url fallback", got)
	}
	s.PublicURL = "https://boards.example.com"
	if got := s.GetPublicURL(); got != "https://boards.example.com" {
		t.Errorf("GetPublicURL() = %q, want public_url", got)
	}
}

func TestWatch_ReloadsRateLimits(t *testing.T) {
	path := writeConfig(t, minimalYAML)

	changed := make(chan *Config, 1)
	cfg, err := Watch(path, func(next *Config) {
		select {
		case changed <- next:
		default:
		}
	}, nil)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if cfg.RateLimits.Daily["generate-audio"] != 50 {
		t.Fatalf("initial daily = %d, want 50", cfg.RateLimits.Daily["generate-audio"])
	}

	update := minimalYAML + `
rate_limits:
  daily:
    generate-audio: 100
`
	if err := os.WriteFile(path, []byte(update), 0o600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case next := <-changed:
		if next.RateLimits.Daily["generate-audio"] != 100 {
			t.Errorf("reloaded daily = %d, want 100", next.RateLimits.Daily["generate-audio"])
		}
	case <-time.After(3 * time.Second):
		t.Fatal("config change was not observed")
	}
}
