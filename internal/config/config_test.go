package config

import (
	"os"
	"net/url"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadYAMLWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := []byte(`
server:
  play_port: "9000"
backend:
  url: http://quiz-api:8080
  timeout: 5s
attempt:
  default_time_limit: 120
log:
  level: debug
`)
	if err := os.WriteFile(path, yaml, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("BACKEND_TOKEN", "secret")
	t.Setenv("SERVER_PLAY_PORT", "9100")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.PlayPort() != "9100" {
		t.Fatalf("expected env to override port, got %q", cfg.PlayPort())
	}
	if cfg.BackendPort() != DefaultBackendPort {
		t.Fatalf("expected default backend port, got %q", cfg.BackendPort())
	}
	if cfg.Backend.URL != "http://quiz-api:8080" || cfg.Backend.Token != "secret" {
		t.Fatalf("unexpected backend config %+v", cfg.Backend)
	}
	if cfg.Attempt.DefaultTimeLimit != 120 || cfg.Log.Level != "debug" {
		t.Fatalf("unexpected yaml values %+v %+v", cfg.Attempt, cfg.Log)
	}
}

func TestLoadMissingFileUsesEnv(t *testing.T) {
	t.Setenv("BACKEND_URL", "http://localhost:8081")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Backend.URL != "http://localhost:8081" {
		t.Fatalf("expected env value, got %q", cfg.Backend.URL)
	}
}

func TestTTLDuration(t *testing.T) {
	if got := TTLDuration("", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback, got %v", got)
	}
	if got := TTLDuration("garbage", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback on parse error, got %v", got)
	}
	if got := TTLDuration("90s", time.Minute); got != 90*time.Second {
		t.Fatalf("expected 90s, got %v", got)
	}
}

func TestShippedConfigPortsDoNotCollide(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config", "config.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.PlayPort() == cfg.BackendPort() {
		t.Fatalf("play and backend share port %q", cfg.PlayPort())
	}
	backendURL, err := url.Parse(cfg.Backend.URL)
	if err != nil {
		t.Fatalf("parse backend url: %v", err)
	}
	if backendURL.Port() != cfg.BackendPort() {
		t.Fatalf("backend url %q does not target backend port %q", cfg.Backend.URL, cfg.BackendPort())
	}
}

func TestPortDefaults(t *testing.T) {
	var cfg Config
	if cfg.PlayPort() != DefaultPlayPort || cfg.BackendPort() != DefaultBackendPort {
		t.Fatalf("unexpected defaults %q %q", cfg.PlayPort(), cfg.BackendPort())
	}
}
