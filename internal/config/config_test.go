package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("POSD_CONFIG", filepath.Join(t.TempDir(), "posd.toml"))
	writeConfig(t, os.Getenv("POSD_CONFIG"), "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend != "pebble" {
		t.Fatalf("default backend = %q", cfg.Backend)
	}
	if cfg.Poll.IntervalMS != 500 {
		t.Fatalf("default poll interval = %d", cfg.Poll.IntervalMS)
	}
	if cfg.Kafka.TopicChangelog != "pos.changelog" {
		t.Fatalf("default changelog topic = %q", cfg.Kafka.TopicChangelog)
	}
	if cfg.Journal.SnapshotIntervalSec != 60 {
		t.Fatalf("default snapshot interval = %d", cfg.Journal.SnapshotIntervalSec)
	}
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posd.toml")
	writeConfig(t, path, `
backend = "badger"

[poll]
interval_ms = 100
`)
	t.Setenv("POSD_CONFIG", path)
	t.Setenv("POSD_BACKEND", "redis")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend != "redis" {
		t.Fatalf("env must override file: backend = %q", cfg.Backend)
	}
	if cfg.Poll.IntervalMS != 100 {
		t.Fatalf("file value ignored: interval = %d", cfg.Poll.IntervalMS)
	}
}

func TestLoad_RejectsUnknownBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posd.toml")
	writeConfig(t, path, `backend = "sqlite"`)
	t.Setenv("POSD_CONFIG", path)

	if _, err := Load(); err == nil {
		t.Fatalf("unknown backend must be rejected")
	}
}

func writeConfig(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}
