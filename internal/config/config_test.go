package config

import (
	"strings"
	"testing"
)

type envTestConfig struct {
	Port int `env:"CONTENT_SCHEDULE_TEST_PORT" envDefault:"123"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != 123 {
		t.Fatalf("expected default port 123, got %d", cfg.Port)
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("CONTENT_SCHEDULE_TEST_PORT", "not-an-int")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DataDir != "./data" || cfg.Addr() != "localhost:6893" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.DBPath() != "data/content.db" {
		t.Fatalf("unexpected db path %q", cfg.DBPath())
	}
	if cfg.IndexPath() != "data/bleve" {
		t.Fatalf("unexpected index path %q", cfg.IndexPath())
	}
	if cfg.ImportConcurrency != 5 {
		t.Fatalf("expected concurrency 5, got %d", cfg.ImportConcurrency)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CONTENT_SCHEDULE_DATA_DIR", "/srv/content")
	t.Setenv("CONTENT_SCHEDULE_PREVIEW_TOKEN", "preview")
	t.Setenv("CONTENT_SCHEDULE_TIMEZONE", "Europe/Berlin")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBPath() != "/srv/content/content.db" {
		t.Fatalf("unexpected db path %q", cfg.DBPath())
	}
	if cfg.PreviewToken != "preview" {
		t.Fatalf("expected preview token, got %q", cfg.PreviewToken)
	}
	loc, err := cfg.Location()
	if err != nil || loc.String() != "Europe/Berlin" {
		t.Fatalf("expected Europe/Berlin, got %v, %v", loc, err)
	}
}

func TestLoadRejectsBadTimezone(t *testing.T) {
	t.Setenv("CONTENT_SCHEDULE_TIMEZONE", "Mars/Olympus")

	if _, err := Load(); err == nil {
		t.Fatal("expected timezone error")
	}
}

func TestLoadRejectsZeroConcurrency(t *testing.T) {
	t.Setenv("CONTENT_SCHEDULE_IMPORT_CONCURRENCY", "0")

	if _, err := Load(); err == nil {
		t.Fatal("expected concurrency error")
	}
}
