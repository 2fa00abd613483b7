package config

import (
	"fmt"
	"path/filepath"
	"time"
	_ "time/tzdata" // timezone names resolve without system zoneinfo

	"github.com/caarlos0/env/v11"
)

// Config holds runtime settings read from the environment
type Config struct {
	DataDir           string `env:"CONTENT_SCHEDULE_DATA_DIR" envDefault:"./data"`
	Host              string `env:"CONTENT_SCHEDULE_HOST" envDefault:"localhost"`
	Port              string `env:"CONTENT_SCHEDULE_PORT" envDefault:"6893"`
	AdminToken        string `env:"CONTENT_SCHEDULE_ADMIN_TOKEN"`
	PreviewToken      string `env:"CONTENT_SCHEDULE_PREVIEW_TOKEN"`
	Locale            string `env:"CONTENT_SCHEDULE_LOCALE" envDefault:"en"`
	Timezone          string `env:"CONTENT_SCHEDULE_TIMEZONE" envDefault:"UTC"`
	ImportConcurrency int    `env:"CONTENT_SCHEDULE_IMPORT_CONCURRENCY" envDefault:"5"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses Config from the environment and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return nil, err
	}
	if _, err := cfg.Location(); err != nil {
		return nil, err
	}
	if cfg.ImportConcurrency < 1 {
		return nil, fmt.Errorf("import concurrency must be positive, got %d", cfg.ImportConcurrency)
	}
	return &cfg, nil
}

// Location resolves the configured timezone
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// DBPath is the SQLite database inside the data directory
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "content.db")
}

// IndexPath is the Bleve index inside the data directory
func (c *Config) IndexPath() string {
	return filepath.Join(c.DataDir, "bleve")
}

// Addr is the listen address for the web server
func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}
