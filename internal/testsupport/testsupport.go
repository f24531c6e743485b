// Package testsupport provides shared helpers for package tests.
package testsupport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"podtext/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.OutputDir = filepath.Join(base, "site")
	cfg.Paths.TempDir = filepath.Join(base, "tmp")
	cfg.Paths.LedgerPath = filepath.Join(base, "db.json")
	cfg.Paths.IndexPath = filepath.Join(base, "index.db")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Transcriber.APIKey = "test"
	cfg.Network.AllowPrivateHosts = true
	cfg.Git.Enabled = false

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithFeeds sets the configured feed sources.
func WithFeeds(feeds ...config.Feed) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Feeds = feeds
	}
}

// WithMinArtifactBytes overrides the artifact size sanity threshold.
func WithMinArtifactBytes(n int64) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Ingest.MinArtifactBytes = n
	}
}

// WriteFile creates path (and parent directories) with content of the given
// size, for artifact-presence tests.
func WriteFile(t testing.TB, path string, size int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(strings.Repeat("x", size)), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
