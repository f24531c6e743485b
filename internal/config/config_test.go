package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, path, exists, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing file")
	}
	if path == "" {
		t.Fatal("expected resolved path")
	}
	if cfg.Ingest.MaxEntriesPerFeed != 5 {
		t.Fatalf("expected default entry bound, got %d", cfg.Ingest.MaxEntriesPerFeed)
	}
	if cfg.Transcriber.RetryAttempts != 3 {
		t.Fatalf("expected default retry attempts, got %d", cfg.Transcriber.RetryAttempts)
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := `
[paths]
output_dir = "` + dir + `/site"
ledger_path = "` + dir + `/db.json"

[site]
title = "  My Transcripts  "
base_url = "https://example.org/pod/"

[[feeds]]
name = " Show "
url = " https://example.com/feed.xml "
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected exists=true")
	}
	if cfg.Site.Title != "My Transcripts" {
		t.Fatalf("title not trimmed: %q", cfg.Site.Title)
	}
	if cfg.Site.BaseURL != "https://example.org/pod" {
		t.Fatalf("base URL not normalized: %q", cfg.Site.BaseURL)
	}
	if len(cfg.Feeds) != 1 || cfg.Feeds[0].Name != "Show" || cfg.Feeds[0].URL != "https://example.com/feed.xml" {
		t.Fatalf("feed not normalized: %#v", cfg.Feeds)
	}
	if cfg.EpisodesDir() != filepath.Join(dir, "site", "episodes") {
		t.Fatalf("unexpected episodes dir: %q", cfg.EpisodesDir())
	}
}

func TestValidateRejectsBadFeed(t *testing.T) {
	cfg := Default()
	cfg.Feeds = []Feed{{Name: "", URL: "ftp://example.com/feed"}}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "name is required") || !strings.Contains(err.Error(), "must be http(s)") {
		t.Fatalf("unexpected validation message: %v", err)
	}
}

func TestRequireTranscriber(t *testing.T) {
	cfg := Default()
	if err := cfg.RequireTranscriber(); err == nil {
		t.Fatal("expected error with empty api key")
	}
	cfg.Transcriber.APIKey = "key"
	if err := cfg.RequireTranscriber(); err != nil {
		t.Fatalf("RequireTranscriber: %v", err)
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}

	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if len(cfg.Feeds) != 1 {
		t.Fatalf("expected one sample feed, got %d", len(cfg.Feeds))
	}
}
