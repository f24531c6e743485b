package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

func (c *Config) normalize() error {
	for _, field := range []*string{
		&c.Paths.OutputDir,
		&c.Paths.TempDir,
		&c.Paths.LedgerPath,
		&c.Paths.IndexPath,
		&c.Paths.LogDir,
	} {
		expanded, err := expandPath(strings.TrimSpace(*field))
		if err != nil {
			return err
		}
		*field = expanded
	}

	c.Site.Title = strings.TrimSpace(c.Site.Title)
	c.Site.Description = strings.TrimSpace(c.Site.Description)
	c.Site.BaseURL = strings.TrimRight(strings.TrimSpace(c.Site.BaseURL), "/")

	for i := range c.Feeds {
		c.Feeds[i].Name = strings.TrimSpace(c.Feeds[i].Name)
		c.Feeds[i].URL = strings.TrimSpace(c.Feeds[i].URL)
	}

	c.Transcriber.APIKey = strings.TrimSpace(c.Transcriber.APIKey)
	c.Transcriber.BaseURL = strings.TrimRight(strings.TrimSpace(c.Transcriber.BaseURL), "/")
	c.Transcriber.Model = strings.TrimSpace(c.Transcriber.Model)
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	c.Network.UserAgent = strings.TrimSpace(c.Network.UserAgent)
	return nil
}

// Validate checks structural configuration problems that should abort a run
// before any feed is touched.
func (c *Config) Validate() error {
	var problems []string

	for i, feed := range c.Feeds {
		if feed.Name == "" {
			problems = append(problems, fmt.Sprintf("feeds[%d]: name is required", i))
		}
		if feed.URL == "" {
			problems = append(problems, fmt.Sprintf("feeds[%d]: url is required", i))
			continue
		}
		parsed, err := url.Parse(feed.URL)
		if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			problems = append(problems, fmt.Sprintf("feeds[%d]: url %q must be http(s)", i, feed.URL))
		}
	}

	if c.Ingest.MaxEntriesPerFeed <= 0 {
		problems = append(problems, "ingest: max_entries_per_feed must be positive")
	}
	if c.Ingest.MinArtifactBytes <= 0 {
		problems = append(problems, "ingest: min_artifact_bytes must be positive")
	}
	if c.Transcriber.RetryAttempts <= 0 {
		problems = append(problems, "transcriber: retry_attempts must be positive")
	}
	if c.Network.FetchTimeoutSeconds <= 0 {
		problems = append(problems, "network: fetch_timeout_seconds must be positive")
	}
	if c.Network.MaxBodyBytes <= 0 {
		problems = append(problems, "network: max_body_bytes must be positive")
	}

	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging: format %q must be console or json", c.Logging.Format))
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration:\n  - " + strings.Join(problems, "\n  - "))
	}
	return nil
}

// RequireTranscriber verifies the provider credentials needed for ingestion.
// Kept separate from Validate so read-only commands work without an API key.
func (c *Config) RequireTranscriber() error {
	if c.Transcriber.APIKey == "" {
		return errors.New("transcriber: api_key is required to process episodes")
	}
	if c.Transcriber.Model == "" {
		return errors.New("transcriber: model is required to process episodes")
	}
	return nil
}
