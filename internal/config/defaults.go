package config

// Default returns the baseline configuration before any file overrides.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir:  "docs",
			TempDir:    "tmp",
			LedgerPath: "db.json",
			IndexPath:  "index.db",
			LogDir:     "logs",
		},
		Site: Site{
			Title:       "Podcast Transcripts",
			Description: "Searchable transcripts of podcast episodes",
		},
		Transcriber: Transcriber{
			BaseURL:             "https://generativelanguage.googleapis.com",
			Model:               "gemini-3-flash-preview",
			TimeoutSeconds:      300,
			PollIntervalSeconds: 2,
			RetryAttempts:       3,
			RetryDelaySeconds:   5,
		},
		Ingest: Ingest{
			MaxEntriesPerFeed: 5,
			MinArtifactBytes:  500,
		},
		Notifications: Notifications{
			RequestTimeout: 10,
		},
		Network: Network{
			UserAgent:           "podtext/1.0 (+https://github.com/podtext)",
			FetchTimeoutSeconds: 60,
			MaxBodyBytes:        10 << 20,
		},
		Git: Git{
			Enabled: false,
			Push:    true,
		},
		Logging: Logging{
			Format: "console",
			Level:  "info",
		},
	}
}
