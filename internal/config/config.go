package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and file location configuration.
type Paths struct {
	OutputDir  string `toml:"output_dir"`
	TempDir    string `toml:"temp_dir"`
	LedgerPath string `toml:"ledger_path"`
	IndexPath  string `toml:"index_path"`
	LogDir     string `toml:"log_dir"`
}

// Site contains the static-site metadata rendered into the index and RSS.
type Site struct {
	Title       string `toml:"title"`
	Description string `toml:"description"`
	BaseURL     string `toml:"base_url"`
}

// Feed identifies one remote catalog to ingest.
type Feed struct {
	Name string `toml:"name"`
	URL  string `toml:"url"`
}

// Transcriber contains the transcription provider connection settings.
type Transcriber struct {
	APIKey              string `toml:"api_key"`
	BaseURL             string `toml:"base_url"`
	Model               string `toml:"model"`
	TimeoutSeconds      int    `toml:"timeout_seconds"`
	PollIntervalSeconds int    `toml:"poll_interval_seconds"`
	RetryAttempts       int    `toml:"retry_attempts"`
	RetryDelaySeconds   int    `toml:"retry_delay_seconds"`
}

// Ingest contains tunables for the per-feed ingestion pass.
type Ingest struct {
	// MaxEntriesPerFeed bounds how many of the newest entries are examined
	// per run. This caps per-run cost, not correctness.
	MaxEntriesPerFeed int `toml:"max_entries_per_feed"`
	// MinArtifactBytes is the size below which a rendered artifact is
	// treated as corrupt or incomplete.
	MinArtifactBytes int64 `toml:"min_artifact_bytes"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Network contains HTTP fetch settings shared by feed and audio downloads.
type Network struct {
	UserAgent           string `toml:"user_agent"`
	FetchTimeoutSeconds int    `toml:"fetch_timeout_seconds"`
	MaxBodyBytes        int64  `toml:"max_body_bytes"`
	// AllowPrivateHosts disables the SSRF guard. Intended for local
	// development against private feed mirrors only.
	AllowPrivateHosts bool `toml:"allow_private_hosts"`
}

// Git contains version-control synchronization settings.
type Git struct {
	Enabled bool `toml:"enabled"`
	Push    bool `toml:"push"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for podtext.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Site          Site          `toml:"site"`
	Feeds         []Feed        `toml:"feeds"`
	Transcriber   Transcriber   `toml:"transcriber"`
	Ingest        Ingest        `toml:"ingest"`
	Notifications Notifications `toml:"notifications"`
	Network       Network       `toml:"network"`
	Git           Git           `toml:"git"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/podtext/config.toml")
}

// Load locates, parses, normalizes, and validates a configuration file. The
// boolean result reports whether a file existed at the resolved path; when it
// did not, defaults are returned.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("podtext.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EpisodesDir returns the directory holding per-episode artifacts.
func (c *Config) EpisodesDir() string {
	return filepath.Join(c.Paths.OutputDir, "episodes")
}

// EnsureDirectories creates the directories a run requires.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.OutputDir,
		c.EpisodesDir(),
		c.Paths.TempDir,
		c.Paths.LogDir,
		filepath.Dir(c.Paths.LedgerPath),
		filepath.Dir(c.Paths.IndexPath),
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// ExpandPath resolves a leading ~ and returns an absolute, cleaned path.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
