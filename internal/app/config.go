package app

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// HistoryConfig locates the two archive repositories.
type HistoryConfig struct {
	SnapshotsPath string `yaml:"snapshotsPath"`
	VersionsPath  string `yaml:"versionsPath"`

	// Remotes are optional; required only when Publish is true.
	SnapshotsRemote string `yaml:"snapshotsRemote"`
	VersionsRemote  string `yaml:"versionsRemote"`

	Publish          bool   `yaml:"publish"`
	SnapshotsBaseURL string `yaml:"snapshotsBaseUrl"`

	AuthorName  string `yaml:"authorName"`
	AuthorEmail string `yaml:"authorEmail"`
}

// FetcherConfig tunes page retrieval.
type FetcherConfig struct {
	TimeoutSeconds int `yaml:"timeoutSeconds"`

	// EnableClientScripts starts the headless-browser backend for
	// declarations marked executeClientScripts.
	EnableClientScripts bool `yaml:"enableClientScripts"`
}

// TrackerConfig bounds batch parallelism.
type TrackerConfig struct {
	MaxParallelTrackings int `yaml:"maxParallelTrackings"`
	MaxParallelRefilters int `yaml:"maxParallelRefilters"`
}

// Config is the aggregate runtime configuration, resolved once at startup
// and immutable afterwards.
type Config struct {
	DeclarationsPath string        `yaml:"declarationsPath"`
	History          HistoryConfig `yaml:"history"`
	Fetcher          FetcherConfig `yaml:"fetcher"`
	Tracker          TrackerConfig `yaml:"tracker"`
}

// DefaultConfig returns a Config populated with sensible development
// defaults.
func DefaultConfig() *Config {
	return &Config{
		DeclarationsPath: "./declarations",
		History: HistoryConfig{
			SnapshotsPath: "./data/snapshots",
			VersionsPath:  "./data/versions",
			Publish:       false,
			AuthorName:    "Open Terms Archive Bot",
			AuthorEmail:   "bot@opentermsarchive.org",
		},
		Fetcher: FetcherConfig{
			TimeoutSeconds: 30,
		},
		Tracker: TrackerConfig{
			MaxParallelTrackings: 20,
			MaxParallelRefilters: 20,
		},
	}
}

// LoadConfig overlays the YAML file at path onto the defaults. An empty path
// returns the defaults unchanged.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// FetchTimeout returns the configured fetch timeout as a duration.
func (c *Config) FetchTimeout() time.Duration {
	if c.Fetcher.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Fetcher.TimeoutSeconds) * time.Second
}
