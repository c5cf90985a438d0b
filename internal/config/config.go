// Package config loads and merges devtrack configuration.
// Settings come from three layers: built-in defaults, the global file at
// ~/.config/devtrack/config.json, and a project-local .devtrackconfig.
// Later layers override earlier ones key by key.
package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

// PrivacyLevel controls how much file detail the commit journal records.
type PrivacyLevel string

const (
	PrivacyOff      PrivacyLevel = "off"      // totals only
	PrivacyMinimal  PrivacyLevel = "minimal"  // totals + extensions
	PrivacyStandard PrivacyLevel = "standard" // totals + extensions + relative paths
	PrivacyDetailed PrivacyLevel = "detailed" // same as standard (reserved for future detail)
)

// Config holds all configurable devtrack settings.
type Config struct {
	// Scheduling
	CommitFrequencyMinutes      int     `json:"commit_frequency_minutes"`
	MinChangesForCommit         int     `json:"min_changes_for_commit"`
	MinActiveTimeSeconds        int     `json:"min_active_time_seconds"`
	MaxIdleTimeSeconds          int     `json:"max_idle_time_seconds"`
	EnableAdaptiveScheduling    bool    `json:"enable_adaptive_scheduling"`
	AdaptiveEarlyCommitFraction float64 `json:"adaptive_early_commit_fraction"`
	AdaptiveMinDistinctFiles    int     `json:"adaptive_min_distinct_files"`
	AdaptiveMinKeystrokes       int     `json:"adaptive_min_keystrokes"`

	// Tracking
	DebounceMs         int      `json:"debounce_ms"`
	IdleTimeoutSeconds int      `json:"idle_timeout_seconds"`
	TrackKeystrokes    bool     `json:"track_keystrokes"`
	ExcludePatterns    []string `json:"exclude_patterns"`
	FileExtensions     []string `json:"file_extensions"` // allow-list; empty disables extension filtering
	UseDefaultIgnores  bool     `json:"use_default_ignores"`

	// Commit pipeline
	RequireConfirmation bool         `json:"require_confirmation"`
	PrivacyLevel        PrivacyLevel `json:"privacy_level"`
	RemoteURL           string       `json:"remote_url"`
	Branch              string       `json:"branch"`
}

// Defaults returns the built-in configuration values.
func Defaults() Config {
	return Config{
		CommitFrequencyMinutes:      30,
		MinChangesForCommit:         1,
		MinActiveTimeSeconds:        60,
		MaxIdleTimeSeconds:          1800,
		EnableAdaptiveScheduling:    true,
		AdaptiveEarlyCommitFraction: 0.5,
		AdaptiveMinDistinctFiles:    3,
		AdaptiveMinKeystrokes:       120,
		DebounceMs:                  750,
		IdleTimeoutSeconds:          900,
		TrackKeystrokes:             false,
		ExcludePatterns:             []string{},
		FileExtensions:              []string{},
		UseDefaultIgnores:           true,
		RequireConfirmation:         false,
		PrivacyLevel:                PrivacyStandard,
	}
}

// Load builds the effective configuration: defaults, then the global file,
// then the project file, then clamping. Absent files are not errors.
func Load(workDir string) (Config, error) {
	cfg := Defaults()

	global, err := globalPath()
	if err == nil {
		if err := applyFile(&cfg, global); err != nil {
			return cfg, err
		}
	}

	project := filepath.Join(workDir, ".devtrackconfig")
	if err := applyFile(&cfg, project); err != nil {
		return cfg, err
	}

	cfg.Clamp()
	return cfg, nil
}

// globalPath returns ~/.config/devtrack/config.json.
func globalPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "devtrack", "config.json"), nil
}

// applyFile unmarshals the JSON file at path over cfg, so keys absent from
// the file keep their current values. A missing file is a no-op.
func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return &ParseError{Path: path, Err: err}
	}
	return nil
}

// Clamp forces out-of-range values back into their supported ranges.
func (c *Config) Clamp() {
	if c.CommitFrequencyMinutes < 1 {
		c.CommitFrequencyMinutes = 1
	}
	if c.MinChangesForCommit < 1 {
		c.MinChangesForCommit = 1
	}
	if c.MinActiveTimeSeconds < 0 {
		c.MinActiveTimeSeconds = 0
	}
	if c.MaxIdleTimeSeconds < 60 {
		c.MaxIdleTimeSeconds = 60
	}
	if c.DebounceMs < 0 {
		c.DebounceMs = 0
	}
	if c.DebounceMs > 10000 {
		c.DebounceMs = 10000
	}
	if c.IdleTimeoutSeconds < 60 {
		c.IdleTimeoutSeconds = 60
	}
	if c.IdleTimeoutSeconds > 86400 {
		c.IdleTimeoutSeconds = 86400
	}
	if c.AdaptiveEarlyCommitFraction < 0 {
		c.AdaptiveEarlyCommitFraction = 0
	}
	if c.AdaptiveEarlyCommitFraction > 1 {
		c.AdaptiveEarlyCommitFraction = 1
	}
	if c.AdaptiveMinDistinctFiles < 1 {
		c.AdaptiveMinDistinctFiles = 1
	}
	if c.AdaptiveMinKeystrokes < 0 {
		c.AdaptiveMinKeystrokes = 0
	}
	switch c.PrivacyLevel {
	case PrivacyOff, PrivacyMinimal, PrivacyStandard, PrivacyDetailed:
	default:
		c.PrivacyLevel = PrivacyStandard
	}
}

// ParseError is returned when a config file exists but cannot be parsed.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return "failed to parse config file " + e.Path + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
