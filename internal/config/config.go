// Package config defines the VeroVision process configuration and its loading.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// CameraID selects the capture device.
	CameraID int `koanf:"camera_id"`

	// CameraFPS is the requested capture rate.
	CameraFPS int `koanf:"camera_fps"`

	// Mirror flips camera frames horizontally before detection.
	Mirror bool `koanf:"mirror"`

	// Preview keeps the latest camera frame JPEG-encoded for /api/stream.
	Preview bool `koanf:"preview"`

	// MinConfidence is passed to the landmark detector for both detection and tracking.
	MinConfidence float64 `koanf:"min_confidence"`

	// SustainMS is how long a label must be held before it commits.
	SustainMS int `koanf:"sustain_ms"`

	// FrameBudgetMS bounds a single classifier call; 0 disables the budget.
	FrameBudgetMS int `koanf:"frame_budget_ms"`

	// LandmarkCount is the number of landmarks per hand the extractor expects.
	LandmarkCount int `koanf:"landmark_count"`

	// Labels is the ordered class alphabet the classifier was trained against.
	Labels []string `koanf:"labels"`

	// SpaceLabel names the symbol that commits a literal space.
	SpaceLabel string `koanf:"space_label"`

	// DBPath is the SQLite database holding training samples.
	DBPath string `koanf:"db_path"`

	// PluginDir is scanned for classifier and output plugins.
	PluginDir string `koanf:"plugin_dir"`

	// Classifier is "prototype" or the name of a classifier plugin.
	Classifier string `koanf:"classifier"`

	// TypeCommits names an output plugin that receives every committed
	// character. Empty disables it.
	TypeCommits string `koanf:"type_commits"`

	// Tray shows the desktop tray while serving.
	Tray bool `koanf:"tray"`
}

// DefaultLabels is the alphabet of the reference sign-language model.
var DefaultLabels = []string{
	"A", "B", "C", "D", "E", "F", "G", "H", "I", "J", "K", "L", "M", "N",
	"O", "P", "Q", "R", "S", "Space", "T", "U", "V", "W", "X", "Y", "Z",
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:      "info",
		Addr:          ":8080",
		CameraID:      0,
		CameraFPS:     15,
		Mirror:        true,
		Preview:       true,
		MinConfidence: 0.6,
		SustainMS:     1500,
		FrameBudgetMS: 250,
		LandmarkCount: 21,
		Labels:        append([]string(nil), DefaultLabels...),
		SpaceLabel:    "Space",
		DBPath:        filepath.Join(dataDir(), "verovision.db"),
		PluginDir:     filepath.Join(dataDir(), "plugins"),
		Classifier:    "prototype",
	}
}

// Sustain returns SustainMS as a duration.
func (c *Config) Sustain() time.Duration {
	return time.Duration(c.SustainMS) * time.Millisecond
}

// FrameBudget returns FrameBudgetMS as a duration.
func (c *Config) FrameBudget() time.Duration {
	return time.Duration(c.FrameBudgetMS) * time.Millisecond
}

// dataDir returns ~/.verovision, or the working directory when there is no home.
func dataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".verovision")
}
