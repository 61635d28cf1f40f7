package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override, e.g. VERO_SUSTAIN_MS.
const EnvPrefix = "VERO_"

// Load builds a Config by layering defaults, an optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if VERO_CONFIG is set
//  3. env (prefix VERO_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(EnvPrefix + "CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// VERO_SUSTAIN_MS -> sustain_ms. Lists are comma separated.
	envProvider := env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, any) {
		key = strings.TrimPrefix(strings.ToLower(key), strings.ToLower(EnvPrefix))
		if key == "labels" {
			return key, strings.Split(value, ",")
		}
		return key, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := *base
	if k.Exists("labels") {
		// Replace the default alphabet instead of merging element-wise.
		cfg.Labels = nil
	}
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first setting that would break the pipeline.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return errors.New("addr must not be empty")
	case c.CameraFPS < 0:
		return fmt.Errorf("camera_fps must not be negative, got %d", c.CameraFPS)
	case c.SustainMS <= 0:
		return fmt.Errorf("sustain_ms must be positive, got %d", c.SustainMS)
	case c.FrameBudgetMS < 0:
		return fmt.Errorf("frame_budget_ms must not be negative, got %d", c.FrameBudgetMS)
	case c.LandmarkCount < 2:
		return fmt.Errorf("landmark_count must be at least 2, got %d", c.LandmarkCount)
	case len(c.Labels) == 0:
		return errors.New("labels must not be empty")
	case c.MinConfidence < 0 || c.MinConfidence > 1:
		return fmt.Errorf("min_confidence must be within [0,1], got %f", c.MinConfidence)
	}
	if c.SpaceLabel != "" && !slices.Contains(c.Labels, c.SpaceLabel) {
		return fmt.Errorf("space_label %q is not in labels", c.SpaceLabel)
	}
	return nil
}
