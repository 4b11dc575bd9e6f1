// Package kconfig loads the kernel driver's YAML configuration, in the
// shape of the teacher's internal/config: a DefaultConfig, a Load that
// falls back to defaults when the file is absent, environment overrides,
// and a Save for round-tripping.
package kconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"kernelnerd/internal/klog"
)

// LoggingConfig controls klog's category gating.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"`
	JSONFormat bool            `yaml:"json_format"`
}

// UnifyConfig bounds the unifier's search per spec.md §5's
// max_depth_exceeded contract.
type UnifyConfig struct {
	MaxDepth int `yaml:"max_depth"`
}

// UniverseConfig holds the default_bound setting. It is part of the loaded
// configuration, but nothing outside this package reads it: the surface
// (uvar name bound) form always gives a universe variable its bound.
type UniverseConfig struct {
	DefaultBound int `yaml:"default_bound"`
}

// Config holds the kernel driver's configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	Unify    UnifyConfig    `yaml:"unify"`
	Universe UniverseConfig `yaml:"universe"`

	// Unfoldable lists the Const names delta-reduction is permitted to
	// unfold during whnf; an empty list with UnfoldAll false means nothing
	// unfolds beyond what's explicitly listed.
	Unfoldable []string `yaml:"unfoldable"`
	UnfoldAll  bool     `yaml:"unfold_all"`

	Logging LoggingConfig `yaml:"logging"`
}

// DefaultConfig returns the kernel driver's default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "kernelnerd",
		Version: "0.1.0",
		Unify: UnifyConfig{
			MaxDepth: 256,
		},
		Universe: UniverseConfig{
			DefaultBound: 0,
		},
		UnfoldAll: false,
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file, falling back to defaults if
// the file does not exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	klog.BootDebug("loading kernel config from: %s", path)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			klog.Boot("config file not found, using defaults: %s", path)
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		klog.BootError("failed to read config file %s: %v", path, err)
		return nil, fmt.Errorf("kconfig: read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		klog.BootError("failed to parse config file %s: %v", path, err)
		return nil, fmt.Errorf("kconfig: parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	klog.Boot("config loaded: max_unify_depth=%d", cfg.Unify.MaxDepth)
	return cfg, nil
}

// Save writes the configuration back out as YAML.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("kconfig: create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("kconfig: marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("kconfig: write config: %w", err)
	}
	return nil
}

// applyEnvOverrides lets a few hot knobs be overridden without editing the
// file, mirroring config.applyEnvOverrides in the teacher.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("KERNELNERD_MAX_UNIFY_DEPTH"); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil && n > 0 {
			c.Unify.MaxDepth = n
		}
	}
	if v := os.Getenv("KERNELNERD_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("KERNELNERD_DEBUG"); v == "1" || v == "true" {
		c.Logging.DebugMode = true
	}
}

// ApplyToLogging installs this config's logging section into klog, scoped
// to the given workspace directory.
func (c *Config) ApplyToLogging(workspace string) error {
	return klog.Configure(workspace, c.Logging.DebugMode, c.Logging.Categories, c.Logging.Level, c.Logging.JSONFormat)
}

// IsUnfoldable reports whether name may be delta-unfolded during whnf.
func (c *Config) IsUnfoldable(name string) bool {
	if c.UnfoldAll {
		return true
	}
	for _, n := range c.Unfoldable {
		if n == name {
			return true
		}
	}
	return false
}
