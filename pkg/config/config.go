// Package config provides configuration file support for remedy.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/remedy-project/remedy/pkg/fsutil"
	"github.com/remedy-project/remedy/pkg/model"
)

// Config represents the remedy configuration stored in the state directory.
type Config struct {
	Budget      model.RiskBudget `yaml:"budget"`
	Retention   RetentionConfig  `yaml:"retention"`
	Compression string           `yaml:"compression"`
	// ProtectedPaths are glob patterns no recipe may ever touch,
	// checked in addition to the classifier's critical tiers.
	ProtectedPaths []string        `yaml:"protected_paths"`
	Logging        LoggingConfig   `yaml:"logging"`
	Webhooks       []WebhookConfig `yaml:"webhooks,omitempty"`
}

// RetentionConfig configures snapshot cleanup.
type RetentionConfig struct {
	// Days is the retention window for untagged snapshots.
	Days int `yaml:"days"`
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// WebhookConfig configures one notification endpoint.
type WebhookConfig struct {
	URL    string `yaml:"url"`
	Secret string `yaml:"secret,omitempty"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Budget:      model.DefaultBudget(),
		Retention:   RetentionConfig{Days: 30},
		Compression: "default",
		ProtectedPaths: []string{
			".remedy/**",
			".git/**",
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load loads configuration from <stateDir>/config.yaml.
// Returns default config if the file doesn't exist.
func Load(stateDir string) (*Config, error) {
	cfg := Default()
	cfgPath := filepath.Join(stateDir, "config.yaml")

	data, err := os.ReadFile(cfgPath)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes configuration to <stateDir>/config.yaml atomically.
func Save(stateDir string, cfg *Config) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	cfgPath := filepath.Join(stateDir, "config.yaml")
	if err := fsutil.AtomicWrite(cfgPath, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) validate() error {
	if c.Budget.MaxFiles < 0 || c.Budget.MaxLocChanged < 0 || c.Budget.MaxRecipesPerSession < 0 {
		return fmt.Errorf("budget values must be non-negative")
	}
	if c.Retention.Days < 0 {
		return fmt.Errorf("retention days must be non-negative")
	}
	return nil
}
