// Package config loads and saves the YAML configuration that selects a
// tree kind and sizes its node slabs, PALM worker pool, and submission
// queue.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ssargent/latchtree/pkg/slab"
)

// TreeKind names which index implementation a named index in the registry
// is backed by.
type TreeKind string

const (
	TreeBlink    TreeKind = "blink"
	TreeMasstree TreeKind = "masstree"
	TreeArt      TreeKind = "art"
)

// Config is the top-level configuration for a latchtree server or CLI
// invocation.
type Config struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`

	Tree    TreeConfig `yaml:"tree"`
	Palm    PalmConfig `yaml:"palm"`
	Logging Logging    `yaml:"logging"`
}

// TreeConfig sizes the node slabs shared by blink/masstree/art.
type TreeConfig struct {
	Kind       TreeKind `yaml:"kind"`
	NodeSize   int      `yaml:"node_size"`
	MaxKeySize int      `yaml:"max_key_size"`
}

// PalmConfig sizes the PALM batched engine's worker pool and submission
// buffer.
type PalmConfig struct {
	Workers    int `yaml:"workers"`
	QueueDepth int `yaml:"queue_depth"`
	NodeSize   int `yaml:"node_size"`
	MaxKeySize int `yaml:"max_key_size"`
}

// Logging contains logging configuration.
type Logging struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a default configuration sized around slab's own
// defaults.
func DefaultConfig() *Config {
	return &Config{
		Bind: "127.0.0.1",
		Port: 8080,
		Tree: TreeConfig{
			Kind:       TreeBlink,
			NodeSize:   slab.MinNodeSize,
			MaxKeySize: slab.DefaultMaxKeySize,
		},
		Palm: PalmConfig{
			Workers:    4,
			QueueDepth: 16,
			NodeSize:   slab.MinNodeSize,
			MaxKeySize: slab.DefaultMaxKeySize,
		},
		Logging: Logging{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration from the specified path.
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	if !filepath.IsAbs(configPath) {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}
		configPath = absPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveConfig saves the configuration to the specified path.
func SaveConfig(config *Config, configPath string) error {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetDefaultConfigPath returns the default configuration path for the
// current platform.
func GetDefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./latchtree.yaml"
	}
	return filepath.Join(homeDir, ".config", "latchtree", "config.yaml")
}

// ConfigExists checks if a configuration file exists.
func ConfigExists(configPath string) bool {
	_, err := os.Stat(configPath)
	return !os.IsNotExist(err)
}
