// Package config provides configuration loading for voxelpart. It
// handles loading named partition descriptors and logging settings from
// YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"voxelpart/pkg/logger"
	"voxelpart/pkg/partition"
)

// Config represents the application configuration loaded from YAML.
type Config struct {
	// Logging configures the structured logger.
	Logging logger.Config `yaml:"logging"`

	// Partitions maps partition names to their descriptors. Each
	// partition is built independently.
	Partitions map[string]partition.Descriptor `yaml:"partitions"`

	// Output parameters.
	Output struct {
		// Dir is the directory voxel tables are exported to.
		Dir string `yaml:"dir"`

		// ExportCSV determines whether built partitions are written out
		// as CSV voxel tables.
		ExportCSV bool `yaml:"exportCsv"`

		// ExportSTL determines whether built partitions are written out
		// as binary STL meshes.
		ExportSTL bool `yaml:"exportStl"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Logging.Level = "info"
	cfg.Logging.Encoding = "console"
	cfg.Output.Dir = "partitions"
	cfg.Output.ExportCSV = false
	return cfg
}

// LoadConfig loads configuration from a YAML file.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	// Descriptor errors should name the partition, not surface later as
	// build failures.
	for name := range cfg.Partitions {
		desc := cfg.Partitions[name]
		if err := desc.Validate(); err != nil {
			return nil, fmt.Errorf("partition %q: %w", name, err)
		}
	}
	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file.
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}
