// Package config provides configuration loading and management for centerinit.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"transforminit/pkg/initializer"
)

// ImageSource describes where an image comes from and how its voxels are
// placed in physical space. Geometry fields left empty keep the defaults of
// the loaded image (zero origin, unit spacing, identity direction).
type ImageSource struct {
	// Path is an image file or a directory of numbered 2D slices
	Path string `yaml:"path"`

	// Mask is an optional image file or slice directory with the same
	// geometry as Path; non-zero voxels take part in moments computation
	Mask string `yaml:"mask,omitempty"`

	// Size describes a geometry-only image when Path is empty
	Size []int `yaml:"size,omitempty"`

	Origin  []float64 `yaml:"origin,omitempty"`
	Spacing []float64 `yaml:"spacing,omitempty"`

	// Direction is the direction cosine matrix in row-major order
	Direction []float64 `yaml:"direction,omitempty"`

	// SliceGap is the physical distance between slices of a slice directory.
	// It overrides the last spacing component.
	SliceGap float64 `yaml:"sliceGap,omitempty"`
}

// Config represents the application configuration loaded from YAML
type Config struct {
	// Mode is one of geometry, moments, origins or geometrytop
	Mode string `yaml:"mode"`

	Fixed  ImageSource `yaml:"fixed"`
	Moving ImageSource `yaml:"moving"`

	// Processing parameters
	Processing struct {
		// Workers is the number of goroutines used to compute image moments
		Workers int `yaml:"workers"`
	} `yaml:"processing"`

	// Logging parameters
	Logging struct {
		// Level is a logrus level name
		Level string `yaml:"level"`

		// JSON switches the log output to JSON
		JSON bool `yaml:"json"`
	} `yaml:"logging"`

	// Output parameters
	Output struct {
		// ParameterFile receives the initialized transform in elastix format
		ParameterFile string `yaml:"parameterFile,omitempty"`

		// SliceDir receives debug slices through the computed centers
		SliceDir string `yaml:"sliceDir,omitempty"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Mode = initializer.Geometry.String()

	// 0 lets the moments calculator use every CPU
	cfg.Processing.Workers = 0

	cfg.Logging.Level = "info"
	cfg.Logging.JSON = false

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
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

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

// Validate checks the parts of the configuration that can be checked
// without loading any image.
func (c *Config) Validate() error {
	if _, err := initializer.ParseMode(c.Mode); err != nil {
		return err
	}
	if c.Processing.Workers < 0 {
		return fmt.Errorf("processing.workers must not be negative, got %d", c.Processing.Workers)
	}
	if err := c.Fixed.validate("fixed"); err != nil {
		return err
	}
	return c.Moving.validate("moving")
}

func (s ImageSource) validate(name string) error {
	if s.Path == "" && len(s.Size) == 0 {
		return fmt.Errorf("%s: either path or size must be set", name)
	}
	if s.Path == "" && s.Mask != "" {
		return fmt.Errorf("%s: a mask needs an image path", name)
	}
	d := len(s.Size)
	if d == 0 {
		// The dimension is only known once the image is loaded.
		return nil
	}
	if len(s.Origin) != 0 && len(s.Origin) != d {
		return fmt.Errorf("%s: origin has %d components, size has %d", name, len(s.Origin), d)
	}
	if len(s.Spacing) != 0 && len(s.Spacing) != d {
		return fmt.Errorf("%s: spacing has %d components, size has %d", name, len(s.Spacing), d)
	}
	if len(s.Direction) != 0 && len(s.Direction) != d*d {
		return fmt.Errorf("%s: direction has %d components, expected %d", name, len(s.Direction), d*d)
	}
	return nil
}
