// Package config provides configuration loading and management for rolabel-mcp.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/ironsheep/rolabel-mcp/internal/project"
	"github.com/ironsheep/rolabel-mcp/internal/shape"
)

// EnvLogLevel overrides Log.Level when set.
const EnvLogLevel = "ROLABEL_LOG_LEVEL"

// Config represents the application configuration loaded from YAML
type Config struct {
	Log struct {
		// Level is one of debug, info, warn, error
		Level string `yaml:"level"`

		// Development switches to the human-readable console encoder
		Development bool `yaml:"development"`
	} `yaml:"log"`

	Annotation struct {
		// LineColor and FillColor are the default shape colors, #RRGGBB or #RRGGBBAA
		LineColor string `yaml:"line_color"`
		FillColor string `yaml:"fill_color"`

		// LabelColors derives each shape's colors from its label
		LabelColors bool `yaml:"label_colors"`

		// SaveDir receives annotation files; empty keeps them next to the images
		SaveDir string `yaml:"save_dir"`

		// PredefinedClasses is a text file with one class name per line
		PredefinedClasses string `yaml:"predefined_classes"`
	} `yaml:"annotation"`

	Project struct {
		// ImageExtensions limits which files count as images
		ImageExtensions []string `yaml:"image_extensions"`
	} `yaml:"project"`

	Server struct {
		// HTTPAddr enables the HTTP transport when non-empty, e.g. ":8080"
		HTTPAddr string `yaml:"http_addr"`
	} `yaml:"server"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Log.Level = "info"

	def := shape.StandardDefaults()
	cfg.Annotation.LineColor = def.Line.Hex()
	cfg.Annotation.FillColor = def.Fill.Hex()

	cfg.Project.ImageExtensions = append([]string(nil), project.DefaultExtensions...)

	return cfg
}

// LoadConfig loads configuration from a YAML file.
// If the file doesn't exist, it returns the default configuration.
// The EnvLogLevel variable is applied last in both cases.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("error reading config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("error parsing config file: %w", err)
			}
		}
	}

	if lvl := os.Getenv(EnvLogLevel); lvl != "" {
		cfg.Log.Level = lvl
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig writes cfg as YAML to configPath, creating parent directories.
// The output loads back through LoadConfig unchanged.
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

// Validate checks the log level and the color strings.
func (c *Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if _, err := c.Colors(); err != nil {
		return err
	}
	return nil
}

// Colors parses the configured default colors.
func (c *Config) Colors() (shape.Defaults, error) {
	line, err := shape.ParseHex(c.Annotation.LineColor)
	if err != nil {
		return shape.Defaults{}, fmt.Errorf("annotation.line_color: %w", err)
	}
	fill, err := shape.ParseHex(c.Annotation.FillColor)
	if err != nil {
		return shape.Defaults{}, fmt.Errorf("annotation.fill_color: %w", err)
	}
	return shape.Defaults{Line: line, Fill: fill}, nil
}
