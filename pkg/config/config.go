// Package config provides configuration loading and management for microvol.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"golang.org/x/image/colornames"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Preprocessing parameters
	Preprocess struct {
		// TargetSpacing is the (plane, row, column) spacing in mm volumes are resampled to
		TargetSpacing [3]float64 `yaml:"targetSpacing"`

		// PlaneSpacing is used for the plane axis, which TIFF resolution tags do not carry
		PlaneSpacing float64 `yaml:"planeSpacing"`

		// PercentileLow and PercentileHigh bound the intensity rescale
		PercentileLow  float64 `yaml:"percentileLow"`
		PercentileHigh float64 `yaml:"percentileHigh"`

		// Interpolation selects the resampling kernel: cubic, linear or akima
		Interpolation string `yaml:"interpolation"`

		// NumCores specifies how many CPU cores to use for resampling
		NumCores int `yaml:"numCores"`

		// CacheSize bounds how many preprocessed volumes are kept in memory
		CacheSize int `yaml:"cacheSize"`
	} `yaml:"preprocess"`

	// Annotation tool parameters
	Annotation struct {
		// LineColor is a #RRGGBB value or an SVG colour name
		LineColor string `yaml:"lineColor"`

		// LineWidth is the stroke width in pixels
		LineWidth int `yaml:"lineWidth"`

		// OutputDir receives the annotated image and segment record on save
		OutputDir string `yaml:"outputDir"`

		ImageName    string `yaml:"imageName"`
		SegmentsName string `yaml:"segmentsName"`

		// Window size of the annotation host
		WindowWidth  int `yaml:"windowWidth"`
		WindowHeight int `yaml:"windowHeight"`
	} `yaml:"annotation"`

	// Logging parameters
	Logging struct {
		// Level is one of debug, info, warn, error
		Level string `yaml:"level"`

		// Format is console or json
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default preprocessing parameters
	cfg.Preprocess.TargetSpacing = [3]float64{1, 1, 1}
	cfg.Preprocess.PlaneSpacing = 1.0
	cfg.Preprocess.PercentileLow = 0.5
	cfg.Preprocess.PercentileHigh = 99.5
	cfg.Preprocess.Interpolation = "cubic"
	cfg.Preprocess.NumCores = runtime.NumCPU()
	cfg.Preprocess.CacheSize = 16

	// Set default annotation parameters
	cfg.Annotation.LineColor = "#FF0000"
	cfg.Annotation.LineWidth = 2
	cfg.Annotation.OutputDir = "."
	cfg.Annotation.ImageName = "annotated_image.png"
	cfg.Annotation.SegmentsName = "annotations.yaml"
	cfg.Annotation.WindowWidth = 1280
	cfg.Annotation.WindowHeight = 720

	// Set default logging parameters
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "console"

	return cfg
}

// Validate checks that the configuration values are usable
func (c *Config) Validate() error {
	var errs []error
	for i, v := range c.Preprocess.TargetSpacing {
		if !(v > 0) {
			errs = append(errs, fmt.Errorf("preprocess.targetSpacing[%d] must be positive, got %v", i, v))
		}
	}
	if !(c.Preprocess.PlaneSpacing > 0) {
		errs = append(errs, fmt.Errorf("preprocess.planeSpacing must be positive, got %v", c.Preprocess.PlaneSpacing))
	}
	p := c.Preprocess
	if p.PercentileLow < 0 || p.PercentileHigh > 100 || p.PercentileLow >= p.PercentileHigh {
		errs = append(errs, fmt.Errorf("preprocess percentiles must satisfy 0 <= low < high <= 100, got (%v, %v)",
			p.PercentileLow, p.PercentileHigh))
	}
	if c.Preprocess.CacheSize < 1 {
		errs = append(errs, fmt.Errorf("preprocess.cacheSize must be at least 1, got %d", c.Preprocess.CacheSize))
	}
	if c.Annotation.LineWidth < 1 {
		errs = append(errs, fmt.Errorf("annotation.lineWidth must be at least 1, got %d", c.Annotation.LineWidth))
	}
	if _, err := ParseColor(c.Annotation.LineColor); err != nil {
		errs = append(errs, fmt.Errorf("annotation.lineColor: %w", err))
	}
	if c.Annotation.ImageName == "" || c.Annotation.SegmentsName == "" {
		errs = append(errs, errors.New("annotation output names must not be empty"))
	}
	return errors.Join(errs...)
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath == "" {
		return cfg, nil
	}

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}

	return cfg, nil
}

// Marshal encodes the configuration as YAML
func (c *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("error marshaling config: %w", err)
	}
	return data, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := cfg.Marshal()
	if err != nil {
		return err
	}

	// Write to file
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

// ParseColor accepts "#RRGGBB", "#RRGGBBAA" or an SVG colour name.
func ParseColor(s string) (color.RGBA, error) {
	s = strings.TrimSpace(s)
	if c, ok := colornames.Map[strings.ToLower(s)]; ok {
		return c, nil
	}
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 && len(hex) != 8 {
		return color.RGBA{}, fmt.Errorf("unknown colour %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("unknown colour %q: %w", s, err)
	}
	if len(hex) == 6 {
		return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
	}
	return color.RGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}
