// Package config provides configuration loading and management for rasterstats.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"rasterstats/internal/models"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Statistics parameters
	Statistics struct {
		// InterBand enables the cross-band covariance accumulator
		InterBand bool `yaml:"interBand"`

		// MaskPolicy selects when a pixel position is dropped in inter-band mode:
		// "all" (every band invalid) or "any" (at least one band invalid)
		MaskPolicy string `yaml:"maskPolicy"`

		// NoData holds the global and per-band no-data sentinels
		NoData models.NoData `yaml:"noData"`

		// Bands restricts the computation to a subset of bands. Empty means all bands.
		Bands []int `yaml:"bands,omitempty"`
	} `yaml:"statistics"`

	// Tiling parameters
	Tiling struct {
		// TileCols and TileRows give a fixed tile size. Zero uses MaxTileBytes.
		TileCols int `yaml:"tileCols"`
		TileRows int `yaml:"tileRows"`

		// MaxTileBytes bounds the memory of one tile across all bands
		MaxTileBytes int `yaml:"maxTileBytes"`
	} `yaml:"tiling"`

	// Histogram parameters
	Histogram struct {
		// Bins is the number of histogram bins per band
		Bins int `yaml:"bins"`

		// Min and Max override the statistics bounds per band when non-empty
		Min []float64 `yaml:"min,omitempty"`
		Max []float64 `yaml:"max,omitempty"`
	} `yaml:"histogram"`

	// Enhancement parameters
	Enhancement struct {
		// Method is one of linear, gaussian, equalization, matching
		Method string `yaml:"method"`

		// GaussianMean and GaussianStdDev describe the target distribution of
		// the gaussian stretch, in output levels
		GaussianMean   float64 `yaml:"gaussianMean"`
		GaussianStdDev float64 `yaml:"gaussianStdDev"`

		// OutputLevels is the number of output intensities of the gaussian table
		OutputLevels int `yaml:"outputLevels"`
	} `yaml:"enhancement"`

	// KMeans parameters
	KMeans struct {
		// Classes is the number of clusters
		Classes int `yaml:"classes"`

		// SkipNoData leaves out positions where every band is invalid
		SkipNoData bool `yaml:"skipNoData"`
	} `yaml:"kmeans"`

	// Output parameters
	Output struct {
		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`

		// LogJSON switches the console logger to JSON lines
		LogJSON bool `yaml:"logJSON"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Statistics.InterBand = false
	cfg.Statistics.MaskPolicy = "all"

	cfg.Tiling.MaxTileBytes = 16 << 20

	cfg.Histogram.Bins = 256

	cfg.Enhancement.Method = "linear"
	cfg.Enhancement.GaussianMean = 127.5
	cfg.Enhancement.GaussianStdDev = 42.5
	cfg.Enhancement.OutputLevels = 256

	cfg.KMeans.Classes = 5

	cfg.Output.Verbose = false

	return cfg
}

// Validate reports every invalid setting at once
func (cfg *Config) Validate() error {
	var err error
	switch cfg.Statistics.MaskPolicy {
	case "all", "any":
	default:
		err = multierr.Append(err, fmt.Errorf("statistics.maskPolicy must be all or any, got %q", cfg.Statistics.MaskPolicy))
	}
	for _, b := range cfg.Statistics.Bands {
		if b < 0 {
			err = multierr.Append(err, fmt.Errorf("statistics.bands contains negative index %d", b))
		}
	}
	if cfg.Tiling.TileCols < 0 || cfg.Tiling.TileRows < 0 {
		err = multierr.Append(err, fmt.Errorf("tiling sizes must not be negative"))
	}
	if (cfg.Tiling.TileCols == 0 || cfg.Tiling.TileRows == 0) && cfg.Tiling.MaxTileBytes <= 0 {
		err = multierr.Append(err, fmt.Errorf("tiling needs tileCols/tileRows or a positive maxTileBytes"))
	}
	if cfg.Histogram.Bins < 1 {
		err = multierr.Append(err, fmt.Errorf("histogram.bins must be positive, got %d", cfg.Histogram.Bins))
	}
	if len(cfg.Histogram.Min) != len(cfg.Histogram.Max) {
		err = multierr.Append(err, fmt.Errorf("histogram.min and histogram.max must have the same length"))
	}
	switch cfg.Enhancement.Method {
	case "linear", "gaussian", "equalization", "matching":
	default:
		err = multierr.Append(err, fmt.Errorf("enhancement.method %q is not one of linear, gaussian, equalization, matching", cfg.Enhancement.Method))
	}
	if cfg.Enhancement.OutputLevels < 2 {
		err = multierr.Append(err, fmt.Errorf("enhancement.outputLevels must be at least 2, got %d", cfg.Enhancement.OutputLevels))
	}
	if cfg.Enhancement.GaussianStdDev <= 0 {
		err = multierr.Append(err, fmt.Errorf("enhancement.gaussianStdDev must be positive"))
	}
	if cfg.KMeans.Classes < 1 {
		err = multierr.Append(err, fmt.Errorf("kmeans.classes must be positive, got %d", cfg.KMeans.Classes))
	}
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrConfiguration, err)
	}
	return nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

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

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
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

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
