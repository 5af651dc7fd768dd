// Package config provides configuration loading for protmetrics.
// It handles loading configuration from YAML files and provides
// default values matching the standard analysis protocol.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML.
type Config struct {
	// Batch parameters
	Batch struct {
		// Suffix filters input files by filename suffix
		Suffix string `yaml:"suffix"`

		// OutputDir receives all per-image and batch artifacts
		OutputDir string `yaml:"outputDir"`
	} `yaml:"batch"`

	// Pipeline parameters
	Pipeline struct {
		// Channel is the 1-based analysis channel index
		Channel int `yaml:"channel"`

		// UseCellMasking excludes cell-body regions from the protrusion mask
		UseCellMasking bool `yaml:"useCellMasking"`

		// UseTopHat enables top-hat conditioning of the working channel
		UseTopHat bool `yaml:"useTopHat"`

		// TopHatRadius is the top-hat structuring-element radius in pixels
		TopHatRadius int `yaml:"topHatRadius"`

		// BlurSigma is the Gaussian smoothing sigma (0 disables)
		BlurSigma float64 `yaml:"blurSigma"`

		// PruneMode selects skeleton pruning: "none" or "size"
		PruneMode string `yaml:"pruneMode"`

		// LengthThreshold is the pruning threshold in physical units
		LengthThreshold float64 `yaml:"lengthThreshold"`

		// ProtrusionPercentile sets the global binarization quantile
		ProtrusionPercentile float64 `yaml:"protrusionPercentile"`

		// VesselnessScales are the tube-enhancement filter scales
		VesselnessScales []float64 `yaml:"vesselnessScales"`
	} `yaml:"pipeline"`

	// Output parameters
	Output struct {
		// SaveIntermediates dumps per-stage images to this directory
		SaveIntermediates string `yaml:"saveIntermediates"`

		// Verbose raises the log level to debug
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Batch.Suffix = ".nd2"
	cfg.Batch.OutputDir = "protmetrics_out"

	cfg.Pipeline.Channel = 1
	cfg.Pipeline.UseCellMasking = false
	cfg.Pipeline.UseTopHat = false
	cfg.Pipeline.TopHatRadius = 25
	cfg.Pipeline.BlurSigma = 2.0
	cfg.Pipeline.PruneMode = "none"
	cfg.Pipeline.LengthThreshold = 0
	cfg.Pipeline.ProtrusionPercentile = 0.90
	cfg.Pipeline.VesselnessScales = []float64{1.0, 2.0, 3.0}

	cfg.Output.Verbose = false

	return cfg
}

// LoadConfig loads configuration from a YAML file. If the file doesn't
// exist, it returns the default configuration.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}
