// Package config provides configuration loading and management for profilemodel.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/soniakeys/unit"
	"gopkg.in/yaml.v3"

	"profilemodel/pkg/profile"
	"profilemodel/pkg/simulate"
)

// Config represents the application configuration loaded from YAML.
// Angles are given in degrees.
type Config struct {
	// Profile model parameters
	Profile struct {
		// Algorithm is the mosaic spread strategy: "basic" or "extended"
		Algorithm string `yaml:"algorithm"`

		// MinZeta is the smallest |zeta| used for mosaic spread estimation
		MinZeta float64 `yaml:"minZeta"`

		// ScanVarying computes per-frame smoothed parameters
		ScanVarying bool `yaml:"scanVarying"`

		// MaxIterations caps each optimisation, 0 for the default
		MaxIterations int `yaml:"maxIterations"`
	} `yaml:"profile"`

	// Processing parameters
	Processing struct {
		// NumCores specifies how many frames or experiments run concurrently
		NumCores int `yaml:"numCores"`
	} `yaml:"processing"`

	// Output parameters
	Output struct {
		// Verbose enables progress logging
		Verbose bool `yaml:"verbose"`

		// ReportFile is where the YAML report is written; empty disables it
		ReportFile string `yaml:"reportFile"`
	} `yaml:"output"`

	// Simulation parameters for the synthetic experiment
	Simulation struct {
		Frames      int     `yaml:"frames"`
		StartAngle  float64 `yaml:"startAngle"`
		Oscillation float64 `yaml:"oscillation"`
		SigmaB      float64 `yaml:"sigmaB"`
		SigmaM      float64 `yaml:"sigmaM"`
		Reflections int     `yaml:"reflections"`
		Intensity   float64 `yaml:"intensity"`
		Noise       bool    `yaml:"noise"`
		Seed        uint64  `yaml:"seed"`
	} `yaml:"simulation"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default profile parameters
	cfg.Profile.Algorithm = profile.AlgorithmBasic.String()
	cfg.Profile.MinZeta = profile.DefaultMinZeta
	cfg.Profile.ScanVarying = false
	cfg.Profile.MaxIterations = 0

	// Set default processing parameters
	cfg.Processing.NumCores = runtime.NumCPU() // Use all available cores by default

	// Set default output parameters
	cfg.Output.Verbose = true
	cfg.Output.ReportFile = ""

	// Set default simulation parameters
	sim := simulate.DefaultParams()
	cfg.Simulation.Frames = sim.Frames
	cfg.Simulation.StartAngle = unit.Angle(sim.StartAngle).Deg()
	cfg.Simulation.Oscillation = unit.Angle(sim.Oscillation).Deg()
	cfg.Simulation.SigmaB = unit.Angle(sim.SigmaB).Deg()
	cfg.Simulation.SigmaM = unit.Angle(sim.SigmaM).Deg()
	cfg.Simulation.Reflections = sim.Reflections
	cfg.Simulation.Intensity = sim.Intensity
	cfg.Simulation.Noise = sim.Noise
	cfg.Simulation.Seed = sim.Seed

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

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
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

// Validate checks the configuration for values that can never work
func (c *Config) Validate() error {
	if _, err := c.ProfileOptions(); err != nil {
		return err
	}
	if _, err := c.SimulationParams(); err != nil {
		return err
	}
	return nil
}

// ProfileOptions converts the profile and processing sections into
// calculator options. Logging is left for the caller to attach.
func (c *Config) ProfileOptions() (profile.Options, error) {
	alg, err := profile.ParseAlgorithm(c.Profile.Algorithm)
	if err != nil {
		return profile.Options{}, err
	}
	opts := profile.Options{
		Algorithm:     alg,
		MinZeta:       c.Profile.MinZeta,
		MaxIterations: c.Profile.MaxIterations,
		Workers:       c.Processing.NumCores,
	}
	if err := opts.Validate(); err != nil {
		return profile.Options{}, err
	}
	return opts, nil
}

// SimulationParams converts the simulation section into generator
// parameters, filling detector and beam settings from the defaults
func (c *Config) SimulationParams() (simulate.Params, error) {
	p := simulate.DefaultParams()
	p.Frames = c.Simulation.Frames
	p.StartAngle = unit.AngleFromDeg(c.Simulation.StartAngle).Rad()
	p.Oscillation = unit.AngleFromDeg(c.Simulation.Oscillation).Rad()
	p.SigmaB = unit.AngleFromDeg(c.Simulation.SigmaB).Rad()
	p.SigmaM = unit.AngleFromDeg(c.Simulation.SigmaM).Rad()
	p.Reflections = c.Simulation.Reflections
	p.Intensity = c.Simulation.Intensity
	p.Noise = c.Simulation.Noise
	p.Seed = c.Simulation.Seed
	if err := p.Validate(); err != nil {
		return simulate.Params{}, err
	}
	return p, nil
}
