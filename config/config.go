// Package config provides configuration loading and access for reactor runs.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pthm-cable/vortex/feasibility"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all run configuration parameters.
type Config struct {
	Reactor    ReactorConfig           `yaml:"reactor"`
	Run        RunConfig               `yaml:"run"`
	BField     BFieldConfig            `yaml:"b_field"`
	Forcing    ForcingConfig           `yaml:"forcing"`
	Yield      feasibility.YieldParams `yaml:"yield"`
	Thresholds feasibility.Thresholds  `yaml:"thresholds"`
	Hardware   HardwareConfig          `yaml:"hardware"`
	Telemetry  TelemetryConfig         `yaml:"telemetry"`
	Energy     EnergyConfig            `yaml:"energy"`
	Sweep      SweepConfig             `yaml:"sweep"`
	Optimize   OptimizeConfig          `yaml:"optimize"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// ReactorConfig holds the plasma and grid parameters.
type ReactorConfig struct {
	Grid             []int   `yaml:"grid"`               // [rows, cols]
	Nu               float64 `yaml:"nu"`                 // Viscosity
	Xi               float64 `yaml:"xi"`                 // Bennett profile parameter
	RipplePct        float64 `yaml:"ripple_pct"`         // B-field ripple fraction used by confinement
	TeEV             float64 `yaml:"te_ev"`              // Electron temperature
	NeCm3            float64 `yaml:"ne_cm3"`             // Initial electron density
	EnforceDensity   bool    `yaml:"enforce_density"`    // Allow density enforcement
	InitPoissonIters int     `yaml:"init_poisson_iters"` // Jacobi sweeps at construction
	PoissonIters     int     `yaml:"poisson_iters"`      // Jacobi sweeps per step
}

// RunConfig holds stepping parameters for the headless runner.
type RunConfig struct {
	Steps     int     `yaml:"steps"`
	DT        float64 `yaml:"dt"`
	Seed      int64   `yaml:"seed"`
	LogEvery  int     `yaml:"log_every"`  // Steps between progress logs and CSV rows
	OutputDir string  `yaml:"output_dir"` // Empty disables CSV output
}

// BFieldConfig controls the synthetic magnetic-field series.
type BFieldConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Samples     int     `yaml:"samples"`
	BaseT       float64 `yaml:"base_t"`
	RipplePct   float64 `yaml:"ripple_pct"`   // Noise level of the synthetic series
	AdjustAlpha float64 `yaml:"adjust_alpha"` // Dynamic ripple decay rate; 0 disables
	AdjustEvery int     `yaml:"adjust_every"` // Steps between adjustments
}

// ForcingConfig controls the noise forcing term; zero amplitude disables it.
type ForcingConfig struct {
	Amplitude float64 `yaml:"amplitude"`
	Scale     float64 `yaml:"scale"`
	TimeSpeed float64 `yaml:"time_speed"`
}

// HardwareConfig controls the mock hardware-in-the-loop simulator.
type HardwareConfig struct {
	Enabled   bool    `yaml:"enabled"`
	TimeoutS  float64 `yaml:"timeout_s"`
	DelayMS   int     `yaml:"delay_ms"`
	FailEvery int     `yaml:"fail_every"`
	Load      string  `yaml:"load"` // Non-empty marks the hardware as under high load
}

// TelemetryConfig holds timeline and metrics settings.
type TelemetryConfig struct {
	TimelinePath string `yaml:"timeline_path"` // Empty disables feasibility checks
	ProgressPath string `yaml:"progress_path"`
	Budget       *int   `yaml:"budget"` // Null means unlimited
	PerfWindow   int    `yaml:"perf_window"`
	MetricsAddr  string `yaml:"metrics_addr"` // Empty disables /metrics
}

// EnergyConfig holds power accounting settings; zero power uses the time proxy.
type EnergyConfig struct {
	PowerW  float64 `yaml:"power_w"`
	Channel string  `yaml:"channel"`
}

// SweepConfig holds the xi/ripple grid for ensemble runs.
type SweepConfig struct {
	XiMin       float64 `yaml:"xi_min"`
	XiMax       float64 `yaml:"xi_max"`
	XiSteps     int     `yaml:"xi_steps"`
	RippleMin   float64 `yaml:"ripple_min"`
	RippleMax   float64 `yaml:"ripple_max"`
	RippleSteps int     `yaml:"ripple_steps"`
	Steps       int     `yaml:"steps"`
	Workers     int     `yaml:"workers"`
}

// OptimizeConfig holds CMA-ES and UQ settings for cmd/optimize.
type OptimizeConfig struct {
	Evaluations int                          `yaml:"evaluations"`
	Population  int                          `yaml:"population"`
	UQSamples   int                          `yaml:"uq_samples"`
	Ranges      map[string]feasibility.Range `yaml:"ranges"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	Rows            int
	Cols            int
	HardwareTimeout time.Duration
	HardwareDelay   time.Duration
	YieldModel      feasibility.YieldModel
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Defaults returns the embedded defaults.
func Defaults() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults: %v", err))
	}
	return cfg
}

// Load loads configuration from a YAML (or JSON) file, merging with embedded
// defaults. If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	// Start with embedded defaults
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	// Load user config if provided
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.computeDerived(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ErrGrid is returned when reactor.grid is not two positive integers.
var ErrGrid = errors.New("reactor.grid must be two positive integers")

// computeDerived validates and calculates values derived from loaded config.
func (c *Config) computeDerived() error {
	if len(c.Reactor.Grid) != 2 || c.Reactor.Grid[0] <= 0 || c.Reactor.Grid[1] <= 0 {
		return fmt.Errorf("%w, got %v", ErrGrid, c.Reactor.Grid)
	}
	c.Derived.Rows = c.Reactor.Grid[0]
	c.Derived.Cols = c.Reactor.Grid[1]

	model, err := feasibility.ParseYieldModel(string(c.Yield.Model))
	if err != nil {
		return fmt.Errorf("yield.model: %w", err)
	}
	c.Derived.YieldModel = model

	// Zero thresholds fall back to the built-in gates
	c.Thresholds = c.Thresholds.Merge(feasibility.DefaultThresholds())

	if c.Hardware.TimeoutS <= 0 {
		c.Hardware.TimeoutS = 60
	}
	c.Derived.HardwareTimeout = time.Duration(c.Hardware.TimeoutS * float64(time.Second))
	c.Derived.HardwareDelay = time.Duration(c.Hardware.DelayMS) * time.Millisecond

	if c.Telemetry.PerfWindow < 1 {
		c.Telemetry.PerfWindow = 60
	}
	if c.Run.LogEvery < 1 {
		c.Run.LogEvery = 1
	}
	if c.BField.AdjustEvery < 1 {
		c.BField.AdjustEvery = 1
	}
	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
