// Package config holds the photo pairs to align and the tuning knobs of
// every aligner, loaded from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration.
type Config struct {
	// OutputDir receives aligned images and the summary. Relative paths are
	// resolved against the working directory.
	OutputDir string `yaml:"output_dir"`
	// Quality is the JPEG quality of written images.
	Quality int `yaml:"quality"`
	// Preview writes a 50% overlay of each aligned pair.
	Preview bool `yaml:"preview"`

	Pairs    []Pair         `yaml:"pairs"`
	Search   SearchConfig   `yaml:"search"`
	Features FeaturesConfig `yaml:"features"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// Pair is one before/after photo pair.
type Pair struct {
	// Name prefixes output files: <name>-before-aligned.jpg.
	Name   string `yaml:"name"`
	Before string `yaml:"before"`
	After  string `yaml:"after"`
	// Crop holds the hand-tuned parameters used by the crop aligner.
	Crop CropPreset `yaml:"crop"`
}

// CropPreset is a fixed scale for the after image and the top-left corner
// of the before-sized window cut from the scaled result.
type CropPreset struct {
	Scale float64 `json:"scale" yaml:"scale"`
	Left  int     `json:"left" yaml:"left"`
	Top   int     `json:"top" yaml:"top"`
}

// SearchConfig tunes the correlation aligners.
type SearchConfig struct {
	// Workers bounds concurrent scale evaluation; 0 means GOMAXPROCS.
	Workers int `yaml:"workers"`
	// Blur is a Gaussian radius applied to thumbnails before scoring.
	Blur float64 `yaml:"blur"`
	// Gradient scores Sobel gradient maps instead of luma.
	Gradient bool `yaml:"gradient"`
	// MaskText neutralizes OCR-detected text (date stamps, watermarks).
	MaskText       bool    `yaml:"mask_text"`
	TextConfidence float64 `yaml:"text_confidence"`
	// Refine runs a second, finer pass around the best candidate.
	Refine bool `yaml:"refine"`
	// Write also produces full-resolution aligned images.
	Write bool `yaml:"write"`
}

// FeaturesConfig tunes the feature-matching aligner.
type FeaturesConfig struct {
	Detector  string  `yaml:"detector"`
	Ratio     float64 `yaml:"ratio"`
	Threshold float64 `yaml:"ransac_threshold"`
	Seed      int64   `yaml:"seed"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Default returns the built-in lawn and garden pairs. The garden photos
// are stored under swapped names, so "before" reads the file named after.
func Default() *Config {
	return &Config{
		OutputDir: ".",
		Quality:   90,
		Pairs: []Pair{
			{
				Name:   "lawn",
				Before: "lawn-transformation-before.jpg",
				After:  "lawn-transformation-after.jpg",
				Crop:   CropPreset{Scale: 1.12, Left: 50, Top: 30},
			},
			{
				Name:   "garden",
				Before: "garden-transformation-after.jpg",
				After:  "garden-transformation-before.jpg",
				Crop:   CropPreset{Scale: 1.05, Left: 20, Top: 0},
			},
		},
		Search: SearchConfig{
			TextConfidence: 0.6,
		},
		Features: FeaturesConfig{
			Detector:  "sift",
			Ratio:     0.7,
			Threshold: 5.0,
			Seed:      1,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML file on top of the defaults, resolves pair paths
// relative to the file's directory, applies environment overrides and
// validates the result. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg.applyEnvOverrides()
			return cfg, cfg.Validate()
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.resolvePaths(filepath.Dir(path))
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) resolvePaths(dir string) {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	for i := range c.Pairs {
		c.Pairs[i].Before = resolve(c.Pairs[i].Before)
		c.Pairs[i].After = resolve(c.Pairs[i].After)
	}
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if dir := os.Getenv("SLIDER_ALIGN_OUT"); dir != "" {
		c.OutputDir = dir
	}
	if level := os.Getenv("SLIDER_ALIGN_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// ValidLevels lists the accepted log levels.
var ValidLevels = []string{"debug", "info", "warn", "error"}

// ValidDetectors lists the accepted feature detectors.
var ValidDetectors = []string{"sift", "orb", "auto"}

// Validate checks the configuration for values no aligner can use.
func (c *Config) Validate() error {
	var errs []error

	if c.Quality < 1 || c.Quality > 100 {
		errs = append(errs, fmt.Errorf("quality %d outside 1..100", c.Quality))
	}
	if len(c.Pairs) == 0 {
		errs = append(errs, errors.New("no pairs configured"))
	}
	seen := make(map[string]bool)
	for i, p := range c.Pairs {
		switch {
		case p.Name == "":
			errs = append(errs, fmt.Errorf("pair %d: missing name", i))
		case seen[p.Name]:
			errs = append(errs, fmt.Errorf("pair %q: duplicate name", p.Name))
		}
		seen[p.Name] = true
		if p.Before == "" || p.After == "" {
			errs = append(errs, fmt.Errorf("pair %q: before and after are required", p.Name))
		}
		if p.Crop.Scale <= 0 {
			errs = append(errs, fmt.Errorf("pair %q: crop scale must be positive", p.Name))
		}
	}
	if c.Search.Workers < 0 {
		errs = append(errs, fmt.Errorf("search.workers must not be negative"))
	}
	if c.Search.TextConfidence < 0 || c.Search.TextConfidence > 1 {
		errs = append(errs, fmt.Errorf("search.text_confidence %.2f outside 0..1", c.Search.TextConfidence))
	}
	if !contains(ValidDetectors, c.Features.Detector) {
		errs = append(errs, fmt.Errorf("invalid detector: %s (valid: %v)", c.Features.Detector, ValidDetectors))
	}
	if c.Features.Ratio <= 0 || c.Features.Ratio >= 1 {
		errs = append(errs, fmt.Errorf("features.ratio %.2f outside (0, 1)", c.Features.Ratio))
	}
	if c.Features.Threshold <= 0 {
		errs = append(errs, fmt.Errorf("features.ransac_threshold must be positive"))
	}
	if !contains(ValidLevels, strings.ToLower(c.Logging.Level)) {
		errs = append(errs, fmt.Errorf("invalid log level: %s (valid: %v)", c.Logging.Level, ValidLevels))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Select returns the pairs named in names, in configuration order. An
// empty names list selects every pair.
func (c *Config) Select(names []string) ([]Pair, error) {
	if len(names) == 0 {
		return c.Pairs, nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []Pair
	for _, p := range c.Pairs {
		if want[p.Name] {
			out = append(out, p)
			delete(want, p.Name)
		}
	}
	if len(want) > 0 {
		missing := make([]string, 0, len(want))
		for _, n := range names {
			if want[n] {
				missing = append(missing, n)
			}
		}
		return nil, fmt.Errorf("unknown pair(s): %s", strings.Join(missing, ", "))
	}
	return out, nil
}

// OutputPath joins name onto the output directory.
func (c *Config) OutputPath(name string) string {
	return filepath.Join(c.OutputDir, name)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
