// Package config loads the yaml run configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wlattner/sdm/explain"
	"github.com/wlattner/sdm/model"
)

type Config struct {
	Seed          int64   `yaml:"seed"`
	TrainFraction float64 `yaml:"train_fraction"`
	TopFeatures   int     `yaml:"top_features"`
	Dictionary    string  `yaml:"dictionary"` // empty uses the embedded WorldClim table
	ResultsDB     string  `yaml:"results_db"` // empty disables the store
	OutputDir     string  `yaml:"output_dir"`

	Provider ProviderConfig  `yaml:"provider"`
	Forest   ForestConfig    `yaml:"forest"`
	Explain  ExplainConfig   `yaml:"explain"`
	Predict  PredictConfig   `yaml:"predict"`
	Species  []SpeciesConfig `yaml:"species"`
}

type ProviderConfig struct {
	Root       string        `yaml:"root"`
	Timeout    time.Duration `yaml:"timeout"`
	MinRecords int           `yaml:"min_records"`
}

type ForestConfig struct {
	Trees       int    `yaml:"trees"`
	MaxFeatures int    `yaml:"max_features"` // -1 is sqrt(features)
	MinSplit    int    `yaml:"min_split"`
	MinLeaf     int    `yaml:"min_leaf"`
	MaxDepth    int    `yaml:"max_depth"` // -1 is unlimited
	Impurity    string `yaml:"impurity"`
	Workers     int    `yaml:"workers"`
	OOB         bool   `yaml:"oob"`
}

type ExplainConfig struct {
	ALEFeatures    int     `yaml:"ale_features"`
	ALEBins        int     `yaml:"ale_bins"`
	Instances      int     `yaml:"instances"`
	Replace        string  `yaml:"replace"`
	Samples        int     `yaml:"samples"`
	KernelWidth    float64 `yaml:"kernel_width"` // 0 is 0.75*sqrt(features)
	Ridge          float64 `yaml:"ridge"`
	TopK           int     `yaml:"top_k"`
	SurrogateDepth int     `yaml:"surrogate_depth"` // 0 disables
}

type PredictConfig struct {
	Workers   int           `yaml:"workers"` // 0 is GOMAXPROCS
	ChunkRows int           `yaml:"chunk_rows"`
	Timeout   time.Duration `yaml:"timeout"`
}

type SpeciesConfig struct {
	Name       string `yaml:"name"`
	MaxRecords int    `yaml:"max_records"`
	Resolution string `yaml:"resolution"`
	Replace    string `yaml:"replace"` // overrides explain.replace
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Seed:          42,
		TrainFraction: 0.7,
		TopFeatures:   5,
		OutputDir:     "out",
		Provider: ProviderConfig{
			Root:       "data",
			Timeout:    30 * time.Second,
			MinRecords: 10,
		},
		Forest: ForestConfig{
			Trees:       100,
			MaxFeatures: -1,
			MinSplit:    2,
			MinLeaf:     1,
			MaxDepth:    -1,
			Impurity:    "gini",
			Workers:     4,
			OOB:         true,
		},
		Explain: ExplainConfig{
			ALEFeatures: 2,
			ALEBins:     10,
			Instances:   3,
			Replace:     string(explain.Auto),
			Samples:     5000,
			Ridge:       1,
			TopK:        5,
		},
		Predict: PredictConfig{
			ChunkRows: 64,
			Timeout:   10 * time.Minute,
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.TopFeatures <= 0 {
		cfg.TopFeatures = 5
	}
	if cfg.Provider.MinRecords <= 0 {
		cfg.Provider.MinRecords = 1
	}
	if cfg.Forest.Trees <= 0 {
		cfg.Forest.Trees = 100
	}
	if cfg.Forest.Workers <= 0 {
		cfg.Forest.Workers = 1
	}
	if cfg.Explain.ALEFeatures <= 0 {
		cfg.Explain.ALEFeatures = 2
	}
	if cfg.Explain.ALEBins <= 0 {
		cfg.Explain.ALEBins = 10
	}
	if cfg.Explain.Instances <= 0 {
		cfg.Explain.Instances = 3
	}
	if cfg.Explain.Samples <= 0 {
		cfg.Explain.Samples = 5000
	}
	if cfg.Explain.Ridge <= 0 {
		cfg.Explain.Ridge = 1
	}
	if cfg.Explain.TopK <= 0 {
		cfg.Explain.TopK = 5
	}
	if cfg.Predict.ChunkRows <= 0 {
		cfg.Predict.ChunkRows = 64
	}
}

// Validate reports settings that cannot be clamped to a default.
func (c *Config) Validate() error {
	var errs []error
	if c.TrainFraction <= 0 || c.TrainFraction >= 1 {
		errs = append(errs, fmt.Errorf("train_fraction %v outside (0, 1)", c.TrainFraction))
	}
	if _, err := model.ParseImpurity(c.Forest.Impurity); err != nil {
		errs = append(errs, fmt.Errorf("forest.impurity: %w", err))
	}
	if _, err := explain.ParseReplacePolicy(c.Explain.Replace); err != nil {
		errs = append(errs, fmt.Errorf("explain.replace: %w", err))
	}
	seen := make(map[string]bool, len(c.Species))
	for i, sp := range c.Species {
		if sp.Name == "" {
			errs = append(errs, fmt.Errorf("species[%d]: empty name", i))
		}
		if seen[sp.Name] {
			errs = append(errs, fmt.Errorf("species[%d]: duplicate %q", i, sp.Name))
		}
		seen[sp.Name] = true
		if _, err := explain.ParseReplacePolicy(sp.Replace); sp.Replace != "" && err != nil {
			errs = append(errs, fmt.Errorf("species[%d].replace: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Trainer returns the forest trainer described by the forest section.
func (c *Config) Trainer() model.RandomForest {
	f := c.Forest
	return model.RandomForest{
		Trees:       f.Trees,
		MaxFeatures: f.MaxFeatures,
		MinSplit:    f.MinSplit,
		MinLeaf:     f.MinLeaf,
		MaxDepth:    f.MaxDepth,
		Impurity:    f.Impurity,
		Workers:     f.Workers,
		OOB:         f.OOB,
	}
}

// Select returns the species named in names, in configuration order, or
// every species when names is empty.
func (c *Config) Select(names []string) ([]SpeciesConfig, error) {
	if len(names) == 0 {
		return c.Species, nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []SpeciesConfig
	for _, sp := range c.Species {
		if want[sp.Name] {
			out = append(out, sp)
			delete(want, sp.Name)
		}
	}
	for _, n := range names {
		if want[n] {
			return nil, fmt.Errorf("species %q is not configured", n)
		}
	}
	return out, nil
}
