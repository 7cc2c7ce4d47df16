package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/yyyoichi/impute/svt"
	"gopkg.in/yaml.v3"
)

// problemConfig describes a synthetic completion problem and how to solve it.
type problemConfig struct {
	Rows     int     `yaml:"rows"`
	Cols     int     `yaml:"cols"`
	Rank     int     `yaml:"rank"`
	Fraction float64 `yaml:"fraction"`
	Noise    float64 `yaml:"noise"`
	Seed     uint64  `yaml:"seed"`

	Alphas int     `yaml:"alphas"`
	Decay  float64 `yaml:"decay"`

	Solver    string  `yaml:"solver"`
	Method    string  `yaml:"method"`
	Threshold string  `yaml:"threshold"`
	MaxIters  int     `yaml:"max_iters"`
	Tol       float64 `yaml:"tol"`
}

func loadConfig(path string) (problemConfig, error) {
	var cfg problemConfig
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.setDefaults()
	return cfg, cfg.validate()
}

func (c *problemConfig) setDefaults() {
	if c.Rows == 0 {
		c.Rows = 50
	}
	if c.Cols == 0 {
		c.Cols = 40
	}
	if c.Rank == 0 {
		c.Rank = 3
	}
	if c.Fraction == 0 {
		c.Fraction = 0.5
	}
	if c.Seed == 0 {
		c.Seed = svt.DefaultSeed
	}
	if c.Alphas == 0 {
		c.Alphas = 10
	}
	if c.Decay == 0 {
		c.Decay = 0.5
	}
	if c.Solver == "" {
		c.Solver = "softimpute"
	}
	if c.Method == "" {
		c.Method = "exact"
	}
	if c.Threshold == "" {
		c.Threshold = "soft"
	}
	if c.MaxIters == 0 {
		c.MaxIters = 100
	}
}

func (c problemConfig) validate() error {
	var result *multierror.Error
	if c.Rows < 1 || c.Cols < 1 {
		result = multierror.Append(result, fmt.Errorf("dimensions must be positive, got %dx%d", c.Rows, c.Cols))
	}
	if c.Rank < 1 || c.Rank > min(c.Rows, c.Cols) {
		result = multierror.Append(result, fmt.Errorf("rank %d out of range", c.Rank))
	}
	if c.Fraction <= 0 || c.Fraction > 1 {
		result = multierror.Append(result, fmt.Errorf("fraction must be in (0, 1], got %g", c.Fraction))
	}
	if c.Noise < 0 {
		result = multierror.Append(result, fmt.Errorf("noise must not be negative, got %g", c.Noise))
	}
	if c.Alphas < 1 {
		result = multierror.Append(result, errors.New("alphas must be positive"))
	}
	if c.Decay <= 0 || c.Decay >= 1 {
		result = multierror.Append(result, fmt.Errorf("decay must be in (0, 1), got %g", c.Decay))
	}
	if c.Solver != "softimpute" && c.Solver != "fpc" {
		result = multierror.Append(result, fmt.Errorf("unknown solver %q", c.Solver))
	}
	if _, err := c.svtConfig(); err != nil {
		result = multierror.Append(result, err)
	}
	if c.MaxIters < 1 {
		result = multierror.Append(result, fmt.Errorf("max_iters must be positive, got %d", c.MaxIters))
	}
	if c.Tol < 0 {
		result = multierror.Append(result, fmt.Errorf("tol must not be negative, got %g", c.Tol))
	}
	return result.ErrorOrNil()
}

func (c problemConfig) svtConfig() (svt.Config, error) {
	var cfg svt.Config
	switch c.Method {
	case "exact":
		cfg.Method = svt.Exact
	case "randomized":
		cfg.Method = svt.Randomized
	default:
		return cfg, fmt.Errorf("unknown svd method %q", c.Method)
	}
	switch c.Threshold {
	case "soft":
		cfg.Threshold = svt.Soft
	case "hard":
		cfg.Threshold = svt.Hard
	default:
		return cfg, fmt.Errorf("unknown threshold %q", c.Threshold)
	}
	return cfg, nil
}
