package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/investigator/pkg/investigator/inference"
	"github.com/cognicore/investigator/pkg/investigator/internalerr"
)

// Engine holds the numeric tunables of inference runs.
type Engine struct {
	GradientStep      float64 `yaml:"gradient_step"`
	Perturbation      float64 `yaml:"perturbation"`
	GradientTolerance float64 `yaml:"gradient_tolerance"`
	ChangeTolerance   float64 `yaml:"change_tolerance"`
	MaxIterations     int     `yaml:"max_iterations"`
	ShallowThreshold  float64 `yaml:"shallow_threshold"`
	DeepThreshold     float64 `yaml:"deep_threshold"`
	NegligibleDelta   float64 `yaml:"negligible_delta"`
	DefaultPrior      float64 `yaml:"default_prior"`
	PersistPosteriors bool    `yaml:"persist_posteriors"`
	// Seed drives the descent perturbation. Zero picks one from the clock.
	Seed uint64 `yaml:"seed"`
}

// DefaultEngine returns the built-in tunables.
func DefaultEngine() Engine {
	p := inference.DefaultParams()
	return Engine{
		GradientStep:      p.GradientStep,
		Perturbation:      p.Perturbation,
		GradientTolerance: p.GradientTolerance,
		ChangeTolerance:   p.ChangeTolerance,
		MaxIterations:     p.MaxIterations,
		ShallowThreshold:  p.ShallowThreshold,
		DeepThreshold:     p.DeepThreshold,
		NegligibleDelta:   p.NegligibleDelta,
		DefaultPrior:      0.5,
		PersistPosteriors: p.PersistPosteriors,
	}
}

// LoadEngine reads engine tunables from a YAML file. Keys missing from the
// file keep their defaults.
func LoadEngine(path string) (Engine, error) {
	cfg := DefaultEngine()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

type field struct {
	key string
	v   float64
}

// Validate checks every tunable is usable.
func (c Engine) Validate() error {
	for _, f := range []field{
		{"gradient_step", c.GradientStep},
		{"perturbation", c.Perturbation},
		{"gradient_tolerance", c.GradientTolerance},
		{"change_tolerance", c.ChangeTolerance},
		{"negligible_delta", c.NegligibleDelta},
	} {
		if f.v <= 0 {
			return fmt.Errorf("%s must be positive, got %v: %w", f.key, f.v, internalerr.ErrInvalidConfig)
		}
	}
	if c.MaxIterations <= 0 {
		return fmt.Errorf("max_iterations must be positive, got %d: %w", c.MaxIterations, internalerr.ErrInvalidConfig)
	}
	for _, f := range []field{
		{"shallow_threshold", c.ShallowThreshold},
		{"deep_threshold", c.DeepThreshold},
		{"default_prior", c.DefaultPrior},
	} {
		if f.v < 0 || f.v > 1 {
			return fmt.Errorf("%s must be in [0,1], got %v: %w", f.key, f.v, internalerr.ErrInvalidConfig)
		}
	}
	return nil
}

// Params converts the config into engine parameters.
func (c Engine) Params() inference.Params {
	return inference.Params{
		GradientStep:      c.GradientStep,
		Perturbation:      c.Perturbation,
		GradientTolerance: c.GradientTolerance,
		ChangeTolerance:   c.ChangeTolerance,
		MaxIterations:     c.MaxIterations,
		ShallowThreshold:  c.ShallowThreshold,
		DeepThreshold:     c.DeepThreshold,
		NegligibleDelta:   c.NegligibleDelta,
		PersistPosteriors: c.PersistPosteriors,
	}
}
