// Package config loads the TOML configuration of the kuaa binaries.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config is the whole configuration file.
type Config struct {
	Lexicon string        `toml:"lexicon"`
	Solver  SolverConfig  `toml:"solver"`
	Realize RealizeConfig `toml:"realize"`
	Log     LogConfig     `toml:"log"`
	Batch   BatchConfig   `toml:"batch"`
}

// SolverConfig bounds the covering and ordering searches.
type SolverConfig struct {
	// MaxSolutions caps the coverings per sentence; 0 means all.
	MaxSolutions   int `toml:"max_solutions" validate:"gte=0"`
	MaxPropagation int `toml:"max_propagation" validate:"gte=1"`
}

// RealizeConfig controls linearization.
type RealizeConfig struct {
	AllTrans   bool `toml:"all_trans"`
	MaxOutputs int  `toml:"max_outputs" validate:"gte=0"`
}

// LogConfig selects the logger.
type LogConfig struct {
	Level  string `toml:"level" validate:"oneof=debug info warn error"`
	Format string `toml:"format" validate:"oneof=text json"`
}

// BatchConfig sizes the batch worker pool.
type BatchConfig struct {
	Workers int `toml:"workers" validate:"gte=0,lte=256"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Solver:  SolverConfig{MaxSolutions: 1, MaxPropagation: 1000},
		Realize: RealizeConfig{},
		Log:     LogConfig{Level: "info", Format: "text"},
		Batch:   BatchConfig{Workers: 4},
	}
}

var validate = validator.New()

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		msgs := make([]string, len(fieldErrs))
		for i, fe := range fieldErrs {
			msgs[i] = fmt.Sprintf("%s: %q fails %s", fe.Namespace(), fmt.Sprint(fe.Value()), fe.Tag())
		}
		return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
	}
	return nil
}

// Parse decodes TOML over the defaults. Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return Config{}, fmt.Errorf("decode config: %s", strict.String())
		}
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads path. An empty path yields the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}
