package config

import (
	"bytes"
	"errors"
	"fmt"
	"maps"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cible-colibri/colibri-poc-sub000/internal/kernel"
)

const (
	DefaultTimeSteps     = 24
	DefaultMaxIterations = kernel.DefaultMaxIterations
	DefaultInitPasses    = kernel.DefaultInitPasses
)

// Config describes one simulation scheme: the modules to build, how they are
// wired and how the orchestrator iterates.
type Config struct {
	Name                  string         `yaml:"name"`
	TimeSteps             int            `yaml:"time_steps"`
	IterateForConvergence bool           `yaml:"iterate_for_convergence"`
	MaxIterations         int            `yaml:"maximum_number_of_iterations"`
	InitStrategy          string         `yaml:"init_strategy"`
	InitPasses            int            `yaml:"init_passes"`
	AutoLink              bool           `yaml:"auto_link"`
	Modules               []ModuleConfig `yaml:"modules"`
	Links                 []LinkConfig   `yaml:"links,omitempty"`
}

type ModuleConfig struct {
	Name   string         `yaml:"name"`
	Type   string         `yaml:"type"`
	Params map[string]any `yaml:"params,omitempty"`
}

// LinkConfig wires two "module.field[index]" addresses.
type LinkConfig struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

func DefaultConfig() *Config {
	return &Config{
		Name:                  "scheme",
		TimeSteps:             DefaultTimeSteps,
		IterateForConvergence: true,
		MaxIterations:         DefaultMaxIterations,
		InitStrategy:          kernel.InitTopological.String(),
		InitPasses:            DefaultInitPasses,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a scheme over the defaults. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks everything that can be checked without building modules.
// Field names are only known once modules exist, so links are checked for
// syntax and module names here and resolved later by the orchestrator.
func (c *Config) Validate() error {
	var errs []error
	if c.TimeSteps <= 0 {
		errs = append(errs, fmt.Errorf("time_steps must be positive, got %d", c.TimeSteps))
	}
	if c.MaxIterations < 0 {
		errs = append(errs, fmt.Errorf("maximum_number_of_iterations must not be negative, got %d", c.MaxIterations))
	}
	if c.InitPasses < 0 {
		errs = append(errs, fmt.Errorf("init_passes must not be negative, got %d", c.InitPasses))
	}
	if _, err := kernel.ParseInitStrategy(c.InitStrategy); err != nil {
		errs = append(errs, err)
	}

	if len(c.Modules) == 0 {
		errs = append(errs, errors.New("no modules"))
	}
	names := make(map[string]bool, len(c.Modules))
	for i, m := range c.Modules {
		switch {
		case m.Name == "":
			errs = append(errs, fmt.Errorf("modules[%d]: missing name", i))
		case names[m.Name]:
			errs = append(errs, fmt.Errorf("modules[%d]: duplicate name %q", i, m.Name))
		}
		if m.Type == "" {
			errs = append(errs, fmt.Errorf("modules[%d] %q: missing type", i, m.Name))
		}
		names[m.Name] = true
	}

	for i, l := range c.Links {
		for _, raw := range []string{l.From, l.To} {
			addr, err := kernel.ParseAddress(raw)
			if err != nil {
				errs = append(errs, fmt.Errorf("links[%d]: %w", i, err))
				continue
			}
			if !names[addr.Module] {
				errs = append(errs, fmt.Errorf("links[%d]: %w: %s", i, kernel.ErrUnknownModule, addr.Module))
			}
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: invalid scheme %q: %w", c.Name, err)
	}
	return nil
}

// Strategy returns the parsed init strategy. Call Validate first.
func (c *Config) Strategy() kernel.InitStrategy {
	s, _ := kernel.ParseInitStrategy(c.InitStrategy)
	return s
}

// Clone returns a copy that shares nothing mutable with c. Parameter values
// are copied one level deep, which is all scheme files produce for scalars.
func (c *Config) Clone() *Config {
	out := *c
	out.Modules = make([]ModuleConfig, len(c.Modules))
	for i, m := range c.Modules {
		out.Modules[i] = ModuleConfig{Name: m.Name, Type: m.Type, Params: maps.Clone(m.Params)}
	}
	out.Links = append([]LinkConfig(nil), c.Links...)
	return &out
}
