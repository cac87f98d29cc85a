package modules

import (
	"fmt"

	"github.com/cible-colibri/colibri-poc-sub000/internal/field"
	"github.com/cible-colibri/colibri-poc-sub000/internal/kernel"
)

type ConstantConfig struct {
	// Output names the emitted field, so a constant can stand in for any
	// scalar producer under automatic linking.
	Output string  `yaml:"output"`
	Value  float64 `yaml:"value"`
	Unit   string  `yaml:"unit"`
}

func DefaultConstantConfig() ConstantConfig {
	return ConstantConfig{Output: "value"}
}

func (c ConstantConfig) Validate() error {
	if c.Output == "" {
		return fmt.Errorf("constant: output name is empty")
	}
	if c.Output == "level" {
		return fmt.Errorf("constant: output name %q is reserved", c.Output)
	}
	return nil
}

// Constant copies its "level" parameter to a single output.
type Constant struct {
	kernel.Base
	cfg ConstantConfig

	level field.Port[float64]
	out   field.Port[float64]
}

func NewConstant(name string, cfg ConstantConfig) *Constant {
	return &Constant{Base: kernel.NewBase(name), cfg: cfg}
}

func (c *Constant) Kind() string { return "constant" }

func (c *Constant) RegisterFields(r *field.Registry) {
	c.level = field.Parameter(r, "level", c.cfg.Value, field.WithUnit(c.cfg.Unit))
	c.out = field.Output(r, c.cfg.Output, c.cfg.Value, field.WithUnit(c.cfg.Unit))
}

func (c *Constant) Initialize() (bool, error) {
	c.out.Set(c.level.Get())
	return true, nil
}

func (c *Constant) Run(timeStep, iteration int) error {
	c.out.Set(c.level.Get())
	return nil
}
