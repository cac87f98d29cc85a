package modules

import (
	"fmt"

	"github.com/cible-colibri/colibri-poc-sub000/internal/field"
	"github.com/cible-colibri/colibri-poc-sub000/internal/kernel"
)

type EmitterConfig struct {
	Setpoint float64 `yaml:"setpoint"`
	// Gain is the proportional band, W/K.
	Gain     float64 `yaml:"gain"`
	MaxPower float64 `yaml:"max_power"`
}

func DefaultEmitterConfig() EmitterConfig {
	return EmitterConfig{Setpoint: 20, Gain: 400, MaxPower: 3000}
}

func (c EmitterConfig) Validate() error {
	if c.Gain < 0 {
		return fmt.Errorf("emitter: gain must not be negative, got %g", c.Gain)
	}
	if c.MaxPower < 0 {
		return fmt.Errorf("emitter: max_power must not be negative, got %g", c.MaxPower)
	}
	return nil
}

// Emitter is a proportional heater: it delivers Gain watts per kelvin below
// the setpoint, clamped to [0, MaxPower].
type Emitter struct {
	kernel.Base
	cfg EmitterConfig

	setpoint    field.Port[float64]
	temperature field.Port[float64]
	power       field.Port[float64]
}

func NewEmitter(name string, cfg EmitterConfig) *Emitter {
	return &Emitter{Base: kernel.NewBase(name), cfg: cfg}
}

func (e *Emitter) Kind() string { return "emitter" }

func (e *Emitter) RegisterFields(r *field.Registry) {
	e.setpoint = field.Parameter(r, "setpoint", e.cfg.Setpoint, field.WithUnit("°C"))
	e.temperature = field.Input(r, "zone_temperature", e.cfg.Setpoint, field.WithUnit("°C"))
	e.power = field.Output(r, "heating_power", 0.0, field.WithUnit("W"), field.WithBounds(0, e.cfg.MaxPower))
}

func (e *Emitter) Initialize() (bool, error) { return true, nil }

func (e *Emitter) Run(timeStep, iteration int) error {
	p := e.cfg.Gain * (e.setpoint.Get() - e.temperature.Get())
	e.power.Set(min(max(p, 0), e.cfg.MaxPower))
	return nil
}

func (e *Emitter) Power() float64 { return e.power.Get() }
