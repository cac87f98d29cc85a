package modules

import (
	"fmt"

	"github.com/cible-colibri/colibri-poc-sub000/internal/field"
	"github.com/cible-colibri/colibri-poc-sub000/internal/kernel"
)

type ThermostatConfig struct {
	Setpoint float64 `yaml:"setpoint"`
	Kp       float64 `yaml:"kp"` // W/K
	Ki       float64 `yaml:"ki"` // W/(K.s)
	Kd       float64 `yaml:"kd"` // J/K
	MaxPower float64 `yaml:"max_power"`

	TimeStepSeconds float64 `yaml:"time_step_seconds"`
}

func DefaultThermostatConfig() ThermostatConfig {
	return ThermostatConfig{Setpoint: 20, Kp: 400, Ki: 0.05, MaxPower: 5000, TimeStepSeconds: 3600}
}

func (c ThermostatConfig) Validate() error {
	switch {
	case c.Kp < 0 || c.Ki < 0 || c.Kd < 0:
		return fmt.Errorf("thermostat: gains must not be negative, got kp=%g ki=%g kd=%g", c.Kp, c.Ki, c.Kd)
	case c.MaxPower < 0:
		return fmt.Errorf("thermostat: max_power must not be negative, got %g", c.MaxPower)
	case c.TimeStepSeconds <= 0:
		return fmt.Errorf("thermostat: time_step_seconds must be positive, got %g", c.TimeStepSeconds)
	}
	return nil
}

// Thermostat drives a heater with a PID law on the zone temperature error.
//
// The integral and the previous error only move at the end of a time step:
// every pass of the same step starts from the same controller state, so
// repeating a pass with the same inputs gives the same power. The integral
// is frozen while the output saturates.
type Thermostat struct {
	kernel.Base
	cfg ThermostatConfig

	setpoint    field.Port[float64]
	timeStep    field.Port[float64]
	temperature field.Port[float64]
	power       field.Port[float64]

	integral  float64
	prevErr   float64
	first     bool
	lastErr   float64
	saturated bool
}

func NewThermostat(name string, cfg ThermostatConfig) *Thermostat {
	return &Thermostat{Base: kernel.NewBase(name), cfg: cfg, first: true}
}

func (c *Thermostat) Kind() string { return "thermostat" }

func (c *Thermostat) RegisterFields(r *field.Registry) {
	c.setpoint = field.Parameter(r, "setpoint", c.cfg.Setpoint, field.WithUnit("°C"))
	c.timeStep = field.Parameter(r, "time_step_seconds", c.cfg.TimeStepSeconds, field.WithUnit("s"))
	c.temperature = field.Input(r, "zone_temperature", c.cfg.Setpoint, field.WithUnit("°C"))
	c.power = field.Output(r, "heating_power", 0.0, field.WithUnit("W"), field.WithBounds(0, c.cfg.MaxPower))
}

func (c *Thermostat) Initialize() (bool, error) {
	c.integral, c.prevErr, c.first = 0, 0, true
	return true, nil
}

func (c *Thermostat) Run(timeStep, iteration int) error {
	dt := c.timeStep.Get()
	err := c.setpoint.Get() - c.temperature.Get()

	u := c.cfg.Kp*err + c.cfg.Ki*(c.integral+err*dt)
	if !c.first {
		u += c.cfg.Kd * (err - c.prevErr) / dt
	}

	c.lastErr = err
	c.saturated = u < 0 || u > c.cfg.MaxPower
	c.power.Set(min(max(u, 0), c.cfg.MaxPower))
	return nil
}

func (c *Thermostat) EndTimeStep(timeStep int) {
	if !c.saturated {
		c.integral += c.lastErr * c.timeStep.Get()
	}
	c.prevErr, c.first = c.lastErr, false
}

func (c *Thermostat) Power() float64 { return c.power.Get() }
