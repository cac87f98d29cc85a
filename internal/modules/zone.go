package modules

import (
	"fmt"
	"math"

	"github.com/cible-colibri/colibri-poc-sub000/internal/field"
	"github.com/cible-colibri/colibri-poc-sub000/internal/kernel"
)

type ZoneConfig struct {
	// Capacitance is the lumped heat capacity of air and furniture, J/K.
	Capacitance float64 `yaml:"capacitance"`
	// Conductance is the envelope heat loss coefficient UA, W/K.
	Conductance float64 `yaml:"conductance"`
	// WindowArea times SolarFactor converts irradiance into gains, m2.
	WindowArea         float64 `yaml:"window_area"`
	SolarFactor        float64 `yaml:"solar_factor"`
	InitialTemperature float64 `yaml:"initial_temperature"`
	TimeStepSeconds    float64 `yaml:"time_step_seconds"`
	Tolerance          float64 `yaml:"tolerance"`
	// MaxIterations lets the zone temperature stop holding a time step back
	// after that many passes. Zero means no limit of its own.
	MaxIterations int `yaml:"max_iterations"`
}

func DefaultZoneConfig() ZoneConfig {
	return ZoneConfig{
		Capacitance:        5e6,
		Conductance:        150,
		WindowArea:         4,
		SolarFactor:        0.6,
		InitialTemperature: 19,
		TimeStepSeconds:    3600,
		Tolerance:          1e-3,
	}
}

func (c ZoneConfig) Validate() error {
	switch {
	case c.Capacitance <= 0:
		return fmt.Errorf("zone: capacitance must be positive, got %g", c.Capacitance)
	case c.Conductance < 0:
		return fmt.Errorf("zone: conductance must not be negative, got %g", c.Conductance)
	case c.TimeStepSeconds <= 0:
		return fmt.Errorf("zone: time_step_seconds must be positive, got %g", c.TimeStepSeconds)
	case c.Tolerance <= 0:
		return fmt.Errorf("zone: tolerance must be positive, got %g", c.Tolerance)
	case c.MaxIterations < 0:
		return fmt.Errorf("zone: max_iterations must not be negative, got %d", c.MaxIterations)
	}
	return nil
}

// Zone is a single air node coupled to the outdoors through a conductance,
// integrated with implicit Euler:
//
//	C (T - T_prev) / dt = UA (T_out - T) + Q_heat + A g I
//
// The outdoor temperature has no usable default, so the zone only reports
// itself initialized once a linked value has arrived.
type Zone struct {
	kernel.Base
	cfg ZoneConfig

	timeStep    field.Port[float64]
	outdoor     field.Port[float64]
	heating     field.Port[float64]
	irradiance  field.Port[float64]
	temperature field.Port[float64]

	previous float64
	tracker  *field.Tracker
}

func NewZone(name string, cfg ZoneConfig) *Zone {
	return &Zone{Base: kernel.NewBase(name), cfg: cfg, previous: cfg.InitialTemperature}
}

func (z *Zone) Kind() string { return "zone" }

func (z *Zone) RegisterFields(r *field.Registry) {
	z.timeStep = field.Parameter(r, "time_step_seconds", z.cfg.TimeStepSeconds, field.WithUnit("s"))
	z.outdoor = field.Input(r, "outdoor_temperature", math.NaN(), field.WithUnit("°C"))
	z.heating = field.Input(r, "heating_power", 0.0, field.WithUnit("W"))
	z.irradiance = field.Input(r, "solar_irradiance", 0.0, field.WithUnit("W/m2"))
	z.temperature = field.Output(r, "zone_temperature", z.cfg.InitialTemperature,
		field.WithUnit("°C"),
		field.WithBounds(-30, 60),
		field.WithConvergence(z.cfg.Tolerance, z.cfg.MaxIterations))
	z.tracker = field.NewTracker(r)
}

func (z *Zone) Initialize() (bool, error) {
	if math.IsNaN(z.outdoor.Get()) {
		return false, nil
	}
	z.previous = z.cfg.InitialTemperature
	z.temperature.Set(z.previous)
	return true, nil
}

func (z *Zone) Run(timeStep, iteration int) error {
	storage := z.cfg.Capacitance / z.timeStep.Get()
	gains := z.heating.Get() + z.cfg.WindowArea*z.cfg.SolarFactor*z.irradiance.Get()

	// without an outdoor temperature the envelope is treated as adiabatic
	ua, outdoor := z.cfg.Conductance, z.outdoor.Get()
	if math.IsNaN(outdoor) {
		ua, outdoor = 0, 0
	}

	t := (storage*z.previous + ua*outdoor + gains) / (storage + ua)
	z.temperature.Set(t)
	return nil
}

func (z *Zone) HasConverged(timeStep, iteration int) bool {
	return z.tracker.Converged(iteration)
}

func (z *Zone) EndTimeStep(timeStep int) {
	z.previous = z.temperature.Get()
	z.tracker.Reset()
}

// Temperature returns the current zone temperature.
func (z *Zone) Temperature() float64 { return z.temperature.Get() }
