package modules

import (
	"fmt"
	"math"

	"github.com/cible-colibri/colibri-poc-sub000/internal/field"
	"github.com/cible-colibri/colibri-poc-sub000/internal/kernel"
)

type WeatherConfig struct {
	MeanTemperature float64 `yaml:"mean_temperature"`
	Amplitude       float64 `yaml:"amplitude"`
	PeakIrradiance  float64 `yaml:"peak_irradiance"`
	TimeStepSeconds float64 `yaml:"time_step_seconds"`
	// StartHour shifts time step 0 within the day.
	StartHour float64 `yaml:"start_hour"`
}

func DefaultWeatherConfig() WeatherConfig {
	return WeatherConfig{
		MeanTemperature: 5.0,
		Amplitude:       6.0,
		PeakIrradiance:  500.0,
		TimeStepSeconds: 3600.0,
	}
}

func (c WeatherConfig) Validate() error {
	if c.TimeStepSeconds <= 0 {
		return fmt.Errorf("weather: time_step_seconds must be positive, got %g", c.TimeStepSeconds)
	}
	if c.Amplitude < 0 || c.PeakIrradiance < 0 {
		return fmt.Errorf("weather: amplitude and peak_irradiance must not be negative")
	}
	return nil
}

// Weather produces a daily sinusoidal outdoor temperature, coldest at 03:00,
// and a half-sine solar irradiance between 06:00 and 18:00.
type Weather struct {
	kernel.Base
	cfg WeatherConfig

	timeStep    field.Port[float64]
	temperature field.Port[float64]
	irradiance  field.Port[float64]
	conditions  field.Port[[]float64]
}

func NewWeather(name string, cfg WeatherConfig) *Weather {
	return &Weather{Base: kernel.NewBase(name), cfg: cfg}
}

func (w *Weather) Kind() string { return "weather" }

func (w *Weather) RegisterFields(r *field.Registry) {
	w.timeStep = field.Parameter(r, "time_step_seconds", w.cfg.TimeStepSeconds, field.WithUnit("s"))
	w.temperature = field.Output(r, "outdoor_temperature", w.cfg.MeanTemperature,
		field.WithUnit("°C"), field.WithBounds(-60, 60), field.WithDescription("dry bulb temperature"))
	w.irradiance = field.Output(r, "solar_irradiance", 0.0,
		field.WithUnit("W/m2"), field.WithBounds(0, 1400))
	w.conditions = field.Output(r, "conditions", []float64{w.cfg.MeanTemperature, 0},
		field.WithDescription("[outdoor_temperature, solar_irradiance]"))
}

func (w *Weather) Initialize() (bool, error) {
	w.compute(0)
	return true, nil
}

func (w *Weather) Run(timeStep, iteration int) error {
	w.compute(timeStep)
	return nil
}

func (w *Weather) compute(timeStep int) {
	hours := math.Mod(w.cfg.StartHour+float64(timeStep)*w.timeStep.Get()/3600, 24)

	t := w.cfg.MeanTemperature - w.cfg.Amplitude*math.Cos(2*math.Pi*(hours-3)/24)
	irr := 0.0
	if hours > 6 && hours < 18 {
		irr = w.cfg.PeakIrradiance * math.Sin(math.Pi*(hours-6)/12)
	}

	w.temperature.Set(t)
	w.irradiance.Set(irr)
	c := w.conditions.Get()
	c[0], c[1] = t, irr
}
