package config

import (
	"maps"
	"slices"
)

var Presets = map[string]*Config{
	// One heated zone under synthetic winter weather, wired by name.
	"single_zone": {
		Name: "single_zone", TimeSteps: 72, IterateForConvergence: true, MaxIterations: 10,
		InitStrategy: "topological", InitPasses: 3, AutoLink: true,
		Modules: []ModuleConfig{
			{Name: "weather", Type: "weather"},
			{Name: "zone", Type: "zone"},
			{Name: "emitter", Type: "emitter", Params: map[string]any{"setpoint": 20.0}},
		},
		Links: []LinkConfig{
			{From: "weather.time_step_seconds", To: "zone.time_step_seconds"},
		},
	},
	// No heating: the zone follows the weather. Irradiance is taken from the
	// weather conditions vector.
	"free_float": {
		Name: "free_float", TimeSteps: 72, IterateForConvergence: false, MaxIterations: 10,
		InitStrategy: "topological", InitPasses: 3,
		Modules: []ModuleConfig{
			{Name: "weather", Type: "weather", Params: map[string]any{"amplitude": 8.0}},
			{Name: "zone", Type: "zone", Params: map[string]any{"window_area": 10.0}},
		},
		Links: []LinkConfig{
			{From: "weather.outdoor_temperature", To: "zone.outdoor_temperature"},
			{From: "weather.conditions[1]", To: "zone.solar_irradiance"},
		},
	},
	// A light zone with an aggressive emitter: the coupled loop oscillates and
	// every time step hits the iteration cap.
	"stiff_zone": {
		Name: "stiff_zone", TimeSteps: 12, IterateForConvergence: true, MaxIterations: 8,
		InitStrategy: "topological", InitPasses: 3, AutoLink: true,
		Modules: []ModuleConfig{
			{Name: "outdoor", Type: "constant", Params: map[string]any{"output": "outdoor_temperature", "value": 0.0, "unit": "°C"}},
			{Name: "zone", Type: "zone", Params: map[string]any{"capacitance": 1e5}},
			{Name: "emitter", Type: "emitter", Params: map[string]any{"gain": 5000.0, "max_power": 1e5}},
		},
	},
	// The single zone under PID control instead of the proportional emitter.
	"thermostat": {
		Name: "thermostat", TimeSteps: 72, IterateForConvergence: true, MaxIterations: 15,
		InitStrategy: "topological", InitPasses: 3, AutoLink: true,
		Modules: []ModuleConfig{
			{Name: "weather", Type: "weather"},
			{Name: "zone", Type: "zone"},
			{Name: "thermostat", Type: "thermostat", Params: map[string]any{"setpoint": 20.0, "ki": 0.05}},
		},
	},
	// Two zones sharing one weather source and one setpoint. Same-named
	// ports exist twice, so everything is wired explicitly.
	"two_zones": {
		Name: "two_zones", TimeSteps: 48, IterateForConvergence: true, MaxIterations: 15,
		InitStrategy: "retry", InitPasses: 3,
		Modules: []ModuleConfig{
			{Name: "zone_north", Type: "zone", Params: map[string]any{"window_area": 1.0}},
			{Name: "zone_south", Type: "zone", Params: map[string]any{"window_area": 8.0, "capacitance": 8e6}},
			{Name: "emitter_north", Type: "emitter", Params: map[string]any{"setpoint": 21.0}},
			{Name: "emitter_south", Type: "emitter"},
			{Name: "weather", Type: "weather"},
		},
		Links: []LinkConfig{
			{From: "weather.outdoor_temperature", To: "zone_north.outdoor_temperature"},
			{From: "weather.outdoor_temperature", To: "zone_south.outdoor_temperature"},
			{From: "weather.solar_irradiance", To: "zone_north.solar_irradiance"},
			{From: "weather.solar_irradiance", To: "zone_south.solar_irradiance"},
			{From: "zone_north.zone_temperature", To: "emitter_north.zone_temperature"},
			{From: "zone_south.zone_temperature", To: "emitter_south.zone_temperature"},
			{From: "emitter_north.heating_power", To: "zone_north.heating_power"},
			{From: "emitter_south.heating_power", To: "zone_south.heating_power"},
			{From: "emitter_north.setpoint", To: "emitter_south.setpoint"},
		},
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Config {
	cfg, ok := Presets[name]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets() []string {
	return slices.Sorted(maps.Keys(Presets))
}
