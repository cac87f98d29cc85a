package experiment

import (
	"bytes"
	"fmt"
	"maps"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/cible-colibri/colibri-poc-sub000/internal/kernel"
	"github.com/cible-colibri/colibri-poc-sub000/internal/modules"
)

// Params is the opaque per-module configuration read from a scheme file.
type Params map[string]any

// Factory builds a module of one kind under the given name.
type Factory func(name string, params Params) (kernel.Module, error)

type entry struct {
	description string
	factory     Factory
}

// Registry maps module kinds to factories.
type Registry struct {
	mu    sync.RWMutex
	kinds map[string]entry
}

// NewRegistry returns a registry holding the built-in module kinds.
func NewRegistry() *Registry {
	r := &Registry{kinds: make(map[string]entry)}

	r.MustRegister("weather", "synthetic daily outdoor temperature and solar irradiance",
		Configured(modules.DefaultWeatherConfig, func(name string, cfg modules.WeatherConfig) kernel.Module {
			return modules.NewWeather(name, cfg)
		}))
	r.MustRegister("zone", "single air node thermal zone, implicit Euler",
		Configured(modules.DefaultZoneConfig, func(name string, cfg modules.ZoneConfig) kernel.Module {
			return modules.NewZone(name, cfg)
		}))
	r.MustRegister("emitter", "proportional heater with power limit",
		Configured(modules.DefaultEmitterConfig, func(name string, cfg modules.EmitterConfig) kernel.Module {
			return modules.NewEmitter(name, cfg)
		}))
	r.MustRegister("thermostat", "PID heater control on the zone temperature",
		Configured(modules.DefaultThermostatConfig, func(name string, cfg modules.ThermostatConfig) kernel.Module {
			return modules.NewThermostat(name, cfg)
		}))
	r.MustRegister("constant", "constant scalar source",
		Configured(modules.DefaultConstantConfig, func(name string, cfg modules.ConstantConfig) kernel.Module {
			return modules.NewConstant(name, cfg)
		}))

	return r
}

// Register installs a factory. Registering a kind twice is an error.
func (r *Registry) Register(kind, description string, factory Factory) error {
	if kind == "" {
		return fmt.Errorf("experiment: module kind is required")
	}
	if factory == nil {
		return fmt.Errorf("experiment: factory is required for %s", kind)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.kinds[kind]; exists {
		return fmt.Errorf("experiment: module kind %s already registered", kind)
	}
	r.kinds[kind] = entry{description: description, factory: factory}
	return nil
}

func (r *Registry) MustRegister(kind, description string, factory Factory) {
	if err := r.Register(kind, description, factory); err != nil {
		panic(err)
	}
}

// Build constructs a module of the given kind.
func (r *Registry) Build(kind, name string, params Params) (kernel.Module, error) {
	r.mu.RLock()
	e, ok := r.kinds[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("experiment: unknown module kind: %s", kind)
	}
	m, err := e.factory(name, params)
	if err != nil {
		return nil, fmt.Errorf("experiment: module %s (%s): %w", name, kind, err)
	}
	return m, nil
}

// Kinds returns the registered kinds, sorted.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.kinds))
}

func (r *Registry) Describe(kind string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.kinds[kind].description
}

// Config is what Configured needs from a module configuration struct.
type Config interface {
	Validate() error
}

// Configured builds a Factory for a module whose parameters live in a config
// struct with yaml tags. Params are decoded over the defaults, unknown keys
// are rejected and the result is validated.
func Configured[C Config](defaults func() C, build func(name string, cfg C) kernel.Module) Factory {
	return func(name string, params Params) (kernel.Module, error) {
		cfg := defaults()
		if err := decodeParams(params, &cfg); err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return build(name, cfg), nil
	}
}

func decodeParams(params Params, target any) error {
	if len(params) == 0 {
		return nil
	}
	data, err := yaml.Marshal(map[string]any(params))
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(target); err != nil {
		return fmt.Errorf("decode params: %w", err)
	}
	return nil
}
