package experiment

import (
	"fmt"
	"log/slog"
	"math"
	"reflect"

	"github.com/cible-colibri/colibri-poc-sub000/internal/config"
	"github.com/cible-colibri/colibri-poc-sub000/internal/field"
	"github.com/cible-colibri/colibri-poc-sub000/internal/kernel"
	"github.com/cible-colibri/colibri-poc-sub000/internal/metrics"
)

// Column is one numeric output series. Vector outputs are split into one
// column per element, named "module.field[i]".
type Column struct {
	Name   string
	Unit   string
	Values []float64
}

type Result struct {
	Scheme  *config.Config
	Summary *kernel.Summary
	Metrics map[string]float64
	Columns []Column
}

// Column looks a column up by name.
func (r *Result) Column(name string) (Column, bool) {
	for _, c := range r.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Experiment turns a scheme into a wired orchestrator and runs it.
type Experiment struct {
	cfg          *config.Config
	registry     *Registry
	logger       *slog.Logger
	orchestrator *kernel.Orchestrator
	metrics      []metrics.Metric
}

func New(cfg *config.Config, registry *Registry, logger *slog.Logger) *Experiment {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Experiment{
		cfg:      cfg,
		registry: registry,
		logger:   logger,
	}
}

// Setup validates the scheme, builds every module in scheme order, links them
// (automatic links first, then explicit ones) and attaches the default
// metrics plus any extra observers.
func (e *Experiment) Setup(observers ...kernel.Observer) error {
	if err := e.cfg.Validate(); err != nil {
		return err
	}

	o := kernel.New(
		kernel.WithTimeSteps(e.cfg.TimeSteps),
		kernel.WithIterateForConvergence(e.cfg.IterateForConvergence),
		kernel.WithMaxIterations(e.cfg.MaxIterations),
		kernel.WithInitStrategy(e.cfg.Strategy()),
		kernel.WithInitPasses(e.cfg.InitPasses),
		kernel.WithLogger(e.logger.With("scheme", e.cfg.Name)),
	)

	for _, mc := range e.cfg.Modules {
		m, err := e.registry.Build(mc.Type, mc.Name, Params(mc.Params))
		if err != nil {
			return err
		}
		if err := o.AddModule(m); err != nil {
			return fmt.Errorf("experiment: %w", err)
		}
	}

	if e.cfg.AutoLink {
		if err := o.CreateLinksAutomatically(); err != nil {
			return fmt.Errorf("experiment: automatic links: %w", err)
		}
	}
	for i, l := range e.cfg.Links {
		if err := o.AddLinkByName(l.From, l.To); err != nil {
			return fmt.Errorf("experiment: links[%d] %s -> %s: %w", i, l.From, l.To, err)
		}
	}

	e.metrics = metrics.Default()
	for _, obs := range metrics.Observers(e.metrics) {
		o.AddObserver(obs)
	}
	for _, obs := range observers {
		o.AddObserver(obs)
	}

	e.orchestrator = o
	e.logger.Debug("experiment ready", "scheme", e.cfg.Name, "modules", len(o.Modules()), "links", len(o.Links()))
	return nil
}

func (e *Experiment) Run() (*Result, error) {
	if e.orchestrator == nil {
		return nil, fmt.Errorf("experiment not setup")
	}
	summary, err := e.orchestrator.Run()
	if err != nil {
		return nil, err
	}
	return &Result{
		Scheme:  e.cfg,
		Summary: summary,
		Metrics: metrics.Collect(e.metrics),
		Columns: Columns(e.orchestrator),
	}, nil
}

// Orchestrator returns the wired orchestrator, nil before Setup.
func (e *Experiment) Orchestrator() *kernel.Orchestrator {
	return e.orchestrator
}

// Columns flattens every numeric output series of o, in module then field
// registration order. Non-numeric outputs are skipped.
func Columns(o *kernel.Orchestrator) []Column {
	var out []Column
	for _, m := range o.Modules() {
		fields, ok := m.(interface{ Fields() *field.Registry })
		if !ok {
			continue
		}
		for _, f := range fields.Fields().Outputs() {
			out = append(out, flatten(m.Name(), f)...)
		}
	}
	return out
}

var (
	scalarType = reflect.TypeFor[float64]()
	vectorType = reflect.TypeFor[[]float64]()
)

func flatten(module string, f *field.Field) []Column {
	series := f.Series()
	name := kernel.Address{Module: module, Field: f.Name(), Index: kernel.NoIndex}.String()

	switch f.Type() {
	case scalarType:
		values := make([]float64, len(series))
		for i, v := range series {
			x, ok := v.(float64)
			if !ok {
				x = math.NaN()
			}
			values[i] = x
		}
		return []Column{{Name: name, Unit: f.Unit(), Values: values}}

	case vectorType:
		width := 0
		for _, v := range series {
			width = max(width, len(asVector(v)))
		}
		cols := make([]Column, width)
		for j := range cols {
			cols[j] = Column{
				Name:   kernel.Address{Module: module, Field: f.Name(), Index: j}.String(),
				Unit:   f.Unit(),
				Values: make([]float64, len(series)),
			}
		}
		for i, v := range series {
			vec := asVector(v)
			for j := range cols {
				cols[j].Values[i] = math.NaN()
				if j < len(vec) {
					cols[j].Values[i] = vec[j]
				}
			}
		}
		return cols
	}
	return nil
}

func asVector(v any) []float64 {
	vec, _ := v.([]float64)
	return vec
}
