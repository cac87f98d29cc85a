package kernel

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cible-colibri/colibri-poc-sub000/internal/field"
)

// Orchestrator owns the modules and the link graph and drives the run.
type Orchestrator struct {
	modules []Module
	byName  map[string]Module
	links   []*edge

	timeSteps             int
	iterateForConvergence bool
	maxIterations         int
	initStrategy          InitStrategy
	initPasses            int
	logger                *slog.Logger
	observers             []Observer

	// run-scoped state
	currentIteration       int
	hasConverged           bool
	nonConvergentTimeSteps []int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTimeSteps sets how many time steps Run simulates.
func WithTimeSteps(n int) Option {
	return func(o *Orchestrator) { o.timeSteps = n }
}

// WithIterateForConvergence turns the per-step fixed-point loop on or off.
// When off, every time step runs exactly one pass.
func WithIterateForConvergence(iterate bool) Option {
	return func(o *Orchestrator) { o.iterateForConvergence = iterate }
}

// WithMaxIterations sets the iteration cap. Once a time step reaches pass
// maxIterations+1 it is forced to converge and recorded as non-convergent,
// even when the modules agreed on that last pass.
func WithMaxIterations(n int) Option {
	return func(o *Orchestrator) { o.maxIterations = n }
}

// WithInitStrategy selects how modules are ordered during initialization.
func WithInitStrategy(s InitStrategy) Option {
	return func(o *Orchestrator) { o.initStrategy = s }
}

// WithInitPasses bounds the number of retry-initialization passes.
func WithInitPasses(n int) Option {
	return func(o *Orchestrator) { o.initPasses = n }
}

// WithLogger sets the run logger. A nil logger is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

const (
	DefaultTimeSteps     = 1
	DefaultMaxIterations = 10
)

// New returns an Orchestrator with the default settings, adjusted by opts.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		byName:                make(map[string]Module),
		timeSteps:             DefaultTimeSteps,
		iterateForConvergence: true,
		maxIterations:         DefaultMaxIterations,
		initStrategy:          InitTopological,
		initPasses:            DefaultInitPasses,
		logger:                slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) TimeSteps() int { return o.timeSteps }

// AddModule registers a module, running its field registration if that has
// not happened yet. Registration order is execution order.
func (o *Orchestrator) AddModule(m Module) error {
	if err := Prepare(m); err != nil {
		return err
	}
	if _, exists := o.byName[m.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateModule, m.Name())
	}
	m.base().links = o
	o.modules = append(o.modules, m)
	o.byName[m.Name()] = m
	return nil
}

func (o *Orchestrator) AddObserver(obs Observer) { o.observers = append(o.observers, obs) }

// Modules returns the registered modules in registration order.
func (o *Orchestrator) Modules() []Module { return append([]Module{}, o.modules...) }

// ModuleByName returns the module registered under name.
func (o *Orchestrator) ModuleByName(name string) (Module, bool) {
	m, ok := o.byName[name]
	return m, ok
}

// ModulesByKind returns the modules whose Kind equals kind, in registration order.
func (o *Orchestrator) ModulesByKind(kind string) []Module {
	var out []Module
	for _, m := range o.modules {
		if Kind(m) == kind {
			out = append(out, m)
		}
	}
	return out
}

// ModulesOfType returns the registered modules of concrete or interface type T.
func ModulesOfType[T any](o *Orchestrator) []T {
	var out []T
	for _, m := range o.modules {
		if t, ok := m.(T); ok {
			out = append(out, t)
		}
	}
	return out
}

// Links returns the links in creation order.
func (o *Orchestrator) Links() []Link {
	out := make([]Link, len(o.links))
	for i, e := range o.links {
		out[i] = e.Link
	}
	return out
}

// LinkInto returns the link writing into module.field, if any. For vector
// inputs fed element by element it returns the first such link.
func (o *Orchestrator) LinkInto(module, fieldName string) (Link, bool) {
	for _, e := range o.links {
		if e.ToModule == module && e.ToField == fieldName {
			return e.Link, true
		}
	}
	return Link{}, false
}

// AddLink wires from.fromField into to.toField. It fails without changing
// the graph if the target already has a writer, if either module or field is
// unknown, or if the roles or value types are incompatible.
func (o *Orchestrator) AddLink(from Module, fromField string, to Module, toField string, opts ...LinkOption) error {
	if from == nil || to == nil {
		return fmt.Errorf("%w: nil module", ErrUnknownModule)
	}
	l := Link{
		FromModule: from.Name(),
		FromField:  fromField,
		ToModule:   to.Name(),
		ToField:    toField,
		IndexFrom:  NoIndex,
		IndexTo:    NoIndex,
	}
	for _, opt := range opts {
		opt(&l)
	}
	if o.byName[l.FromModule] != from {
		return fmt.Errorf("%w: %s", ErrUnknownModule, l.FromModule)
	}
	if o.byName[l.ToModule] != to {
		return fmt.Errorf("%w: %s", ErrUnknownModule, l.ToModule)
	}
	return o.addLink(l)
}

// AddLinkByName wires two endpoints given as "module.field[index]" addresses.
func (o *Orchestrator) AddLinkByName(from, to string) error {
	src, err := ParseAddress(from)
	if err != nil {
		return err
	}
	dst, err := ParseAddress(to)
	if err != nil {
		return err
	}
	if _, ok := o.byName[src.Module]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownModule, src.Module)
	}
	if _, ok := o.byName[dst.Module]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownModule, dst.Module)
	}
	return o.addLink(Link{
		FromModule: src.Module,
		FromField:  src.Field,
		ToModule:   dst.Module,
		ToField:    dst.Field,
		IndexFrom:  src.Index,
		IndexTo:    dst.Index,
	})
}

func (o *Orchestrator) addLink(l Link) error {
	for _, e := range o.links {
		if targetsOverlap(e.Link, l) {
			return &DuplicateLinkError{Existing: e.Link, Rejected: l}
		}
	}

	src, err := o.lookupField(l.FromModule, l.FromField)
	if err != nil {
		return err
	}
	dst, err := o.lookupField(l.ToModule, l.ToField)
	if err != nil {
		return err
	}
	parameter, err := checkRoles(l, src, dst)
	if err != nil {
		return err
	}
	if err := checkTypes(l, src, dst); err != nil {
		return err
	}
	if src.Unit() != "" && dst.Unit() != "" && src.Unit() != dst.Unit() {
		o.logger.Warn("linking fields with different units",
			"link", l.String(), "from_unit", src.Unit(), "to_unit", dst.Unit())
	}

	o.links = append(o.links, &edge{Link: l, src: src, dst: dst, to: o.position(l.ToModule), parameter: parameter})
	o.logger.Debug("link added", "link", l.String(), "parameter", parameter)
	return nil
}

func (o *Orchestrator) position(name string) int {
	for i, m := range o.modules {
		if m.Name() == name {
			return i
		}
	}
	return -1
}

func (o *Orchestrator) lookupField(module, name string) (*field.Field, error) {
	m, ok := o.byName[module]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModule, module)
	}
	f, ok := m.base().Fields().Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, module, name)
	}
	return f, nil
}

// CreateLinksAutomatically links every output to every input of another
// module carrying exactly the same name. Outputs are visited in module
// registration order, then field registration order; for each, inputs are
// visited in the same order. The first duplicate target aborts the pass and
// is returned; links created before it are kept.
func (o *Orchestrator) CreateLinksAutomatically() error {
	for _, from := range o.modules {
		for _, out := range from.base().Fields().Outputs() {
			for _, to := range o.modules {
				if to == from {
					continue
				}
				for _, in := range to.base().Fields().Inputs() {
					if in.Name() != out.Name() {
						continue
					}
					if err := o.AddLink(from, out.Name(), to, in.Name()); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

// Run executes the whole simulation and returns its summary. Errors raised by
// modules abort the run and are returned as *ModuleError.
func (o *Orchestrator) Run() (*Summary, error) {
	start := time.Now()
	o.nonConvergentTimeSteps = []int{}
	o.currentIteration = 0
	o.hasConverged = false

	o.logger.Info("simulation started",
		"modules", len(o.modules),
		"links", len(o.links),
		"time_steps", o.timeSteps,
		"iterate_for_convergence", o.iterateForConvergence,
		"max_iterations", o.maxIterations)

	if err := o.propagateParameters(); err != nil {
		return nil, err
	}
	for _, m := range o.modules {
		m.base().Fields().Allocate(o.timeSteps)
	}
	if err := o.initialize(); err != nil {
		return nil, err
	}

	iterations := make([]int, 0, o.timeSteps)
	for t := 0; t < o.timeSteps; t++ {
		if err := o.step(t); err != nil {
			return nil, err
		}
		iterations = append(iterations, o.currentIteration)

		for _, m := range o.modules {
			m.SaveTimeStep(t)
		}
		o.checkBounds(t)
		for _, m := range o.modules {
			m.EndTimeStep(t)
		}

		report := StepReport{TimeStep: t, Iterations: o.currentIteration, Converged: !o.lastStepForced(t)}
		for _, obs := range o.observers {
			obs.OnTimeStep(report)
		}
	}

	for _, m := range o.modules {
		m.EndSimulation()
	}

	summary := &Summary{
		NonConvergentTimeSteps: append([]int{}, o.nonConvergentTimeSteps...),
		SimulationTime:         time.Since(start),
		TimeSteps:              o.timeSteps,
		Iterations:             iterations,
	}
	o.logger.Info("simulation finished",
		"elapsed", summary.SimulationTime,
		"non_convergent_time_steps", len(summary.NonConvergentTimeSteps))
	return summary, nil
}

// step runs the convergence loop of one time step.
func (o *Orchestrator) step(t int) error {
	iteration := 1
	o.hasConverged = false
	for !o.hasConverged {
		o.hasConverged = true

		for i, m := range o.modules {
			if err := o.feed(i); err != nil {
				return err
			}
			if err := m.Run(t, iteration); err != nil {
				return &ModuleError{Module: m.Name(), Phase: "run", TimeStep: t, Iteration: iteration, Wrapped: err}
			}
		}

		// Every module is asked, even after one has declined, so that
		// convergence bookkeeping inside modules sees every pass.
		for _, m := range o.modules {
			if !m.HasConverged(t, iteration) {
				o.hasConverged = false
			}
		}
		if !o.iterateForConvergence {
			o.hasConverged = true
		}
		if iteration > o.maxIterations {
			o.hasConverged = true
			o.nonConvergentTimeSteps = append(o.nonConvergentTimeSteps, t)
			o.logger.Warn("time step did not converge", "time_step", t, "iterations", iteration)
		}

		for _, m := range o.modules {
			m.EndIteration(t)
		}
		o.logger.Debug("pass completed", "time_step", t, "iteration", iteration, "converged", o.hasConverged)
		o.currentIteration = iteration
		iteration++
	}
	return nil
}

func (o *Orchestrator) lastStepForced(t int) bool {
	n := len(o.nonConvergentTimeSteps)
	return n > 0 && o.nonConvergentTimeSteps[n-1] == t
}

// propagateParameters pushes parameter-to-parameter links. Parameters do not
// change over time, so this happens once per run.
func (o *Orchestrator) propagateParameters() error {
	for _, e := range o.links {
		if !e.parameter {
			continue
		}
		if err := e.propagate(); err != nil {
			return err
		}
	}
	return nil
}

// feed pushes every non-parameter link into the module at position i. It is
// called right before that module runs, so the module reads what upstream
// modules produced earlier in the same pass.
func (o *Orchestrator) feed(i int) error {
	for _, e := range o.links {
		if e.parameter || e.to != i {
			continue
		}
		if err := e.propagate(); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) propagateAll() error {
	for _, e := range o.links {
		if err := e.propagate(); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) initialize() error {
	for _, m := range o.modules {
		m.base().initialized = false
	}

	pending := o.modules
	if o.initStrategy == InitTopological {
		plan := PlanInitialization(o.modules, o.Links())
		sequence := plan.Modules()
		if c, ok := plan.(Cyclic); ok {
			sequence = c.Sequence
			o.logger.Debug("dependency cycle among modules", "residual", moduleNames(c.Residual))
		}
		for _, m := range sequence {
			ok, err := o.initializeModule(m)
			if err != nil {
				return err
			}
			if ok {
				if err := o.propagateAll(); err != nil {
					return err
				}
			}
		}
		pending = o.uninitialized()
	}

	for pass := 0; pass < o.initPasses && len(pending) > 0; pass++ {
		for _, m := range pending {
			if _, err := o.initializeModule(m); err != nil {
				return err
			}
		}
		if err := o.propagateAll(); err != nil {
			return err
		}
		pending = o.uninitialized()
	}

	if len(pending) > 0 {
		o.logger.Warn("modules left uninitialized", "modules", moduleNames(pending))
	}
	return nil
}

func (o *Orchestrator) initializeModule(m Module) (bool, error) {
	b := m.base()
	if b.initialized {
		return true, nil
	}
	ok, err := m.Initialize()
	if err != nil {
		return false, &ModuleError{Module: m.Name(), Phase: "initialize", Wrapped: err}
	}
	b.initialized = ok
	return ok, nil
}

func (o *Orchestrator) uninitialized() []Module {
	var out []Module
	for _, m := range o.modules {
		if !m.base().initialized {
			out = append(out, m)
		}
	}
	return out
}

func (o *Orchestrator) checkBounds(t int) {
	for _, m := range o.modules {
		for _, f := range m.base().Fields().Outputs() {
			if err := f.CheckBounds(); err != nil {
				if errors.Is(err, field.ErrOutOfBounds) {
					o.logger.Warn("output out of bounds", "module", m.Name(), "time_step", t, "error", err)
				}
			}
		}
	}
}

// CurrentIteration returns the number of passes the last time step took.
func (o *Orchestrator) CurrentIteration() int { return o.currentIteration }

// HasConverged reports the aggregate convergence flag of the last pass.
func (o *Orchestrator) HasConverged() bool { return o.hasConverged }

// NonConvergentTimeSteps returns the time steps that hit the iteration cap so far.
func (o *Orchestrator) NonConvergentTimeSteps() []int {
	return append([]int{}, o.nonConvergentTimeSteps...)
}

func moduleNames(ms []Module) []string {
	names := make([]string, len(ms))
	for i, m := range ms {
		names[i] = m.Name()
	}
	return names
}
