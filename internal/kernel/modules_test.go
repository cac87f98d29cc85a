package kernel_test

import (
	"errors"
	"math"

	"github.com/cible-colibri/colibri-poc-sub000/internal/field"
	"github.com/cible-colibri/colibri-poc-sub000/internal/kernel"
)

// source emits a constant on one output.
type source struct {
	kernel.Base
	output string
	value  float64
	out    field.Port[float64]
}

func newSource(name, output string, value float64) *source {
	return &source{Base: kernel.NewBase(name), output: output, value: value}
}

func (s *source) RegisterFields(r *field.Registry) {
	s.out = field.Output(r, s.output, s.value, field.WithUnit("K"))
}

func (s *source) Initialize() (bool, error) { return true, nil }

func (s *source) Run(timeStep, iteration int) error {
	s.out.Set(s.value)
	return nil
}

// doubler computes y = 2x.
type doubler struct {
	kernel.Base
	x field.Port[float64]
	y field.Port[float64]
}

func newDoubler(name string) *doubler { return &doubler{Base: kernel.NewBase(name)} }

func (d *doubler) RegisterFields(r *field.Registry) {
	d.x = field.Input(r, "x", 0.0, field.WithUnit("K"))
	d.y = field.Output(r, "y", 0.0, field.WithUnit("K"))
}

func (d *doubler) Initialize() (bool, error) { return true, nil }

func (d *doubler) Run(timeStep, iteration int) error {
	d.y.Set(2 * d.x.Get())
	return nil
}

// counter increments its output on every pass.
type counter struct {
	kernel.Base
	v    field.Port[float64]
	runs int
}

func newCounter(name string) *counter { return &counter{Base: kernel.NewBase(name)} }

func (c *counter) RegisterFields(r *field.Registry) { c.v = field.Output(r, "v", 0.0) }
func (c *counter) Initialize() (bool, error)        { return true, nil }

func (c *counter) Run(timeStep, iteration int) error {
	c.runs++
	c.v.Set(c.v.Get() + 1)
	return nil
}

// watcher converges once its input stops moving.
type watcher struct {
	kernel.Base
	v        field.Port[float64]
	previous float64
	seen     []float64
	queries  int
}

func newWatcher(name string) *watcher {
	return &watcher{Base: kernel.NewBase(name), previous: math.NaN()}
}

func (w *watcher) RegisterFields(r *field.Registry) { w.v = field.Input(r, "v", 0.0) }
func (w *watcher) Initialize() (bool, error)        { return true, nil }

func (w *watcher) Run(timeStep, iteration int) error {
	w.seen = append(w.seen, w.v.Get())
	return nil
}

func (w *watcher) HasConverged(timeStep, iteration int) bool {
	w.queries++
	converged := math.Abs(w.v.Get()-w.previous) < 1e-9
	w.previous = w.v.Get()
	return converged
}

// stubborn never converges.
type stubborn struct {
	kernel.Base
	runs int
}

func (s *stubborn) RegisterFields(r *field.Registry)          {}
func (s *stubborn) Initialize() (bool, error)                 { return true, nil }
func (s *stubborn) HasConverged(timeStep, iteration int) bool { return false }

func (s *stubborn) Run(timeStep, iteration int) error {
	s.runs++
	return nil
}

// chainLink is one element of a dependency chain: it is ready once its input holds
// a number and then emits input+1.
type chainLink struct {
	kernel.Base
	root bool
	in   field.Port[float64]
	out  field.Port[float64]
}

func newChainLink(name string, root bool) *chainLink { return &chainLink{Base: kernel.NewBase(name), root: root} }

func (l *chainLink) RegisterFields(r *field.Registry) {
	l.in = field.Input(r, "in", math.NaN())
	l.out = field.Output(r, "out", math.NaN())
}

func (l *chainLink) Initialize() (bool, error) {
	if l.root {
		l.out.Set(1)
		return true, nil
	}
	if math.IsNaN(l.in.Get()) {
		return false, nil
	}
	l.out.Set(l.in.Get() + 1)
	return true, nil
}

func (l *chainLink) Run(timeStep, iteration int) error {
	if !l.root {
		l.out.Set(l.in.Get() + 1)
	}
	return nil
}

// journal records every lifecycle call in a shared log.
type journal struct {
	kernel.Base
	log        *[]string
	convergeAt int
	out        field.Port[[]float64]
}

func newJournal(name string, log *[]string, convergeAt int) *journal {
	return &journal{Base: kernel.NewBase(name), log: log, convergeAt: convergeAt}
}

func (j *journal) RegisterFields(r *field.Registry) {
	j.out = field.Output(r, "profile", []float64{0, 0})
}

func (j *journal) Initialize() (bool, error) {
	*j.log = append(*j.log, "initialize")
	return true, nil
}

func (j *journal) Run(timeStep, iteration int) error {
	*j.log = append(*j.log, "run")
	j.out.Get()[0] = float64(timeStep)
	j.out.Get()[1] = float64(iteration)
	return nil
}

func (j *journal) HasConverged(timeStep, iteration int) bool {
	return iteration >= j.convergeAt
}

func (j *journal) EndIteration(timeStep int) { *j.log = append(*j.log, "end_iteration") }

func (j *journal) SaveTimeStep(timeStep int) {
	*j.log = append(*j.log, "save")
	j.Base.SaveTimeStep(timeStep)
}

func (j *journal) EndTimeStep(timeStep int) {
	*j.log = append(*j.log, "end_time_step")
	// the live vector is mutated after the snapshot was taken
	j.out.Get()[0] = -1
}

func (j *journal) EndSimulation() { *j.log = append(*j.log, "end_simulation") }

// faulty fails at a given time step.
type faulty struct {
	kernel.Base
	failAt int
}

var errBoom = errors.New("boom")

func (f *faulty) RegisterFields(r *field.Registry) {}
func (f *faulty) Initialize() (bool, error)        { return true, nil }

func (f *faulty) Run(timeStep, iteration int) error {
	if timeStep == f.failAt {
		return errBoom
	}
	return nil
}

// settings carries a single parameter and remembers what it saw at init.
type settings struct {
	kernel.Base
	step       field.Port[float64]
	initial    float64
	atInit     float64
	initCalled int
}

func newSettings(name string, initial float64) *settings {
	return &settings{Base: kernel.NewBase(name), initial: initial}
}

func (s *settings) RegisterFields(r *field.Registry) {
	s.step = field.Parameter(r, "time_step_seconds", s.initial, field.WithUnit("s"))
}

func (s *settings) Initialize() (bool, error) {
	s.initCalled++
	s.atInit = s.step.Get()
	return true, nil
}

func (s *settings) Run(timeStep, iteration int) error { return nil }
