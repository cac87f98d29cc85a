package kernel

import (
	"fmt"
	"reflect"

	"github.com/cible-colibri/colibri-poc-sub000/internal/field"
)

// Module is implemented by every computation unit. Implementations embed
// Base, which supplies the field registry, the orchestrator back-reference
// and default hooks.
type Module interface {
	Name() string

	// RegisterFields declares the module's ports. It is called exactly once,
	// after construction, by Prepare. Modules composed of reusable parts
	// register the parts' fields first.
	RegisterFields(r *field.Registry)

	// Initialize prepares internal state. Returning false means "not ready
	// yet" (typically a linked input has no value) and the orchestrator will
	// retry; an error aborts the run.
	Initialize() (bool, error)

	// Run computes outputs from the current inputs. It may be called several
	// times within one time step and must give the same result for the same
	// inputs.
	Run(timeStep, iteration int) error

	EndIteration(timeStep int)
	EndTimeStep(timeStep int)
	EndSimulation()
	HasConverged(timeStep, iteration int) bool
	SaveTimeStep(timeStep int)

	base() *Base
}

// LinkLookup answers link queries on behalf of a module.
type LinkLookup interface {
	LinkInto(module, field string) (Link, bool)
}

// Base holds what every module shares. Embed it by value:
//
//	type Zone struct {
//	    kernel.Base
//	    temperature field.Port[float64]
//	}
type Base struct {
	name        string
	fields      *field.Registry
	registered  bool
	initialized bool
	links       LinkLookup
}

func NewBase(name string) Base {
	return Base{name: name, fields: field.NewRegistry(name)}
}

func (b *Base) Name() string { return b.name }

// Fields returns the module's field registry.
func (b *Base) Fields() *field.Registry {
	if b.fields == nil {
		b.fields = field.NewRegistry(b.name)
	}
	return b.fields
}

func (b *Base) IsInitialized() bool { return b.initialized }

func (b *Base) EndIteration(timeStep int) {}
func (b *Base) EndTimeStep(timeStep int)  {}
func (b *Base) EndSimulation()            {}

// HasConverged defaults to true so that non-iterative modules never hold a
// time step back.
func (b *Base) HasConverged(timeStep, iteration int) bool { return true }

// SaveTimeStep snapshots every output value into its series.
func (b *Base) SaveTimeStep(timeStep int) { b.Fields().SaveTimeStep(timeStep) }

// IsFieldLinked reports whether the named input has an incoming link.
func (b *Base) IsFieldLinked(name string) bool {
	_, ok := b.Link(name)
	return ok
}

// Link returns the link feeding the named field, if any.
func (b *Base) Link(name string) (Link, bool) {
	if b.links == nil {
		return Link{}, false
	}
	return b.links.LinkInto(b.name, name)
}

// Series returns the recorded values of an output field.
func (b *Base) Series(name string) ([]any, bool) { return b.Fields().Series(name) }

func (b *Base) base() *Base { return b }

// Prepare runs the module's field registration once. Calling it again is a
// no-op that returns the same registration error, if any.
func Prepare(m Module) error {
	b := m.base()
	if b.name == "" {
		return fmt.Errorf("kernel: module of type %T has no name", m)
	}
	r := b.Fields()
	if !b.registered {
		b.registered = true
		m.RegisterFields(r)
	}
	if err := r.Err(); err != nil {
		return fmt.Errorf("kernel: register fields of %s: %w", b.name, err)
	}
	return nil
}

// Kind returns the kind name of a module: the value of a Kind method if the
// module has one, otherwise the name of its concrete type.
func Kind(m Module) string {
	if k, ok := m.(interface{ Kind() string }); ok {
		return k.Kind()
	}
	t := reflect.TypeOf(m)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}
