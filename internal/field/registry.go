package field

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
)

// Registry holds the fields of one module in registration order.
type Registry struct {
	owner  string
	order  []*Field
	byName map[string]*Field
	errs   []error

	timeSteps int
}

func NewRegistry(owner string) *Registry {
	return &Registry{
		owner:  owner,
		byName: make(map[string]*Field),
	}
}

func (r *Registry) Owner() string { return r.owner }

// Err returns every error recorded while fields were declared, joined.
func (r *Registry) Err() error { return errors.Join(r.errs...) }

// Attach adopts a detached field built with New.
func (r *Registry) Attach(f *Field) error {
	if f.owner != nil && f.owner != r {
		return fmt.Errorf("field: %s already belongs to %s", f.name, f.owner.owner)
	}
	if _, exists := r.byName[f.name]; exists {
		return fmt.Errorf("%w: %s.%s", ErrDuplicateField, r.owner, f.name)
	}
	f.owner = r
	r.order = append(r.order, f)
	r.byName[f.name] = f
	return nil
}

func (r *Registry) declare(name string, role Role, typ reflect.Type, def any, opts []Option) *Field {
	f := newField(name, role, typ, def, opts)
	if err := r.Attach(f); err != nil {
		r.errs = append(r.errs, err)
	}
	return f
}

// Declare registers a field and returns its typed accessor. A duplicate name
// is recorded on the registry and reported by Err; the returned port still
// works so registration code never has to check errors inline.
func Declare[T any](r *Registry, role Role, name string, def T, opts ...Option) Port[T] {
	return Port[T]{f: r.declare(name, role, reflect.TypeFor[T](), def, opts)}
}

func Input[T any](r *Registry, name string, def T, opts ...Option) Port[T] {
	return Declare(r, RoleInput, name, def, opts...)
}

func Output[T any](r *Registry, name string, def T, opts ...Option) Port[T] {
	return Declare(r, RoleOutput, name, def, opts...)
}

func Parameter[T any](r *Registry, name string, def T, opts ...Option) Port[T] {
	return Declare(r, RoleParameter, name, def, opts...)
}

// DeclareEach expands one declaration into sibling fields named
// "<name>_<key>", one per key, sharing the same metadata.
func DeclareEach[T any](r *Registry, role Role, name string, def T, keys []string, opts ...Option) []Port[T] {
	ports := make([]Port[T], 0, len(keys))
	for i, key := range keys {
		p := Declare(r, role, name+"_"+key, def, opts...)
		p.f.expansion = &Expansion{Base: name, Key: key, Index: i}
		ports = append(ports, p)
	}
	return ports
}

// Indexes returns the keys "0" to "n-1" for DeclareEach.
func Indexes(n int) []string {
	keys := make([]string, n)
	for i := range keys {
		keys[i] = strconv.Itoa(i)
	}
	return keys
}

func (r *Registry) Lookup(name string) (*Field, bool) {
	f, ok := r.byName[name]
	return f, ok
}

// All returns every field in registration order.
func (r *Registry) All() []*Field {
	return append([]*Field{}, r.order...)
}

func (r *Registry) Inputs() []*Field     { return r.withRole(RoleInput) }
func (r *Registry) Outputs() []*Field    { return r.withRole(RoleOutput) }
func (r *Registry) Parameters() []*Field { return r.withRole(RoleParameter) }

func (r *Registry) withRole(role Role) []*Field {
	out := make([]*Field, 0, len(r.order))
	for _, f := range r.order {
		if f.role == role {
			out = append(out, f)
		}
	}
	return out
}

// Allocate sizes the series of every output field to timeSteps entries.
func (r *Registry) Allocate(timeSteps int) {
	r.timeSteps = timeSteps
	for _, f := range r.order {
		if f.role == RoleOutput {
			f.series = make([]any, timeSteps)
		}
	}
}

// SaveTimeStep records a deep copy of every output value at index t.
func (r *Registry) SaveTimeStep(t int) {
	for _, f := range r.order {
		if f.role != RoleOutput {
			continue
		}
		if f.series == nil {
			f.series = make([]any, max(r.timeSteps, t+1))
		}
		for len(f.series) <= t {
			f.series = append(f.series, nil)
		}
		f.series[t] = Clone(f.value)
	}
}

// Series returns the recorded values of an output field.
func (r *Registry) Series(name string) ([]any, bool) {
	f, ok := r.byName[name]
	if !ok || f.role != RoleOutput {
		return nil, false
	}
	return f.series, true
}

// FloatSeries returns a scalar output series as float64 values; entries not
// yet saved, or of another type, are NaN.
func (r *Registry) FloatSeries(name string) ([]float64, bool) {
	series, ok := r.Series(name)
	if !ok {
		return nil, false
	}
	out := make([]float64, len(series))
	for i, v := range series {
		x, ok := v.(float64)
		if !ok {
			out[i] = math.NaN()
			continue
		}
		out[i] = x
	}
	return out, true
}
