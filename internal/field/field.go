package field

import (
	"fmt"
	"math"
	"reflect"
)

type Role int

const (
	RoleInput Role = iota
	RoleOutput
	RoleParameter
)

func (r Role) String() string {
	switch r {
	case RoleInput:
		return "input"
	case RoleOutput:
		return "output"
	case RoleParameter:
		return "parameter"
	default:
		return "unknown"
	}
}

// Expansion records the sibling a field was expanded into by DeclareEach.
type Expansion struct {
	Base  string
	Key   string
	Index int
}

// Field is a single port of a module. Its value is only written by the owning
// module through a Port, or by the orchestrator when it propagates a link.
type Field struct {
	name        string
	role        Role
	unit        string
	description string
	typ         reflect.Type

	defaultValue any
	value        any

	min, max float64

	checkConvergence bool
	tolerance        float64
	maxIterations    int

	expansion *Expansion
	owner     *Registry
	series    []any
}

type Option func(*Field)

func WithUnit(unit string) Option {
	return func(f *Field) { f.unit = unit }
}

func WithDescription(desc string) Option {
	return func(f *Field) { f.description = desc }
}

// WithBounds declares the admissible range of a numeric value.
func WithBounds(min, max float64) Option {
	return func(f *Field) {
		f.min = min
		f.max = max
	}
}

// WithConvergence marks the field as checked between iterations. The field is
// considered converged once successive values differ by less than tolerance,
// or, when maxIterations is positive, once that many iterations have passed.
func WithConvergence(tolerance float64, maxIterations int) Option {
	return func(f *Field) {
		f.checkConvergence = true
		f.tolerance = tolerance
		f.maxIterations = maxIterations
	}
}

// New builds a field that belongs to no module. It is mostly useful for tests
// and for values handed to Registry.Attach later.
func New(name string, role Role, defaultValue any, opts ...Option) (*Field, error) {
	f := newField(name, role, reflect.TypeOf(defaultValue), defaultValue, opts)
	if f.checkConvergence {
		return nil, fmt.Errorf("%w: %s", ErrDetachedConvergence, name)
	}
	return f, nil
}

func newField(name string, role Role, typ reflect.Type, defaultValue any, opts []Option) *Field {
	f := &Field{
		name:         name,
		role:         role,
		typ:          typ,
		defaultValue: defaultValue,
		value:        Clone(defaultValue),
		min:          math.Inf(-1),
		max:          math.Inf(1),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Field) Name() string            { return f.name }
func (f *Field) Role() Role              { return f.role }
func (f *Field) Unit() string            { return f.unit }
func (f *Field) Description() string     { return f.description }
func (f *Field) Type() reflect.Type      { return f.typ }
func (f *Field) Value() any              { return f.value }
func (f *Field) Default() any            { return Clone(f.defaultValue) }
func (f *Field) ChecksConvergence() bool { return f.checkConvergence }
func (f *Field) Tolerance() float64      { return f.tolerance }
func (f *Field) MaxIterations() int      { return f.maxIterations }
func (f *Field) Expansion() *Expansion   { return f.expansion }

func (f *Field) Bounds() (float64, float64) { return f.min, f.max }

// Owner returns the name of the owning module, or "" for a detached field.
func (f *Field) Owner() string {
	if f.owner == nil {
		return ""
	}
	return f.owner.owner
}

// Series returns the recorded values. Entries for time steps not yet saved are nil.
func (f *Field) Series() []any { return f.series }

// Set replaces the whole value. The value must have the declared type.
func (f *Field) Set(v any) error {
	if err := f.accepts(v); err != nil {
		return err
	}
	f.value = v
	return nil
}

// Reset restores the default value.
func (f *Field) Reset() { f.value = Clone(f.defaultValue) }

func (f *Field) accepts(v any) error {
	if f.typ == nil {
		return nil
	}
	if v == nil {
		switch f.typ.Kind() {
		case reflect.Interface, reflect.Slice, reflect.Map, reflect.Pointer:
			return nil
		}
		return fmt.Errorf("%w: %s expects %s, got nil", ErrTypeMismatch, f.name, f.typ)
	}
	if !reflect.TypeOf(v).AssignableTo(f.typ) {
		return fmt.Errorf("%w: %s expects %s, got %T", ErrTypeMismatch, f.name, f.typ, v)
	}
	return nil
}

// ElemType returns the element type of a vector field, or nil.
func (f *Field) ElemType() reflect.Type {
	if f.typ == nil {
		return nil
	}
	switch f.typ.Kind() {
	case reflect.Slice, reflect.Array:
		return f.typ.Elem()
	}
	return nil
}

// Element reads one entry of a vector value.
func (f *Field) Element(i int) (any, error) {
	rv := reflect.ValueOf(f.value)
	if !indexable(rv) {
		return nil, fmt.Errorf("%w: %s", ErrNotIndexable, f.name)
	}
	if i < 0 || i >= rv.Len() {
		return nil, fmt.Errorf("%w: %s[%d] (len %d)", ErrIndexOutOfRange, f.name, i, rv.Len())
	}
	return rv.Index(i).Interface(), nil
}

// SetElement writes one entry of a vector value in place.
func (f *Field) SetElement(i int, v any) error {
	rv := reflect.ValueOf(f.value)
	if !indexable(rv) || rv.Kind() == reflect.Array {
		return fmt.Errorf("%w: %s", ErrNotIndexable, f.name)
	}
	if i < 0 || i >= rv.Len() {
		return fmt.Errorf("%w: %s[%d] (len %d)", ErrIndexOutOfRange, f.name, i, rv.Len())
	}
	ev := reflect.ValueOf(v)
	if !ev.IsValid() || !ev.Type().AssignableTo(rv.Type().Elem()) {
		return fmt.Errorf("%w: %s[%d] expects %s, got %T", ErrTypeMismatch, f.name, i, rv.Type().Elem(), v)
	}
	rv.Index(i).Set(ev)
	return nil
}

func indexable(rv reflect.Value) bool {
	if !rv.IsValid() {
		return false
	}
	k := rv.Kind()
	return k == reflect.Slice || k == reflect.Array
}

// CheckBounds reports numeric values outside the declared bounds. Non-numeric
// values are always within bounds.
func (f *Field) CheckBounds() error {
	check := func(v float64) error {
		if v < f.min || v > f.max {
			return fmt.Errorf("%w: %s=%g not in [%g, %g]", ErrOutOfBounds, f.name, v, f.min, f.max)
		}
		return nil
	}
	switch v := f.value.(type) {
	case float64:
		return check(v)
	case []float64:
		for _, x := range v {
			if err := check(x); err != nil {
				return err
			}
		}
	}
	return nil
}

func (f *Field) String() string {
	if f.unit == "" {
		return fmt.Sprintf("%s (%s)", f.name, f.role)
	}
	return fmt.Sprintf("%s [%s] (%s)", f.name, f.unit, f.role)
}
