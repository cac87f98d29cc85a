package kernel

import (
	"fmt"
	"reflect"

	"github.com/cible-colibri/colibri-poc-sub000/internal/field"
)

// NoIndex marks a link endpoint that addresses the whole field value.
const NoIndex = -1

// Link is a directed edge from an output (or parameter) of one module to an
// input (or parameter) of another. Links are immutable once created.
type Link struct {
	FromModule string
	FromField  string
	ToModule   string
	ToField    string
	IndexFrom  int
	IndexTo    int
}

func (l Link) From() Address { return Address{Module: l.FromModule, Field: l.FromField, Index: l.IndexFrom} }
func (l Link) To() Address   { return Address{Module: l.ToModule, Field: l.ToField, Index: l.IndexTo} }

func (l Link) String() string {
	return l.From().String() + " -> " + l.To().String()
}

type LinkOption func(*Link)

// WithIndexFrom reads a single element of a vector source.
func WithIndexFrom(i int) LinkOption {
	return func(l *Link) { l.IndexFrom = i }
}

// WithIndexTo writes into a single element of a vector target.
func WithIndexTo(i int) LinkOption {
	return func(l *Link) { l.IndexTo = i }
}

// edge is a link resolved against the live fields.
type edge struct {
	Link
	src, dst  *field.Field
	to        int
	parameter bool
}

// propagate copies the source value into the target. Whole values are cloned
// so the target never aliases the source.
func (e *edge) propagate() error {
	v := e.src.Value()
	if e.IndexFrom != NoIndex {
		var err error
		if v, err = e.src.Element(e.IndexFrom); err != nil {
			return fmt.Errorf("kernel: link %s: %w", e.Link, err)
		}
	}
	if e.IndexTo != NoIndex {
		if err := e.dst.SetElement(e.IndexTo, v); err != nil {
			return fmt.Errorf("kernel: link %s: %w", e.Link, err)
		}
		return nil
	}
	if err := e.dst.Set(field.Clone(v)); err != nil {
		return fmt.Errorf("kernel: link %s: %w", e.Link, err)
	}
	return nil
}

func checkRoles(l Link, src, dst *field.Field) (parameter bool, err error) {
	if src.Role() == field.RoleInput {
		return false, fmt.Errorf("%w: source %s.%s is an input", ErrInvalidRole, l.FromModule, l.FromField)
	}
	if dst.Role() == field.RoleOutput {
		return false, fmt.Errorf("%w: target %s.%s is an output", ErrInvalidRole, l.ToModule, l.ToField)
	}
	return src.Role() == field.RoleParameter && dst.Role() == field.RoleParameter, nil
}

func checkTypes(l Link, src, dst *field.Field) error {
	srcType, err := endpointType(src, l.IndexFrom)
	if err != nil {
		return fmt.Errorf("kernel: link %s: %w", l, err)
	}
	dstType, err := endpointType(dst, l.IndexTo)
	if err != nil {
		return fmt.Errorf("kernel: link %s: %w", l, err)
	}
	if srcType == nil || dstType == nil {
		return nil
	}
	if !srcType.AssignableTo(dstType) {
		return fmt.Errorf("%w: link %s carries %s into %s", ErrTypeMismatch, l, srcType, dstType)
	}
	return nil
}

func endpointType(f *field.Field, index int) (reflect.Type, error) {
	if index == NoIndex {
		return f.Type(), nil
	}
	if index < 0 {
		return nil, fmt.Errorf("%w: %s[%d]", field.ErrIndexOutOfRange, f.Name(), index)
	}
	elem := f.ElemType()
	if elem == nil {
		return nil, fmt.Errorf("%w: %s", field.ErrNotIndexable, f.Name())
	}
	return elem, nil
}

// targetsOverlap reports whether two links write to the same input. An
// unindexed target overlaps every link into the same field.
func targetsOverlap(a, b Link) bool {
	if a.ToModule != b.ToModule || a.ToField != b.ToField {
		return false
	}
	return a.IndexTo == NoIndex || b.IndexTo == NoIndex || a.IndexTo == b.IndexTo
}
