package field

import "errors"

var (
	// ErrDetachedConvergence indicates a convergence policy on a field that has
	// no owning registry to track it.
	ErrDetachedConvergence = errors.New("field: convergence policy requires an owning module")

	// ErrDuplicateField indicates two declarations with the same name on one module.
	ErrDuplicateField = errors.New("field: duplicate field name")

	// ErrTypeMismatch indicates a value whose type differs from the declared one.
	ErrTypeMismatch = errors.New("field: value type mismatch")

	// ErrNotIndexable indicates an indexed access on a non-vector field.
	ErrNotIndexable = errors.New("field: value is not indexable")

	// ErrIndexOutOfRange indicates an index past the end of a vector value.
	ErrIndexOutOfRange = errors.New("field: index out of range")

	// ErrOutOfBounds indicates a numeric value outside the declared bounds.
	ErrOutOfBounds = errors.New("field: value out of bounds")
)
