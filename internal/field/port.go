package field

// Port is the typed accessor a module keeps for one of its fields.
type Port[T any] struct {
	f *Field
}

// Get returns the live value. For vectors this is the backing slice, not a copy.
func (p Port[T]) Get() T {
	v, _ := p.f.value.(T)
	return v
}

func (p Port[T]) Set(v T) { p.f.value = v }

func (p Port[T]) Name() string  { return p.f.name }
func (p Port[T]) Field() *Field { return p.f }

// Bound reports whether the port was obtained from a declaration.
func (p Port[T]) Bound() bool { return p.f != nil }
