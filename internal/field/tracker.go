package field

import "reflect"

// Tracker follows the fields of a registry that declare a convergence policy
// and decides, pass after pass, whether they have settled.
type Tracker struct {
	fields   []*Field
	previous map[*Field]any
	seen     bool
}

func NewTracker(r *Registry) *Tracker {
	t := &Tracker{previous: make(map[*Field]any)}
	for _, f := range r.order {
		if f.checkConvergence {
			t.fields = append(t.fields, f)
		}
	}
	return t
}

// Fields returns the tracked fields in registration order.
func (t *Tracker) Fields() []*Field { return t.fields }

// Converged compares the current values with the ones seen on the previous
// call and records the current values for the next one. The first call after
// a Reset never reports convergence unless nothing is tracked.
func (t *Tracker) Converged(iteration int) bool {
	converged := t.seen
	for _, f := range t.fields {
		if !t.settled(f, iteration) {
			converged = false
		}
		t.previous[f] = Clone(f.value)
	}
	t.seen = true
	return converged || len(t.fields) == 0
}

func (t *Tracker) settled(f *Field, iteration int) bool {
	if f.maxIterations > 0 && iteration > f.maxIterations {
		return true
	}
	prev, ok := t.previous[f]
	if !ok {
		return false
	}
	if d, ok := Distance(f.value, prev); ok {
		return d < f.tolerance
	}
	return reflect.DeepEqual(f.value, prev)
}

// Reset forgets the recorded values; call it at the end of each time step.
func (t *Tracker) Reset() {
	clear(t.previous)
	t.seen = false
}
