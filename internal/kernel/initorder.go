package kernel

import (
	"fmt"
	"strings"
)

// InitStrategy selects how modules are initialized before the first time step.
type InitStrategy int

const (
	// InitTopological initializes producers before consumers, following the
	// link graph, and falls back to bounded retry passes for modules on a
	// dependency cycle.
	InitTopological InitStrategy = iota

	// InitBoundedRetry makes a fixed number of passes over the modules in
	// registration order, propagating links between passes.
	InitBoundedRetry
)

// DefaultInitPasses bounds the retry passes of either strategy.
const DefaultInitPasses = 3

func (s InitStrategy) String() string {
	switch s {
	case InitTopological:
		return "topological"
	case InitBoundedRetry:
		return "retry"
	default:
		return "unknown"
	}
}

func ParseInitStrategy(s string) (InitStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "topological":
		return InitTopological, nil
	case "retry", "bounded_retry":
		return InitBoundedRetry, nil
	}
	return 0, fmt.Errorf("kernel: unknown init strategy %q", s)
}

// InitOrder is the result of ordering modules by their link dependencies. It
// is either Ordered or Cyclic.
type InitOrder interface {
	Modules() []Module
	initOrder()
}

// Ordered is a complete producer-before-consumer sequence.
type Ordered struct {
	Sequence []Module
}

// Cyclic is an acyclic prefix plus the modules that sit on, or downstream
// of, a dependency cycle, in registration order.
type Cyclic struct {
	Sequence []Module
	Residual []Module
}

func (o Ordered) Modules() []Module { return o.Sequence }
func (c Cyclic) Modules() []Module  { return append(append([]Module{}, c.Sequence...), c.Residual...) }

func (Ordered) initOrder() {}
func (Cyclic) initOrder()  {}

// PlanInitialization sorts modules topologically over the link graph. Ties
// are broken by registration order so the plan is deterministic. Self links
// are ignored.
func PlanInitialization(modules []Module, links []Link) InitOrder {
	index := make(map[string]int, len(modules))
	for i, m := range modules {
		index[m.Name()] = i
	}

	inDegree := make([]int, len(modules))
	dependents := make([][]int, len(modules))
	seen := make(map[[2]int]bool)
	for _, l := range links {
		from, okFrom := index[l.FromModule]
		to, okTo := index[l.ToModule]
		if !okFrom || !okTo || from == to || seen[[2]int{from, to}] {
			continue
		}
		seen[[2]int{from, to}] = true
		dependents[from] = append(dependents[from], to)
		inDegree[to]++
	}

	done := make([]bool, len(modules))
	sequence := make([]Module, 0, len(modules))
	for {
		next := -1
		for i := range modules {
			if !done[i] && inDegree[i] == 0 {
				next = i
				break
			}
		}
		if next == -1 {
			break
		}
		done[next] = true
		sequence = append(sequence, modules[next])
		for _, d := range dependents[next] {
			inDegree[d]--
		}
	}

	if len(sequence) == len(modules) {
		return Ordered{Sequence: sequence}
	}

	residual := make([]Module, 0, len(modules)-len(sequence))
	for i, m := range modules {
		if !done[i] {
			residual = append(residual, m)
		}
	}
	return Cyclic{Sequence: sequence, Residual: residual}
}
