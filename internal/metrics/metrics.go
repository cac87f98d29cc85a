package metrics

import "github.com/cible-colibri/colibri-poc-sub000/internal/kernel"

// Metric accumulates one number over the time steps of a run.
type Metric interface {
	kernel.Observer
	Name() string
	Value() float64
	Reset()
}

func Default() []Metric {
	return []Metric{
		NewMeanIterations(),
		NewPeakIterations(),
		NewConvergenceRate(),
		NewNonConvergent(),
	}
}

// Collect reads every metric into a map keyed by name.
func Collect(ms []Metric) map[string]float64 {
	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		out[m.Name()] = m.Value()
	}
	return out
}

// Observers adapts metrics for kernel.Orchestrator.AddObserver.
func Observers(ms []Metric) []kernel.Observer {
	out := make([]kernel.Observer, len(ms))
	for i, m := range ms {
		out[i] = m
	}
	return out
}
