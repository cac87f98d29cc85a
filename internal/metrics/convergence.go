package metrics

import "github.com/cible-colibri/colibri-poc-sub000/internal/kernel"

// ConvergenceRate is the fraction of time steps that converged before the
// iteration cap. An empty run counts as fully converged.
type ConvergenceRate struct {
	name      string
	converged int
	samples   int
}

func NewConvergenceRate() *ConvergenceRate {
	return &ConvergenceRate{
		name: "convergence_rate",
	}
}

func (c *ConvergenceRate) Name() string {
	return c.name
}

func (c *ConvergenceRate) OnTimeStep(r kernel.StepReport) {
	c.samples++
	if r.Converged {
		c.converged++
	}
}

func (c *ConvergenceRate) Value() float64 {
	if c.samples == 0 {
		return 1.0
	}
	return float64(c.converged) / float64(c.samples)
}

func (c *ConvergenceRate) Reset() {
	c.converged = 0
	c.samples = 0
}

type NonConvergent struct {
	name  string
	count int
}

func NewNonConvergent() *NonConvergent {
	return &NonConvergent{
		name: "non_convergent_steps",
	}
}

func (n *NonConvergent) Name() string {
	return n.name
}

func (n *NonConvergent) OnTimeStep(r kernel.StepReport) {
	if !r.Converged {
		n.count++
	}
}

func (n *NonConvergent) Value() float64 { return float64(n.count) }
func (n *NonConvergent) Reset()         { n.count = 0 }
