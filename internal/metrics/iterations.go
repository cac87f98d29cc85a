package metrics

import "github.com/cible-colibri/colibri-poc-sub000/internal/kernel"

type MeanIterations struct {
	name    string
	sum     int
	samples int
}

func NewMeanIterations() *MeanIterations {
	return &MeanIterations{
		name: "mean_iterations",
	}
}

func (m *MeanIterations) Name() string { return m.name }

func (m *MeanIterations) OnTimeStep(r kernel.StepReport) {
	m.sum += r.Iterations
	m.samples++
}

func (m *MeanIterations) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return float64(m.sum) / float64(m.samples)
}

func (m *MeanIterations) Reset() {
	m.sum = 0
	m.samples = 0
}

// PeakIterations is the largest number of passes any time step needed.
type PeakIterations struct {
	name string
	peak int
}

func NewPeakIterations() *PeakIterations {
	return &PeakIterations{
		name: "peak_iterations",
	}
}

func (p *PeakIterations) Name() string { return p.name }

func (p *PeakIterations) OnTimeStep(r kernel.StepReport) {
	p.peak = max(p.peak, r.Iterations)
}

func (p *PeakIterations) Value() float64 { return float64(p.peak) }
func (p *PeakIterations) Reset()         { p.peak = 0 }
