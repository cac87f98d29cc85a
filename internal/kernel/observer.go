package kernel

import (
	"encoding/json"
	"strconv"
	"time"
)

// StepReport describes how one time step went.
type StepReport struct {
	TimeStep   int
	Iterations int
	Converged  bool
}

type Observer interface {
	OnTimeStep(r StepReport)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(StepReport)

func (f ObserverFunc) OnTimeStep(r StepReport) { f(r) }

// Summary is what Run returns. A run converged everywhere when
// NonConvergentTimeSteps is empty.
type Summary struct {
	NonConvergentTimeSteps []int
	SimulationTime         time.Duration
	TimeSteps              int
	// Iterations holds the number of passes each time step took.
	Iterations []int
}

func (s *Summary) Converged() bool { return len(s.NonConvergentTimeSteps) == 0 }

// MarshalJSON renders the summary as
// {"non_convergent_time_steps": [...], "simulation_time": "<seconds>"}.
func (s *Summary) MarshalJSON() ([]byte, error) {
	steps := s.NonConvergentTimeSteps
	if steps == nil {
		steps = []int{}
	}
	return json.Marshal(struct {
		NonConvergentTimeSteps []int  `json:"non_convergent_time_steps"`
		SimulationTime         string `json:"simulation_time"`
	}{
		NonConvergentTimeSteps: steps,
		SimulationTime:         strconv.FormatFloat(s.SimulationTime.Seconds(), 'f', -1, 64),
	})
}
