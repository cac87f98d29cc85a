// Package kernel schedules co-simulation modules over discrete time steps.
//
// The package defines the contract every computation unit implements and the
// orchestrator that drives them:
//
//   - [Module]: lifecycle contract (initialize, run, end-of-iteration,
//     end-of-time-step and end-of-simulation hooks, convergence query)
//   - [Base]: embeddable defaults and access to the module's fields
//   - [Link]: directed edge from one module's output to another's input
//   - [Orchestrator]: link graph plus the fixed-point iteration scheduler
//
// # Scheduling
//
// For every time step the orchestrator repeats a pass until every module
// reports convergence or the iteration cap is exceeded. A pass runs every
// module in registration order, propagating the links into a module right
// before it runs. A module therefore sees values produced earlier in the same
// pass (Gauss–Seidel style), and values from the previous pass for modules
// that run after it.
// A time step that hits the cap is recorded as non-convergent and the run
// carries on with the last computed values.
//
// # Example
//
//	o := kernel.New(kernel.WithTimeSteps(24), kernel.WithMaxIterations(10))
//	_ = o.AddModule(weather)
//	_ = o.AddModule(zone)
//	if err := o.CreateLinksAutomatically(); err != nil {
//	    return err
//	}
//	summary, err := o.Run()
//
// # Thread Safety
//
// Orchestrator instances are NOT thread-safe and run every module on the
// calling goroutine.
package kernel
