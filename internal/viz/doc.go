// Package viz renders simulation results in the terminal.
//
//   - [Plot]: an asciigraph chart of one output column
//   - [RenderSummary]: convergence and metric overview of a run
//   - [Live]: a Bubble Tea program that follows a run step by step
//
// Colors come from the current [Theme], selectable with [SetTheme].
//
// # Key Bindings (live view)
//
//	q, ctrl+c - Quit
//	t         - Cycle color themes
package viz
