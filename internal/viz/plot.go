package viz

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/guptarohit/asciigraph"

	"github.com/cible-colibri/colibri-poc-sub000/internal/analysis"
	"github.com/cible-colibri/colibri-poc-sub000/internal/experiment"
)

// Plot charts one column. Values that were never produced leave gaps.
func Plot(col experiment.Column, width, height int) string {
	if analysis.Describe(col.Values).Count == 0 {
		return fmt.Sprintf("%s: no data", col.Name)
	}
	caption := col.Name
	if col.Unit != "" {
		caption += " [" + col.Unit + "]"
	}
	return asciigraph.Plot(col.Values,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Precision(2),
		asciigraph.Caption(caption),
	)
}

// RenderSummary prints the convergence outcome, the run metrics and a
// one-line overview of every column.
func RenderSummary(res *experiment.Result) string {
	s := currentStyles()
	var b strings.Builder

	b.WriteString(s.header.Render(res.Scheme.Name))
	b.WriteString("\n")

	row := func(label, value string) {
		b.WriteString(s.label.Render(label) + s.value.Render(value) + "\n")
	}
	row("time steps", fmt.Sprint(res.Summary.TimeSteps))
	row("simulation time", res.Summary.SimulationTime.String())

	status := s.ok.Render("converged")
	if n := len(res.Summary.NonConvergentTimeSteps); n > 0 {
		status = s.warn.Render(fmt.Sprintf("%d non-convergent: %s", n, formatSteps(res.Summary.NonConvergentTimeSteps, 10)))
	}
	row("status", status)

	for _, name := range slices.Sorted(maps.Keys(res.Metrics)) {
		row(name, fmt.Sprintf("%.3f", res.Metrics[name]))
	}

	if len(res.Columns) > 0 {
		b.WriteString("\n")
		var cols strings.Builder
		for _, c := range res.Columns {
			st := analysis.Describe(c.Values)
			fmt.Fprintf(&cols, "%-36s %s  %s\n",
				c.Name,
				Sparkline(c.Values, 24),
				s.muted.Render(fmt.Sprintf("min %.2f  mean %.2f  max %.2f %s", st.Min, st.Mean, st.Max, c.Unit)))
		}
		b.WriteString(s.panel.Render(strings.TrimRight(cols.String(), "\n")))
		b.WriteString("\n")
	}
	return b.String()
}

func formatSteps(steps []int, limit int) string {
	parts := make([]string, 0, min(len(steps), limit))
	for i, st := range steps {
		if i == limit {
			parts = append(parts, "...")
			break
		}
		parts = append(parts, fmt.Sprint(st))
	}
	return strings.Join(parts, ", ")
}
