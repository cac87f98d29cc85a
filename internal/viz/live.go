package viz

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/cible-colibri/colibri-poc-sub000/internal/experiment"
	"github.com/cible-colibri/colibri-poc-sub000/internal/kernel"
)

const liveWidth = 60

// StepMsg carries one finished time step into the live view.
type StepMsg kernel.StepReport

// DoneMsg ends a run.
type DoneMsg struct {
	Result *experiment.Result
	Err    error
}

// Feed forwards step reports to a live view. Give it enough buffer for every
// time step plus the final DoneMsg so that the run never blocks on a view
// that has already quit.
type Feed chan tea.Msg

var _ kernel.Observer = Feed(nil)

func (f Feed) OnTimeStep(r kernel.StepReport) { f <- StepMsg(r) }

func waitFor(updates <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-updates
		if !ok {
			return DoneMsg{}
		}
		return msg
	}
}

// Live follows a running experiment: progress, passes per step and
// convergence failures, then the run summary.
type Live struct {
	scheme     string
	steps      int
	updates    <-chan tea.Msg
	progress   progress.Model
	iterations []float64
	failed     []int
	last       kernel.StepReport
	result     *experiment.Result
	err        error
	done       bool
}

func NewLive(scheme string, steps int, updates <-chan tea.Msg) Live {
	return Live{
		scheme:   scheme,
		steps:    steps,
		updates:  updates,
		progress: progress.New(progress.WithDefaultGradient(), progress.WithWidth(liveWidth)),
	}
}

func (m Live) Init() tea.Cmd {
	return waitFor(m.updates)
}

func (m Live) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "t":
			SetTheme(nextTheme().Name)
		}
	case tea.WindowSizeMsg:
		m.progress.Width = max(10, min(liveWidth, msg.Width-4))
	case StepMsg:
		r := kernel.StepReport(msg)
		m.last = r
		m.iterations = append(m.iterations, float64(r.Iterations))
		if !r.Converged {
			m.failed = append(m.failed, r.TimeStep)
		}
		return m, waitFor(m.updates)
	case DoneMsg:
		m.done = true
		m.result, m.err = msg.Result, msg.Err
	}
	return m, nil
}

func (m Live) View() string {
	s := currentStyles()
	var b strings.Builder

	b.WriteString(s.header.Render("colibri · " + m.scheme))
	b.WriteString("\n")

	done := len(m.iterations)
	percent := 0.0
	if m.steps > 0 {
		percent = float64(done) / float64(m.steps)
	}
	b.WriteString(m.progress.ViewAs(min(percent, 1)))
	b.WriteString(fmt.Sprintf("  %d/%d\n\n", done, m.steps))

	b.WriteString(s.label.Render("passes per step") + Sparkline(m.iterations, m.progress.Width) + "\n")
	if done > 0 {
		b.WriteString(s.label.Render("last step") + s.value.Render(fmt.Sprintf("%d in %d passes", m.last.TimeStep, m.last.Iterations)) + "\n")
	}
	if len(m.failed) > 0 {
		b.WriteString(s.label.Render("non-convergent") + s.warn.Render(formatSteps(m.failed, 8)) + "\n")
	}

	switch {
	case m.err != nil:
		b.WriteString("\n" + s.fail.Render("error: "+m.err.Error()) + "\n")
	case m.done && m.result != nil:
		b.WriteString("\n" + RenderSummary(m.result))
	}

	b.WriteString("\n" + s.muted.Render("q quit · t theme") + "\n")
	return b.String()
}

// Err returns the error the run ended with, if any.
func (m Live) Err() error { return m.err }

// Done reports whether the run has finished.
func (m Live) Done() bool { return m.done }
