package kernel_test

import (
	"encoding/json"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/cible-colibri/colibri-poc-sub000/internal/kernel"
)

var _ = Describe("Orchestrator", func() {
	Describe("a static chain without iteration", func() {
		It("propagates M1.x into M2 on every step", func() {
			o := kernel.New(kernel.WithTimeSteps(3), kernel.WithIterateForConvergence(false))
			m1, m2 := newSource("M1", "x", 5), newDoubler("M2")
			Expect(o.AddModule(m1)).To(Succeed())
			Expect(o.AddModule(m2)).To(Succeed())
			Expect(o.AddLink(m1, "x", m2, "x")).To(Succeed())

			summary, err := o.Run()
			Expect(err).NotTo(HaveOccurred())
			Expect(summary.NonConvergentTimeSteps).To(BeEmpty())
			Expect(summary.Iterations).To(Equal([]int{1, 1, 1}))

			series, ok := m2.Fields().FloatSeries("y")
			Expect(ok).To(BeTrue())
			Expect(series).To(Equal([]float64{10, 10, 10}))
		})

		It("sees upstream values produced earlier in the same pass", func() {
			o := kernel.New(kernel.WithTimeSteps(2), kernel.WithIterateForConvergence(false))
			c, w := newCounter("c"), newWatcher("w")
			Expect(o.AddModule(c)).To(Succeed())
			Expect(o.AddModule(w)).To(Succeed())
			Expect(o.AddLink(c, "v", w, "v")).To(Succeed())

			_, err := o.Run()
			Expect(err).NotTo(HaveOccurred())
			Expect(w.seen).To(Equal([]float64{1, 2}))
		})

		It("gives a downstream-registered producer's value from the previous pass", func() {
			o := kernel.New(kernel.WithTimeSteps(2), kernel.WithIterateForConvergence(false))
			w, c := newWatcher("w"), newCounter("c")
			Expect(o.AddModule(w)).To(Succeed())
			Expect(o.AddModule(c)).To(Succeed())
			Expect(o.AddLink(c, "v", w, "v")).To(Succeed())

			_, err := o.Run()
			Expect(err).NotTo(HaveOccurred())
			Expect(w.seen).To(Equal([]float64{0, 1}))
		})
	})

	Describe("convergence", func() {
		It("records every step of a never-settling pair as non-convergent", func() {
			o := kernel.New(kernel.WithTimeSteps(4), kernel.WithMaxIterations(2))
			m1, m2 := newCounter("M1"), newWatcher("M2")
			Expect(o.AddModule(m1)).To(Succeed())
			Expect(o.AddModule(m2)).To(Succeed())
			Expect(o.AddLink(m1, "v", m2, "v")).To(Succeed())

			summary, err := o.Run()
			Expect(err).NotTo(HaveOccurred())
			Expect(summary.NonConvergentTimeSteps).To(Equal([]int{0, 1, 2, 3}))
			Expect(summary.Iterations).To(Equal([]int{3, 3, 3, 3}))
			Expect(summary.Converged()).To(BeFalse())
			Expect(m1.runs).To(Equal(12))
			Expect(o.CurrentIteration()).To(Equal(3))
			Expect(o.NonConvergentTimeSteps()).To(Equal([]int{0, 1, 2, 3}))
		})

		It("runs exactly cap+1 passes before giving up", func() {
			for _, limit := range []int{0, 1, 5} {
				o := kernel.New(kernel.WithMaxIterations(limit))
				s := &stubborn{Base: kernel.NewBase("s")}
				Expect(o.AddModule(s)).To(Succeed())

				summary, err := o.Run()
				Expect(err).NotTo(HaveOccurred())
				Expect(s.runs).To(Equal(limit + 1))
				Expect(summary.NonConvergentTimeSteps).To(Equal([]int{0}))
			}
		})

		It("records a step that only settles on the last allowed pass", func() {
			var log []string
			o := kernel.New(kernel.WithTimeSteps(2), kernel.WithMaxIterations(2))
			j := newJournal("j", &log, 3)
			Expect(o.AddModule(j)).To(Succeed())

			summary, err := o.Run()
			Expect(err).NotTo(HaveOccurred())
			Expect(summary.Iterations).To(Equal([]int{3, 3}))
			Expect(summary.NonConvergentTimeSteps).To(Equal([]int{0, 1}))
		})

		It("does not record a step that settles within the cap", func() {
			var log []string
			o := kernel.New(kernel.WithMaxIterations(3))
			j := newJournal("j", &log, 3)
			Expect(o.AddModule(j)).To(Succeed())

			summary, err := o.Run()
			Expect(err).NotTo(HaveOccurred())
			Expect(summary.Iterations).To(Equal([]int{3}))
			Expect(summary.NonConvergentTimeSteps).To(BeEmpty())
		})

		It("records single-pass steps when the cap is zero", func() {
			o := kernel.New(kernel.WithTimeSteps(3), kernel.WithIterateForConvergence(false), kernel.WithMaxIterations(0))
			s := &stubborn{Base: kernel.NewBase("s")}
			Expect(o.AddModule(s)).To(Succeed())

			summary, err := o.Run()
			Expect(err).NotTo(HaveOccurred())
			Expect(s.runs).To(Equal(3))
			Expect(summary.NonConvergentTimeSteps).To(Equal([]int{0, 1, 2}))
		})

		It("runs one pass per step when iteration is disabled", func() {
			o := kernel.New(kernel.WithTimeSteps(5), kernel.WithIterateForConvergence(false))
			s := &stubborn{Base: kernel.NewBase("s")}
			Expect(o.AddModule(s)).To(Succeed())

			summary, err := o.Run()
			Expect(err).NotTo(HaveOccurred())
			Expect(s.runs).To(Equal(5))
			Expect(summary.NonConvergentTimeSteps).To(BeEmpty())
		})

		It("queries every module even after one declined", func() {
			o := kernel.New(kernel.WithMaxIterations(3))
			s := &stubborn{Base: kernel.NewBase("s")}
			w := newWatcher("w")
			Expect(o.AddModule(s)).To(Succeed())
			Expect(o.AddModule(w)).To(Succeed())

			_, err := o.Run()
			Expect(err).NotTo(HaveOccurred())
			Expect(w.queries).To(Equal(4))
		})

		It("stops as soon as all modules agree", func() {
			var log []string
			o := kernel.New(kernel.WithTimeSteps(2))
			j := newJournal("j", &log, 2)
			Expect(o.AddModule(j)).To(Succeed())

			summary, err := o.Run()
			Expect(err).NotTo(HaveOccurred())
			Expect(summary.Iterations).To(Equal([]int{2, 2}))
			Expect(summary.NonConvergentTimeSteps).To(BeEmpty())
			Expect(o.HasConverged()).To(BeTrue())
		})
	})

	Describe("lifecycle", func() {
		It("calls hooks in order and saves once per step after the loop", func() {
			var log []string
			o := kernel.New(kernel.WithTimeSteps(2))
			j := newJournal("j", &log, 2)
			Expect(o.AddModule(j)).To(Succeed())

			_, err := o.Run()
			Expect(err).NotTo(HaveOccurred())
			step := []string{"run", "end_iteration", "run", "end_iteration", "save", "end_time_step"}
			expected := append([]string{"initialize"}, step...)
			expected = append(expected, step...)
			expected = append(expected, "end_simulation")
			Expect(log).To(Equal(expected))
		})

		It("stores snapshots that later mutation cannot reach", func() {
			var log []string
			o := kernel.New(kernel.WithTimeSteps(2))
			j := newJournal("j", &log, 1)
			Expect(o.AddModule(j)).To(Succeed())

			_, err := o.Run()
			Expect(err).NotTo(HaveOccurred())
			series, ok := j.Series("profile")
			Expect(ok).To(BeTrue())
			Expect(series).To(Equal([]any{[]float64{0, 1}, []float64{1, 1}}))
		})

		It("propagates parameter links before initialization", func() {
			o := kernel.New()
			src, dst := newSettings("src", 60), newSettings("dst", 0)
			Expect(o.AddModule(src)).To(Succeed())
			Expect(o.AddModule(dst)).To(Succeed())
			Expect(o.AddLink(src, "time_step_seconds", dst, "time_step_seconds")).To(Succeed())

			_, err := o.Run()
			Expect(err).NotTo(HaveOccurred())
			Expect(dst.atInit).To(Equal(60.0))
			Expect(dst.initCalled).To(Equal(1))
		})

		It("wraps module failures with their context", func() {
			o := kernel.New(kernel.WithTimeSteps(3))
			Expect(o.AddModule(&faulty{Base: kernel.NewBase("bad"), failAt: 1})).To(Succeed())

			summary, err := o.Run()
			Expect(summary).To(BeNil())
			Expect(err).To(MatchError(errBoom))

			var me *kernel.ModuleError
			Expect(errors.As(err, &me)).To(BeTrue())
			Expect(me.Module).To(Equal("bad"))
			Expect(me.Phase).To(Equal("run"))
			Expect(me.TimeStep).To(Equal(1))
			Expect(me.Iteration).To(Equal(1))
		})

		It("notifies observers after every step", func() {
			o := kernel.New(kernel.WithTimeSteps(3), kernel.WithMaxIterations(1))
			Expect(o.AddModule(&stubborn{Base: kernel.NewBase("s")})).To(Succeed())

			var reports []kernel.StepReport
			o.AddObserver(kernel.ObserverFunc(func(r kernel.StepReport) { reports = append(reports, r) }))

			_, err := o.Run()
			Expect(err).NotTo(HaveOccurred())
			Expect(reports).To(HaveLen(3))
			Expect(reports[2]).To(Equal(kernel.StepReport{TimeStep: 2, Iterations: 2, Converged: false}))
		})
	})

	Describe("duplicate link targets", func() {
		It("rejects the second writer and names the first", func() {
			o := kernel.New()
			m1, m2, m3 := newSource("M1", "a", 1), newDoubler("M2"), newSource("M3", "c", 1)
			for _, m := range []kernel.Module{m1, m2, m3} {
				Expect(o.AddModule(m)).To(Succeed())
			}
			Expect(o.AddLink(m1, "a", m2, "x")).To(Succeed())

			err := o.AddLink(m3, "c", m2, "x")
			Expect(err).To(MatchError(kernel.ErrDuplicateLinkTarget))
			Expect(err.Error()).To(ContainSubstring("M1"))
			Expect(o.Links()).To(HaveLen(1))
		})
	})

	Describe("initialization", func() {
		// chain registers consumers before producers: tail first, root last.
		chain := func(o *kernel.Orchestrator, depth int) []*chainLink {
			ms := make([]*chainLink, depth)
			for i := range ms {
				ms[i] = newChainLink(string(rune('a'+i)), i == depth-1)
			}
			for _, m := range ms {
				Expect(o.AddModule(m)).To(Succeed())
			}
			for i := depth - 1; i > 0; i-- {
				Expect(o.AddLink(ms[i], "out", ms[i-1], "in")).To(Succeed())
			}
			return ms
		}

		It("initializes a short chain within the retry bound", func() {
			o := kernel.New(kernel.WithInitStrategy(kernel.InitBoundedRetry))
			ms := chain(o, 3)

			_, err := o.Run()
			Expect(err).NotTo(HaveOccurred())
			for _, m := range ms {
				Expect(m.IsInitialized()).To(BeTrue(), m.Name())
			}
		})

		It("leaves a deeper chain silently uninitialized under bounded retry", func() {
			o := kernel.New(kernel.WithInitStrategy(kernel.InitBoundedRetry))
			ms := chain(o, 4)

			summary, err := o.Run()
			Expect(err).NotTo(HaveOccurred())
			Expect(summary).NotTo(BeNil())
			Expect(ms[0].IsInitialized()).To(BeFalse())
			Expect(ms[1].IsInitialized()).To(BeTrue())
		})

		It("initializes acyclic chains of any depth in dependency order", func() {
			o := kernel.New()
			ms := chain(o, 8)

			_, err := o.Run()
			Expect(err).NotTo(HaveOccurred())
			for _, m := range ms {
				Expect(m.IsInitialized()).To(BeTrue(), m.Name())
			}
			Expect(ms[0].out.Get()).To(Equal(8.0))
		})

		It("falls back to retry passes for modules on a cycle", func() {
			o := kernel.New(kernel.WithInitPasses(2))
			x, y := newChainLink("x", true), newChainLink("y", false)
			Expect(o.AddModule(y)).To(Succeed())
			Expect(o.AddModule(x)).To(Succeed())
			Expect(o.AddLink(x, "out", y, "in")).To(Succeed())
			Expect(o.AddLink(y, "out", x, "in")).To(Succeed())
			Expect(kernel.PlanInitialization(o.Modules(), o.Links())).To(BeAssignableToTypeOf(kernel.Cyclic{}))

			_, err := o.Run()
			Expect(err).NotTo(HaveOccurred())
			Expect(x.IsInitialized()).To(BeTrue())
			Expect(y.IsInitialized()).To(BeTrue())
		})
	})

	Describe("summary", func() {
		It("serializes to the two documented keys", func() {
			s := &kernel.Summary{NonConvergentTimeSteps: []int{2, 5}, SimulationTime: 1500 * time.Millisecond}
			b, err := json.Marshal(s)
			Expect(err).NotTo(HaveOccurred())
			Expect(b).To(MatchJSON(`{"non_convergent_time_steps":[2,5],"simulation_time":"1.5"}`))

			empty, err := json.Marshal(&kernel.Summary{})
			Expect(err).NotTo(HaveOccurred())
			Expect(empty).To(MatchJSON(`{"non_convergent_time_steps":[],"simulation_time":"0"}`))
		})
	})
})
