package optim

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/cible-colibri/colibri-poc-sub000/internal/config"
	"github.com/cible-colibri/colibri-poc-sub000/internal/experiment"
)

// Param is one swept module parameter, addressed as "module.param".
type Param struct {
	Module string
	Name   string
	Values []float64
}

func (p Param) Key() string { return p.Module + "." + p.Name }

// ParseParam reads "module.param=v1,v2,...".
func ParseParam(s string) (Param, error) {
	key, list, ok := strings.Cut(s, "=")
	if !ok {
		return Param{}, fmt.Errorf("optim: %q: expected module.param=v1,v2", s)
	}
	module, name, ok := strings.Cut(strings.TrimSpace(key), ".")
	if !ok || module == "" || name == "" {
		return Param{}, fmt.Errorf("optim: %q: expected module.param", key)
	}

	p := Param{Module: module, Name: name}
	for _, raw := range strings.Split(list, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return Param{}, fmt.Errorf("optim: %s: %w", p.Key(), err)
		}
		p.Values = append(p.Values, v)
	}
	return p, nil
}

// Point assigns one value to every swept parameter.
type Point map[string]float64

type Trial struct {
	Point         Point
	Metrics       map[string]float64
	NonConvergent []int
}

type Report struct {
	Metric string
	Trials []Trial
	// Best indexes the trial with the lowest metric, -1 when none ran.
	Best int
}

// BestTrial returns the winning trial.
func (r *Report) BestTrial() (Trial, bool) {
	if r.Best < 0 {
		return Trial{}, false
	}
	return r.Trials[r.Best], true
}

// GridSearch runs a scheme once per point of the cartesian product of its
// parameters. Each run owns its orchestrator, so points run concurrently.
type GridSearch struct {
	params  []Param
	workers int
}

func NewGridSearch(params ...Param) *GridSearch {
	return &GridSearch{params: params, workers: runtime.NumCPU()}
}

// WithWorkers bounds the number of concurrent runs.
func (g *GridSearch) WithWorkers(n int) *GridSearch {
	g.workers = max(1, n)
	return g
}

// Points enumerates the grid, first parameter outermost.
func (g *GridSearch) Points() []Point {
	var points []Point
	g.enumerate(0, Point{}, &points)
	return points
}

func (g *GridSearch) enumerate(depth int, current Point, points *[]Point) {
	if depth == len(g.params) {
		p := make(Point, len(current))
		for k, v := range current {
			p[k] = v
		}
		*points = append(*points, p)
		return
	}
	param := g.params[depth]
	for _, v := range param.Values {
		current[param.Key()] = v
		g.enumerate(depth+1, current, points)
	}
	delete(current, param.Key())
}

// Search runs every point on a copy of base and ranks the trials by metric,
// lowest first. The first failing run cancels the remaining ones.
func (g *GridSearch) Search(ctx context.Context, base *config.Config, registry *experiment.Registry, metric string) (*Report, error) {
	points := g.Points()
	report := &Report{Metric: metric, Trials: make([]Trial, len(points)), Best: -1}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers)
	for i, point := range points {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			cfg, err := apply(base, point)
			if err != nil {
				return err
			}
			exp := experiment.New(cfg, registry, nil)
			if err := exp.Setup(); err != nil {
				return fmt.Errorf("optim: point %v: %w", point, err)
			}
			res, err := exp.Run()
			if err != nil {
				return fmt.Errorf("optim: point %v: %w", point, err)
			}
			report.Trials[i] = Trial{Point: point, Metrics: res.Metrics, NonConvergent: res.Summary.NonConvergentTimeSteps}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	best := math.Inf(1)
	for i, t := range report.Trials {
		v, ok := t.Metrics[metric]
		if !ok {
			return nil, fmt.Errorf("optim: unknown metric %q", metric)
		}
		if v < best {
			best, report.Best = v, i
		}
	}
	return report, nil
}

func apply(base *config.Config, point Point) (*config.Config, error) {
	cfg := base.Clone()
	for key, v := range point {
		module, name, _ := strings.Cut(key, ".")
		found := false
		for i := range cfg.Modules {
			if cfg.Modules[i].Name != module {
				continue
			}
			if cfg.Modules[i].Params == nil {
				cfg.Modules[i].Params = map[string]any{}
			}
			cfg.Modules[i].Params[name] = v
			found = true
		}
		if !found {
			return nil, fmt.Errorf("optim: no module %q in scheme %s", module, cfg.Name)
		}
	}
	return cfg, nil
}
