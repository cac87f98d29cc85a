package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/cible-colibri/colibri-poc-sub000/internal/analysis"
	"github.com/cible-colibri/colibri-poc-sub000/internal/config"
	"github.com/cible-colibri/colibri-poc-sub000/internal/experiment"
	"github.com/cible-colibri/colibri-poc-sub000/internal/logging"
	"github.com/cible-colibri/colibri-poc-sub000/internal/optim"
	"github.com/cible-colibri/colibri-poc-sub000/internal/storage"
	"github.com/cible-colibri/colibri-poc-sub000/internal/viz"
)

const defaultPreset = "single_zone"

var (
	dataDir   string
	logLevel  string
	logFormat string
	theme     string
	logger    *slog.Logger
	// Scheme overrides
	configFile    string
	timeSteps     int
	iterate       bool
	maxIterations int
	initStrategy  string
	// Output
	noSave      bool
	showPlot    bool
	summaryJSON bool
	fields      []string
	outputFile  string
	// Sweep
	sweepParams []string
	sweepMetric string
	workers     int
)

// main registers the colibri commands and runs the one selected on the
// command line, exiting with status 1 on error.
func main() {
	rootCmd := &cobra.Command{
		Use:           "colibri",
		Short:         "building energy co-simulation",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			logger, err = logging.New(logLevel, logFormat, os.Stderr)
			if err != nil {
				return err
			}
			viz.SetTheme(theme)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".colibri", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().StringVar(&theme, "theme", viz.ThemeDefault.Name, "color theme ("+strings.Join(viz.ThemeNames(), ", ")+")")

	runCmd := &cobra.Command{
		Use:   "run [preset]",
		Short: "run a scheme from a preset or a config file",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runScheme,
	}
	addSchemeFlags(runCmd)
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")
	runCmd.Flags().BoolVar(&showPlot, "plot", false, "plot output columns after the run")
	runCmd.Flags().BoolVar(&summaryJSON, "json", false, "print the run summary as JSON")
	runCmd.Flags().StringSliceVar(&fields, "field", nil, "columns to plot (module.field), default all")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot the output columns of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringSliceVar(&fields, "field", nil, "columns to plot (module.field), default all")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "print run metadata",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run series to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}
	exportCSVCmd.Flags().StringVarP(&outputFile, "output", "o", "", "output file (default stdout)")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run metadata and series to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&outputFile, "output", "o", "", "output file (default stdout)")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "statistics and frequency analysis of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}
	analyzeCmd.Flags().StringSliceVar(&fields, "field", nil, "columns to analyze (module.field), default all")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available scheme presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range config.ListPresets() {
				p := config.GetPreset(name)
				fmt.Printf("  %-14s %d modules, %d steps\n", name, len(p.Modules), p.TimeSteps)
			}
			return nil
		},
	}

	modulesCmd := &cobra.Command{
		Use:   "modules",
		Short: "list module types a scheme can use",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := experiment.NewRegistry()
			for _, kind := range registry.Kinds() {
				fmt.Printf("  %-10s %s\n", kind, registry.Describe(kind))
			}
			return nil
		},
	}

	liveCmd := &cobra.Command{
		Use:   "live [preset]",
		Short: "run a scheme with a live terminal view",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLive,
	}
	addSchemeFlags(liveCmd)

	sweepCmd := &cobra.Command{
		Use:   "sweep [preset]",
		Short: "run a scheme over a grid of module parameters",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSweep,
	}
	addSchemeFlags(sweepCmd)
	sweepCmd.Flags().StringArrayVar(&sweepParams, "param", nil, "swept parameter, module.param=v1,v2,... (repeatable)")
	sweepCmd.Flags().StringVar(&sweepMetric, "metric", "non_convergent_steps", "metric to minimize")
	sweepCmd.Flags().IntVar(&workers, "workers", runtime.NumCPU(), "concurrent runs")
	_ = sweepCmd.MarkFlagRequired("param")

	rootCmd.AddCommand(runCmd, listCmd, plotCmd, exportCmd, exportCSVCmd, exportJSONCmd, analyzeCmd, presetsCmd, modulesCmd, liveCmd, sweepCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addSchemeFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "scheme file path (yaml)")
	cmd.Flags().IntVar(&timeSteps, "steps", 0, "number of time steps")
	cmd.Flags().BoolVar(&iterate, "iterate", true, "iterate each time step until convergence")
	cmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "iteration cap per time step")
	cmd.Flags().StringVar(&initStrategy, "init", "", "initialization strategy (topological, retry)")
}

// loadScheme reads the scheme from --config or a preset name and applies the
// flags the user set explicitly.
func loadScheme(cmd *cobra.Command, args []string) (*config.Config, error) {
	var cfg *config.Config
	switch {
	case configFile != "":
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	default:
		name := defaultPreset
		if len(args) > 0 {
			name = args[0]
		}
		cfg = config.GetPreset(name)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset %q (available: %s)", name, strings.Join(config.ListPresets(), ", "))
		}
	}

	if cmd.Flags().Changed("steps") {
		cfg.TimeSteps = timeSteps
	}
	if cmd.Flags().Changed("iterate") {
		cfg.IterateForConvergence = iterate
	}
	if cmd.Flags().Changed("max-iterations") {
		cfg.MaxIterations = maxIterations
	}
	if cmd.Flags().Changed("init") {
		cfg.InitStrategy = initStrategy
	}
	return cfg, nil
}

func runScheme(cmd *cobra.Command, args []string) error {
	cfg, err := loadScheme(cmd, args)
	if err != nil {
		return err
	}

	exp := experiment.New(cfg, experiment.NewRegistry(), logger)
	if err := exp.Setup(); err != nil {
		return err
	}
	logger.Info("running scheme", "scheme", cfg.Name, "time_steps", cfg.TimeSteps,
		"modules", len(cfg.Modules), "links", len(exp.Orchestrator().Links()))

	res, err := exp.Run()
	if err != nil {
		return err
	}

	if summaryJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res.Summary); err != nil {
			return err
		}
	} else {
		fmt.Print(viz.RenderSummary(res))
	}

	if !noSave {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		runID, err := st.Save(res)
		if err != nil {
			return err
		}
		logger.Info("run saved", "run_id", runID, "dir", dataDir)
	}

	if showPlot {
		plotColumns(res.Columns)
	}
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadScheme(cmd, args)
	if err != nil {
		return err
	}

	// The view owns the terminal; only errors are logged.
	quiet, err := logging.New("error", logFormat, os.Stderr)
	if err != nil {
		return err
	}

	feed := make(viz.Feed, cfg.TimeSteps+1)
	exp := experiment.New(cfg, experiment.NewRegistry(), quiet)
	if err := exp.Setup(feed); err != nil {
		return err
	}

	go func() {
		res, err := exp.Run()
		feed <- viz.DoneMsg{Result: res, Err: err}
	}()

	final, err := tea.NewProgram(viz.NewLive(cfg.Name, cfg.TimeSteps, feed)).Run()
	if err != nil {
		return err
	}
	if live, ok := final.(viz.Live); ok {
		return live.Err()
	}
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadScheme(cmd, args)
	if err != nil {
		return err
	}

	params := make([]optim.Param, 0, len(sweepParams))
	for _, raw := range sweepParams {
		p, err := optim.ParseParam(raw)
		if err != nil {
			return err
		}
		params = append(params, p)
	}

	g := optim.NewGridSearch(params...).WithWorkers(workers)
	logger.Info("sweeping scheme", "scheme", cfg.Name, "points", len(g.Points()), "metric", sweepMetric)

	report, err := g.Search(cmd.Context(), cfg, experiment.NewRegistry(), sweepMetric)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	header := make([]string, 0, len(params)+3)
	for _, p := range params {
		header = append(header, strings.ToUpper(p.Key()))
	}
	header = append(header, strings.ToUpper(sweepMetric), "NON_CONV", "")
	fmt.Fprintln(w, strings.Join(header, "\t"))
	for i, t := range report.Trials {
		row := make([]string, 0, len(header))
		for _, p := range params {
			row = append(row, fmt.Sprintf("%g", t.Point[p.Key()]))
		}
		mark := ""
		if i == report.Best {
			mark = "*"
		}
		row = append(row, fmt.Sprintf("%.3f", t.Metrics[sweepMetric]), fmt.Sprint(len(t.NonConvergent)), mark)
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	return w.Flush()
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCHEME\tTIME\tSTEPS\tITERATE\tMAX_IT\tNON_CONV\tDURATION")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%t\t%d\t%d\t%.3fs\n",
			run.ID,
			run.Scheme,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.TimeSteps,
			run.IterateForConvergence,
			run.MaxIterations,
			len(run.NonConvergentTimeSteps),
			run.SimulationTime,
		)
	}

	return w.Flush()
}

// selectColumns keeps the columns named by --field, or all of them. A field
// name without index selects every element of a vector output.
func selectColumns(cols []experiment.Column) ([]experiment.Column, error) {
	if len(fields) == 0 {
		return cols, nil
	}
	var out []experiment.Column
	for _, f := range fields {
		found := false
		for _, c := range cols {
			if c.Name == f || strings.HasPrefix(c.Name, f+"[") {
				out = append(out, c)
				found = true
			}
		}
		if !found {
			return nil, fmt.Errorf("no column %q", f)
		}
	}
	return out, nil
}

func plotColumns(cols []experiment.Column) {
	selected, err := selectColumns(cols)
	if err != nil {
		logger.Warn("plot skipped", "error", err)
		return
	}
	for _, c := range selected {
		fmt.Println(viz.Plot(c, 80, 10))
		fmt.Println()
	}
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	cols, err := st.LoadSeries(runID)
	if err != nil {
		return err
	}
	if len(cols) == 0 {
		return fmt.Errorf("no data to plot")
	}
	selected, err := selectColumns(cols)
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("scheme: %s\n", meta.Scheme)
	fmt.Printf("time steps: %d\n\n", meta.TimeSteps)

	for _, c := range selected {
		fmt.Println(viz.Plot(c, 80, 10))
		fmt.Println()
	}
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func exportCSV(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	cols, err := st.LoadSeries(args[0])
	if err != nil {
		return err
	}
	if outputFile != "" {
		return storage.ExportCSV(outputFile, cols)
	}
	return storage.WriteCSV(os.Stdout, cols)
}

func exportJSON(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	cols, err := st.LoadSeries(args[0])
	if err != nil {
		return err
	}
	if outputFile != "" {
		return storage.ExportJSON(outputFile, meta, cols)
	}
	return storage.WriteJSON(os.Stdout, meta, cols)
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	cols, err := st.LoadSeries(runID)
	if err != nil {
		return err
	}
	selected, err := selectColumns(cols)
	if err != nil {
		return err
	}
	if len(selected) == 0 {
		return fmt.Errorf("no data")
	}

	fmt.Printf("analysis: %s\n", meta.ID)
	fmt.Printf("scheme: %s\n", meta.Scheme)
	if len(meta.NonConvergentTimeSteps) > 0 {
		fmt.Printf("non-convergent time steps: %v\n", meta.NonConvergentTimeSteps)
	}
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "COLUMN\tUNIT\tMIN\tMEAN\tMAX\tSTD\tFINAL\tSETTLED\tPERIOD")
	for _, c := range selected {
		s := analysis.Describe(c.Values)
		period := "-"
		if p, ok := analysis.DominantPeriod(c.Values); ok {
			period = fmt.Sprintf("%.1f", p)
		}
		fmt.Fprintf(w, "%s\t%s\t%.3f\t%.3f\t%.3f\t%.3f\t%.3f\t%d\t%s\n",
			c.Name, c.Unit, s.Min, s.Mean, s.Max, s.StdDev, s.Final,
			analysis.SettlingStep(c.Values, 0.01*max(s.Max-s.Min, 1e-9)), period)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	// spectrum of the first selected column with periodic content
	for _, c := range selected {
		ps := analysis.PowerSpectrum(c.Values)
		if _, ok := analysis.DominantPeriod(c.Values); !ok || len(ps) < 4 {
			continue
		}
		fmt.Println()
		fmt.Println(asciigraph.Plot(ps[1:],
			asciigraph.Height(12),
			asciigraph.Width(80),
			asciigraph.Caption("power spectrum ("+c.Name+"), bin k = period "+fmt.Sprint(len(c.Values))+"/k steps"),
		))
		break
	}

	if n := len(meta.NonConvergentTimeSteps); n > 0 {
		logger.Warn("run had non-convergent time steps", "count", n, "rate", meta.Metrics["convergence_rate"])
	}
	return nil
}
