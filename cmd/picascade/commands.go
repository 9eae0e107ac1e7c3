package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/picascade/internal/config"
	"github.com/san-kum/picascade/internal/experiment"
	"github.com/san-kum/picascade/internal/optim"
	"github.com/san-kum/picascade/internal/pi"
	"github.com/san-kum/picascade/internal/storage"
	"github.com/san-kum/picascade/internal/viz"
	"github.com/spf13/cobra"
)

func stepStage(cmd *cobra.Command, args []string) error {
	st := pi.NewStage(float32(kp), float32(ki), float32(lower), float32(upper))
	st.ReferencePoint = float32(reference)
	st.PreviousError = float32(prevError)
	st.PreviousOutput = float32(prevOutput)
	if err := st.Validate(); err != nil {
		return err
	}

	for i := 0; i < repeat; i++ {
		out := st.Compute(float32(measurement))
		mem := st.Memory()
		fmt.Printf("output=%g error=%g previous_error=%g previous_output=%g\n",
			out, mem.Error, mem.PreviousError, mem.PreviousOutput)
	}
	return nil
}

func buildExperiment(cmd *cobra.Command, args []string) (*experiment.Experiment, *config.Config, error) {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return nil, nil, err
	}
	exp, err := experiment.New(cfg, experiment.NewRegistry())
	if err != nil {
		return nil, nil, err
	}
	exp.SetLogger(logger)
	return exp, cfg, nil
}

func runSimulation(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	st.SetLogger(logger)
	if err := st.Init(); err != nil {
		return err
	}

	var exp *experiment.Experiment
	var cfg *config.Config
	var err error
	if fromRun != "" {
		cfg, err = st.LoadConfig(fromRun)
		if err != nil {
			return err
		}
		exp, err = experiment.New(cfg, experiment.NewRegistry())
		if err != nil {
			return err
		}
		exp.SetLogger(logger)
	} else {
		exp, cfg, err = buildExperiment(cmd, args)
		if err != nil {
			return err
		}
	}

	if progress > 0 {
		exp.WatchProgress(logger, progress)
	}

	fmt.Printf("running %s with %s controller...\n", cfg.Plant, cfg.Controller)
	start := time.Now()

	result, err := exp.Run(context.Background())
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	for _, e := range result.Errors {
		logger.Warnw("simulation error", "error", e)
	}

	var transitions []experiment.Transition
	if ch, ok := exp.GetSimulator().Controller().(*experiment.ChargerController); ok {
		transitions = ch.Transitions()
	}
	meta := runMetadata(cfg, transitions)

	runID, err := st.Save(meta, cfg, result)
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("steps: %d\n", result.StepsTaken)
	if len(meta.Transitions) > 0 {
		fmt.Println("\ntransitions:")
		for _, tr := range meta.Transitions {
			fmt.Printf("  %7.2fs  %s -> %s\n", tr.Time, tr.From, tr.To)
		}
	}
	printMetrics(result.Metrics)

	return nil
}

func printMetrics(metrics map[string]float64) {
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("\nmetrics:")
	for _, name := range names {
		fmt.Printf("  %s: %.6f\n", name, metrics[name])
	}
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	st.SetLogger(logger)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPLANT\tCTRL\tTIME\tDURATION\tDT\tINTEG\tSTEPS")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2fs\t%.4fs\t%s\t%d\n",
			run.ID,
			run.Plant,
			run.Controller,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Duration,
			run.Dt,
			run.Integrator,
			run.Steps,
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	series, err := st.LoadSeries(runID)
	if err != nil {
		return err
	}

	if len(series.Rows) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("plant: %s (%s)\n", meta.Plant, meta.Controller)
	fmt.Printf("samples: %d\n\n", len(series.Rows))

	columns := append(series.Prefixed("y"), series.Prefixed("u")...)
	if len(columns) == 0 {
		columns = series.Prefixed("x")
	}

	for _, name := range columns {
		data := dropNaN(series.Column(name))
		if len(data) == 0 {
			continue
		}

		graph := asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(caption(meta.Plant, name)),
		)
		fmt.Println(graph)
		fmt.Println()
	}

	return nil
}

func caption(plantName, column string) string {
	if column == "u0" {
		return "command"
	}
	if plantName == "battery" {
		switch column {
		case "y0":
			return "pack voltage"
		case "y1":
			return "charge current"
		case "x0":
			return "state of charge"
		}
	}
	return column + " vs time"
}

func dropNaN(data []float64) []float64 {
	out := data[:0]
	for _, v := range data {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

func exportRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func exportCSV(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	series, err := st.LoadSeries(runID)
	if err != nil {
		return err
	}

	if len(series.Rows) == 0 {
		return fmt.Errorf("no data to export")
	}

	w := csv.NewWriter(os.Stdout)
	defer w.Flush()

	if err := w.Write(append([]string{"time"}, series.Columns...)); err != nil {
		return err
	}

	for i, r := range series.Rows {
		row := []string{strconv.FormatFloat(series.Times[i], 'f', 6, 64)}
		for _, val := range r {
			if math.IsNaN(val) {
				row = append(row, "")
				continue
			}
			row = append(row, strconv.FormatFloat(val, 'f', 6, 64))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	return nil
}

func exportJSON(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	series, err := st.LoadSeries(runID)
	if err != nil {
		return err
	}

	return storage.ExportJSON(os.Stdout, meta, series)
}

func tuneGains(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	if len(grid) == 0 {
		return fmt.Errorf("at least one --grid parameter is required")
	}

	names := make([]string, 0, len(grid))
	ranges := make([][]float64, 0, len(grid))
	for _, g := range grid {
		name, vals, err := parseAssignment(g)
		if err != nil {
			return err
		}
		names = append(names, name)
		ranges = append(ranges, vals)
	}

	gs := optim.NewGridSearch(names, ranges)
	gs.SetLogger(logger)

	fmt.Printf("tuning %s over %d candidates (metric %s)...\n", cfg.Plant, len(gs.Candidates()), metric)
	start := time.Now()

	best, score, err := gs.Search(context.Background(), optim.FromConfig(cfg, experiment.NewRegistry()), metric)
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n\n", time.Since(start))
	fmt.Printf("best %s: %.6f\n", metric, score)
	for _, name := range names {
		fmt.Printf("  %s = %g\n", name, best[name])
	}
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	exp, cfg, err := buildExperiment(cmd, args)
	if err != nil {
		return err
	}
	// Log lines would corrupt the terminal UI.
	exp.SetLogger(nopLogger())

	m := viz.NewModel(exp, fmt.Sprintf("%s / %s", cfg.Plant, cfg.Controller))

	p := tea.NewProgram(m)
	if _, err := p.Run(); err != nil {
		return err
	}
	return nil
}

func compareIntegrators(cmd *cobra.Command, args []string) error {
	integrators := args[1:]

	base, err := resolveConfig(cmd, args[:1])
	if err != nil {
		return err
	}

	fmt.Printf("comparing integrators for %s (dt=%.4f, duration=%.1fs)\n\n", base.Plant, base.Dt, base.Duration)
	fmt.Printf("%-12s  %-12s  %-12s  %-12s\n", "integrator", "final_y0", "tracking_rms", "time_ms")
	fmt.Println(strings.Repeat("-", 54))

	for _, intName := range integrators {
		cfg := base.Clone()
		cfg.Integrator = intName

		exp, err := experiment.New(cfg, experiment.NewRegistry())
		if err != nil {
			fmt.Printf("%-12s  error: %v\n", intName, err)
			continue
		}
		exp.SetLogger(logger)

		start := time.Now()
		result, err := exp.Run(context.Background())
		elapsed := time.Since(start)

		if err != nil {
			fmt.Printf("%-12s  error: %v\n", intName, err)
			continue
		}

		finalY0 := 0.0
		if n := len(result.Outputs); n > 0 {
			finalY0 = result.Outputs[n-1][0]
		}

		fmt.Printf("%-12s  %12.6f  %12.6f  %12.2f\n", intName, finalY0, result.Metrics["tracking_rms"], float64(elapsed.Microseconds())/1000)
	}

	return nil
}
