package main

import (
	"fmt"
	"math"
	"os"

	"github.com/san-kum/picascade/internal/analysis"
	"github.com/san-kum/picascade/internal/export"
	"github.com/san-kum/picascade/internal/storage"
	"github.com/spf13/cobra"
)

func analyzeRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	series, err := st.LoadSeries(runID)
	if err != nil {
		return err
	}
	cfg, err := st.LoadConfig(runID)
	if err != nil {
		return err
	}

	outer, _, ok := cfg.Bounds()
	if !ok {
		return fmt.Errorf("run %s has no reference to analyze against", runID)
	}
	col := fmt.Sprintf("y%d", outer.Measure)
	values := series.Column(col)
	if values == nil {
		return fmt.Errorf("run %s has no column %s", runID, col)
	}

	band := math.Max(0.01*math.Abs(outer.Reference), 0.01)
	resp := analysis.AnalyzeStep(series.Times, values, outer.Reference, band)

	fmt.Printf("run: %s\n", runID)
	fmt.Printf("stage %s tracking %s = %g (band %g)\n\n", outer.Name, col, outer.Reference, band)
	fmt.Printf("final:            %.6f\n", resp.Final)
	fmt.Printf("steady state err: %.6f\n", resp.SteadyStateErr)
	fmt.Printf("overshoot:        %.2f%%\n", resp.Overshoot*100)
	fmt.Printf("rise time:        %.3fs\n", resp.RiseTime)
	fmt.Printf("settling time:    %.3fs\n", resp.SettlingTime)
	fmt.Printf("reached target:   %v\n", resp.ReachedTarget)

	half := len(values) / 2
	if tail := dropNaN(append([]float64(nil), values[half:]...)); len(tail) > 2 {
		freq, mag := analysis.DominantFrequency(tail, cfg.Dt)
		fmt.Printf("dominant ripple:  %.3f Hz (magnitude %.3g)\n", freq, mag)
	}
	return nil
}

func phaseRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	series, err := st.LoadSeries(runID)
	if err != nil {
		return err
	}

	xs, ys := series.Column(phaseX), series.Column(phaseY)
	if xs == nil || ys == nil {
		return fmt.Errorf("run %s has no columns %s and %s (available: %v)", runID, phaseX, phaseY, series.Columns)
	}

	pp := analysis.NewPhasePortrait(phaseX, xs, phaseY, ys)
	if len(pp.Points) == 0 {
		return fmt.Errorf("no samples to plot")
	}
	fmt.Print(pp.ToASCII(72, 24))
	return nil
}

func exportSVG(cmd *cobra.Command, args []string) error {
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

	values := series.Column(svgColumn)
	if values == nil {
		return fmt.Errorf("run %s has no column %s", runID, svgColumn)
	}

	svg := export.SeriesToSVG(series.Times, values, 800, 300, "#00d7ff", caption(meta.Plant, svgColumn))
	if svg == "" {
		return fmt.Errorf("not enough samples in %s", svgColumn)
	}
	if outFile == "" {
		_, err := fmt.Print(svg)
		return err
	}
	if err := os.WriteFile(outFile, []byte(svg), 0644); err != nil {
		return err
	}
	logger.Infow("wrote svg", "run", runID, "column", svgColumn, "path", outFile)
	return nil
}
