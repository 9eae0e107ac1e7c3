package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/edaniels/golog"
	"github.com/san-kum/picascade/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	dataDir    string
	verbose    bool
	configFile string
	preset     string
	fromRun    string
	progress   float64
	dt         float64
	duration   float64
	seed       int64
	noise      float64
	integrator string
	controller string
	overrides  []string
	// step
	kp, ki       float64
	lower, upper float64
	reference    float64
	measurement  float64
	prevError    float64
	prevOutput   float64
	repeat       int
	// tune
	grid   []string
	metric string
	// sweep, montecarlo
	sweepParam         string
	sweepMin, sweepMax float64
	sweepSteps         int
	trials             int
	perturb            float64
	// phase, export-svg
	phaseX, phaseY string
	svgColumn      string
	outFile        string
)

var logger golog.Logger

func main() {
	rootCmd := &cobra.Command{
		Use:   "picascade",
		Short: "cascaded PI controller lab",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				logger = golog.NewDebugLogger("picascade")
			} else {
				logger = golog.NewDevelopmentLogger("picascade")
			}
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".picascade", "data directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	stepCmd := &cobra.Command{
		Use:   "step",
		Short: "run a single PI stage computation",
		Args:  cobra.NoArgs,
		RunE:  stepStage,
	}
	stepCmd.Flags().Float64Var(&kp, "kp", 0, "proportional gain")
	stepCmd.Flags().Float64Var(&ki, "ki", 0, "integral gain")
	stepCmd.Flags().Float64Var(&lower, "lower", -2000, "lower output limit")
	stepCmd.Flags().Float64Var(&upper, "upper", 2000, "upper output limit")
	stepCmd.Flags().Float64Var(&reference, "ref", 0, "reference point")
	stepCmd.Flags().Float64Var(&measurement, "measure", 0, "measured value")
	stepCmd.Flags().Float64Var(&prevError, "prev-error", 0, "stored integral increment")
	stepCmd.Flags().Float64Var(&prevOutput, "prev-output", 0, "stored integral output")
	stepCmd.Flags().IntVar(&repeat, "repeat", 1, "number of computations with the same measurement")

	runCmd := &cobra.Command{
		Use:   "run [plant]",
		Short: "run a closed-loop simulation and save it",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSimulation,
	}
	addSimFlags(runCmd)
	runCmd.Flags().StringVar(&fromRun, "from", "", "rerun the configuration of a stored run")
	runCmd.Flags().Float64Var(&progress, "progress", 0, "log the loop state every n simulated seconds")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list saved runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot measurements and command of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "print run metadata as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run data to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets [plant]",
		Short: "list available presets for a plant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			presets := config.ListPresets(args[0])
			if len(presets) == 0 {
				fmt.Printf("no presets for plant: %s\n", args[0])
				return nil
			}
			fmt.Printf("presets for %s:\n", args[0])
			for _, p := range presets {
				fmt.Printf("  %s\n", p)
			}
			return nil
		},
	}

	tuneCmd := &cobra.Command{
		Use:   "tune [plant]",
		Short: "grid search stage gains",
		Args:  cobra.MaximumNArgs(1),
		RunE:  tuneGains,
	}
	addSimFlags(tuneCmd)
	tuneCmd.Flags().StringArrayVar(&grid, "grid", nil, "parameter grid, e.g. voltage.kp=1,2,4 (repeatable)")
	tuneCmd.Flags().StringVar(&metric, "metric", "tracking_rms", "metric to minimize")

	liveCmd := &cobra.Command{
		Use:   "live [plant]",
		Short: "run the closed loop interactively",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLive,
	}
	addSimFlags(liveCmd)

	compareCmd := &cobra.Command{
		Use:   "compare [plant] [integrator1] [integrator2] ...",
		Short: "compare integrators on the same closed loop",
		Args:  cobra.MinimumNArgs(2),
		RunE:  compareIntegrators,
	}
	addSimFlags(compareCmd)

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run a scripted sequence of experiments",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}

	sweepCmd := &cobra.Command{
		Use:   "sweep [plant]",
		Short: "sweep one stage parameter over a range",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSweep,
	}
	addSimFlags(sweepCmd)
	sweepCmd.Flags().StringVar(&sweepParam, "param", "", "stage parameter, e.g. current.ki")
	sweepCmd.Flags().Float64Var(&sweepMin, "min", 0, "first value")
	sweepCmd.Flags().Float64Var(&sweepMax, "max", 1, "last value")
	sweepCmd.Flags().IntVar(&sweepSteps, "steps", 10, "number of values")

	monteCarloCmd := &cobra.Command{
		Use:   "montecarlo [plant]",
		Short: "run trials from perturbed initial states",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runMonteCarlo,
	}
	addSimFlags(monteCarloCmd)
	monteCarloCmd.Flags().IntVar(&trials, "trials", 20, "number of trials")
	monteCarloCmd.Flags().Float64Var(&perturb, "perturb", 0.1, "maximum initial state perturbation")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "step response and ripple figures of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}

	phaseCmd := &cobra.Command{
		Use:   "phase [run_id]",
		Short: "plot one recorded signal against another",
		Args:  cobra.ExactArgs(1),
		RunE:  phaseRun,
	}
	phaseCmd.Flags().StringVar(&phaseX, "x", "y0", "x axis column")
	phaseCmd.Flags().StringVar(&phaseY, "y", "y1", "y axis column")

	exportSVGCmd := &cobra.Command{
		Use:   "export-svg [run_id]",
		Short: "render one column of a run as SVG",
		Args:  cobra.ExactArgs(1),
		RunE:  exportSVG,
	}
	exportSVGCmd.Flags().StringVar(&svgColumn, "column", "y0", "column to render")
	exportSVGCmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (default stdout)")

	rootCmd.AddCommand(stepCmd, runCmd, listCmd, plotCmd, exportCmd, exportCSVCmd, exportJSONCmd, presetsCmd, tuneCmd, liveCmd, compareCmd,
		scenarioCmd, sweepCmd, monteCarloCmd, analyzeCmd, phaseCmd, exportSVGCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addSimFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	cmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "timestep")
	cmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "duration")
	cmd.Flags().Int64Var(&seed, "seed", 0, "noise seed")
	cmd.Flags().Float64Var(&noise, "noise", 0, "measurement noise standard deviation")
	cmd.Flags().StringVar(&integrator, "integrator", "rk4", "integrator")
	cmd.Flags().StringVar(&controller, "controller", "charger", "controller")
	cmd.Flags().StringArrayVar(&overrides, "set", nil, "stage parameter override, e.g. current.ki=0.5 (repeatable)")
}

var defaultPresets = map[string]string{
	"battery": "cc-cv",
	"load":    "step",
}

// resolveConfig builds the configuration from --config or a preset and
// applies the flags the user set explicitly.
func resolveConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	plantName := "battery"
	if len(args) > 0 {
		plantName = args[0]
	}

	var cfg *config.Config
	switch {
	case configFile != "":
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
		if len(args) > 0 {
			cfg.Plant = plantName
		}
	default:
		name := preset
		if name == "" {
			name = defaultPresets[plantName]
		}
		cfg = config.GetPreset(plantName, name)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", name, config.ListPresets(plantName))
		}
	}

	flags := cmd.Flags()
	if flags.Changed("dt") {
		cfg.Dt = dt
	}
	if flags.Changed("time") {
		cfg.Duration = duration
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("noise") {
		cfg.Noise = noise
	}
	if flags.Changed("integrator") {
		cfg.Integrator = integrator
	}
	if flags.Changed("controller") {
		cfg.Controller = controller
	}
	for _, o := range overrides {
		key, val, err := parseAssignment(o)
		if err != nil {
			return nil, err
		}
		if len(val) != 1 {
			return nil, fmt.Errorf("--set %s: want a single value", o)
		}
		stage, param, ok := strings.Cut(key, ".")
		if !ok {
			return nil, fmt.Errorf("--set %s: want <stage>.<param>=<value>", o)
		}
		if err := cfg.SetStageParam(stage, param, val[0]); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// parseAssignment splits "name=v1,v2,...".
func parseAssignment(s string) (string, []float64, error) {
	key, list, ok := strings.Cut(s, "=")
	if !ok || key == "" || list == "" {
		return "", nil, fmt.Errorf("invalid assignment %q, want name=value[,value...]", s)
	}
	var vals []float64
	for _, field := range strings.Split(list, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return "", nil, fmt.Errorf("invalid value in %q: %w", s, err)
		}
		vals = append(vals, v)
	}
	return key, vals, nil
}

func nopLogger() golog.Logger { return zap.NewNop().Sugar() }
