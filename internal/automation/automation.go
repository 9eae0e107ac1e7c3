// Package automation runs batches of experiments: scripted scenarios,
// single parameter sweeps and Monte Carlo trials over the initial state.
package automation

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"strings"

	"github.com/edaniels/golog"
	"github.com/san-kum/picascade/internal/cascade"
	"github.com/san-kum/picascade/internal/config"
	"github.com/san-kum/picascade/internal/experiment"
	"github.com/san-kum/picascade/internal/sim"
	"gopkg.in/yaml.v3"
)

// Scenario defines a scripted simulation sequence
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep is a single step in a scenario. The configuration comes
// from Config when set, otherwise from Plant/Preset.
type ScenarioStep struct {
	Name       string             `yaml:"name"`
	Plant      string             `yaml:"plant"`
	Preset     string             `yaml:"preset"`
	Config     string             `yaml:"config"`
	Controller string             `yaml:"controller"`
	Integrator string             `yaml:"integrator"`
	Duration   float64            `yaml:"duration"`
	Dt         float64            `yaml:"dt"`
	Params     map[string]float64 `yaml:"params"`
	Save       bool               `yaml:"save"`
}

// StepResult is the outcome of one scenario step.
type StepResult struct {
	Name        string
	Config      *config.Config
	Result      *sim.Result
	Transitions []experiment.Transition
}

// LoadScenario loads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("automation: parse %s: %w", path, err)
	}
	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("automation: scenario %q has no steps", scenario.Name)
	}

	return &scenario, nil
}

// Build resolves the step into a configuration.
func (s ScenarioStep) Build() (*config.Config, error) {
	var cfg *config.Config
	if s.Config != "" {
		loaded, err := config.Load(s.Config)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.GetPreset(s.Plant, s.Preset)
		if cfg == nil {
			return nil, fmt.Errorf("automation: unknown preset %s/%s", s.Plant, s.Preset)
		}
	}

	if s.Controller != "" {
		cfg.Controller = s.Controller
	}
	if s.Integrator != "" {
		cfg.Integrator = s.Integrator
	}
	if s.Duration > 0 {
		cfg.Duration = s.Duration
	}
	if s.Dt > 0 {
		cfg.Dt = s.Dt
	}
	for key, val := range s.Params {
		if err := applyParam(cfg, key, val); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func applyParam(cfg *config.Config, key string, val float64) error {
	stage, param, ok := strings.Cut(key, ".")
	if !ok {
		return fmt.Errorf("automation: parameter %q, want <stage>.<param>", key)
	}
	return cfg.SetStageParam(stage, param, val)
}

// RunScenario executes all steps in a scenario
func RunScenario(ctx context.Context, scenario *Scenario, registry *experiment.Registry, logger golog.Logger) ([]StepResult, error) {
	results := make([]StepResult, 0, len(scenario.Steps))

	for i, step := range scenario.Steps {
		name := step.Name
		if name == "" {
			name = fmt.Sprintf("step%d", i+1)
		}
		logger.Infow("running scenario step", "scenario", scenario.Name, "step", name, "index", i+1, "of", len(scenario.Steps))

		cfg, err := step.Build()
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}

		exp, err := experiment.New(cfg, registry)
		if err != nil {
			return results, fmt.Errorf("step %d setup: %w", i+1, err)
		}
		exp.SetLogger(logger)

		result, err := exp.Run(ctx)
		if err != nil {
			return results, fmt.Errorf("step %d run: %w", i+1, err)
		}

		sr := StepResult{Name: name, Config: cfg, Result: result}
		if ch, ok := exp.GetSimulator().Controller().(*experiment.ChargerController); ok {
			sr.Transitions = ch.Transitions()
		}
		results = append(results, sr)
	}

	return results, nil
}

// ParameterSweep runs one experiment per value of a stage parameter
type ParameterSweep struct {
	Base     *config.Config
	Param    string
	Min, Max float64
	NumSteps int
}

// SweepResult holds results from a parameter sweep
type SweepResult struct {
	ParamValue  float64
	FinalOutput sim.State
	Metrics     map[string]float64
	Err         error
}

// RunSweep executes a parameter sweep. Runs that fail are reported in
// their SweepResult and do not stop the sweep.
func RunSweep(ctx context.Context, sweep *ParameterSweep, registry *experiment.Registry, logger golog.Logger) ([]SweepResult, error) {
	if sweep.NumSteps < 1 {
		return nil, fmt.Errorf("automation: sweep needs at least one step")
	}

	paramStep := 0.0
	if sweep.NumSteps > 1 {
		paramStep = (sweep.Max - sweep.Min) / float64(sweep.NumSteps-1)
	}

	results := make([]SweepResult, 0, sweep.NumSteps)
	for i := 0; i < sweep.NumSteps; i++ {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		paramVal := sweep.Min + float64(i)*paramStep
		sr := SweepResult{ParamValue: paramVal}

		cfg := sweep.Base.Clone()
		if err := applyParam(cfg, sweep.Param, paramVal); err != nil {
			return nil, err
		}

		result, err := runOnce(ctx, cfg, registry, logger)
		if err != nil {
			sr.Err = err
		} else {
			sr.Metrics = result.Metrics
			if n := len(result.Outputs); n > 0 {
				sr.FinalOutput = result.Outputs[n-1]
			}
		}
		results = append(results, sr)

		logger.Debugw("sweep", "index", i+1, "of", sweep.NumSteps, sweep.Param, paramVal, "error", sr.Err)
	}

	return results, nil
}

func runOnce(ctx context.Context, cfg *config.Config, registry *experiment.Registry, logger golog.Logger) (*sim.Result, error) {
	exp, err := experiment.New(cfg, registry)
	if err != nil {
		return nil, err
	}
	exp.SetLogger(logger)

	result, err := exp.Run(ctx)
	if err != nil {
		return nil, err
	}
	if len(result.Errors) > 0 {
		return result, result.Errors[0]
	}
	return result, nil
}

// MonteCarloConfig perturbs the initial state of charge (battery) or the
// initial output (load) and reseeds measurement noise for every trial.
type MonteCarloConfig struct {
	Base         *config.Config
	Perturbation float64
	NumTrials    int
	Seed         int64
}

// MonteCarloResult holds the outcome of one trial
type MonteCarloResult struct {
	TrialID int
	Initial float64
	// Stable reports a run that finished without invalid states and whose
	// command stayed finite.
	Stable bool
	// Completed reports a charger that reached ModeDone. It is always true
	// for other controllers.
	Completed bool
	Metrics   map[string]float64
}

// RunMonteCarlo executes multiple trials with random perturbations
func RunMonteCarlo(ctx context.Context, cfg *MonteCarloConfig, registry *experiment.Registry, logger golog.Logger) ([]MonteCarloResult, error) {
	results := make([]MonteCarloResult, 0, cfg.NumTrials)
	rng := rand.New(rand.NewSource(cfg.Seed))

	for trial := 0; trial < cfg.NumTrials; trial++ {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		c := cfg.Base.Clone()
		c.Seed = rng.Int63()
		delta := (rng.Float64() - 0.5) * 2 * cfg.Perturbation

		var initial float64
		switch c.Plant {
		case "battery":
			c.Battery.InitialSoC = math.Max(0, math.Min(1, c.Battery.InitialSoC+delta))
			initial = c.Battery.InitialSoC
		default:
			c.Load.Initial += delta
			initial = c.Load.Initial
		}

		exp, err := experiment.New(c, registry)
		if err != nil {
			return nil, err
		}
		exp.SetLogger(logger)

		result, err := exp.Run(ctx)
		if err != nil {
			return results, err
		}

		r := MonteCarloResult{
			TrialID:   trial,
			Initial:   initial,
			Stable:    len(result.Errors) == 0,
			Completed: true,
			Metrics:   result.Metrics,
		}
		for _, u := range result.Controls {
			for _, v := range u {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					r.Stable = false
				}
			}
		}
		if ch, ok := exp.GetSimulator().Controller().(*experiment.ChargerController); ok {
			r.Completed = ch.Mode() == cascade.ModeDone
		}
		results = append(results, r)

		if (trial+1)%10 == 0 {
			logger.Infow("monte carlo", "trials", trial+1, "of", cfg.NumTrials)
		}
	}

	return results, nil
}

// MonteCarloStats counts stable and completed trials.
func MonteCarloStats(results []MonteCarloResult) (stableCount, completedCount int) {
	for _, r := range results {
		if r.Stable {
			stableCount++
		}
		if r.Stable && r.Completed {
			completedCount++
		}
	}
	return
}
