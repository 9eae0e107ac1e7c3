package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/san-kum/picascade/internal/automation"
	"github.com/san-kum/picascade/internal/config"
	"github.com/san-kum/picascade/internal/experiment"
	"github.com/san-kum/picascade/internal/storage"
	"github.com/spf13/cobra"
)

func runMetadata(cfg *config.Config, transitions []experiment.Transition) storage.RunMetadata {
	meta := storage.RunMetadata{
		Plant:      cfg.Plant,
		Controller: cfg.Controller,
		Integrator: cfg.Integrator,
		Seed:       cfg.Seed,
		Dt:         cfg.Dt,
		Duration:   cfg.Duration,
		Noise:      cfg.Noise,
	}
	for _, tr := range transitions {
		meta.Transitions = append(meta.Transitions, storage.Transition{
			Time: tr.Time,
			From: tr.From.String(),
			To:   tr.To.String(),
		})
	}
	return meta
}

func runScenario(cmd *cobra.Command, args []string) error {
	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	st.SetLogger(logger)
	if err := st.Init(); err != nil {
		return err
	}

	fmt.Printf("scenario %s: %d steps\n", sc.Name, len(sc.Steps))
	results, err := automation.RunScenario(context.Background(), sc, experiment.NewRegistry(), logger)
	if err != nil {
		return err
	}

	for i, r := range results {
		fmt.Printf("\n[%s] %s/%s, %d steps\n", r.Name, r.Config.Plant, r.Config.Controller, r.Result.StepsTaken)
		for _, tr := range r.Transitions {
			fmt.Printf("  %7.2fs  %s -> %s\n", tr.Time, tr.From, tr.To)
		}
		if !sc.Steps[i].Save {
			continue
		}
		runID, err := st.Save(runMetadata(r.Config, r.Transitions), r.Config, r.Result)
		if err != nil {
			return err
		}
		fmt.Printf("  saved as %s\n", runID)
	}
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	if sweepParam == "" {
		return fmt.Errorf("--param is required")
	}

	results, err := automation.RunSweep(context.Background(), &automation.ParameterSweep{
		Base:     cfg,
		Param:    sweepParam,
		Min:      sweepMin,
		Max:      sweepMax,
		NumSteps: sweepSteps,
	}, experiment.NewRegistry(), logger)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tFINAL_Y0\tTRACKING_RMS\tSETTLING\tSATURATION\n", strings.ToUpper(sweepParam))
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(w, "%g\terror: %v\n", r.ParamValue, r.Err)
			continue
		}
		final := 0.0
		if len(r.FinalOutput) > 0 {
			final = r.FinalOutput[0]
		}
		fmt.Fprintf(w, "%g\t%.6f\t%.6f\t%.3f\t%.3f\n",
			r.ParamValue, final, r.Metrics["tracking_rms"], r.Metrics["settling_time"], r.Metrics["saturation"])
	}
	return w.Flush()
}

func runMonteCarlo(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}

	mc := &automation.MonteCarloConfig{
		Base:         cfg,
		Perturbation: perturb,
		NumTrials:    trials,
		Seed:         cfg.Seed,
	}
	fmt.Printf("monte carlo on %s/%s: %d trials, perturbation %g\n", cfg.Plant, cfg.Controller, trials, perturb)

	results, err := automation.RunMonteCarlo(context.Background(), mc, experiment.NewRegistry(), logger)
	if err != nil {
		return err
	}

	stable, completed := automation.MonteCarloStats(results)
	worst, worstTrial := 0.0, -1
	for _, r := range results {
		if v := r.Metrics["tracking_rms"]; v > worst {
			worst, worstTrial = v, r.TrialID
		}
	}

	fmt.Printf("stable:    %d/%d\n", stable, len(results))
	fmt.Printf("completed: %d/%d\n", completed, len(results))
	if worstTrial >= 0 {
		fmt.Printf("worst tracking_rms %.6f (trial %d, initial %g)\n", worst, worstTrial, results[worstTrial].Initial)
	}
	return nil
}
