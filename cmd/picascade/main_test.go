package main

import (
	"math"
	"testing"

	"github.com/san-kum/picascade/internal/cascade"
	"github.com/san-kum/picascade/internal/config"
	"github.com/san-kum/picascade/internal/experiment"
	"github.com/spf13/cobra"
)

func TestParseAssignment(t *testing.T) {
	key, vals, err := parseAssignment("voltage.kp=1, 2,4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "voltage.kp" || len(vals) != 3 || vals[2] != 4 {
		t.Errorf("got %s %v", key, vals)
	}

	for _, bad := range []string{"voltage.kp", "=1", "kp=", "kp=1,x"} {
		if _, _, err := parseAssignment(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func newFlagCmd(t *testing.T, flags ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	addSimFlags(cmd)
	if err := cmd.ParseFlags(flags); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return cmd
}

func TestResolveConfigDefaults(t *testing.T) {
	cfg, err := resolveConfig(newFlagCmd(t), nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Plant != "battery" || cfg.Controller != "charger" {
		t.Errorf("expected battery charger, got %s %s", cfg.Plant, cfg.Controller)
	}

	cfg, err = resolveConfig(newFlagCmd(t), []string{"load"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Controller != "pi" {
		t.Errorf("expected load preset to use pi, got %s", cfg.Controller)
	}
}

func TestResolveConfigFlagsOverride(t *testing.T) {
	cmd := newFlagCmd(t, "--preset", "deep", "--dt", "0.02", "--set", "current.ki=0.5")
	cfg, err := resolveConfig(cmd, []string{"battery"})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Dt != 0.02 {
		t.Errorf("expected dt 0.02, got %f", cfg.Dt)
	}
	if cfg.Duration != 120 {
		t.Errorf("unchanged flags must keep the preset duration, got %f", cfg.Duration)
	}
	st, _ := cfg.Stage("current")
	if st.Ki != 0.5 {
		t.Errorf("expected current.ki 0.5, got %f", st.Ki)
	}
}

func TestResolveConfigErrors(t *testing.T) {
	if _, err := resolveConfig(newFlagCmd(t, "--preset", "nope"), nil); err == nil {
		t.Error("expected error for unknown preset")
	}
	if _, err := resolveConfig(newFlagCmd(t, "--set", "ki=1"), nil); err == nil {
		t.Error("expected error for override without stage")
	}
	if _, err := resolveConfig(newFlagCmd(t, "--set", "current.ki=1,2"), nil); err == nil {
		t.Error("expected error for override with several values")
	}
}

func TestDropNaN(t *testing.T) {
	out := dropNaN([]float64{1, math.NaN(), 2})
	if len(out) != 2 || out[1] != 2 {
		t.Errorf("got %v", out)
	}
}

func TestRunMetadata(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Seed = 9
	meta := runMetadata(cfg, []experiment.Transition{
		{Time: 7.5, From: cascade.ModeConstantCurrent, To: cascade.ModeConstantVoltage},
	})

	if meta.Plant != "battery" || meta.Controller != "charger" || meta.Seed != 9 {
		t.Errorf("unexpected metadata %+v", meta)
	}
	if len(meta.Transitions) != 1 || meta.Transitions[0].From != cascade.ModeConstantCurrent.String() || meta.Transitions[0].To != cascade.ModeConstantVoltage.String() {
		t.Errorf("unexpected transitions %+v", meta.Transitions)
	}
}
