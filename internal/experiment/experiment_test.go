package experiment

import (
	"context"
	"errors"
	"testing"

	"github.com/edaniels/golog"
	. "github.com/onsi/gomega"

	"github.com/san-kum/picascade/internal/cascade"
	"github.com/san-kum/picascade/internal/config"
	"github.com/san-kum/picascade/internal/plant"
	"github.com/san-kum/picascade/internal/sim"
)

func runPreset(t *testing.T, plantName, preset string, edit func(*config.Config)) (*Experiment, *sim.Result) {
	t.Helper()
	cfg := config.GetPreset(plantName, preset)
	if cfg == nil {
		t.Fatalf("missing preset %s/%s", plantName, preset)
	}
	if edit != nil {
		edit(cfg)
	}

	exp, err := New(cfg, NewRegistry())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	exp.SetLogger(golog.NewTestLogger(t))

	result, err := exp.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Errors) > 0 {
		t.Fatalf("simulation errors: %v", result.Errors)
	}
	return exp, result
}

func TestChargerClosedLoop(t *testing.T) {
	g := NewWithT(t)
	exp, result := runPreset(t, "battery", "cc-cv", nil)

	ctrl, ok := exp.GetSimulator().Controller().(*ChargerController)
	g.Expect(ok).To(BeTrue())

	tr := ctrl.Transitions()
	g.Expect(tr).To(HaveLen(2))
	g.Expect(tr[0].To).To(Equal(cascade.ModeConstantVoltage))
	g.Expect(tr[0].Time).To(BeNumerically(">", 5))
	g.Expect(tr[1].To).To(Equal(cascade.ModeDone))
	g.Expect(tr[1].Time).To(BeNumerically(">", tr[0].Time))
	g.Expect(tr[1].Time).To(BeNumerically("<", 20))

	last := result.Outputs[len(result.Outputs)-1]
	g.Expect(last[plant.OutVoltage]).To(BeNumerically("~", 50.35, 0.15))
	g.Expect(last[plant.OutCurrent]).To(BeNumerically("<", 0.1))

	final := result.States[len(result.States)-1]
	g.Expect(final[plant.SoC]).To(BeNumerically(">", 0.99))

	// The command never leaves the current stage limits.
	for _, u := range result.Controls {
		g.Expect(u[0]).To(BeNumerically(">=", 0))
		g.Expect(u[0]).To(BeNumerically("<=", 100))
	}

	g.Expect(result.Metrics).To(HaveKey("tracking_rms"))
	g.Expect(result.Metrics).To(HaveKey("saturation"))
	g.Expect(result.Metrics).To(HaveKey("settling_time"))
}

func TestCascadeClosedLoopSettles(t *testing.T) {
	g := NewWithT(t)
	_, result := runPreset(t, "battery", "cascade", nil)

	last := result.Outputs[len(result.Outputs)-1]
	g.Expect(last[plant.OutVoltage]).To(BeNumerically("~", 50.4, 0.01))
}

func TestLoadStep(t *testing.T) {
	g := NewWithT(t)
	_, result := runPreset(t, "load", "step", nil)

	g.Expect(result.StepsTaken).To(Equal(1000))
	g.Expect(result.States[len(result.States)-1][0]).To(BeNumerically("~", 1, 1e-3))
	g.Expect(result.Metrics["settling_time"]).To(BeNumerically("<", 4))
}

func TestLoadSaturates(t *testing.T) {
	g := NewWithT(t)
	_, result := runPreset(t, "load", "saturating", nil)

	g.Expect(result.States[len(result.States)-1][0]).To(BeNumerically("~", 1.5, 1e-3))
	g.Expect(result.Metrics["saturation"]).To(BeNumerically(">", 0.9))
}

func TestOpenLoopBattery(t *testing.T) {
	g := NewWithT(t)
	_, result := runPreset(t, "battery", "open", nil)

	last := result.Outputs[len(result.Outputs)-1]
	g.Expect(last[plant.OutCurrent]).To(BeNumerically("~", 2, 1e-3))
	g.Expect(result.Metrics).To(HaveLen(1))
}

func TestEulerMatchesRK4(t *testing.T) {
	g := NewWithT(t)
	_, rk4 := runPreset(t, "load", "step", nil)
	_, euler := runPreset(t, "load", "step", func(c *config.Config) { c.Integrator = "euler" })

	a := rk4.States[len(rk4.States)-1][0]
	b := euler.States[len(euler.States)-1][0]
	g.Expect(a).To(BeNumerically("~", b, 1e-3))
}

func TestNoiseIsSeeded(t *testing.T) {
	g := NewWithT(t)
	short := func(c *config.Config) { c.Duration = 1 }

	_, a := runPreset(t, "battery", "noisy", short)
	_, b := runPreset(t, "battery", "noisy", short)
	g.Expect(a.Outputs).To(Equal(b.Outputs))

	_, c := runPreset(t, "battery", "noisy", func(c *config.Config) {
		c.Duration = 1
		c.Seed = 43
	})
	g.Expect(c.Outputs).NotTo(Equal(a.Outputs))
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Dt = 0
	if _, err := New(cfg, NewRegistry()); !errors.Is(err, config.ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}
}

func TestNewRejectsBadMeasureIndex(t *testing.T) {
	cfg := config.GetPreset("load", "step")
	cfg.Stages[0].Measure = 1
	if _, err := New(cfg, NewRegistry()); !errors.Is(err, sim.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestNewUnknownComponents(t *testing.T) {
	for _, edit := range []func(*config.Config){
		func(c *config.Config) { c.Plant = "rocket" },
		func(c *config.Config) { c.Integrator = "verlet" },
		func(c *config.Config) { c.Controller = "lqr" },
	} {
		cfg := config.DefaultConfig()
		edit(cfg)
		if _, err := New(cfg, NewRegistry()); err == nil {
			t.Errorf("expected error for %+v", cfg)
		}
	}
}

func TestExperimentStage(t *testing.T) {
	g := NewWithT(t)

	exp, err := New(config.DefaultConfig(), NewRegistry())
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(exp.StageNames()).To(Equal([]string{"voltage", "current"}))
	g.Expect(exp.Stage("voltage").KP).To(Equal(float32(4)))
	g.Expect(exp.Stage("missing")).To(BeNil())

	// Experiments keep their own copy of the configuration.
	cfg := config.GetPreset("load", "step")
	exp, err = New(cfg, NewRegistry())
	g.Expect(err).NotTo(HaveOccurred())
	cfg.Stages[0].Kp = 9
	g.Expect(exp.Config().Stages[0].Kp).To(Equal(0.5))
	g.Expect(exp.Stage("anything")).NotTo(BeNil())
}

func TestRegistryLists(t *testing.T) {
	r := NewRegistry()
	g := NewWithT(t)
	g.Expect(r.ListPlants()).To(Equal([]string{"battery", "load"}))
	g.Expect(r.ListIntegrators()).To(Equal([]string{"euler", "rk4"}))
	g.Expect(r.ListControllers()).To(Equal([]string{"cascade", "charger", "open", "pi"}))
}
