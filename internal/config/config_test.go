package config

import (
	"errors"
	"path/filepath"
	"testing"

	"go.uber.org/multierr"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Plant != "battery" {
		t.Errorf("expected plant battery, got %s", cfg.Plant)
	}
	if cfg.Dt <= 0 {
		t.Error("dt should be positive")
	}
	if cfg.Duration <= 0 {
		t.Error("duration should be positive")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "charger.yaml")

	cfg := DefaultConfig()
	cfg.Seed = 7
	cfg.Stages[0].Kp = 2.5
	if err := Save(path, cfg); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.Seed != 7 || loaded.Stages[0].Kp != 2.5 {
		t.Errorf("round trip lost values: %+v", loaded)
	}
	if loaded.Battery.Cells != 12 {
		t.Errorf("expected battery cells 12, got %d", loaded.Battery.Cells)
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Dt = 0
	cfg.Duration = -1
	cfg.Stages[0].Lower = 5
	cfg.Stages[0].Upper = 1
	cfg.Stages[1].Name = "voltage"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}

	// dt, duration, inverted limits, duplicate name, missing current stage
	if n := len(multierr.Errors(err)); n != 5 {
		t.Errorf("expected 5 errors, got %d: %v", n, err)
	}
}

func TestValidateInvertedLimits(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Stages[1].Lower = 100
	cfg.Stages[1].Upper = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected inverted limits to be rejected")
	}
}

func TestValidateOpenLoopNeedsNoStages(t *testing.T) {
	cfg := GetPreset("battery", "open")
	cfg.Stages = nil
	if err := cfg.Validate(); err != nil {
		t.Errorf("open loop config should not need stages: %v", err)
	}
}

func TestStageBuild(t *testing.T) {
	st := DefaultStages()[0].Build()
	if st.KP != 4 || st.KI != 0.75 || st.UpperLimit != 3 || st.ReferencePoint != 50.4 {
		t.Errorf("unexpected stage %v", st)
	}
	if st.PreviousOutput != 0 || st.Error != 0 {
		t.Error("built stage should start reset")
	}
}

func TestSetStageParam(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.SetStageParam("current", "ki", 0.5); err != nil {
		t.Fatalf("SetStageParam failed: %v", err)
	}
	st, _ := cfg.Stage("current")
	if st.Ki != 0.5 {
		t.Errorf("expected ki 0.5, got %f", st.Ki)
	}
	if err := cfg.SetStageParam("missing", "ki", 1); err == nil {
		t.Error("expected error for unknown stage")
	}
	if err := cfg.SetStageParam("current", "gain", 1); err == nil {
		t.Error("expected error for unknown parameter")
	}
}

func TestClone(t *testing.T) {
	cfg := DefaultConfig()
	c := cfg.Clone()
	c.Stages[0].Kp = 99
	if cfg.Stages[0].Kp == 99 {
		t.Error("Clone shares the stage slice")
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("battery", "deep")
	if cfg == nil {
		t.Fatal("expected preset, got nil")
	}
	if cfg.Battery.InitialSoC != 0.1 {
		t.Errorf("expected initial soc 0.1, got %f", cfg.Battery.InitialSoC)
	}

	cfg.Stages[0].Kp = 100
	if again := GetPreset("battery", "deep"); again.Stages[0].Kp == 100 {
		t.Error("presets must not share state")
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	if cfg := GetPreset("battery", "nonexistent"); cfg != nil {
		t.Error("expected nil for nonexistent preset")
	}
	if cfg := GetPreset("nonexistent", "cc-cv"); cfg != nil {
		t.Error("expected nil for nonexistent plant")
	}
}

func TestEveryPresetIsValid(t *testing.T) {
	for _, plantName := range []string{"battery", "load"} {
		names := ListPresets(plantName)
		if len(names) == 0 {
			t.Fatalf("expected presets for %s", plantName)
		}
		for _, name := range names {
			if err := GetPreset(plantName, name).Validate(); err != nil {
				t.Errorf("%s/%s: %v", plantName, name, err)
			}
		}
	}

	if ListPresets("nonexistent") != nil {
		t.Error("expected nil for nonexistent plant")
	}
}

func TestBounds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Stages[0], cfg.Stages[1] = cfg.Stages[1], cfg.Stages[0]

	outer, inner, ok := cfg.Bounds()
	if !ok || outer.Name != "voltage" || inner.Name != "current" {
		t.Errorf("charger bounds: got %s/%s ok=%v", outer.Name, inner.Name, ok)
	}

	cfg.Controller = "cascade"
	outer, inner, _ = cfg.Bounds()
	if outer.Name != "current" || inner.Name != "voltage" {
		t.Errorf("cascade bounds follow stage order, got %s/%s", outer.Name, inner.Name)
	}

	cfg.Stages = nil
	if _, _, ok := cfg.Bounds(); ok {
		t.Error("expected no bounds without stages")
	}
}

func TestValidateChargerReferenceAboveThreshold(t *testing.T) {
	for _, ref := range []float64{49.6, 48} {
		cfg := DefaultConfig()
		if err := cfg.SetStageParam("voltage", "reference", ref); err != nil {
			t.Fatal(err)
		}
		err := cfg.Validate()
		if !errors.Is(err, ErrInvalid) {
			t.Errorf("reference %g: expected ErrInvalid, got %v", ref, err)
		}
	}

	// The cascade controller has no CV threshold to respect.
	cfg := DefaultConfig()
	cfg.Controller = "cascade"
	cfg.Stages[0].Reference = 48
	if err := cfg.Validate(); err != nil {
		t.Errorf("cascade should accept any reference: %v", err)
	}
}
