package sim

import (
	"errors"
	"math"
	"testing"
)

func TestStateIsValid(t *testing.T) {
	tests := []struct {
		name  string
		state State
		valid bool
	}{
		{"empty", State{}, true},
		{"battery", State{0.8, 2.5}, true},
		{"discharged", State{0, 0}, true},
		{"soc NaN", State{math.NaN(), 1}, false},
		{"current +Inf", State{0.5, math.Inf(1)}, false},
		{"current -Inf", State{0.5, math.Inf(-1)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.valid {
				t.Errorf("IsValid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestStateClone(t *testing.T) {
	a := State{0.8, 3}
	c := a.Clone()
	c[1] = 0
	if a[1] != 3 {
		t.Error("Clone shares storage with the original")
	}
	if len(State(nil).Clone()) != 0 {
		t.Error("clone of nil state should be empty")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Dt <= 0 || cfg.Duration <= cfg.Dt {
		t.Errorf("invalid default timing dt=%g duration=%g", cfg.Dt, cfg.Duration)
	}
	if !cfg.ValidateState {
		t.Error("DefaultConfig should validate state")
	}
	if cfg.MeasurementNoise != 0 {
		t.Error("DefaultConfig should be noiseless")
	}
}

func TestSimError(t *testing.T) {
	err := SimError{Time: 1.5, Step: 150, Err: ErrInvalidState}
	expected := "step 150 (t=1.5000): sim: invalid state (NaN or Inf detected)"
	if err.Error() != expected {
		t.Errorf("SimError.Error() = %q, want %q", err.Error(), expected)
	}
	if !errors.Is(err, ErrInvalidState) {
		t.Error("SimError should unwrap to its cause")
	}
}
