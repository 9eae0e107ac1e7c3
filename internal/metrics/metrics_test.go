package metrics

import (
	"math"
	"testing"

	"github.com/san-kum/picascade/internal/pi"
	"github.com/san-kum/picascade/internal/sim"
)

func TestControlEffort(t *testing.T) {
	m := NewControlEffort()
	m.Observe(nil, sim.Control{2}, 0)
	m.Observe(nil, sim.Control{-4}, 0.1)

	if m.Value() != 3 {
		t.Errorf("expected mean effort 3, got %f", m.Value())
	}

	m.Reset()
	if m.Value() != 0 {
		t.Error("expected zero effort after reset")
	}
}

func TestSaturation(t *testing.T) {
	m := NewSaturation(0, 0, 100)
	for _, u := range []float64{0, 50, 100, 120} {
		m.Observe(nil, sim.Control{u}, 0)
	}
	m.Observe(nil, sim.Control{}, 0)

	if m.Value() != 0.75 {
		t.Errorf("expected 0.75, got %f", m.Value())
	}
	m.Reset()
	if m.Value() != 0 {
		t.Error("expected zero after reset")
	}
}

func TestSaturationCountsStageLimits(t *testing.T) {
	st := pi.NewStage(1, 0, 0.1, 0.7)
	m := NewSaturation(0, 0.1, 0.7)

	for _, ref := range []float32{10, -10} {
		st.ReferencePoint = ref
		m.Observe(nil, sim.Control{float64(st.Compute(0))}, 0)
	}

	if m.Value() != 1 {
		t.Errorf("expected both clamped commands counted, got %f", m.Value())
	}
}

func TestTrackingError(t *testing.T) {
	m := NewTrackingError(1, 3)
	m.Observe(sim.State{0, 0}, nil, 0)
	m.Observe(sim.State{0, 6}, nil, 0.1)
	m.Observe(sim.State{0, 3}, nil, 0.2)
	m.Observe(sim.State{0, 3}, nil, 0.3)

	expected := math.Sqrt((9 + 9) / 4.0)
	if math.Abs(m.Value()-expected) > 1e-12 {
		t.Errorf("expected %f, got %f", expected, m.Value())
	}

	m.Reset()
	if m.Value() != 0 {
		t.Error("expected zero after reset")
	}
}

func TestSettling(t *testing.T) {
	m := NewSettling(0, 50.4, 0.05)
	samples := []struct {
		y, t float64
	}{
		{48, 0}, {50.5, 1}, {50.41, 2}, {50.39, 3},
	}
	for _, s := range samples {
		m.Observe(sim.State{s.y}, nil, s.t)
	}

	if m.Value() != 1 {
		t.Errorf("expected settling at t=1, got %f", m.Value())
	}
}

func TestRipple(t *testing.T) {
	m := NewRipple(0, 1)
	m.Observe(sim.State{100}, nil, 0)
	for i, y := range []float64{2, 4, 4, 4, 5, 5, 7, 9} {
		m.Observe(sim.State{y}, nil, 1+float64(i))
	}

	// Sample standard deviation of the set above.
	expected := math.Sqrt(32.0 / 7.0)
	if math.Abs(m.Value()-expected) > 1e-12 {
		t.Errorf("expected %f, got %f", expected, m.Value())
	}
}
