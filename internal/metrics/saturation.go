package metrics

import "github.com/san-kum/picascade/internal/sim"

// Saturation is the fraction of ticks in which control component index sat
// on either bound.
// The bounds are rounded to float32, the precision PI stages clamp at.
type Saturation struct {
	name         string
	index        int
	lower, upper float64
	pinned       int
	samples      int
}

func NewSaturation(index int, lower, upper float64) *Saturation {
	return &Saturation{
		name:  "saturation",
		index: index,
		lower: float64(float32(lower)),
		upper: float64(float32(upper)),
	}
}

func (s *Saturation) Name() string { return s.name }

func (s *Saturation) Observe(y sim.State, u sim.Control, t float64) {
	if s.index >= len(u) {
		return
	}
	s.samples++
	if v := u[s.index]; v <= s.lower || v >= s.upper {
		s.pinned++
	}
}

func (s *Saturation) Value() float64 {
	if s.samples == 0 {
		return 0
	}
	return float64(s.pinned) / float64(s.samples)
}

func (s *Saturation) Reset() {
	s.pinned = 0
	s.samples = 0
}
