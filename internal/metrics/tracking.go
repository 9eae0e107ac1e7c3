package metrics

import (
	"math"

	"github.com/san-kum/picascade/internal/sim"
	"gonum.org/v1/gonum/stat"
)

// TrackingError is the RMS of reference minus measurement index.
type TrackingError struct {
	name      string
	index     int
	reference float64
	squared   []float64
}

func NewTrackingError(index int, reference float64) *TrackingError {
	return &TrackingError{
		name:      "tracking_rms",
		index:     index,
		reference: reference,
	}
}

func (e *TrackingError) Name() string { return e.name }

func (e *TrackingError) Observe(y sim.State, u sim.Control, t float64) {
	if e.index >= len(y) {
		return
	}
	d := e.reference - y[e.index]
	e.squared = append(e.squared, d*d)
}

func (e *TrackingError) Value() float64 {
	if len(e.squared) == 0 {
		return 0
	}
	return math.Sqrt(stat.Mean(e.squared, nil))
}

func (e *TrackingError) Reset() {
	e.squared = e.squared[:0]
}

// Settling reports the time of the last sample outside reference +/- band.
// It is zero when every sample was inside the band.
type Settling struct {
	name      string
	index     int
	reference float64
	band      float64
	last      float64
}

func NewSettling(index int, reference, band float64) *Settling {
	return &Settling{
		name:      "settling_time",
		index:     index,
		reference: reference,
		band:      band,
	}
}

func (s *Settling) Name() string { return s.name }

func (s *Settling) Observe(y sim.State, u sim.Control, t float64) {
	if s.index >= len(y) {
		return
	}
	if math.Abs(y[s.index]-s.reference) > s.band {
		s.last = t
	}
}

func (s *Settling) Value() float64 { return s.last }

func (s *Settling) Reset() { s.last = 0 }

// Ripple is the standard deviation of measurement index over the samples
// observed after start.
type Ripple struct {
	name    string
	index   int
	start   float64
	samples []float64
}

func NewRipple(index int, start float64) *Ripple {
	return &Ripple{
		name:  "ripple",
		index: index,
		start: start,
	}
}

func (r *Ripple) Name() string { return r.name }

func (r *Ripple) Observe(y sim.State, u sim.Control, t float64) {
	if t < r.start || r.index >= len(y) {
		return
	}
	r.samples = append(r.samples, y[r.index])
}

func (r *Ripple) Value() float64 {
	if len(r.samples) < 2 {
		return 0
	}
	return stat.StdDev(r.samples, nil)
}

func (r *Ripple) Reset() { r.samples = r.samples[:0] }
