package analysis

import "math"

// StepResponse summarizes how a signal approached a reference.
type StepResponse struct {
	Final float64
	// Overshoot is the largest excursion past the reference, as a fraction
	// of the distance from the first sample to the reference.
	Overshoot float64
	// RiseTime is the time taken to go from 10% to 90% of that distance.
	RiseTime float64
	// SettlingTime is the time of the last sample outside reference +/- band.
	SettlingTime   float64
	SteadyStateErr float64
	ReachedTarget  bool
}

// AnalyzeStep computes step response figures of values sampled at times.
// NaN samples are ignored.
func AnalyzeStep(times, values []float64, reference, band float64) StepResponse {
	var r StepResponse

	start := math.NaN()
	t10, t90 := math.NaN(), math.NaN()

	for i, v := range values {
		if i >= len(times) || math.IsNaN(v) {
			continue
		}
		if math.IsNaN(start) {
			start = v
		}
		r.Final = v

		if math.Abs(v-reference) > band {
			r.SettlingTime = times[i]
		}

		span := reference - start
		if span == 0 {
			r.ReachedTarget = true
			continue
		}
		progress := (v - start) / span
		if math.IsNaN(t10) && progress >= 0.1 {
			t10 = times[i]
		}
		if math.IsNaN(t90) && progress >= 0.9 {
			t90 = times[i]
		}
		if progress >= 1 {
			r.ReachedTarget = true
		}
		r.Overshoot = math.Max(r.Overshoot, progress-1)
	}

	if !math.IsNaN(t10) && !math.IsNaN(t90) {
		r.RiseTime = t90 - t10
	}
	if !math.IsNaN(start) {
		r.SteadyStateErr = reference - r.Final
	}
	return r
}
