package pi

import (
	"fmt"
	"sort"
)

// Stage is one PI control stage. The zero value is a reset stage with zero
// gains and zero limits.
type Stage struct {
	KP float32
	KI float32
	// KD is reserved for a derivative term and is not used by Compute.
	KD float32

	UpperLimit float32
	LowerLimit float32

	// ReferencePoint is the setpoint for the next Compute call. In a cascade
	// it is the output of the outer stage.
	ReferencePoint float32

	// Error is the last reference minus measurement.
	Error float32
	// PreviousError holds the unsaturated integral increment of the last step.
	PreviousError float32
	// PreviousOutput holds the saturated integral output of the last step.
	PreviousOutput float32
}

// Memory is a snapshot of the cells a Stage overwrites on every step.
type Memory struct {
	Error          float32
	PreviousError  float32
	PreviousOutput float32
}

func NewStage(kp, ki, lower, upper float32) *Stage {
	return &Stage{
		KP:         kp,
		KI:         ki,
		LowerLimit: lower,
		UpperLimit: upper,
	}
}

// Saturate clamps x to [lo, hi]. The upper bound is tested first, so with
// lo > hi values above hi clamp to hi and every other value clamps to lo.
// Nothing passes through unchanged.
func Saturate(x, lo, hi float32) float32 {
	if x > hi {
		return hi
	}
	if x < lo {
		return lo
	}
	return x
}

// Compute runs one control step against the measured plant output and
// returns the saturated control signal. s must not be nil.
func (s *Stage) Compute(measurement float32) float32 {
	if s == nil {
		panic("pi: Compute called on nil Stage")
	}

	s.Error = s.ReferencePoint - measurement

	proportional := float32(s.KP * s.Error)
	integral := s.integrate()

	return Saturate(proportional+integral, s.LowerLimit, s.UpperLimit)
}

func (s *Stage) integrate() float32 {
	increment := float32(s.KI * s.Error)

	out := increment + s.PreviousError + s.PreviousOutput
	out = Saturate(out, s.LowerLimit, s.UpperLimit)

	s.PreviousError = increment
	s.PreviousOutput = out

	return out
}

// Reset clears the error and integral memory. Gains, limits and the
// reference are kept. Reset on a nil Stage does nothing.
func (s *Stage) Reset() {
	if s == nil {
		return
	}
	s.Error = 0
	s.PreviousOutput = 0
	s.PreviousError = 0
}

func (s *Stage) Memory() Memory {
	return Memory{
		Error:          s.Error,
		PreviousError:  s.PreviousError,
		PreviousOutput: s.PreviousOutput,
	}
}

// Validate reports configuration problems. Compute never calls it.
func (s *Stage) Validate() error {
	if s.LowerLimit > s.UpperLimit {
		return fmt.Errorf("%w: lower=%g upper=%g", ErrInvertedLimits, s.LowerLimit, s.UpperLimit)
	}
	return nil
}

// GetParams returns tunable parameters for live adjustment
func (s *Stage) GetParams() map[string]float64 {
	return map[string]float64{
		"kp":        float64(s.KP),
		"ki":        float64(s.KI),
		"kd":        float64(s.KD),
		"lower":     float64(s.LowerLimit),
		"upper":     float64(s.UpperLimit),
		"reference": float64(s.ReferencePoint),
	}
}

// SetParam adjusts a stage parameter
func (s *Stage) SetParam(name string, value float64) error {
	v := float32(value)
	switch name {
	case "kp":
		s.KP = v
	case "ki":
		s.KI = v
	case "kd":
		s.KD = v
	case "lower":
		s.LowerLimit = v
	case "upper":
		s.UpperLimit = v
	case "reference":
		s.ReferencePoint = v
	default:
		return fmt.Errorf("%w: %q", ErrUnknownParam, name)
	}
	return nil
}

// ParamNames returns the names accepted by SetParam in sorted order.
func ParamNames() []string {
	names := make([]string, 0, 6)
	for k := range (&Stage{}).GetParams() {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (s *Stage) String() string {
	return fmt.Sprintf("kp=%g ki=%g limits=[%g,%g] ref=%g err=%g mem=(%g,%g)",
		s.KP, s.KI, s.LowerLimit, s.UpperLimit, s.ReferencePoint, s.Error, s.PreviousError, s.PreviousOutput)
}
