package sim

import (
	"fmt"
	"math"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

type Control []float64

type System interface {
	Derive(x State, u Control, t float64) State
	StateDim() int
	ControlDim() int
}

// Observable plants expose the measurements a controller is allowed to see.
type Observable interface {
	Output(x State) State
}

type Integrator interface {
	Step(dyn System, x State, u Control, t float64, dt float64) State
}

// Controller maps the measurement vector to a control vector.
type Controller interface {
	Compute(y State, t float64) Control
}

// Resetter is implemented by controllers with memory that must be cleared
// before a fresh run.
type Resetter interface {
	Reset()
}

type Metric interface {
	Name() string
	Observe(y State, u Control, t float64)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(x, y State, u Control, t float64)
}

type Configurable interface {
	GetParams() map[string]float64
	SetParam(name string, value float64) error
}

type Config struct {
	Dt       float64
	Duration float64
	Seed     int64
	// MeasurementNoise is the standard deviation of Gaussian noise added to
	// every measurement. Zero disables noise.
	MeasurementNoise float64
	ValidateState    bool
}

func DefaultConfig() Config {
	return Config{
		Dt:            0.01,
		Duration:      30.0,
		ValidateState: true,
	}
}

type Result struct {
	States     []State
	Outputs    []State
	Controls   []Control
	Times      []float64
	Metrics    map[string]float64
	StepsTaken int
	Errors     []error
}

// SimError records where a run stopped. It unwraps to the cause.
type SimError struct {
	Time float64
	Step int
	Err  error
}

func (e SimError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %v", e.Step, e.Time, e.Err)
}

func (e SimError) Unwrap() error { return e.Err }
