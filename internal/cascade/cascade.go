// Package cascade chains PI stages so that each stage's output becomes the
// reference of the next, and supervises a two-stage battery charger on top
// of such a chain.
package cascade

import (
	"errors"
	"fmt"

	"github.com/san-kum/picascade/internal/pi"
)

var (
	ErrMeasurementCount = errors.New("cascade: measurement count does not match stage count")
	ErrNoStages         = errors.New("cascade: no stages")
	ErrDuplicateStage   = errors.New("cascade: duplicate stage name")
)

// Named pairs a stage with the name it is addressed by.
type Named struct {
	Name  string
	Stage *pi.Stage
}

// Cascade runs its stages outermost first.
type Cascade struct {
	stages  []Named
	outputs []float32
}

func New(stages ...Named) (*Cascade, error) {
	if len(stages) == 0 {
		return nil, ErrNoStages
	}
	seen := make(map[string]bool, len(stages))
	for _, st := range stages {
		if st.Stage == nil {
			return nil, fmt.Errorf("cascade: stage %q is nil", st.Name)
		}
		if seen[st.Name] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateStage, st.Name)
		}
		seen[st.Name] = true
	}
	return &Cascade{
		stages:  stages,
		outputs: make([]float32, len(stages)),
	}, nil
}

// Tick computes every stage against its measurement. measurements[i] belongs
// to stage i. The innermost output is returned.
func (c *Cascade) Tick(measurements ...float32) (float32, error) {
	if len(measurements) != len(c.stages) {
		return 0, fmt.Errorf("%w: got %d, want %d", ErrMeasurementCount, len(measurements), len(c.stages))
	}

	for i, st := range c.stages {
		if i > 0 {
			st.Stage.ReferencePoint = c.outputs[i-1]
		}
		c.outputs[i] = st.Stage.Compute(measurements[i])
	}

	return c.outputs[len(c.outputs)-1], nil
}

// Outputs returns a copy of the outputs of the last Tick.
func (c *Cascade) Outputs() []float32 {
	out := make([]float32, len(c.outputs))
	copy(out, c.outputs)
	return out
}

func (c *Cascade) Stage(name string) *pi.Stage {
	for _, st := range c.stages {
		if st.Name == name {
			return st.Stage
		}
	}
	return nil
}

func (c *Cascade) Names() []string {
	names := make([]string, len(c.stages))
	for i, st := range c.stages {
		names[i] = st.Name
	}
	return names
}

func (c *Cascade) Len() int { return len(c.stages) }

// Reset clears the memory of every stage and the recorded outputs.
func (c *Cascade) Reset() {
	for i, st := range c.stages {
		st.Stage.Reset()
		c.outputs[i] = 0
	}
}
