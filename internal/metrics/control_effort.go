package metrics

import (
	"math"

	"github.com/san-kum/picascade/internal/sim"
)

// ControlEffort is the mean over ticks of the summed absolute command.
type ControlEffort struct {
	sum   float64
	ticks int
}

func NewControlEffort() *ControlEffort { return &ControlEffort{} }

func (c *ControlEffort) Name() string { return "control_effort" }

func (c *ControlEffort) Observe(_ sim.State, u sim.Control, _ float64) {
	c.ticks++
	for _, v := range u {
		c.sum += math.Abs(v)
	}
}

func (c *ControlEffort) Value() float64 {
	if c.ticks == 0 {
		return 0
	}
	return c.sum / float64(c.ticks)
}

func (c *ControlEffort) Reset() { *c = ControlEffort{} }
