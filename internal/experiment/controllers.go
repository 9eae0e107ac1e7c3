package experiment

import (
	"fmt"
	"strings"

	"github.com/san-kum/picascade/internal/cascade"
	"github.com/san-kum/picascade/internal/pi"
	"github.com/san-kum/picascade/internal/sim"
)

// StageController drives a plant with a single PI stage fed from one
// measurement.
type StageController struct {
	stage *pi.Stage
	index int
}

func NewStageController(stage *pi.Stage, index int) *StageController {
	return &StageController{stage: stage, index: index}
}

func (c *StageController) Compute(y sim.State, t float64) sim.Control {
	return sim.Control{float64(c.stage.Compute(float32(y[c.index])))}
}

func (c *StageController) Reset()           { c.stage.Reset() }
func (c *StageController) Stage() *pi.Stage { return c.stage }

func (c *StageController) GetParams() map[string]float64 { return c.stage.GetParams() }

func (c *StageController) SetParam(name string, value float64) error {
	return c.stage.SetParam(name, value)
}

// CascadeController runs a cascade every tick. indices[i] selects the
// measurement fed to stage i.
type CascadeController struct {
	cascade *cascade.Cascade
	indices []int
	buf     []float32
}

func NewCascadeController(c *cascade.Cascade, indices []int) (*CascadeController, error) {
	if len(indices) != c.Len() {
		return nil, fmt.Errorf("%w: %d indices for %d stages", cascade.ErrMeasurementCount, len(indices), c.Len())
	}
	return &CascadeController{
		cascade: c,
		indices: indices,
		buf:     make([]float32, len(indices)),
	}, nil
}

func (c *CascadeController) Compute(y sim.State, t float64) sim.Control {
	for i, idx := range c.indices {
		c.buf[i] = float32(y[idx])
	}
	out, _ := c.cascade.Tick(c.buf...)
	return sim.Control{float64(out)}
}

func (c *CascadeController) Reset()                    { c.cascade.Reset() }
func (c *CascadeController) Cascade() *cascade.Cascade { return c.cascade }

func (c *CascadeController) GetParams() map[string]float64 { return cascadeParams(c.cascade) }

func (c *CascadeController) SetParam(name string, value float64) error {
	return setCascadeParam(c.cascade, name, value)
}

// Transition records a charger mode change and the simulation time it
// happened at.
type Transition struct {
	Time float64
	From cascade.Mode
	To   cascade.Mode
}

// ChargerController adapts a cascade.Charger to the simulator.
type ChargerController struct {
	charger      *cascade.Charger
	voltageIndex int
	currentIndex int
	now          float64
	transitions  []Transition
}

func NewChargerController(ch *cascade.Charger, voltageIndex, currentIndex int) *ChargerController {
	c := &ChargerController{
		charger:      ch,
		voltageIndex: voltageIndex,
		currentIndex: currentIndex,
	}
	ch.OnModeChange(func(from, to cascade.Mode) {
		c.transitions = append(c.transitions, Transition{Time: c.now, From: from, To: to})
	})
	return c
}

func (c *ChargerController) Compute(y sim.State, t float64) sim.Control {
	c.now = t
	out := c.charger.Step(float32(y[c.voltageIndex]), float32(y[c.currentIndex]))
	return sim.Control{float64(out)}
}

// Reset returns the charger to constant-current mode and forgets recorded
// transitions.
func (c *ChargerController) Reset() {
	c.charger.Reset()
	c.now = 0
	c.transitions = nil
}

func (c *ChargerController) Charger() *cascade.Charger { return c.charger }
func (c *ChargerController) Mode() cascade.Mode        { return c.charger.Mode() }

func (c *ChargerController) Transitions() []Transition {
	out := make([]Transition, len(c.transitions))
	copy(out, c.transitions)
	return out
}

func (c *ChargerController) GetParams() map[string]float64 {
	return cascadeParams(c.charger.Cascade())
}

func (c *ChargerController) SetParam(name string, value float64) error {
	return setCascadeParam(c.charger.Cascade(), name, value)
}

// OpenLoop applies a fixed control vector.
type OpenLoop struct {
	u sim.Control
}

func NewOpenLoop(u []float64) *OpenLoop {
	return &OpenLoop{u: append(sim.Control(nil), u...)}
}

func (o *OpenLoop) Compute(y sim.State, t float64) sim.Control {
	return append(sim.Control(nil), o.u...)
}

// cascadeParams flattens stage parameters into "<stage>.<param>" keys.
func cascadeParams(c *cascade.Cascade) map[string]float64 {
	params := make(map[string]float64)
	for _, name := range c.Names() {
		for k, v := range c.Stage(name).GetParams() {
			params[name+"."+k] = v
		}
	}
	return params
}

func setCascadeParam(c *cascade.Cascade, name string, value float64) error {
	stage, param, ok := strings.Cut(name, ".")
	if !ok {
		return fmt.Errorf("%w: %q, want <stage>.<param>", pi.ErrUnknownParam, name)
	}
	st := c.Stage(stage)
	if st == nil {
		return fmt.Errorf("%w: no stage %q", pi.ErrUnknownParam, stage)
	}
	return st.SetParam(param, value)
}
