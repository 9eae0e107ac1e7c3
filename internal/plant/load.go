package plant

import (
	"fmt"

	"github.com/san-kum/picascade/internal/sim"
)

type LoadParams struct {
	Gain         float64 `yaml:"gain" json:"gain"`
	TimeConstant float64 `yaml:"time_constant" json:"time_constant"`
	Initial      float64 `yaml:"initial" json:"initial"`
}

func DefaultLoadParams() LoadParams {
	return LoadParams{Gain: 1, TimeConstant: 0.5}
}

// Load is dy/dt = (gain*u - y) / tau with y measured directly.
type Load struct {
	p LoadParams
}

func NewLoad(p LoadParams) *Load {
	return &Load{p: p}
}

func (l *Load) InitialState() sim.State { return sim.State{l.p.Initial} }
func (l *Load) StateDim() int           { return 1 }
func (l *Load) ControlDim() int         { return 1 }

func (l *Load) Derive(x sim.State, u sim.Control, t float64) sim.State {
	in := 0.0
	if len(u) > 0 {
		in = u[0]
	}
	return sim.State{(l.p.Gain*in - x[0]) / l.p.TimeConstant}
}

func (l *Load) Output(x sim.State) sim.State { return sim.State{x[0]} }

func (l *Load) GetParams() map[string]float64 {
	return map[string]float64{
		"gain":          l.p.Gain,
		"time_constant": l.p.TimeConstant,
		"initial":       l.p.Initial,
	}
}

func (l *Load) SetParam(name string, value float64) error {
	switch name {
	case "gain":
		l.p.Gain = value
	case "time_constant":
		if value <= 0 {
			return fmt.Errorf("plant: time_constant must be positive, got %g", value)
		}
		l.p.TimeConstant = value
	case "initial":
		l.p.Initial = value
	default:
		return fmt.Errorf("plant: unknown load parameter %q", name)
	}
	return nil
}
