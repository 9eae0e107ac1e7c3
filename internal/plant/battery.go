package plant

import (
	"fmt"
	"math"

	"github.com/san-kum/picascade/internal/sim"
)

const (
	SoC = iota
	Current
)

const (
	OutVoltage = iota
	OutCurrent
)

type BatteryParams struct {
	Cells      int     `yaml:"cells" json:"cells"`
	CellEmpty  float64 `yaml:"cell_empty" json:"cell_empty"`
	CellFull   float64 `yaml:"cell_full" json:"cell_full"`
	CapacityAh float64 `yaml:"capacity_ah" json:"capacity_ah"`
	// Resistance is the pack series resistance in ohms.
	Resistance float64 `yaml:"resistance" json:"resistance"`
	// MaxCurrent is the converter output at 100% phase.
	MaxCurrent   float64 `yaml:"max_current" json:"max_current"`
	TimeConstant float64 `yaml:"time_constant" json:"time_constant"`
	InitialSoC   float64 `yaml:"initial_soc" json:"initial_soc"`
}

// DefaultBatteryParams describes a 12S pack (50.4V full) with a capacity
// small enough that a full CC/CV cycle fits in a few seconds of simulation.
func DefaultBatteryParams() BatteryParams {
	return BatteryParams{
		Cells:        12,
		CellEmpty:    3.0,
		CellFull:     4.2,
		CapacityAh:   0.05,
		Resistance:   0.1,
		MaxCurrent:   4.0,
		TimeConstant: 0.05,
		InitialSoC:   0.8,
	}
}

func (p BatteryParams) Validate() error {
	switch {
	case p.Cells <= 0:
		return fmt.Errorf("plant: cells must be positive, got %d", p.Cells)
	case p.CellFull <= p.CellEmpty:
		return fmt.Errorf("plant: cell_full (%g) must exceed cell_empty (%g)", p.CellFull, p.CellEmpty)
	case p.CapacityAh <= 0:
		return fmt.Errorf("plant: capacity_ah must be positive, got %g", p.CapacityAh)
	case p.Resistance < 0:
		return fmt.Errorf("plant: resistance must not be negative, got %g", p.Resistance)
	case p.MaxCurrent <= 0:
		return fmt.Errorf("plant: max_current must be positive, got %g", p.MaxCurrent)
	case p.TimeConstant <= 0:
		return fmt.Errorf("plant: time_constant must be positive, got %g", p.TimeConstant)
	case p.InitialSoC < 0 || p.InitialSoC > 1:
		return fmt.Errorf("plant: initial_soc must be within [0,1], got %g", p.InitialSoC)
	}
	return nil
}

// Battery state is [soc, current]; control is [phase %]; output is
// [pack voltage, charge current].
type Battery struct {
	p BatteryParams
}

func NewBattery(p BatteryParams) *Battery {
	return &Battery{p: p}
}

func (b *Battery) Params() BatteryParams { return b.p }

func (b *Battery) InitialState() sim.State {
	return sim.State{b.p.InitialSoC, 0}
}

func (b *Battery) StateDim() int   { return 2 }
func (b *Battery) ControlDim() int { return 1 }

// OpenCircuitVoltage is linear in state of charge between the empty and
// full cell voltages.
func (b *Battery) OpenCircuitVoltage(soc float64) float64 {
	soc = math.Max(0, math.Min(1, soc))
	return float64(b.p.Cells) * (b.p.CellEmpty + soc*(b.p.CellFull-b.p.CellEmpty))
}

func (b *Battery) Voltage(x sim.State) float64 {
	return b.OpenCircuitVoltage(x[SoC]) + x[Current]*b.p.Resistance
}

func (b *Battery) Derive(x sim.State, u sim.Control, t float64) sim.State {
	phase := 0.0
	if len(u) > 0 {
		phase = math.Max(0, math.Min(100, u[0]))
	}
	target := phase / 100 * b.p.MaxCurrent

	return sim.State{
		x[Current] / (b.p.CapacityAh * 3600),
		(target - x[Current]) / b.p.TimeConstant,
	}
}

func (b *Battery) Output(x sim.State) sim.State {
	return sim.State{b.Voltage(x), x[Current]}
}

// GetParams returns tunable parameters for live adjustment
func (b *Battery) GetParams() map[string]float64 {
	return map[string]float64{
		"cells":         float64(b.p.Cells),
		"cell_empty":    b.p.CellEmpty,
		"cell_full":     b.p.CellFull,
		"capacity_ah":   b.p.CapacityAh,
		"resistance":    b.p.Resistance,
		"max_current":   b.p.MaxCurrent,
		"time_constant": b.p.TimeConstant,
		"initial_soc":   b.p.InitialSoC,
	}
}

// SetParam adjusts a battery parameter. The change is rejected if it leaves
// the parameters invalid.
func (b *Battery) SetParam(name string, value float64) error {
	p := b.p
	switch name {
	case "cells":
		p.Cells = int(value)
	case "cell_empty":
		p.CellEmpty = value
	case "cell_full":
		p.CellFull = value
	case "capacity_ah":
		p.CapacityAh = value
	case "resistance":
		p.Resistance = value
	case "max_current":
		p.MaxCurrent = value
	case "time_constant":
		p.TimeConstant = value
	case "initial_soc":
		p.InitialSoC = value
	default:
		return fmt.Errorf("plant: unknown battery parameter %q", name)
	}
	if err := p.Validate(); err != nil {
		return err
	}
	b.p = p
	return nil
}
