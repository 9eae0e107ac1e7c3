package cascade

import (
	"fmt"

	"github.com/san-kum/picascade/internal/pi"
)

type Mode int

const (
	ModeConstantCurrent Mode = iota
	ModeConstantVoltage
	ModeDone
)

func (m Mode) String() string {
	switch m {
	case ModeConstantCurrent:
		return "cc"
	case ModeConstantVoltage:
		return "cv"
	case ModeDone:
		return "done"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

const (
	VoltageStage = "voltage"
	CurrentStage = "current"
)

// ChargerConfig holds the CC/CV switching thresholds.
type ChargerConfig struct {
	// ChargeCurrent is the current reference used in constant-current mode.
	ChargeCurrent float32
	// CVThreshold is the pack voltage at which constant-voltage mode starts.
	CVThreshold float32
	// TerminationCurrent ends the charge once the voltage stage asks for less.
	TerminationCurrent float32
}

// Charger drives a voltage stage feeding a current stage through the
// constant-current, constant-voltage and done phases of a charge.
type Charger struct {
	cfg      ChargerConfig
	voltage  *pi.Stage
	current  *pi.Stage
	cascade  *Cascade
	mode     Mode
	onChange func(from, to Mode)
}

func NewCharger(cfg ChargerConfig, voltage, current *pi.Stage) (*Charger, error) {
	c, err := New(Named{VoltageStage, voltage}, Named{CurrentStage, current})
	if err != nil {
		return nil, err
	}
	return &Charger{
		cfg:     cfg,
		voltage: voltage,
		current: current,
		cascade: c,
		mode:    ModeConstantCurrent,
	}, nil
}

// OnModeChange registers a callback invoked after every mode transition.
func (c *Charger) OnModeChange(fn func(from, to Mode)) {
	c.onChange = fn
}

func (c *Charger) Mode() Mode { return c.mode }

func (c *Charger) Cascade() *Cascade { return c.cascade }

// CurrentReference is the reference the current stage used on the last step.
func (c *Charger) CurrentReference() float32 { return c.current.ReferencePoint }

// Step runs one control tick with the measured pack voltage and charge
// current and returns the converter command. Once done it returns the current
// stage's lower limit until Reset.
func (c *Charger) Step(voltage, current float32) float32 {
	if c.mode == ModeConstantCurrent && voltage >= c.cfg.CVThreshold {
		c.voltage.Reset()
		c.transition(ModeConstantVoltage)
	}

	switch c.mode {
	case ModeConstantCurrent:
		c.current.ReferencePoint = c.cfg.ChargeCurrent
		return c.current.Compute(current)
	case ModeConstantVoltage:
		out, _ := c.cascade.Tick(voltage, current)
		if c.current.ReferencePoint < c.cfg.TerminationCurrent {
			c.cascade.Reset()
			c.current.ReferencePoint = 0
			c.transition(ModeDone)
			return c.current.LowerLimit
		}
		return out
	default:
		return c.current.LowerLimit
	}
}

// Reset returns to constant-current mode with cleared stage memory.
func (c *Charger) Reset() {
	c.cascade.Reset()
	c.current.ReferencePoint = 0
	c.transition(ModeConstantCurrent)
}

func (c *Charger) transition(to Mode) {
	from := c.mode
	if from == to {
		return
	}
	c.mode = to
	if c.onChange != nil {
		c.onChange(from, to)
	}
}
