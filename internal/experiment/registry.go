package experiment

import (
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/picascade/internal/cascade"
	"github.com/san-kum/picascade/internal/config"
	"github.com/san-kum/picascade/internal/integrators"
	"github.com/san-kum/picascade/internal/metrics"
	"github.com/san-kum/picascade/internal/pi"
	"github.com/san-kum/picascade/internal/plant"
	"github.com/san-kum/picascade/internal/sim"
)

// Plant is a simulated system that can report its measurements and its
// configured starting point.
type Plant interface {
	sim.System
	sim.Observable
	InitialState() sim.State
}

type Registry struct {
	plants      map[string]func(*config.Config) Plant
	integrators map[string]func() sim.Integrator
	controllers map[string]func(*config.Config, Plant) (sim.Controller, error)
}

func NewRegistry() *Registry {
	r := &Registry{
		plants:      make(map[string]func(*config.Config) Plant),
		integrators: make(map[string]func() sim.Integrator),
		controllers: make(map[string]func(*config.Config, Plant) (sim.Controller, error)),
	}

	r.plants["battery"] = func(cfg *config.Config) Plant { return plant.NewBattery(cfg.Battery) }
	r.plants["load"] = func(cfg *config.Config) Plant { return plant.NewLoad(cfg.Load) }

	r.integrators["euler"] = func() sim.Integrator { return integrators.NewEuler() }
	r.integrators["rk4"] = func() sim.Integrator { return integrators.NewRK4() }

	r.controllers["pi"] = func(cfg *config.Config, p Plant) (sim.Controller, error) {
		if len(cfg.Stages) != 1 {
			return nil, fmt.Errorf("experiment: pi controller takes one stage, got %d", len(cfg.Stages))
		}
		st := cfg.Stages[0]
		if err := checkMeasure(p, st); err != nil {
			return nil, err
		}
		return NewStageController(st.Build(), st.Measure), nil
	}
	r.controllers["cascade"] = func(cfg *config.Config, p Plant) (sim.Controller, error) {
		named := make([]cascade.Named, len(cfg.Stages))
		indices := make([]int, len(cfg.Stages))
		for i, st := range cfg.Stages {
			if err := checkMeasure(p, st); err != nil {
				return nil, err
			}
			named[i] = cascade.Named{Name: st.Name, Stage: st.Build()}
			indices[i] = st.Measure
		}
		c, err := cascade.New(named...)
		if err != nil {
			return nil, err
		}
		return NewCascadeController(c, indices)
	}
	r.controllers["charger"] = func(cfg *config.Config, p Plant) (sim.Controller, error) {
		v, ok := cfg.Stage(cascade.VoltageStage)
		if !ok {
			return nil, fmt.Errorf("experiment: charger needs a %q stage", cascade.VoltageStage)
		}
		c, ok := cfg.Stage(cascade.CurrentStage)
		if !ok {
			return nil, fmt.Errorf("experiment: charger needs a %q stage", cascade.CurrentStage)
		}
		for _, st := range []config.StageConfig{v, c} {
			if err := checkMeasure(p, st); err != nil {
				return nil, err
			}
		}
		ch, err := cascade.NewCharger(cascade.ChargerConfig{
			ChargeCurrent:      float32(cfg.Charger.ChargeCurrent),
			CVThreshold:        float32(cfg.Charger.CVThreshold),
			TerminationCurrent: float32(cfg.Charger.TerminationCurrent),
		}, v.Build(), c.Build())
		if err != nil {
			return nil, err
		}
		return NewChargerController(ch, v.Measure, c.Measure), nil
	}
	r.controllers["open"] = func(cfg *config.Config, p Plant) (sim.Controller, error) {
		u := cfg.OpenLoop
		if len(u) == 0 {
			u = make([]float64, p.ControlDim())
		}
		if len(u) != p.ControlDim() {
			return nil, fmt.Errorf("%w: open loop control has %d values, plant takes %d",
				sim.ErrDimensionMismatch, len(u), p.ControlDim())
		}
		return NewOpenLoop(u), nil
	}

	return r
}

func checkMeasure(p Plant, st config.StageConfig) error {
	n := len(p.Output(p.InitialState()))
	if st.Measure < 0 || st.Measure >= n {
		return fmt.Errorf("%w: stage %q measures output %d, plant has %d",
			sim.ErrDimensionMismatch, st.Name, st.Measure, n)
	}
	return nil
}

func (r *Registry) GetPlant(cfg *config.Config) (Plant, error) {
	fn, ok := r.plants[cfg.Plant]
	if !ok {
		return nil, fmt.Errorf("unknown plant: %s", cfg.Plant)
	}
	return fn(cfg), nil
}

func (r *Registry) GetIntegrator(name string) (sim.Integrator, error) {
	fn, ok := r.integrators[name]
	if !ok {
		return nil, fmt.Errorf("unknown integrator: %s", name)
	}
	return fn(), nil
}

func (r *Registry) GetController(cfg *config.Config, p Plant) (sim.Controller, error) {
	fn, ok := r.controllers[cfg.Controller]
	if !ok {
		return nil, fmt.Errorf("unknown controller: %s", cfg.Controller)
	}
	return fn(cfg, p)
}

func (r *Registry) ListPlants() []string      { return sortedKeys(r.plants) }
func (r *Registry) ListIntegrators() []string { return sortedKeys(r.integrators) }
func (r *Registry) ListControllers() []string { return sortedKeys(r.controllers) }

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultMetrics scores a run against its outermost stage: tracking error
// and settling time on the measurement that stage watches, saturation of
// the command against the innermost stage limits, and output ripple over
// the second half of the run.
func (r *Registry) DefaultMetrics(cfg *config.Config) []sim.Metric {
	ms := []sim.Metric{metrics.NewControlEffort()}
	if cfg.Controller == "open" {
		return ms
	}
	outer, inner, ok := cfg.Bounds()
	if !ok {
		return ms
	}

	band := math.Max(0.01*math.Abs(outer.Reference), 0.01)
	return append(ms,
		metrics.NewSaturation(0, inner.Lower, inner.Upper),
		metrics.NewTrackingError(outer.Measure, outer.Reference),
		metrics.NewSettling(outer.Measure, outer.Reference, band),
		metrics.NewRipple(outer.Measure, cfg.Duration/2),
	)
}

// stageOf returns the stage a controller exposes for live tuning by name,
// or nil.
func stageOf(ctrl sim.Controller, name string) *pi.Stage {
	switch c := ctrl.(type) {
	case *StageController:
		return c.Stage()
	case *CascadeController:
		return c.Cascade().Stage(name)
	case *ChargerController:
		return c.Charger().Cascade().Stage(name)
	}
	return nil
}
