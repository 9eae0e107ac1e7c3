package experiment

import (
	"context"
	"fmt"

	"github.com/edaniels/golog"
	"github.com/san-kum/picascade/internal/config"
	"github.com/san-kum/picascade/internal/pi"
	"github.com/san-kum/picascade/internal/sim"
)

type Experiment struct {
	cfg       *config.Config
	plant     Plant
	simulator *sim.Simulator
}

// New validates cfg and wires plant, integrator, controller and default
// metrics from the registry.
func New(cfg *config.Config, reg *Registry) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p, err := reg.GetPlant(cfg)
	if err != nil {
		return nil, err
	}
	integ, err := reg.GetIntegrator(cfg.Integrator)
	if err != nil {
		return nil, err
	}
	ctrl, err := reg.GetController(cfg, p)
	if err != nil {
		return nil, fmt.Errorf("experiment: controller %s: %w", cfg.Controller, err)
	}

	e := &Experiment{cfg: cfg.Clone(), plant: p}
	e.Setup(p, integ, ctrl, reg.DefaultMetrics(cfg))
	return e, nil
}

func (e *Experiment) Setup(p Plant, integrator sim.Integrator, controller sim.Controller, metrics []sim.Metric) {
	e.plant = p
	e.simulator = sim.New(p, integrator, controller)
	for _, m := range metrics {
		e.simulator.AddMetric(m)
	}
}

func (e *Experiment) SetLogger(l golog.Logger) { e.simulator.SetLogger(l) }

func (e *Experiment) SimConfig() sim.Config {
	return sim.Config{
		Dt:               e.cfg.Dt,
		Duration:         e.cfg.Duration,
		Seed:             e.cfg.Seed,
		MeasurementNoise: e.cfg.Noise,
		ValidateState:    true,
	}
}

func (e *Experiment) Run(ctx context.Context) (*sim.Result, error) {
	if e.simulator == nil {
		return nil, fmt.Errorf("experiment not setup")
	}
	return e.simulator.Run(ctx, e.plant.InitialState(), e.SimConfig())
}

// GetSimulator returns the underlying simulator for adding observers
func (e *Experiment) GetSimulator() *sim.Simulator { return e.simulator }
func (e *Experiment) Plant() Plant                 { return e.plant }
func (e *Experiment) Config() *config.Config       { return e.cfg }

// Stage returns the named stage of the controller, or nil. A single-stage
// controller answers for any name.
func (e *Experiment) Stage(name string) *pi.Stage {
	return stageOf(e.simulator.Controller(), name)
}

// StageNames lists the configured stages outermost first.
func (e *Experiment) StageNames() []string {
	names := make([]string, len(e.cfg.Stages))
	for i, st := range e.cfg.Stages {
		names[i] = st.Name
	}
	return names
}
