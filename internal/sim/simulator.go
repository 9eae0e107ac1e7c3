package sim

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/edaniels/golog"
	"go.uber.org/zap"
)

type Simulator struct {
	dyn        System
	integrator Integrator
	controller Controller
	metrics    []Metric
	observers  []Observer
	logger     golog.Logger
	noise      *rand.Rand
	noiseStd   float64
}

func New(dyn System, integrator Integrator, controller Controller) *Simulator {
	return &Simulator{
		dyn:        dyn,
		integrator: integrator,
		controller: controller,
		metrics:    make([]Metric, 0),
		observers:  make([]Observer, 0),
		logger:     zap.NewNop().Sugar(),
	}
}

func (s *Simulator) AddMetric(m Metric)       { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer)   { s.observers = append(s.observers, o) }
func (s *Simulator) SetLogger(l golog.Logger) { s.logger = l }
func (s *Simulator) Controller() Controller   { return s.controller }
func (s *Simulator) System() System           { return s.dyn }

// Prepare resets metrics and the controller and seeds measurement noise. Run
// calls it; callers driving Step directly call it once before the first tick.
func (s *Simulator) Prepare(cfg Config) {
	for _, m := range s.metrics {
		m.Reset()
	}
	if r, ok := s.controller.(Resetter); ok {
		r.Reset()
	}
	s.noiseStd = cfg.MeasurementNoise
	s.noise = nil
	if cfg.MeasurementNoise > 0 {
		s.noise = rand.New(rand.NewSource(cfg.Seed))
	}
}

// Measure returns the controller's view of state x.
func (s *Simulator) Measure(x State) State {
	var y State
	if obs, ok := s.dyn.(Observable); ok {
		y = obs.Output(x)
	} else {
		y = x.Clone()
	}
	if s.noise != nil {
		for i := range y {
			y[i] += s.noise.NormFloat64() * s.noiseStd
		}
	}
	return y
}

// Step runs one control tick at time t and returns the next state together
// with the measurement and control used for it.
func (s *Simulator) Step(x State, t, dt float64) (next, y State, u Control) {
	y = s.Measure(x)
	u = s.controller.Compute(y, t)

	for _, m := range s.metrics {
		m.Observe(y, u, t)
	}
	for _, obs := range s.observers {
		obs.OnStep(x, y, u, t)
	}

	next = s.integrator.Step(s.dyn, x, u, t, dt)
	return next, y, u
}

func (s *Simulator) Run(ctx context.Context, x0 State, cfg Config) (*Result, error) {
	if err := s.validateConfig(cfg); err != nil {
		return nil, err
	}
	if len(x0) != s.dyn.StateDim() {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(x0), s.dyn.StateDim())
	}

	s.Prepare(cfg)

	steps := int(cfg.Duration/cfg.Dt + 0.5)
	result := &Result{
		States:   make([]State, 0, steps+1),
		Outputs:  make([]State, 0, steps),
		Controls: make([]Control, 0, steps),
		Times:    make([]float64, 0, steps+1),
		Metrics:  make(map[string]float64),
		Errors:   make([]error, 0),
	}

	x := x0.Clone()
	t := 0.0

	result.States = append(result.States, x.Clone())
	result.Times = append(result.Times, t)

	s.logger.Debugw("simulation started", "steps", steps, "dt", cfg.Dt, "noise", cfg.MeasurementNoise)

	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		newX, y, u := s.Step(x, t, cfg.Dt)

		if cfg.ValidateState && !newX.IsValid() {
			err := SimError{Time: t, Step: i, Err: ErrInvalidState}
			result.Errors = append(result.Errors, err)
			s.logger.Warnw("simulation stopped", "error", err)
			break
		}

		x = newX
		t += cfg.Dt
		result.StepsTaken++

		result.Outputs = append(result.Outputs, y)
		result.Controls = append(result.Controls, u)
		result.States = append(result.States, x.Clone())
		result.Times = append(result.Times, t)
	}

	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}

	s.logger.Debugw("simulation finished", "steps", result.StepsTaken, "metrics", result.Metrics)

	return result, nil
}

func (s *Simulator) validateConfig(cfg Config) error {
	if cfg.Dt <= 0 {
		return fmt.Errorf("%w: dt must be positive, got %f", ErrInvalidConfig, cfg.Dt)
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("%w: duration must be positive, got %f", ErrInvalidConfig, cfg.Duration)
	}
	if cfg.MeasurementNoise < 0 {
		return fmt.Errorf("%w: measurement noise must not be negative", ErrInvalidConfig)
	}
	return nil
}
