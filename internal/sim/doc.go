// Package sim steps a plant model under closed-loop control.
//
// A [System] describes the plant dynamics (dX/dt = f(X, u, t)). Plants that
// implement [Observable] expose a measurement vector; controllers only ever
// see that vector, never the internal state. Each tick the [Simulator]:
//
//  1. measures the plant (optionally with seeded Gaussian noise),
//  2. asks the [Controller] for a control vector,
//  3. feeds metrics and observers,
//  4. integrates the plant over one timestep.
//
// # Example
//
//	bat := plant.NewBattery(plant.DefaultBatteryParams())
//	s := sim.New(bat, integrators.NewRK4(), ctrl)
//	result, err := s.Run(ctx, bat.InitialState(), sim.DefaultConfig())
//
// # Thread Safety
//
// Simulator instances are NOT thread-safe. Sweeps build one simulator per
// candidate and use [ParallelFor] to spread them across goroutines.
package sim
