// Package plant provides the simulated systems the PI stages are tuned
// against.
//
//   - [Battery]: series lithium pack behind a phase-controlled converter,
//     measured as pack voltage and charge current
//   - [Load]: first-order lag, the simplest single-stage target
//
// Both implement [sim.System], [sim.Observable] and [sim.Configurable].
package plant
