// Package pi provides the discrete proportional-integral stage used by the
// cascaded charger control loops.
//
// A [Stage] holds gains, saturation limits, the current reference and the
// two integral memory cells. Each control tick the caller sets
// [Stage.ReferencePoint] and calls [Stage.Compute] with the measured plant
// output:
//
//	voltage := pi.NewStage(4, 0.75, 0, 3)
//	voltage.ReferencePoint = 50.4
//	currentRef := voltage.Compute(measuredVoltage)
//
// The integral path accumulates the new increment on top of both the previous
// unsaturated increment and the previous saturated integral output, and the
// integral term is clamped before it is stored (anti-windup). The combined
// proportional and integral output is clamped a second time to the same
// limits.
//
// # Thread Safety
//
// Stage values are NOT safe for concurrent use. Run one stage per control
// loop on a single goroutine, or guard it externally.
package pi
