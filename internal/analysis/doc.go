// Package analysis post-processes recorded runs.
//
//   - [PhasePortrait]: one measurement plotted against another, e.g. the
//     charge current against pack voltage across a CC/CV cycle
//   - [PowerSpectrum] and [DominantFrequency]: ripple content of a signal
//   - [StepResponse]: overshoot, rise and settling figures of a step
package analysis
