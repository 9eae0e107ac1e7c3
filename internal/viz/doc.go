// Package viz renders a running closed loop in the terminal.
//
// The live view is a Bubble Tea model that advances the simulation on a
// timer and draws the plant outputs and the controller command with
// asciigraph, next to a panel showing the integrator memory of every stage.
//
// # Key Bindings
//
//	Space  - Pause/Resume simulation
//	R      - Reset plant, controller and gains
//	Tab    - Select the next gain
//	Up/K   - Increase selected gain (+5%)
//	Down/J - Decrease selected gain (-5%)
//	T      - Cycle color themes
//	Q      - Quit
package viz
