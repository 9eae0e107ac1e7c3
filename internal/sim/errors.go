package sim

import "errors"

var (
	// ErrInvalidConfig indicates a non-positive timestep or duration.
	ErrInvalidConfig = errors.New("sim: invalid config")

	// ErrInvalidState indicates a state vector containing NaN or Inf.
	ErrInvalidState = errors.New("sim: invalid state (NaN or Inf detected)")

	// ErrDimensionMismatch indicates an initial state that does not fit the plant.
	ErrDimensionMismatch = errors.New("sim: dimension mismatch between state and system")
)
