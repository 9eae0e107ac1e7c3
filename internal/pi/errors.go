package pi

import "errors"

var (
	// ErrInvertedLimits indicates LowerLimit is greater than UpperLimit.
	ErrInvertedLimits = errors.New("pi: lower limit exceeds upper limit")

	// ErrUnknownParam indicates a tuning parameter name that a stage does not expose.
	ErrUnknownParam = errors.New("pi: unknown parameter")
)
