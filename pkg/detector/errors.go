package detector

import "errors"

var (
	// ErrInvalidInput is returned for an empty sample sequence.
	ErrInvalidInput = errors.New("invalid input: no samples")
	// ErrInsufficientSamples is returned when no window completes.
	ErrInsufficientSamples = errors.New("insufficient samples: less than one window")
	// ErrInvalidConfig is returned by Config.Validate.
	ErrInvalidConfig = errors.New("invalid detector config")
)
