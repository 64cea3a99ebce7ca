package internalerr

import "errors"

// Sentinel errors for common cases
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrDuplicate        = errors.New("duplicate entry")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrInvalidConfig    = errors.New("invalid configuration")
)

// Sentinel errors raised by the inference engine.
var (
	// ErrCycleDetected is returned by a run when the network contains a
	// directed cycle. No node state is modified.
	ErrCycleDetected = errors.New("structural error: network contains a cycle")

	// ErrContradictoryEvidence is returned when the asserted evidence has
	// probability zero under the model.
	ErrContradictoryEvidence = errors.New("contradictory evidence")

	// ErrNumericDegeneracy marks a non-finite evaluation result.
	ErrNumericDegeneracy = errors.New("numeric degeneracy")

	// ErrInvalidWeight is returned for NaN, infinite or negative weights.
	ErrInvalidWeight = errors.New("invalid weight")

	// ErrInvalidProbability is returned for priors outside [0, 1].
	ErrInvalidProbability = errors.New("invalid probability")

	// ErrCancelled is returned when a run stops because its context ended.
	ErrCancelled = errors.New("run cancelled")
)
