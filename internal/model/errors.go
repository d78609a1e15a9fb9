package model

import "errors"

// Failure taxonomy shared across the pipeline. Callers classify with
// errors.Is; wrapping sites add symbol/indicator context via fmt.Errorf.
var (
	// ErrDataUnavailable: no bars exist for the requested symbol/range.
	ErrDataUnavailable = errors.New("data unavailable")

	// ErrInsufficientData: fewer rows than an indicator's recommended
	// minimum. Logged as a warning; computation proceeds with leading NaNs.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrInvalidParameters: indicator parameter validation failed.
	ErrInvalidParameters = errors.New("invalid parameters")

	// ErrUnregisteredIndicator: requested indicator name is not in the registry.
	ErrUnregisteredIndicator = errors.New("unregistered indicator")

	// ErrCircularDependency: indicator dependency registration formed a cycle.
	ErrCircularDependency = errors.New("circular indicator dependency")

	// ErrCacheCorruption: a persisted cache payload failed to decode.
	// Surfaces to callers as a cache miss, never as a request failure.
	ErrCacheCorruption = errors.New("cache entry corrupted")

	// ErrAdjustmentDataMissing: no adjustment factors stored for a symbol.
	ErrAdjustmentDataMissing = errors.New("adjustment factors missing")

	// ErrInvalidQuality: data quality below the usable threshold.
	ErrInvalidQuality = errors.New("data quality invalid")
)
