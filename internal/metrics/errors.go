package metrics

import "errors"

var (
	// ErrInvalidWindow is returned by Convert for a non-positive window length.
	ErrInvalidWindow = errors.New("window length must be positive")
	// ErrIncompatibleHistogram is returned when merging histograms whose
	// bucket bounds differ.
	ErrIncompatibleHistogram = errors.New("incompatible histogram bounds")
	// ErrInconsistentBucketing is returned by Combine when its inputs do not
	// share one bucketing scheme. It wraps ErrIncompatibleHistogram.
	ErrInconsistentBucketing = errors.New("inconsistent latency bucketing")
	// ErrEmptyAggregation is returned by Combine for an empty input list.
	ErrEmptyAggregation = errors.New("nothing to aggregate")
	// ErrMixedTypes is returned by Combine when inputs carry different types.
	ErrMixedTypes = errors.New("cannot combine metrics of different types")
	// ErrNotFound is returned by Registry lookups for unknown types.
	ErrNotFound = errors.New("metrics not found")
	// ErrInvalidType is returned when a metrics name cannot be parsed.
	ErrInvalidType = errors.New("invalid metrics type")
)
