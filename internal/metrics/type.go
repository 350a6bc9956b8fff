package metrics

import (
	"fmt"
	"strings"
)

// TypeDelimiter separates the operation and sample type in a metrics name.
const TypeDelimiter = "-"

// SampleSuccess is the sample type used for timed operations.
const SampleSuccess = "success"

// Type identifies a metrics stream by operation type and sample type.
// The structured pair is the identity; Name is only its serialized form.
type Type struct {
	Op     string
	Sample string
}

// NewType builds a Type. The operation type must be non-empty and must not
// contain the delimiter, so that names parse back unambiguously; the sample
// type may contain it.
func NewType(op, sample string) (Type, error) {
	if op == "" {
		return Type{}, fmt.Errorf("%w: empty operation type", ErrInvalidType)
	}
	if strings.Contains(op, TypeDelimiter) {
		return Type{}, fmt.Errorf("%w: operation type %q contains %q", ErrInvalidType, op, TypeDelimiter)
	}
	if sample == "" {
		return Type{}, fmt.Errorf("%w: empty sample type", ErrInvalidType)
	}
	return Type{Op: op, Sample: sample}, nil
}

// Name returns op + "-" + sample.
func (t Type) Name() string {
	return t.Op + TypeDelimiter + t.Sample
}

func (t Type) String() string {
	return t.Name()
}

// ParseType reverses Name. It splits on the first delimiter only.
func ParseType(name string) (Type, error) {
	op, sample, ok := strings.Cut(name, TypeDelimiter)
	if !ok {
		return Type{}, fmt.Errorf("%w: %q has no %q delimiter", ErrInvalidType, name, TypeDelimiter)
	}
	if op == "" || sample == "" {
		return Type{}, fmt.Errorf("%w: %q", ErrInvalidType, name)
	}
	return Type{Op: op, Sample: sample}, nil
}
