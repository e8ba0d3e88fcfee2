package analyzer

import (
	apperrors "github.com/anime-shed/fingerprint-inspector-go/internal/errors"
)

// Status tells apart clean results, degraded results and failures
type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusFailure Status = "failure"
)

// Outcome is the result of a pipeline entry point.
// On failure Value is the zero value and Err is set; otherwise Err is nil.
type Outcome[T any] struct {
	Status   Status
	Value    T
	Warnings []string
	Err      *apperrors.AppError
}

// succeed returns a success, or a partial result when any warning was recorded
func succeed[T any](value T, warnings []string) Outcome[T] {
	if len(warnings) > 0 {
		return Outcome[T]{Status: StatusPartial, Value: value, Warnings: warnings}
	}
	return Outcome[T]{Status: StatusSuccess, Value: value}
}

func fail[T any](err *apperrors.AppError) Outcome[T] {
	return Outcome[T]{Status: StatusFailure, Err: err}
}

// OK reports whether the outcome carries a usable value
func (o Outcome[T]) OK() bool {
	return o.Status != StatusFailure
}

// Unwrap converts the outcome into the conventional value/error pair
func (o Outcome[T]) Unwrap() (T, error) {
	if o.Status == StatusFailure {
		var zero T
		return zero, o.Err
	}
	return o.Value, nil
}
