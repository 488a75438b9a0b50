package optimization

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind is a stable tag identifying the class of an optimization error.
type ErrorKind string

const (
	// KindConfiguration marks invalid run configuration, detected before
	// the run starts.
	KindConfiguration ErrorKind = "configuration"
	// KindEvaluation marks a failed or non-numeric objective evaluation.
	// These abort the run immediately.
	KindEvaluation ErrorKind = "evaluation"
)

// Error represents an optimization error with enough context to diagnose a
// misconfigured objective: the error kind, the iteration at which it
// occurred and, for evaluation failures, the offending position.
type Error struct {
	// Kind is the stable error class tag.
	Kind ErrorKind
	// Message describes the error.
	Message string
	// Iteration is the iteration index at which the error occurred.
	// Iteration 0 is population initialization; iterations count from 1.
	// Negative when not applicable.
	Iteration int
	// Position is the vector the objective was called with, for
	// evaluation errors.
	Position []float64
	// Err is the underlying error, if any.
	Err error
}

// Error returns the string representation of the error.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Iteration >= 0 {
		fmt.Fprintf(&b, " (iteration %d)", e.Iteration)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Position != nil {
		fmt.Fprintf(&b, " at x=%v", e.Position)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying error, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewConfigError creates a configuration error with a formatted message.
func NewConfigError(format string, args ...interface{}) *Error {
	return &Error{
		Kind:      KindConfiguration,
		Message:   fmt.Sprintf(format, args...),
		Iteration: -1,
	}
}

// NewEvaluationError creates an evaluation error carrying the iteration
// index and the offending position. The position is copied.
func NewEvaluationError(iteration int, position []float64, err error) *Error {
	return &Error{
		Kind:      KindEvaluation,
		Message:   "objective evaluation failed",
		Iteration: iteration,
		Position:  append([]float64(nil), position...),
		Err:       err,
	}
}

// IsKind reports whether err is an optimization error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
