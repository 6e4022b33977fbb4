package triangles

import (
	"errors"
	"fmt"
)

// Sentinel errors
var (
	ErrInvalidConcurrency = errors.New("concurrency must be positive")
	ErrAllocation         = errors.New("allocation refused")
	ErrCancelled          = errors.New("computation cancelled")
	ErrWorkerFailure      = errors.New("worker failed")
	ErrNotComputed        = errors.New("results not computed")
	ErrComputeInProgress  = errors.New("computation already in progress")
	ErrReleased           = errors.New("engine released")
	ErrNilGraph           = errors.New("graph is nil")
)

// Error describes a failed engine operation.
type Error struct {
	Op       string   // Operation that failed (e.g., "compute", "reserve")
	Strategy Strategy // Strategy of the engine
	State    State    // Engine state when the error was raised
	Cause    error    // Underlying error
}

func (e *Error) Error() string {
	return fmt.Sprintf("triangles %s (%s, %s): %v", e.Op, e.Strategy, e.State, e.Cause)
}

// Unwrap returns the underlying cause for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether the target error matches this error's cause.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	return errors.Is(e.Cause, target)
}

// errorBuilder provides a fluent interface for building Errors.
type errorBuilder struct {
	err Error
}

func newError(op string) *errorBuilder {
	return &errorBuilder{err: Error{Op: op}}
}

func (b *errorBuilder) strategy(s Strategy) *errorBuilder {
	b.err.Strategy = s
	return b
}

func (b *errorBuilder) state(s State) *errorBuilder {
	b.err.State = s
	return b
}

// cause sets the underlying error. Extra detail is wrapped around it so
// errors.Is still sees the cause.
func (b *errorBuilder) cause(err error, detail ...error) *errorBuilder {
	if len(detail) > 0 && detail[0] != nil {
		err = fmt.Errorf("%w: %w", err, detail[0])
	}
	b.err.Cause = err
	return b
}

func (b *errorBuilder) build() error {
	return &b.err
}

// StateError reports an operation that is not valid in the engine's
// current state.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("triangles %s: invalid in state %s", e.Op, e.State)
}

// Is matches ErrNotComputed for every state but Computed, and ErrReleased
// for a released engine.
func (e *StateError) Is(target error) bool {
	switch target {
	case ErrNotComputed:
		return e.State != StateComputed
	case ErrReleased:
		return e.State == StateReleased
	case ErrComputeInProgress:
		return e.State == StateComputing
	}
	return false
}

// IsCancelled reports whether err stems from a terminated computation.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// IsNotComputed reports whether err stems from reading results that are
// not available.
func IsNotComputed(err error) bool {
	return errors.Is(err, ErrNotComputed)
}
