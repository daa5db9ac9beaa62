package guest

import "errors"

var (
	// ErrNotIterable is returned when AsIterator is applied to a Value that
	// does not implement Iterator.
	ErrNotIterable = errors.New("guest: value is not iterable")
	// ErrNotAwaitable is returned when AsAwaitable is applied to a Value that
	// does not implement Awaitable.
	ErrNotAwaitable = errors.New("guest: value is not awaitable")
	// ErrSkipTest is the distinguished skip sentinel: guest code raises this
	// (wrapped) to signal a runtime skip decision, as opposed to a failure.
	// internal/execution recognizes it by errors.Is at classification time.
	ErrSkipTest = errors.New("guest: test skipped")
)

// SkipError wraps ErrSkipTest with an optional human-readable reason.
type SkipError struct {
	Reason string
}

func (e *SkipError) Error() string {
	if e.Reason == "" {
		return "test skipped"
	}

	return "test skipped: " + e.Reason
}

func (e *SkipError) Unwrap() error { return ErrSkipTest }
