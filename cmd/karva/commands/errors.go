package commands

import "errors"

// errInvocation marks an error as spec.md §7's "Invocation error" class,
// mapped to exit code 2 ("before any test runs"). ErrTestFailure marks the
// ordinary "one or more tests failed" outcome, mapped to exit code 1 by
// main.go; it is exported so main.go can classify it with errors.Is. Any
// other error returned from a command is treated as an unclassified
// internal error and also maps to exit code 2.
var (
	errInvocation = errors.New("karva: invocation error")

	// ErrTestFailure is returned by "karva test" when the run completed but
	// one or more tests did not pass.
	ErrTestFailure = errors.New("karva: test failures")
)
