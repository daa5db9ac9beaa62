package fixtures

import "errors"

var (
	// ErrCycle is returned when normalization re-enters a fixture name
	// already in progress on the current recursive descent.
	ErrCycle = errors.New("fixtures: dependency cycle")
	// ErrScopeViolation is returned when a fixture depends on another
	// fixture of a narrower scope.
	ErrScopeViolation = errors.New("fixtures: scope violation")
	// ErrMissingFixture is returned when a parameter name resolves to
	// neither a declared fixture, a built-in, nor a parametrize row.
	ErrMissingFixture = errors.New("fixtures: missing fixture")
)

// MissingFixtureError lists every unresolved parameter name at a single call
// site, per spec.md §4.1's "missing fixture" diagnostic.
type MissingFixtureError struct {
	CallSite QualifiedName
	Missing  []string
}

func (e *MissingFixtureError) Error() string {
	msg := "fixtures: missing fixture(s) for " + e.CallSite.String() + ":"
	for _, name := range e.Missing {
		msg += " " + name
	}

	return msg
}

func (e *MissingFixtureError) Unwrap() error { return ErrMissingFixture }

// CycleError names the qualified names forming a dependency cycle.
type CycleError struct {
	Cycle []QualifiedName
}

func (e *CycleError) Error() string {
	msg := "fixtures: cycle detected:"
	for i, q := range e.Cycle {
		if i > 0 {
			msg += " ->"
		}

		msg += " " + q.String()
	}

	return msg
}

func (e *CycleError) Unwrap() error { return ErrCycle }

// ScopeViolationError names the offending fixture and the narrower
// dependency it reached for.
type ScopeViolationError struct {
	Fixture  QualifiedName
	FixScope Scope
	DepName  QualifiedName
	DepScope Scope
}

func (e *ScopeViolationError) Error() string {
	return "fixtures: " + e.Fixture.String() + " (scope " + e.FixScope.String() +
		") may not depend on " + e.DepName.String() + " (narrower scope " + e.DepScope.String() + ")"
}

func (e *ScopeViolationError) Unwrap() error { return ErrScopeViolation }
