// Package execution drives the per-worker scoped execution loop of
// spec.md §4.2: variant expansion, fixture setup/teardown, retries, result
// classification, and tag/name filtering.
package execution

import (
	"github.com/karva-go/karva/internal/fixtures"
	"github.com/karva-go/karva/internal/guest"
)

// Outcome is one of the five individual outcomes named in spec.md §4.2.
type Outcome int

const (
	Passed Outcome = iota
	Failed
	Skipped
	ExpectedFailure
	UnexpectedSuccess
)

func (o Outcome) String() string {
	switch o {
	case Passed:
		return "passed"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	case ExpectedFailure:
		return "expected_failure"
	case UnexpectedSuccess:
		return "unexpected_success"
	default:
		return "unknown"
	}
}

// Diagnostic is a rendered explanation attached to a non-passing Result,
// per spec.md §7's error taxonomy: it always names a kind, a human message,
// and the qualified name it's about.
type Diagnostic struct {
	Kind      string
	Message   string
	Qualified fixtures.QualifiedName
}

// TestVariant is the unit of execution (spec.md §3): one TestDef, one
// parametrize-row binding, and the fixture DAG nodes resolved for it.
type TestVariant struct {
	Test        *fixtures.TestDef
	Params      map[string]guest.Value
	ParamTags   fixtures.TagSet
	FixtureDeps []*fixtures.NormalizedFixture
	AutoUse     []*fixtures.NormalizedFixture

	// ID is the display identifier, e.g. "test_add(x=1)" — see VariantID.
	ID string
}

// Result is the outcome of running one TestVariant, including any
// accumulated teardown diagnostics (which never change the Outcome but are
// surfaced alongside it).
type Result struct {
	Variant     *TestVariant
	Outcome     Outcome
	Diagnostics []Diagnostic
	Retries     int
	ElapsedSecs float64
}
