package execution

import (
	"errors"

	"github.com/karva-go/karva/internal/fixtures"
	"github.com/karva-go/karva/internal/guest"
)

// classify turns a test body's outcome (err == nil on pass, a skip sentinel,
// or any other error on failure) plus the variant's declared expectations
// into the five-way Outcome from spec.md §4.2.
func classify(variant *TestVariant, bodyErr error) (Outcome, []Diagnostic) {
	_, expectFail := variant.Test.Tags.ExpectFail()

	if errors.Is(bodyErr, guest.ErrSkipTest) {
		var reason string

		var skipErr *guest.SkipError
		if errors.As(bodyErr, &skipErr) {
			reason = skipErr.Reason
		}

		return Skipped, []Diagnostic{{
			Kind:      "skipped",
			Message:   reason,
			Qualified: variant.Test.Qualified,
		}}
	}

	if bodyErr == nil {
		if expectFail {
			return UnexpectedSuccess, []Diagnostic{{
				Kind:      "unexpected_success",
				Message:   "test was marked as an expected failure but passed",
				Qualified: variant.Test.Qualified,
			}}
		}

		return Passed, nil
	}

	if expectFail {
		return ExpectedFailure, []Diagnostic{{
			Kind:      "expected_failure",
			Message:   bodyErr.Error(),
			Qualified: variant.Test.Qualified,
		}}
	}

	diag := Diagnostic{Kind: "failed", Message: bodyErr.Error(), Qualified: variant.Test.Qualified}

	var missing *fixtures.MissingFixtureError
	if errors.As(bodyErr, &missing) {
		diag.Kind = "missing_fixture"
	}

	return Failed, []Diagnostic{diag}
}

// preSkip reports a variant that should never invoke its body at all because
// the test or its parametrize row carries an unconditional skip tag. The
// tag/name filter is applied separately, by the runner.
func preSkip(variant *TestVariant) (*Diagnostic, bool) {
	if skip, ok := variant.Test.Tags.Skip(); ok {
		return &Diagnostic{Kind: "skipped", Message: skip.Reason, Qualified: variant.Test.Qualified}, true
	}

	if skip, ok := variant.ParamTags.Skip(); ok {
		return &Diagnostic{Kind: "skipped", Message: skip.Reason, Qualified: variant.Test.Qualified}, true
	}

	return nil, false
}
