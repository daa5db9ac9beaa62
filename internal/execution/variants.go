package execution

import (
	"fmt"
	"sort"
	"strings"

	"github.com/karva-go/karva/internal/fixtures"
	"github.com/karva-go/karva/internal/guest"
)

// Expand generates the TestVariants for test: the Cartesian product of (a)
// each parametrize row attached to the test and (b) the unique
// fixture-combination implied by those rows' parameter bindings (spec.md
// §3's TestVariant definition). Resolver.Resolve is called once per
// resulting binding, since a row may supply a parameter name that would
// otherwise have resolved to a same-named fixture — per DESIGN.md's Open
// Question resolution, the row wins and the fixture is not invoked for that
// parameter.
func Expand(
	test *fixtures.TestDef,
	resolver *fixtures.Resolver,
	scopeChain []fixtures.Scopes,
) ([]*TestVariant, error) {
	rows := cartesianRows(test.Tags.Parametrize())

	if len(rows) == 0 {
		rows = []boundRow{{values: map[string]guest.Value{}}}
	}

	variants := make([]*TestVariant, 0, len(rows))

	for _, row := range rows {
		remaining := make([]string, 0, len(test.Params))

		for _, p := range test.Params {
			if _, bound := row.values[p]; !bound {
				remaining = append(remaining, p)
			}
		}

		deps, missing, err := resolver.Resolve(test.Qualified, remaining, scopeChain)
		if err != nil {
			return nil, err
		}

		if len(missing) > 0 {
			return nil, &fixtures.MissingFixtureError{CallSite: test.Qualified, Missing: missing}
		}

		autouse, err := resolver.AutoUse(scopeChain)
		if err != nil {
			return nil, err
		}

		variants = append(variants, &TestVariant{
			Test:        test,
			Params:      row.values,
			ParamTags:   row.tags,
			FixtureDeps: deps,
			AutoUse:     autouse,
			ID:          VariantID(test.Qualified.Name, row.display),
		})
	}

	return variants, nil
}

// boundRow is one parametrize-row binding, flattened across every
// ParametrizeTag a test carries.
type boundRow struct {
	values  map[string]guest.Value
	tags    fixtures.TagSet
	display string
}

// cartesianRows combines every ParametrizeTag's rows into the full Cartesian
// product, in declaration order (outer loop = first tag's rows, per
// spec.md §5's ordering guarantee).
func cartesianRows(tagsList []*fixtures.ParametrizeTag) []boundRow {
	if len(tagsList) == 0 {
		return nil
	}

	rows := []boundRow{{values: map[string]guest.Value{}}}

	for _, pt := range tagsList {
		var next []boundRow

		for _, existing := range rows {
			for _, row := range pt.Rows {
				merged := make(map[string]guest.Value, len(existing.values)+len(row.Values))
				for k, v := range existing.values {
					merged[k] = v
				}

				names := make([]string, 0, len(row.Values))
				for k := range row.Values {
					names = append(names, k)
				}

				sort.Strings(names)

				var parts []string

				for _, k := range names {
					merged[k] = row.Values[k]
					parts = append(parts, fmt.Sprintf("%s=%v", k, displayValue(row.Values[k])))
				}

				display := existing.display
				if len(parts) > 0 {
					if display != "" {
						display += ", "
					}

					display += strings.Join(parts, ", ")
				}

				next = append(next, boundRow{
					values:  merged,
					tags:    append(append(fixtures.TagSet{}, existing.tags...), row.Tags...),
					display: display,
				})
			}
		}

		rows = next
	}

	return rows
}

// displayValue renders a guest.Value's type name as a placeholder for its
// stringified form; a concrete guest binding typically also implements
// fmt.Stringer, in which case that takes precedence.
func displayValue(v guest.Value) string {
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}

	return v.TypeName()
}

// VariantID renders a test's display identifier, e.g. "test_add(x=1, y=2)"
// for a parametrized variant or bare "test_add" for an unparametrized one.
func VariantID(testName, paramDisplay string) string {
	if paramDisplay == "" {
		return testName
	}

	return fmt.Sprintf("%s(%s)", testName, paramDisplay)
}
