// Package fixtures implements the scoped dependency-injection graph: fixture
// normalization, cycle detection, and scope-ordering validation described by
// spec.md §3 (Data Model) and §4.1 (Fixture graph & resolver).
package fixtures

import (
	"fmt"

	"github.com/karva-go/karva/internal/guest"
)

// Scope is a fixture's lifetime. The zero value is the narrowest scope.
type Scope int

const (
	Function Scope = iota
	Module
	Package
	Session
)

// String renders the scope name used in diagnostics and qualified cache keys.
func (s Scope) String() string {
	switch s {
	case Function:
		return "function"
	case Module:
		return "module"
	case Package:
		return "package"
	case Session:
		return "session"
	default:
		return fmt.Sprintf("scope(%d)", int(s))
	}
}

// atLeast reports whether s is the same as or wider than other, per the
// total order Function < Module < Package < Session.
func (s Scope) atLeast(other Scope) bool { return s >= other }

// Tag is a typed attribute attached to a test or fixture. Exactly one of the
// Skip/ExpectFail/Parametrize fields is non-nil for a distinguished tag;
// freeform tags set only Name.
type Tag struct {
	Name string

	Skip        *SkipTag
	ExpectFail  *ExpectFailTag
	Parametrize *ParametrizeTag
}

// SkipTag marks a test or fixture to be skipped unconditionally.
type SkipTag struct {
	Reason string
}

// ExpectFailTag marks a test expected to fail; a pass is reported as an
// UnexpectedSuccess.
type ExpectFailTag struct {
	Reason string
}

// ParametrizeTag attaches parametrize rows to a test for a single parameter
// name. A test may carry more than one ParametrizeTag (one per parameter),
// which the execution layer combines into a Cartesian product.
type ParametrizeTag struct {
	ParamName string
	Rows      []ParametrizeRow
}

// ParametrizeRow is one concrete (parameter name → value) binding, plus any
// tags attached to that specific row (e.g. a per-row xfail).
type ParametrizeRow struct {
	Values map[string]guest.Value
	Tags   TagSet
}

// TagSet is an ordered list of Tags. Lookup helpers treat it as a small set.
type TagSet []Tag

// Skip returns the first Skip tag, if any.
func (t TagSet) Skip() (*SkipTag, bool) {
	for _, tag := range t {
		if tag.Skip != nil {
			return tag.Skip, true
		}
	}

	return nil, false
}

// ExpectFail returns the first ExpectFail tag, if any.
func (t TagSet) ExpectFail() (*ExpectFailTag, bool) {
	for _, tag := range t {
		if tag.ExpectFail != nil {
			return tag.ExpectFail, true
		}
	}

	return nil, false
}

// Parametrize returns every Parametrize tag attached, in declaration order.
func (t TagSet) Parametrize() []*ParametrizeTag {
	var out []*ParametrizeTag

	for _, tag := range t {
		if tag.Parametrize != nil {
			out = append(out, tag.Parametrize)
		}
	}

	return out
}

// Names returns the freeform user-tag names, used by the tag-expression
// filter evaluator. Distinguished tags are not included.
func (t TagSet) Names() []string {
	var out []string

	for _, tag := range t {
		if tag.Skip == nil && tag.ExpectFail == nil && tag.Parametrize == nil && tag.Name != "" {
			out = append(out, tag.Name)
		}
	}

	return out
}

// QualifiedName identifies a test or fixture: a dotted module path plus a
// function name. Two qualified names are equal iff both components match.
type QualifiedName struct {
	ModulePath string
	Name       string
}

func (q QualifiedName) String() string { return q.ModulePath + "::" + q.Name }

// FixtureDef is a declared, not-yet-normalized fixture definition, as
// produced by discovery.
type FixtureDef struct {
	Qualified    QualifiedName
	Params       []string
	Scope        Scope
	IsGenerator  bool
	IsAsync      bool
	AutoUse      bool
	Tags         TagSet
	Callable     guest.Callable
	FinalizerFn  guest.Callable // only set for BuiltIn fixtures with an explicit teardown callable
}

// TestDef is a declared, not-yet-expanded test definition, as produced by
// discovery.
type TestDef struct {
	Qualified QualifiedName
	// Line is the 1-based source line the function is declared on, used as
	// the hint_line for inline-snapshot rewriting (spec.md §4.6) and in the
	// "file:line::name" form of a snapshot's Source header (spec.md §4.5).
	Line      uint
	Params    []string
	Tags      TagSet
	IsAsync   bool
	Callable  guest.Callable
}

// NormalizedFixtureKind distinguishes the two NormalizedFixture variants
// named in spec.md §3.
type NormalizedFixtureKind int

const (
	KindUserDefined NormalizedFixtureKind = iota
	KindBuiltIn
)

// NormalizedFixture is a shared DAG node produced by the Resolver. Nodes are
// identified by qualified name and are safe to share across many
// TestVariants — the resolver returns the same *NormalizedFixture pointer
// for repeated resolutions of the same name within one Resolver's lifetime.
type NormalizedFixture struct {
	Kind NormalizedFixtureKind

	Qualified   QualifiedName
	Deps        []*NormalizedFixture
	Scope       Scope
	IsGenerator bool
	IsAsync     bool
	Callable    guest.Callable
	Tags        TagSet

	// BuiltIn-only fields.
	BuiltInValue     guest.Value
	BuiltInFinalizer guest.Callable
}

// Name returns the fixture's bare (unqualified) name, the key used for
// parameter-name resolution.
func (n *NormalizedFixture) Name() string { return n.Qualified.Name }
