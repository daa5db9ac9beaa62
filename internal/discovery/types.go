// Package discovery walks a guest-language source tree and builds the
// Module/Package data model of spec.md §3, populating TestDefs and
// FixtureDefs for internal/fixtures and internal/execution to consume.
// Concrete AST inspection lives in internal/discovery/pyast; this package is
// the tree-walk and naming-convention layer above it.
package discovery

import (
	"github.com/karva-go/karva/internal/fixtures"
)

// Module owns an ordered mapping from function name to TestDef, per
// spec.md §3, plus the fixtures it declares directly.
type Module struct {
	// Path is the dotted module path, e.g. "tests.foo.test_bar".
	Path string
	// File is the module's source file, relative to the project root.
	File string

	Tests    []*fixtures.TestDef
	Fixtures fixtures.Scopes
}

// Package owns child modules and child packages, plus an optional
// configuration module contributing fixtures to itself and all descendants.
type Package struct {
	// Path is the dotted package path, e.g. "tests.foo".
	Path string
	// Dir is the package directory, relative to the project root.
	Dir string

	Modules  map[string]*Module
	Packages map[string]*Package

	// ConfigModule, if non-nil, is the conventional sibling file
	// ("conftest"-equivalent) contributing fixtures to this package and its
	// descendants. Test-prefixed functions in it are collected into its
	// Tests whether or not --try-import-fixtures is set; the runner executes
	// only the tests of Modules, not these.
	ConfigModule *Module
}

// ConfigFixtures returns the fixture scope contributed by this package's
// configuration module, or an empty scope if it has none.
func (p *Package) ConfigFixtures() fixtures.Scopes {
	if p.ConfigModule == nil {
		return fixtures.Scopes{}
	}

	return p.ConfigModule.Fixtures
}

// Tree is the root of a discovered source tree: the session-scope root
// package.
type Tree struct {
	Root *Package
}
