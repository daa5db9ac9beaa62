package api

import (
	"strings"

	"github.com/karva-go/karva/internal/snapshot/storage"
)

// TestContext is the per-test scoped state spec.md §9's "Thread-local
// snapshot context" design note calls for: the runner creates one
// immediately before invoking a test body and discards it after, since Go
// has no implicit per-call context to stash this in the way a thread-local
// would — callers (the guest-embedding layer's generated bindings) thread it
// through explicitly instead.
type TestContext struct {
	// File is the test's source file, relative to the project root.
	File string
	// Name is the test's display name, including its parametrize suffix
	// ("test_add(x=1)") if any.
	Name string
	// Line is the test function's declared line, the inline rewriter's
	// hint_line (spec.md §4.6).
	Line uint

	names    storage.NameBuilder
	settings SettingsStack
}

// NewTestContext starts a fresh snapshot-assertion context for one test
// invocation.
func NewTestContext(file, name string, line uint) *TestContext {
	return &TestContext{
		File: file,
		Name: name,
		Line: line,
		names: storage.NameBuilder{
			TestName: name,
		},
	}
}

// PushSettings enters a "with snapshot_settings(...)" scope.
func (c *TestContext) PushSettings(filters []Filter, allowDuplicates bool) {
	c.settings.Push(filters, allowDuplicates)
}

// PopSettings exits the innermost active snapshot_settings scope.
func (c *TestContext) PopSettings() {
	c.settings.Pop()
}

// functionName strips Name down to the bare Python identifier the inline
// rewriter matches against "def <name>(", dropping any parametrize suffix.
func (c *TestContext) functionName() string {
	base, _, _ := strings.Cut(c.Name, "(")

	return base
}
