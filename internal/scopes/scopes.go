// Package scopes implements the two scope-keyed caches from spec.md §3
// ("Scope cache"): a fixture-value cache for reuse within a scope's active
// span, and a per-scope ordered list of pending finalizers drained in LIFO
// order at scope end (spec.md §4.3).
package scopes

import (
	"context"
	"fmt"

	"github.com/karva-go/karva/internal/cache"
	"github.com/karva-go/karva/internal/fixtures"
	"github.com/karva-go/karva/internal/guest"
)

// key identifies a fixture value cache slot: qualified name + scope. Two
// fixtures sharing a bare name at different qualified-name/scope pairs never
// collide.
type key struct {
	name  fixtures.QualifiedName
	scope fixtures.Scope
}

// Finalizer is a deferred teardown action: either a partially-advanced
// guest iterator (the post-yield tail of a generator fixture) or an
// explicit callable paired with an adapter iterator, per spec.md §3's
// Finalizer data model.
type Finalizer struct {
	Fixture  fixtures.QualifiedName
	Scope    fixtures.Scope
	Iterator guest.Iterator
}

// TeardownDiagnostic describes a non-fatal problem observed while draining a
// Finalizer, per spec.md §4.3 point 2. These are reported, not raised:
// remaining finalizers still run.
type TeardownDiagnostic struct {
	Fixture fixtures.QualifiedName
	Message string
}

// Cache is a single scope-cache instance: one fixture-value cache plus one
// per-scope pending-finalizer list. A worker owns one Cache for the
// lifetime of a run; scope boundaries call Drain then Clear as each scope
// ends.
type Cache struct {
	values      *cache.Keyed[key, guest.Value]
	keysByScope map[fixtures.Scope][]fixtures.QualifiedName
	finalizers  map[fixtures.Scope][]*Finalizer
}

// New creates an empty scope cache.
func New() *Cache {
	return &Cache{
		values:      cache.NewKeyed[key, guest.Value](),
		keysByScope: make(map[fixtures.Scope][]fixtures.QualifiedName),
		finalizers:  make(map[fixtures.Scope][]*Finalizer),
	}
}

// Get returns the cached value for (name, scope), if setup has already
// completed within the scope's active span.
func (c *Cache) Get(name fixtures.QualifiedName, scope fixtures.Scope) (guest.Value, bool) {
	return c.values.Get(key{name, scope})
}

// Store records a newly-computed fixture value, keyed by (name, scope).
// Invariant (spec.md §3): callers must ensure setup is computed at most once
// per scope span — Cache itself does not serialize concurrent setup,
// because within one worker fixture setup is always single-threaded
// (spec.md §5).
func (c *Cache) Store(name fixtures.QualifiedName, scope fixtures.Scope, value guest.Value) {
	k := key{name, scope}
	if _, existed := c.values.Get(k); !existed {
		c.keysByScope[scope] = append(c.keysByScope[scope], name)
	}

	c.values.Set(k, value)
}

// PushFinalizer appends a Finalizer to scope's pending list. Insertion order
// is setup-completion order; Drain runs them in reverse.
func (c *Cache) PushFinalizer(f *Finalizer) {
	c.finalizers[f.Scope] = append(c.finalizers[f.Scope], f)
}

// Drain runs every pending finalizer for scope in reverse insertion order
// (LIFO), per spec.md §4.3. A finalizer's iterator is advanced exactly once
// more; the expected outcome is exhaustion. A second yielded value or an
// error produces a TeardownDiagnostic but never aborts the drain — all
// remaining finalizers still run.
func (c *Cache) Drain(ctx context.Context, scope fixtures.Scope) []TeardownDiagnostic {
	pending := c.finalizers[scope]

	var diags []TeardownDiagnostic

	for i := len(pending) - 1; i >= 0; i-- {
		f := pending[i]

		_, done, err := f.Iterator.Next(ctx)

		switch {
		case err != nil:
			diags = append(diags, TeardownDiagnostic{
				Fixture: f.Fixture,
				Message: fmt.Sprintf("failed to reset fixture: %v", err),
			})
		case !done:
			diags = append(diags, TeardownDiagnostic{
				Fixture: f.Fixture,
				Message: "fixture had more than one yield",
			})
		}
	}

	delete(c.finalizers, scope)

	return diags
}

// Clear drops scope's value cache entries, per spec.md §4.3 step 3. Callers
// invoke Drain first, then Clear, at scope end. Only the given scope's keys
// are removed; other scopes' cached values are untouched.
func (c *Cache) Clear(scope fixtures.Scope) {
	for _, name := range c.keysByScope[scope] {
		c.values.Delete(key{name, scope})
	}

	delete(c.keysByScope, scope)
}
