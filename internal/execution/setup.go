package execution

import (
	"context"
	"fmt"

	"github.com/karva-go/karva/internal/fixtures"
	"github.com/karva-go/karva/internal/guest"
	"github.com/karva-go/karva/internal/scopes"
)

// Setup resolves nf's value for the active scope span, recursively setting up
// its dependencies first (post-order, per spec.md §4.2's "Fixture setup"
// algorithm). A value already cached for (nf, scope) is reused rather than
// recomputed, since multiple tests may share the same module/package/session
// scope span.
func Setup(ctx context.Context, cache *scopes.Cache, nf *fixtures.NormalizedFixture) (guest.Value, error) {
	if v, ok := cache.Get(nf.Qualified, nf.Scope); ok {
		return v, nil
	}

	args := make(guest.KWArgs, len(nf.Deps))

	for _, dep := range nf.Deps {
		v, err := Setup(ctx, cache, dep)
		if err != nil {
			return nil, err
		}

		args[dep.Name()] = v
	}

	if nf.Kind == fixtures.KindBuiltIn {
		return setupBuiltIn(cache, nf)
	}

	result, err := nf.Callable.Call(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("execution: setting up fixture %s: %w", nf.Qualified, err)
	}

	value := result

	switch {
	case nf.IsAsync && nf.IsGenerator:
		// An async generator fixture: await to get the iterator, then draw
		// its first value as with a synchronous generator.
		aw, err := guest.AsAwaitable(result)
		if err != nil {
			return nil, fmt.Errorf("execution: fixture %s: %w", nf.Qualified, err)
		}

		iterVal, err := aw.Await(ctx)
		if err != nil {
			return nil, fmt.Errorf("execution: awaiting fixture %s: %w", nf.Qualified, err)
		}

		it, err := guest.AsIterator(iterVal)
		if err != nil {
			return nil, fmt.Errorf("execution: fixture %s: %w", nf.Qualified, err)
		}

		first, done, err := it.Next(ctx)
		if err != nil {
			return nil, fmt.Errorf("execution: fixture %s yielded an error before its first value: %w", nf.Qualified, err)
		}

		if done {
			return nil, fmt.Errorf("execution: fixture %s is a generator that never yielded", nf.Qualified)
		}

		cache.PushFinalizer(&scopes.Finalizer{Fixture: nf.Qualified, Scope: nf.Scope, Iterator: it})
		value = first

	case nf.IsGenerator:
		it, err := guest.AsIterator(result)
		if err != nil {
			return nil, fmt.Errorf("execution: fixture %s: %w", nf.Qualified, err)
		}

		first, done, err := it.Next(ctx)
		if err != nil {
			return nil, fmt.Errorf("execution: fixture %s yielded an error before its first value: %w", nf.Qualified, err)
		}

		if done {
			return nil, fmt.Errorf("execution: fixture %s is a generator that never yielded", nf.Qualified)
		}

		cache.PushFinalizer(&scopes.Finalizer{Fixture: nf.Qualified, Scope: nf.Scope, Iterator: it})
		value = first

	case nf.IsAsync:
		aw, err := guest.AsAwaitable(result)
		if err != nil {
			return nil, fmt.Errorf("execution: fixture %s: %w", nf.Qualified, err)
		}

		awaited, err := aw.Await(ctx)
		if err != nil {
			return nil, fmt.Errorf("execution: awaiting fixture %s: %w", nf.Qualified, err)
		}

		value = awaited
	}

	cache.Store(nf.Qualified, nf.Scope, value)

	return value, nil
}

// setupBuiltIn installs a built-in fixture's precomputed value, registering
// its finalizer (if any) as a single-shot adapter iterator rather than a
// guest generator.
func setupBuiltIn(cache *scopes.Cache, nf *fixtures.NormalizedFixture) (guest.Value, error) {
	if nf.BuiltInFinalizer != nil {
		cache.PushFinalizer(&scopes.Finalizer{
			Fixture:  nf.Qualified,
			Scope:    nf.Scope,
			Iterator: &oneShotIterator{fn: nf.BuiltInFinalizer, value: nf.BuiltInValue},
		})
	}

	cache.Store(nf.Qualified, nf.Scope, nf.BuiltInValue)

	return nf.BuiltInValue, nil
}

// oneShotIterator adapts a built-in fixture's explicit finalizer callable
// into the guest.Iterator shape Drain expects: the first Next invokes the
// finalizer and reports exhaustion, matching a generator fixture that
// yielded once and returned immediately after.
type oneShotIterator struct {
	fn    guest.Callable
	value guest.Value
	done  bool
}

func (o *oneShotIterator) Next(ctx context.Context) (guest.Value, bool, error) {
	if o.done {
		return nil, true, nil
	}

	o.done = true

	if _, err := o.fn.Call(ctx, guest.KWArgs{"value": o.value}); err != nil {
		return nil, true, err
	}

	return nil, true, nil
}
