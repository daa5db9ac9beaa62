// Package guest defines the contracts this module expects from an embedded
// guest-language interpreter. Per spec.md's Purpose & Scope, interpreter
// embedding is an external collaborator: this package names the four
// primitives the rest of the codebase is built against (value handle,
// callable invocation, iterator advancement, awaitable completion) without
// committing to any concrete interpreter.
package guest

import (
	"context"
	"fmt"
)

// Value is an opaque handle to a guest-language value. The runner never
// inspects a Value's representation directly; it only ever serializes one
// (via Serializer, for snapshots) or passes it back into a Callable.
type Value interface {
	// TypeName returns the guest-language type name, used in diagnostics.
	TypeName() string
}

// KWArgs binds parameter names to argument values for a single call.
type KWArgs map[string]Value

// Callable is an opaque handle to a guest-language function: a fixture body,
// a test body, or a user-supplied finalizer.
type Callable interface {
	// Name is the guest-language function's declared name, for diagnostics.
	Name() string
	// Call invokes the function with keyword arguments and returns either a
	// terminal Value, a Value wrapping a guest iterator (generator fixture),
	// or a Value wrapping a guest awaitable (async function), per the owning
	// definition's IsGenerator and IsAsync flags. The caller is responsible for driving the result
	// through Iterator/Awaitable as appropriate.
	Call(ctx context.Context, args KWArgs) (Value, error)
}

// Iterator is an opaque handle to a guest-language iterator or generator,
// advanced one step at a time. Generator-fixture teardown is modeled as a
// second Next call on an iterator already advanced once.
type Iterator interface {
	// Next advances the iterator one step. done is true when the iterator is
	// exhausted; value is the yielded value, valid only when !done.
	Next(ctx context.Context) (value Value, done bool, err error)
}

// Awaitable is an opaque handle to a guest-language coroutine, run to
// completion synchronously from the worker's perspective — the guest's own
// scheduler handles any internal suspension.
type Awaitable interface {
	Await(ctx context.Context) (Value, error)
}

// Serializer converts a Value to its snapshot text representation. The
// snapshot engine never inspects a Value's structure itself; it always goes
// through a Serializer supplied by the guest-embedding layer.
type Serializer interface {
	// SerializeText renders value the way a bare string-conversion assertion
	// would (assert_snapshot's default form).
	SerializeText(value Value) (string, error)
	// SerializeJSON renders value as stable-key JSON with 2-space indent
	// (assert_json_snapshot's form).
	SerializeJSON(value Value) (string, error)
}

// AsIterator adapts a Value returned from a Callable into an Iterator, for
// callables whose IsGenerator flag is true. Concrete guest bindings are
// expected to implement Value such that generator-producing calls return a
// Value that also satisfies Iterator; this helper centralizes that type
// assertion so callers don't repeat it.
func AsIterator(v Value) (Iterator, error) {
	it, ok := v.(Iterator)
	if !ok {
		return nil, fmt.Errorf("%w: value of type %s is not an iterator", ErrNotIterable, v.TypeName())
	}

	return it, nil
}

// AsAwaitable adapts a Value returned from an async Callable into an
// Awaitable.
func AsAwaitable(v Value) (Awaitable, error) {
	aw, ok := v.(Awaitable)
	if !ok {
		return nil, fmt.Errorf("%w: value of type %s is not awaitable", ErrNotAwaitable, v.TypeName())
	}

	return aw, nil
}
