package execution_test

import (
	"context"
	"fmt"

	"github.com/karva-go/karva/internal/guest"
)

type fakeValue struct {
	typ string
	str string
}

func (f fakeValue) TypeName() string { return f.typ }
func (f fakeValue) String() string   { return f.str }

func intValue(n int) fakeValue { return fakeValue{typ: "int", str: fmt.Sprintf("%d", n)} }

// fakeCallable invokes a plain Go function as a guest.Callable.
type fakeCallable struct {
	name string
	fn   func(ctx context.Context, args guest.KWArgs) (guest.Value, error)
}

func (f *fakeCallable) Name() string { return f.name }

func (f *fakeCallable) Call(ctx context.Context, args guest.KWArgs) (guest.Value, error) {
	if f.fn == nil {
		return nil, nil
	}

	return f.fn(ctx, args)
}

// scriptedIterator yields a fixed sequence of values before reporting done.
type scriptedIterator struct {
	values []guest.Value
	pos    int
	err    error
}

func (s *scriptedIterator) Next(context.Context) (guest.Value, bool, error) {
	if s.pos >= len(s.values) {
		return nil, true, s.err
	}

	v := s.values[s.pos]
	s.pos++

	return v, false, nil
}

// generatorValue wraps a scriptedIterator so it also satisfies guest.Value,
// for Callables whose result represents a generator fixture's iterator.
type generatorValue struct {
	*scriptedIterator
}

func (generatorValue) TypeName() string { return "generator" }
