package orchestrator

import (
	"context"
	"time"
)

// watchDebounce is the batching window named in spec.md §4.4's Watch mode
// rule: "debounces events (200 ms window)".
const watchDebounce = 200 * time.Millisecond

// Watcher is the external file-change-watching collaborator named in
// spec.md's Purpose & Scope Out-of-scope list: orchestrator only consumes a
// stream of change notifications, it never inspects the filesystem itself.
// A notification on Events need not carry any payload — RunWatch treats
// every tick as "something under the watched root changed" and re-discovers
// from scratch via next.
type Watcher interface {
	Events() <-chan struct{}
}

// RunWatch runs once immediately, then re-runs on every debounced batch of
// w's events until ctx is cancelled, per spec.md §4.4's Watch mode and
// §4.4's Cancellation semantics note that "Watch mode's debounce + re-run
// cycle is interruptible at any event-loop tick". next is called before
// every run (including the first) to re-discover FileWeights and rebuild a
// Config against the current file set, since both can change between
// events. onSummary receives every run's result as it completes; RunWatch
// itself returns only when ctx is done or w's Events channel closes.
func (o *Orchestrator) RunWatch(ctx context.Context, w Watcher, next func() ([]FileWeight, Config), onSummary func(Summary, error)) error {
	runOnce := func() {
		weights, cfg := next()
		summary, err := o.Run(ctx, weights, cfg)
		onSummary(summary, err)
	}

	runOnce()

	events := w.Events()

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-events:
			if !ok {
				return nil
			}

			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				if !timer.Stop() {
					<-timer.C
				}

				timer.Reset(watchDebounce)
			}
		case <-timerChan(timer):
			timer = nil

			runOnce()
		}
	}
}

// timerChan returns t's channel, or a nil channel (which blocks forever and
// so is simply never selected) when no debounce timer is currently running.
func timerChan(t *time.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}

	return t.C
}
