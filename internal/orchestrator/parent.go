package orchestrator

import (
	"context"
	"fmt"
	"os/exec"
	"sort"
	"sync"
	"time"

	"github.com/karva-go/karva/internal/cache"
)

// CommandBuilder constructs the *exec.Cmd used to launch one worker
// subprocess for assignment. Building the concrete command (binary path,
// flags, environment) is owned by cmd/karva, which knows the CLI's own
// argv[0] and flag surface; the orchestrator only needs something it can
// Start and Wait on.
type CommandBuilder func(assignment Assignment) (*exec.Cmd, error)

// Config configures one parallel run.
type Config struct {
	CacheDir string
	RunHash  string
	Workers  int
	FailFast bool
	Build    CommandBuilder

	// Force, when non-nil, is the escalation signal for spec.md §4.4's
	// Cancellation rule: a first ctx cancellation asks workers to wind down
	// gracefully via the shutdown sentinel, but a close of Force (the CLI's
	// second Ctrl-C within its short window) kills every worker process
	// outright rather than waiting on it to notice the sentinel.
	Force <-chan struct{}
}

// Orchestrator drives one parallel run's worker subprocesses: it does not
// itself discover or execute tests (that is internal/discovery +
// internal/execution, run inside each worker process) — its job is
// partitioning, spawning, and merging, per spec.md §4.4.
type Orchestrator struct {
	History *cache.DurationCache
}

// New creates an Orchestrator backed by a duration-history cache (loaded by
// the caller from the checkpoint directory, or empty for a first run).
func New(history *cache.DurationCache) *Orchestrator {
	if history == nil {
		history = cache.NewDurationCache(0)
	}

	return &Orchestrator{History: history}
}

// Run partitions weights across cfg.Workers, spawns one subprocess per
// worker via cfg.Build, and waits for all of them. A ctx cancellation writes
// the shutdown sentinel so each worker can wind down and finish its current
// test's teardowns on its own schedule; a subsequent close of cfg.Force
// escalates to killing every worker process outright. Once every worker has
// exited, Run reads and merges their result files.
func (o *Orchestrator) Run(ctx context.Context, weights []FileWeight, cfg Config) (Summary, error) {
	runDir := RunDir(cfg.CacheDir, cfg.RunHash)

	all := Partition(weights, cfg.Workers)

	active := make([]Assignment, 0, len(all))

	for _, a := range all {
		if len(a.Paths) > 0 {
			active = append(active, a)
		}
	}

	cmds := make([]*exec.Cmd, len(active))

	for i, a := range active {
		cmd, err := cfg.Build(a)
		if err != nil {
			return Summary{}, fmt.Errorf("orchestrator: building worker %d command: %w", a.WorkerID, err)
		}

		cmds[i] = cmd
	}

	done := make(chan struct{})
	defer close(done)

	go watchForCancellation(ctx, runDir, cfg.Force, done, cmds)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		startErr error
	)

	started := time.Now()

	for _, cmd := range cmds {
		if cmd == nil {
			continue
		}

		if err := cmd.Start(); err != nil {
			mu.Lock()

			if startErr == nil {
				startErr = fmt.Errorf("orchestrator: starting worker: %w", err)
			}

			mu.Unlock()

			continue
		}

		wg.Add(1)

		go func(c *exec.Cmd) {
			defer wg.Done()

			_ = c.Wait() // worker's own result file is the source of truth; exit status is advisory only.
		}(cmd)
	}

	wg.Wait()

	if startErr != nil {
		return Summary{}, startErr
	}

	summary, err := mergeResults(runDir, active, o.History)
	summary.Elapsed = time.Since(started)

	if saveErr := SaveHistory(cfg.CacheDir, o.History); saveErr != nil && err == nil {
		err = fmt.Errorf("orchestrator: saving duration history: %w", saveErr)
	}

	return summary, err
}

// defaultFallbackSeconds is used for EstimateSeconds/CollectFileWeights when
// the duration-history cache has never observed any test at all.
const defaultFallbackSeconds = 0.1

// watchForCancellation writes the shutdown sentinel as soon as ctx is
// cancelled, so every worker's StopCheck observes it at its next poll point
// (spec.md §4.4's graceful Cancellation semantics), then waits for force to
// close, killing every worker outright when it does. done is closed by Run
// once every worker has exited on its own; if that happens before ctx is
// ever cancelled, this goroutine returns without touching the run directory.
func watchForCancellation(ctx context.Context, runDir string, force <-chan struct{}, done <-chan struct{}, cmds []*exec.Cmd) {
	select {
	case <-done:
		return
	case <-ctx.Done():
	}

	_ = WriteShutdownSentinel(runDir)

	if force == nil {
		return
	}

	select {
	case <-force:
		killAll(cmds)
	case <-done:
	}
}

// killAll force-terminates every still-running worker process, for a second
// Ctrl-C's unconditional-termination escalation.
func killAll(cmds []*exec.Cmd) {
	for _, c := range cmds {
		if c == nil || c.Process == nil {
			continue
		}

		_ = c.Process.Kill()
	}
}

// mergeResults reads every assigned worker's result file in worker-id order,
// folds their counters and test records together per spec.md §4.4's
// Aggregation rule, and feeds each test's observed duration back into
// history so the next run's partitioning benefits from it.
func mergeResults(runDir string, assignments []Assignment, history *cache.DurationCache) (Summary, error) {
	summary := Summary{WorkerCount: len(assignments)}

	ids := make([]int, 0, len(assignments))
	for _, a := range assignments {
		ids = append(ids, a.WorkerID)
	}

	sort.Ints(ids)

	var firstErr error

	for _, id := range ids {
		wr, err := ReadResult(runDir, id)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("orchestrator: reading worker %d result: %w", id, err)
			}

			continue
		}

		summary.Passed += wr.Passed
		summary.Failed += wr.Failed
		summary.Skipped += wr.Skipped
		summary.Total += wr.Total
		summary.Tests = append(summary.Tests, wr.Tests...)

		for name, seconds := range wr.Durations {
			history.Observe(name, seconds)
		}
	}

	return summary, firstErr
}
