package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/karva-go/karva/internal/discovery"
	"github.com/karva-go/karva/internal/execution"
	"github.com/karva-go/karva/internal/fixtures"
	"github.com/karva-go/karva/pkg/observability"
)

// workerSpanPrefix names the per-worker-process span.
const workerSpanPrefix = "orchestrator.worker"

// WorkerConfig is everything one worker process needs, mirroring spec.md
// §4.4's "Worker lifecycle": cache directory, run hash, worker id, shared
// test options, and its assigned paths.
type WorkerConfig struct {
	CacheDir string
	RunHash  string
	WorkerID int
	Paths    []FileTask

	DiscoveryOpts discovery.Options
	Filter        *Filter
	Retries       int
	FailFast      bool

	// Tracer and Metrics are optional observability hooks, propagated down
	// to the worker's execution.Runner for per-test-variant instrumentation
	// and also used here for a span/RED sample covering the whole worker
	// process. Nil disables the respective kind of instrumentation.
	Tracer  trace.Tracer
	Metrics *observability.REDMetrics
}

// Filter is a re-export of execution.Filter so callers constructing a
// WorkerConfig don't need to import internal/execution directly for this
// one type; orchestrator is the process-lifecycle boundary between the CLI
// and the execution package.
type Filter = execution.Filter

// RunWorker discovers every assigned path, runs its tests, and writes a
// WorkerResult to the run directory. It polls the fail-fast sentinel (if
// FailFast is set) and the shutdown sentinel between tests and modules via
// execution.Runner's StopCheck hook.
func RunWorker(ctx context.Context, cfg WorkerConfig) error {
	runDir := RunDir(cfg.CacheDir, cfg.RunHash)

	if cfg.Tracer != nil {
		var span trace.Span

		ctx, span = cfg.Tracer.Start(ctx, workerSpanPrefix,
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(
				attribute.Int("karva.worker_id", cfg.WorkerID),
				attribute.Int("karva.path_count", len(cfg.Paths)),
			),
		)
		defer span.End()
	}

	var decInflight func()
	if cfg.Metrics != nil {
		decInflight = cfg.Metrics.TrackInflight(ctx, workerSpanPrefix)
		defer decInflight()
	}

	builtins := fixtures.DefaultBuiltIns()
	runner := execution.NewRunner(builtins, cfg.Filter, cfg.Retries)
	runner.Tracer = cfg.Tracer
	runner.Metrics = cfg.Metrics
	runner.StopCheck = func() bool {
		if ShutdownRequested(runDir) {
			return true
		}

		return cfg.FailFast && FailFastTriggered(runDir)
	}

	var (
		allResults []execution.Result
		runErr     error
	)

	started := time.Now()

	for _, task := range cfg.Paths {
		tree, err := discovery.WalkFile(ctx, task.Root, task.Path, cfg.DiscoveryOpts)
		if err != nil {
			runErr = fmt.Errorf("orchestrator: discovering %s: %w", task.Path, err)

			break
		}

		results, err := runner.Run(ctx, tree)
		allResults = append(allResults, results...)

		if err != nil {
			runErr = fmt.Errorf("orchestrator: running %s: %w", task.Path, err)

			break
		}

		if hasFailure(results) && cfg.FailFast {
			if sentinelErr := WriteFailFastSentinel(runDir); sentinelErr != nil {
				runErr = sentinelErr

				break
			}
		}

		if runner.StopCheck != nil && runner.StopCheck() {
			break
		}
	}

	elapsed := time.Since(started)
	result := summarizeWorker(cfg.WorkerID, allResults, elapsed, runErr)

	if cfg.Metrics != nil {
		status := "ok"
		if runErr != nil || result.Failed > 0 {
			status = "error"
		}

		cfg.Metrics.RecordRequest(ctx, workerSpanPrefix, status, elapsed)
	}

	if writeErr := WriteResult(runDir, result); writeErr != nil {
		if runErr != nil {
			return runErr
		}

		return writeErr
	}

	return runErr
}

func hasFailure(results []execution.Result) bool {
	for _, r := range results {
		if r.Outcome == execution.Failed {
			return true
		}
	}

	return false
}

func summarizeWorker(workerID int, results []execution.Result, elapsed time.Duration, runErr error) WorkerResult {
	wr := WorkerResult{
		WorkerID:  workerID,
		Elapsed:   elapsed.Seconds(),
		Durations: make(map[string]float64, len(results)),
	}

	if runErr != nil {
		wr.RunErr = runErr.Error()
	}

	for _, r := range results {
		wr.Total++

		switch r.Outcome {
		case execution.Passed, execution.ExpectedFailure:
			wr.Passed++
		case execution.Failed, execution.UnexpectedSuccess:
			wr.Failed++
		case execution.Skipped:
			wr.Skipped++
		}

		wr.Tests = append(wr.Tests, toRecord(r))
		wr.Durations[r.Variant.ID] = r.ElapsedSecs
	}

	return wr
}
