// Package orchestrator implements the parent-process side of spec.md §4.4:
// stable run identification, longest-processing-time-first partitioning over
// historical durations, worker subprocess lifecycle, fail-fast coordination,
// Ctrl-C cancellation, and the watch-mode debounce loop.
package orchestrator

import (
	"time"

	"github.com/karva-go/karva/internal/execution"
)

// FileWeight is one discovered source file plus its estimated total
// execution cost, the partitioning unit named "assigned paths" in spec.md
// §4.4: a worker receives a list of file paths to re-discover and run, not a
// list of individual test names, so the parent aggregates per-test duration
// history up to file granularity before bin-packing. Root is the discovery
// root Path was found under, carried along so a worker can reproduce the
// same dotted package/module names (and therefore the same ancestor
// conftest chain) the parent's full-tree discovery assigned it.
type FileWeight struct {
	Path    string
	Root    string
	Tests   []string // qualified test names contained in Path, for diagnostics only
	Seconds float64
}

// FileTask is one file a worker must re-discover on its own, paired with
// the root it was found under.
type FileTask struct {
	Root string `json:"root"`
	Path string `json:"path"`
}

// Assignment is one worker's share of the run: its id and the files it must
// re-discover.
type Assignment struct {
	WorkerID int
	Paths    []FileTask
}

// DiagnosticRecord is the wire form of execution.Diagnostic — plain strings,
// safe to round-trip through the JSON result-file codec.
type DiagnosticRecord struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Qualified string `json:"qualified"`
}

// TestRecord is the wire form of one execution.Result.
type TestRecord struct {
	ID          string             `json:"id"`
	Outcome     string             `json:"outcome"`
	ElapsedSecs float64            `json:"elapsed_secs"`
	Retries     int                `json:"retries"`
	Diagnostics []DiagnosticRecord `json:"diagnostics,omitempty"`
}

// WorkerResult is the durable artifact a worker writes to
// "<cache_dir>/<run_hash>/worker-<id>.result.json" (see ResultPath), per spec.md §4.4's Worker
// lifecycle. The parent reads every worker's file after all have exited and
// merges them; nothing is shared across workers in memory.
type WorkerResult struct {
	WorkerID  int          `json:"worker_id"`
	Passed    int          `json:"passed"`
	Failed    int          `json:"failed"`
	Skipped   int          `json:"skipped"`
	Total     int          `json:"total"`
	Elapsed   float64      `json:"elapsed_secs"`
	Tests     []TestRecord `json:"tests"`
	FailFast  bool         `json:"fail_fast_triggered,omitempty"`
	RunErr    string       `json:"run_error,omitempty"`
	Durations map[string]float64 `json:"durations,omitempty"`
}

// Summary is the orchestrator's aggregate view after merging every worker's
// WorkerResult, in worker-id order, per spec.md §4.4's Aggregation rule.
type Summary struct {
	Passed      int
	Failed      int
	Skipped     int
	Total       int
	Elapsed     time.Duration
	Tests       []TestRecord
	WorkerCount int
}

func toRecord(r execution.Result) TestRecord {
	diags := make([]DiagnosticRecord, 0, len(r.Diagnostics))
	for _, d := range r.Diagnostics {
		diags = append(diags, DiagnosticRecord{Kind: d.Kind, Message: d.Message, Qualified: d.Qualified.String()})
	}

	return TestRecord{
		ID:          r.Variant.ID,
		Outcome:     r.Outcome.String(),
		ElapsedSecs: r.ElapsedSecs,
		Retries:     r.Retries,
		Diagnostics: diags,
	}
}
