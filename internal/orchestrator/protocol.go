package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/karva-go/karva/pkg/persist"
)

const (
	failFastSentinelName = "fail-fast.sentinel"
	shutdownSentinelName = "shutdown.sentinel"
)

// RunDir returns the shared cache subdirectory for one run, per spec.md
// §4.4: "<cache_dir>/<run_hash>/".
func RunDir(cacheDir, runHash string) string {
	return filepath.Join(cacheDir, runHash)
}

// ResultPath returns the path a worker writes its WorkerResult to.
func ResultPath(runDir string, workerID int) string {
	return filepath.Join(runDir, fmt.Sprintf("worker-%d.result.json", workerID))
}

var resultCodec = persist.NewJSONCodec()

// WriteResult persists result atomically: it writes to a temporary file in
// runDir and renames it into place, so a parent polling the directory never
// observes a partially-written result file (spec.md §5's "file writes use
// atomic rename where durable state is updated").
func WriteResult(runDir string, result WorkerResult) error {
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return fmt.Errorf("orchestrator: creating run dir: %w", err)
	}

	tmp, err := os.CreateTemp(runDir, fmt.Sprintf("worker-%d.result.*.tmp", result.WorkerID))
	if err != nil {
		return fmt.Errorf("orchestrator: creating temp result file: %w", err)
	}

	if err := resultCodec.Encode(tmp, result); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())

		return fmt.Errorf("orchestrator: encoding result: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("orchestrator: closing temp result file: %w", err)
	}

	if err := os.Rename(tmp.Name(), ResultPath(runDir, result.WorkerID)); err != nil {
		return fmt.Errorf("orchestrator: renaming result file: %w", err)
	}

	return nil
}

// ReadResult loads one worker's WorkerResult.
func ReadResult(runDir string, workerID int) (WorkerResult, error) {
	var result WorkerResult

	f, err := os.Open(ResultPath(runDir, workerID))
	if err != nil {
		return result, fmt.Errorf("orchestrator: opening result file: %w", err)
	}
	defer f.Close()

	if err := resultCodec.Decode(f, &result); err != nil {
		return result, fmt.Errorf("orchestrator: decoding result file: %w", err)
	}

	return result, nil
}

// WriteFailFastSentinel marks runDir so other workers polling
// FailFastTriggered stop scheduling further variants, per spec.md §4.4.
func WriteFailFastSentinel(runDir string) error {
	return touchSentinel(runDir, failFastSentinelName)
}

// FailFastTriggered reports whether another worker has already written the
// fail-fast sentinel for this run.
func FailFastTriggered(runDir string) bool {
	return sentinelExists(runDir, failFastSentinelName)
}

// WriteShutdownSentinel marks runDir so workers polling ShutdownRequested
// observe the parent's Ctrl-C and wind down.
func WriteShutdownSentinel(runDir string) error {
	return touchSentinel(runDir, shutdownSentinelName)
}

// ShutdownRequested reports whether the parent has requested cancellation.
func ShutdownRequested(runDir string) bool {
	return sentinelExists(runDir, shutdownSentinelName)
}

func touchSentinel(runDir, name string) error {
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return fmt.Errorf("orchestrator: creating run dir: %w", err)
	}

	path := filepath.Join(runDir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("orchestrator: writing sentinel %s: %w", name, err)
	}

	return f.Close()
}

func sentinelExists(runDir, name string) bool {
	_, err := os.Stat(filepath.Join(runDir, name))

	return err == nil
}
