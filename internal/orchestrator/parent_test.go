package orchestrator_test

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karva-go/karva/internal/orchestrator"
)

// cpCommandBuilder returns a CommandBuilder whose "workers" are plain cp
// invocations copying a pre-staged result file into place, standing in for a
// real worker subprocess without re-invoking the test binary as karva.
func cpCommandBuilder(t *testing.T, staged map[int]string, runDir string) orchestrator.CommandBuilder {
	t.Helper()

	return func(a orchestrator.Assignment) (*exec.Cmd, error) {
		return exec.Command("cp", staged[a.WorkerID], orchestrator.ResultPath(runDir, a.WorkerID)), nil
	}
}

func stageResult(t *testing.T, dir string, result orchestrator.WorkerResult) string {
	t.Helper()

	require.NoError(t, orchestrator.WriteResult(dir, result))

	return orchestrator.ResultPath(dir, result.WorkerID)
}

func TestOrchestrator_Run_MergesWorkerResults(t *testing.T) {
	t.Parallel()

	cacheDir := t.TempDir()
	runHash := "testrun"
	runDir := orchestrator.RunDir(cacheDir, runHash)
	stagingDir := t.TempDir()

	weights := []orchestrator.FileWeight{
		{Path: "a.py", Tests: []string{"a::test_one"}, Seconds: 1},
		{Path: "b.py", Tests: []string{"b::test_two"}, Seconds: 1},
	}

	staged := map[int]string{
		0: stageResult(t, stagingDir, orchestrator.WorkerResult{WorkerID: 0, Passed: 1, Total: 1,
			Tests: []orchestrator.TestRecord{{ID: "a::test_one", Outcome: "passed"}}}),
		1: stageResult(t, stagingDir, orchestrator.WorkerResult{WorkerID: 1, Failed: 1, Total: 1,
			Tests: []orchestrator.TestRecord{{ID: "b::test_two", Outcome: "failed"}}}),
	}

	o := orchestrator.New(nil)

	summary, err := o.Run(context.Background(), weights, orchestrator.Config{
		CacheDir: cacheDir,
		RunHash:  runHash,
		Workers:  2,
		Build:    cpCommandBuilder(t, staged, runDir),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Passed)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 2, summary.WorkerCount)
	assert.Len(t, summary.Tests, 2)
}

func TestOrchestrator_Run_SkipsWorkersWithNoAssignedFiles(t *testing.T) {
	t.Parallel()

	cacheDir := t.TempDir()
	runHash := "onefilerun"
	runDir := orchestrator.RunDir(cacheDir, runHash)
	stagingDir := t.TempDir()

	weights := []orchestrator.FileWeight{{Path: "only.py", Tests: []string{"only::test_a"}, Seconds: 1}}

	staged := map[int]string{
		0: stageResult(t, stagingDir, orchestrator.WorkerResult{WorkerID: 0, Passed: 1, Total: 1}),
	}

	o := orchestrator.New(nil)

	summary, err := o.Run(context.Background(), weights, orchestrator.Config{
		CacheDir: cacheDir,
		RunHash:  runHash,
		Workers:  3,
		Build:    cpCommandBuilder(t, staged, runDir),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.WorkerCount)
	assert.Equal(t, 1, summary.Passed)
}

func TestOrchestrator_Run_ForceKillTerminatesWorkers(t *testing.T) {
	t.Parallel()

	cacheDir := t.TempDir()
	runHash := "forcekillrun"

	weights := []orchestrator.FileWeight{{Path: "slow.py", Seconds: 1}}

	force := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())

	build := func(orchestrator.Assignment) (*exec.Cmd, error) {
		return exec.Command("sleep", "5"), nil
	}

	o := orchestrator.New(nil)

	var runErr error

	finished := make(chan struct{})

	go func() {
		_, runErr = o.Run(ctx, weights, orchestrator.Config{
			CacheDir: cacheDir,
			RunHash:  runHash,
			Workers:  1,
			Build:    build,
			Force:    force,
		})
		close(finished)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()
	time.Sleep(100 * time.Millisecond)
	close(force)

	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after a forced kill")
	}

	// The sleeping worker never wrote a result file, so merging fails --
	// the observable proof that it was killed rather than left running.
	assert.Error(t, runErr)
}
