package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karva-go/karva/internal/orchestrator"
)

func TestWriteReadWorkerArgs_RoundTrips(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	want := workerArgs{
		CacheDir:     dir,
		RunHash:      "abc123",
		WorkerID:     2,
		Paths: []orchestrator.FileTask{
			{Root: "tests", Path: "tests/test_a.py"},
			{Root: "tests", Path: "tests/test_b.py"},
		},
		TestPrefix:   "test_",
		TagExprs:     []string{"slow and not flaky"},
		NamePatterns: []string{"^test_foo"},
		Retries:      1,
		FailFast:     true,
	}

	path, err := writeWorkerArgs(want)
	require.NoError(t, err)
	assert.Equal(t, workerArgsPath(dir, "abc123", 2), path)

	got, err := readWorkerArgs(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestReadWorkerArgs_MissingFile_Errors(t *testing.T) {
	t.Parallel()

	_, err := readWorkerArgs("/nonexistent/worker-0.args.json")
	assert.Error(t, err)
}

func TestNewWorkerCommand_IsHidden(t *testing.T) {
	t.Parallel()

	cmd := NewWorkerCommand()
	assert.True(t, cmd.Hidden)
	assert.Equal(t, workerSubcommand+" <args-file>", cmd.Use)
}
