package orchestrator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karva-go/karva/internal/orchestrator"
)

func TestWriteReadResult_RoundTrips(t *testing.T) {
	t.Parallel()

	runDir := t.TempDir()

	want := orchestrator.WorkerResult{
		WorkerID: 3,
		Passed:   2,
		Failed:   1,
		Total:    3,
		Tests: []orchestrator.TestRecord{
			{ID: "m::test_a", Outcome: "passed"},
			{ID: "m::test_b", Outcome: "failed", Diagnostics: []orchestrator.DiagnosticRecord{
				{Kind: "failed", Message: "boom", Qualified: "m::test_b"},
			}},
		},
	}

	require.NoError(t, orchestrator.WriteResult(runDir, want))

	got, err := orchestrator.ReadResult(runDir, 3)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestReadResult_MissingFile_Errors(t *testing.T) {
	t.Parallel()

	_, err := orchestrator.ReadResult(t.TempDir(), 7)
	assert.Error(t, err)
}

func TestFailFastSentinel_WriteThenTriggered(t *testing.T) {
	t.Parallel()

	runDir := t.TempDir()

	assert.False(t, orchestrator.FailFastTriggered(runDir))
	require.NoError(t, orchestrator.WriteFailFastSentinel(runDir))
	assert.True(t, orchestrator.FailFastTriggered(runDir))
}

func TestShutdownSentinel_WriteThenRequested(t *testing.T) {
	t.Parallel()

	runDir := t.TempDir()

	assert.False(t, orchestrator.ShutdownRequested(runDir))
	require.NoError(t, orchestrator.WriteShutdownSentinel(runDir))
	assert.True(t, orchestrator.ShutdownRequested(runDir))
}

func TestRunDir_JoinsCacheDirAndHash(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "cache/abc123", orchestrator.RunDir("cache", "abc123"))
}
