package mcp

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karva-go/karva/internal/orchestrator"
	"github.com/karva-go/karva/internal/snapshot/storage"
)

func writePendingFixture(t *testing.T, dir string) string {
	t.Helper()

	testFile := filepath.Join(dir, "test_example.py")
	require.NoError(t, os.WriteFile(testFile, []byte("def test_example():\n    pass\n"), 0o644))

	pendingPath := storage.PendingPath(testFile, "")
	require.NoError(t, storage.WriteFile(pendingPath, storage.SnapshotFile{
		Source:  testFile + ":1::test_example",
		Content: "new value\n",
	}))

	return pendingPath
}

func TestHandleSnapshotReview_EmptyAction_ReturnsError(t *testing.T) {
	t.Parallel()

	result, _, err := handleSnapshotReview(context.Background(), nil, SnapshotReviewInput{})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleSnapshotReview_UnknownAction_ReturnsError(t *testing.T) {
	t.Parallel()

	result, _, err := handleSnapshotReview(context.Background(), nil, SnapshotReviewInput{Action: "frobnicate"})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleSnapshotReview_List_ReportsPending(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	pendingPath := writePendingFixture(t, dir)

	_, output, err := handleSnapshotReview(context.Background(), nil, SnapshotReviewInput{Action: "list", Paths: []string{dir}})
	require.NoError(t, err)

	review, ok := output.Data.(snapshotReviewResult)
	require.True(t, ok)
	assert.Equal(t, 1, review.Count)
	assert.Equal(t, pendingPath, review.Pending[0].NewPath)
}

func TestHandleSnapshotReview_Accept_CommitsSnapshot(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	pendingPath := writePendingFixture(t, dir)

	_, output, err := handleSnapshotReview(context.Background(), nil, SnapshotReviewInput{Action: "accept", Paths: []string{dir}})
	require.NoError(t, err)

	review, ok := output.Data.(snapshotReviewResult)
	require.True(t, ok)
	assert.Equal(t, 1, review.Count)

	_, statErr := os.Stat(pendingPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestHandleSnapshotReview_Reject_DiscardsPending(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	pendingPath := writePendingFixture(t, dir)

	_, output, err := handleSnapshotReview(context.Background(), nil, SnapshotReviewInput{Action: "reject", Paths: []string{dir}})
	require.NoError(t, err)

	review, ok := output.Data.(snapshotReviewResult)
	require.True(t, ok)
	assert.Equal(t, 1, review.Count)

	_, statErr := os.Stat(pendingPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunHashForWeights_StableAcrossOrder(t *testing.T) {
	t.Parallel()

	// grounded on the equivalent cmd/karva/commands test: the hash must not
	// depend on discovery order, since orchestrator partitioning can visit
	// roots in any sequence.
	assert.NotEmpty(t, runHashForWeights(nil))

	a := []orchestrator.FileWeight{{Path: "b.py"}, {Path: "a.py"}}
	b := []orchestrator.FileWeight{{Path: "a.py"}, {Path: "b.py"}}
	assert.Equal(t, runHashForWeights(a), runHashForWeights(b))
}
