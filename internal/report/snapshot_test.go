package report_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karva-go/karva/internal/report"
	"github.com/karva-go/karva/internal/snapshot/storage"
)

func TestRenderPending_ListsSourceAndKind(t *testing.T) {
	t.Parallel()

	pending := []storage.PendingSnapshot{
		{NewPath: "a.snap.new", Meta: storage.SnapshotFile{Source: "t.py:1::test_a"}},
		{NewPath: "b.snap.new", Meta: storage.SnapshotFile{Source: "t.py:2::test_b", InlineSource: "/abs/t.py", InlineLine: 2}},
	}

	var buf bytes.Buffer
	report.RenderPending(&buf, pending)

	out := buf.String()
	assert.Contains(t, out, "test_a")
	assert.Contains(t, out, "test_b")
	assert.Contains(t, out, "inline")
	assert.Contains(t, out, "2 pending")
}

func TestRenderPrune_WarnsAndListsStalePaths(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	report.RenderPrune(&buf, []string{"tests/foo/snapshots/old.snap"})

	out := buf.String()
	assert.Contains(t, out, "warning")
	assert.Contains(t, out, "old.snap")
	assert.Contains(t, out, "1 stale")
}

func TestCacheDirSize_SumsFileSizes(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a"), make([]byte, 1024), 0o644))

	got, err := report.CacheDirSize(dir)
	require.NoError(t, err)
	assert.Equal(t, "1.0 kB", got)
}

func TestCacheDirSize_MissingDir_ReturnsZero(t *testing.T) {
	t.Parallel()

	got, err := report.CacheDirSize(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.Equal(t, "0 B", got)
}
