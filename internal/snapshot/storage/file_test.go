package storage_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karva-go/karva/internal/snapshot/storage"
)

func TestSnapshotFile_FormatParseRoundTrips(t *testing.T) {
	t.Parallel()

	sf := storage.SnapshotFile{
		Source:  "tests/foo/test_bar.py:12::test_one",
		Content: "line one\nline two\n",
	}

	got, err := storage.Parse(sf.Format())
	require.NoError(t, err)
	assert.Equal(t, sf.Source, got.Source)
	assert.Equal(t, sf.Content, got.Content)
	assert.False(t, got.IsInline())
}

func TestSnapshotFile_FormatParseRoundTrips_Inline(t *testing.T) {
	t.Parallel()

	sf := storage.SnapshotFile{
		Source:       "tests/foo/test_bar.py:12::test_one",
		InlineSource: "/abs/tests/foo/test_bar.py",
		InlineLine:   14,
		Content:      "expected text",
	}

	got, err := storage.Parse(sf.Format())
	require.NoError(t, err)
	assert.True(t, got.IsInline())
	assert.Equal(t, sf.InlineSource, got.InlineSource)
	assert.Equal(t, sf.InlineLine, got.InlineLine)
	assert.Equal(t, sf.Content, got.Content)
}

func TestParse_MissingSourceHeader_Errors(t *testing.T) {
	t.Parallel()

	_, err := storage.Parse([]byte("\ncontent only\n"))
	assert.Error(t, err)
}

func TestWriteFileReadFile_RoundTrips(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "snapshots", "test_bar__test_one.snap")

	sf := storage.SnapshotFile{Source: "a.py:1::test_one", Content: "hello\n"}

	require.NoError(t, storage.WriteFile(path, sf))

	got, err := storage.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, sf.Content, got.Content)
}
