package inline_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karva-go/karva/internal/snapshot/inline"
)

func writeSource(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "test_mod.py")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestRewrite_SingleLineLiteral_Replaced(t *testing.T) {
	t.Parallel()

	path := writeSource(t, "def test_one():\n    assert_snapshot(value, inline=\"old\")\n")

	require.NoError(t, inline.New().Rewrite(path, 2, "test_one", "new"))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "def test_one():\n    assert_snapshot(value, inline=\"new\")\n", string(got))
}

func TestRewrite_MultiLineLiteral_BecomesTripleQuoted(t *testing.T) {
	t.Parallel()

	path := writeSource(t, "def test_one():\n    assert_snapshot(value, inline=\"old\")\n")

	require.NoError(t, inline.New().Rewrite(path, 2, "test_one", "line one\nline two"))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(got), `"""\`)
	assert.Contains(t, string(got), "line one")
	assert.Contains(t, string(got), "line two")
}

func TestRewrite_SkipsCallInWrongFunction(t *testing.T) {
	t.Parallel()

	path := writeSource(t, strings.Join([]string{
		"def test_other():",
		"    assert_snapshot(value, inline=\"wrong\")",
		"",
		"def test_one():",
		"    assert_snapshot(value, inline=\"right\")",
		"",
	}, "\n"))

	require.NoError(t, inline.New().Rewrite(path, 2, "test_one", "new"))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(got), `inline="wrong"`)
	assert.Contains(t, string(got), `inline="new"`)
}

func TestRewrite_StaleHintLine_StillFindsCallByFunctionName(t *testing.T) {
	t.Parallel()

	path := writeSource(t, "def test_one():\n    assert_snapshot(value, inline=\"old\")\n")

	require.NoError(t, inline.New().Rewrite(path, 9999, "test_one", "new"))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(got), `inline="new"`)
}

func TestRewrite_NoFunctionNameFilter_UsesFirstCallFromHint(t *testing.T) {
	t.Parallel()

	path := writeSource(t, "def test_one():\n    assert_snapshot(value, inline=\"old\")\n")

	require.NoError(t, inline.New().Rewrite(path, 1, "", "new"))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(got), `inline="new"`)
}

func TestRewrite_IgnoresCallMentionedInsideComment(t *testing.T) {
	t.Parallel()

	path := writeSource(t, strings.Join([]string{
		"def test_one():",
		"    # assert_snapshot(old, inline=\"comment\")",
		"    assert_snapshot(value, inline=\"old\")",
		"",
	}, "\n"))

	require.NoError(t, inline.New().Rewrite(path, 1, "test_one", "new"))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(got), "# assert_snapshot(old, inline=\"comment\")")
	assert.Contains(t, string(got), `inline="new"`)
}

func TestRewrite_NoMatchingCall_ReturnsError(t *testing.T) {
	t.Parallel()

	path := writeSource(t, "def test_one():\n    pass\n")

	err := inline.New().Rewrite(path, 1, "test_one", "new")
	assert.Error(t, err)
}
