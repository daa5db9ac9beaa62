// Package storage implements spec.md §4.5's snapshot file format, directory
// layout, and the compare/write/accept/reject/pending/prune/delete workflow.
package storage

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/karva-go/karva/pkg/units"
)

// headerKeySource, etc. name the header block's recognized keys.
const (
	headerKeySource       = "source"
	headerKeyInlineSource = "inline_source"
	headerKeyInlineLine   = "inline_line"
)

// SnapshotFile is the durable unit spec.md §3 calls SnapshotFile: a small
// key/value metadata header followed by a blank-line separator and raw
// content bytes.
type SnapshotFile struct {
	// Source is "relative_file:lineno::test_name", the required header key.
	Source string

	// InlineSource/InlineLine are set only for inline snapshots (assert_*
	// with inline=...): the absolute source file and 1-based line the
	// inline rewriter (internal/snapshot/inline) should splice into.
	InlineSource string
	InlineLine   int

	Content string
}

// IsInline reports whether sf targets an inline literal rather than a
// standalone .snap file on disk.
func (sf SnapshotFile) IsInline() bool {
	return sf.InlineSource != ""
}

// Format renders sf in its on-disk header+content form.
func (sf SnapshotFile) Format() []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "%s: %s\n", headerKeySource, sf.Source)

	if sf.InlineSource != "" {
		fmt.Fprintf(&buf, "%s: %s\n", headerKeyInlineSource, sf.InlineSource)
		fmt.Fprintf(&buf, "%s: %d\n", headerKeyInlineLine, sf.InlineLine)
	}

	buf.WriteString("\n")
	buf.WriteString(sf.Content)

	return buf.Bytes()
}

// Parse reads a SnapshotFile from its on-disk header+content form.
func Parse(data []byte) (SnapshotFile, error) {
	var sf SnapshotFile

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*units.KiB), 16*units.MiB)

	var headerEnd int

	for scanner.Scan() {
		line := scanner.Text()
		headerEnd += len(line) + 1

		if line == "" {
			break
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return sf, fmt.Errorf("storage: malformed header line %q", line)
		}

		value = strings.TrimSpace(value)

		switch strings.TrimSpace(key) {
		case headerKeySource:
			sf.Source = value
		case headerKeyInlineSource:
			sf.InlineSource = value
		case headerKeyInlineLine:
			n, err := strconv.Atoi(value)
			if err != nil {
				return sf, fmt.Errorf("storage: parsing %s: %w", headerKeyInlineLine, err)
			}

			sf.InlineLine = n
		default:
			return sf, fmt.Errorf("storage: unrecognized header key %q", key)
		}
	}

	if err := scanner.Err(); err != nil {
		return sf, fmt.Errorf("storage: scanning header: %w", err)
	}

	if sf.Source == "" {
		return sf, fmt.Errorf("storage: missing required header key %q", headerKeySource)
	}

	if headerEnd < len(data) {
		sf.Content = string(data[headerEnd:])
	}

	return sf, nil
}

// ReadFile loads a SnapshotFile from path.
func ReadFile(path string) (SnapshotFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SnapshotFile{}, fmt.Errorf("storage: reading %s: %w", path, err)
	}

	return Parse(data)
}

// WriteFile persists sf to path atomically: it writes to a temporary file in
// the same directory and renames it into place, so a concurrent reader (the
// `snapshot pending` listing, or another worker) never observes a
// partially-written snapshot, per spec.md §5.
func WriteFile(path string, sf SnapshotFile) error {
	dir := filepath.Dir(path)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: creating snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("storage: creating temp snapshot file: %w", err)
	}

	if _, err := tmp.Write(sf.Format()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())

		return fmt.Errorf("storage: writing temp snapshot file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: closing temp snapshot file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("storage: renaming snapshot file into place: %w", err)
	}

	return nil
}

// TrimTrailing trims trailing whitespace from the final line only, per
// spec.md §6's snapshot-file-format note that trailing whitespace on the
// final line is not significant for comparison. Exported so
// internal/snapshot/api can apply the same insignificance rule when
// comparing an inline snapshot's literal, which never round-trips through
// CompareOrWrite.
func TrimTrailing(content string) string {
	lines := strings.Split(content, "\n")
	if n := len(lines); n > 0 {
		lines[n-1] = strings.TrimRight(lines[n-1], " \t\r")
	}

	return strings.Join(lines, "\n")
}
