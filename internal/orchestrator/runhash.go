package orchestrator

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// RunHash computes a stable identifier for one invocation's set of discovered
// file paths, per spec.md §4.4: sorted, newline-joined, SHA-256, hex. Two
// invocations discovering the same file set produce the same hash, so the
// duration cache and any resumed watch-mode run address the same cache
// subdirectory.
func RunHash(paths []string) string {
	sorted := make([]string, len(paths))
	copy(sorted, paths)
	sort.Strings(sorted)

	sum := sha256.Sum256([]byte(strings.Join(sorted, "\n")))

	return hex.EncodeToString(sum[:])[:16]
}
