package orchestrator

import (
	"errors"
	"os"

	"github.com/karva-go/karva/internal/cache"
	"github.com/karva-go/karva/internal/checkpoint"
)

const historyBasename = "duration-history"

// historySnapshot is the on-disk shape of a cache.DurationCache: a plain map
// is stable across process versions, unlike persisting the LRU's internal
// linked-list structure directly.
type historySnapshot struct {
	Entries map[string]cache.Duration `json:"entries"`
}

var historyPersister = checkpoint.NewPersister[historySnapshot](historyBasename, checkpoint.NewJSONCodec())

// LoadHistory restores a DurationCache previously saved by SaveHistory from
// cacheDir, seeding longest-processing-time-first partitioning with the
// prior run's observed durations (spec.md §4.4). A missing file is not an
// error: the first run for a project has no history yet, and Run simply
// falls back to DurationCache.Mean()/fallbackSeconds for every test.
func LoadHistory(cacheDir string, maxEntries int) (*cache.DurationCache, error) {
	history := cache.NewDurationCache(maxEntries)

	err := historyPersister.Load(cacheDir, func(snap *historySnapshot) {
		history.LoadSnapshot(snap.Entries)
	})
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return history, err
	}

	return history, nil
}

// SaveHistory persists history's current snapshot to cacheDir, so the next
// invocation's LoadHistory call sees every duration observed by this run's
// workers (each worker's WorkerResult.Durations is folded into history by
// the caller before SaveHistory runs; see mergeResults).
func SaveHistory(cacheDir string, history *cache.DurationCache) error {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return err
	}

	return historyPersister.Save(cacheDir, func() *historySnapshot {
		return &historySnapshot{Entries: history.Snapshot()}
	})
}
