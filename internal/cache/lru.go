package cache

import (
	"sync"

	"github.com/karva-go/karva/pkg/alg/lru"
)

// DefaultDurationCacheSize is the default maximum entry count for the duration-history cache.
// Entries are small fixed-size records, so the cache is bounded by count, not bytes.
const DefaultDurationCacheSize = 1 << 20

// minBloomElements is the minimum number of expected elements for the Bloom filter.
// Prevents degenerate sizing for very small suites.
const minBloomElements = 64

// evictionSampleSize is the number of LRU candidates to sample for cost-aware eviction.
const evictionSampleSize = 5

// Duration records the last-known elapsed time for one qualified test name,
// plus the number of samples that produced it (simple running mean).
type Duration struct {
	Seconds float64 `json:"seconds"`
	Samples int     `json:"samples"`
}

// durationCost ranks entries for eviction: recently-sampled, slow tests are the most
// valuable to keep (they dominate partitioning decisions), so cost favors sample count.
func durationCost(accessCount, _ int64) float64 {
	return float64(accessCount)
}

// nameToBytes converts a qualified test name to bytes for Bloom pre-filtering.
func nameToBytes(name string) []byte { return []byte(name) }

// cloneDuration returns a detached copy; Duration is a value type, so this is a no-op copy,
// kept explicit to satisfy the underlying cache's clone-on-read contract.
func cloneDuration(d Duration) Duration { return d }

// DurationCache is the orchestrator's shared duration-history store: an LRU,
// Bloom-prefiltered cache from qualified test name to its last observed
// elapsed time. The parent process loads it once per run to seed
// longest-processing-time-first partitioning (see internal/orchestrator);
// each worker process reports its own observed durations back through its
// result file, and the parent folds them in and persists the merged cache
// (see internal/checkpoint) for the next run.
type DurationCache struct {
	cache *lru.Cache[string, Duration]

	mu         sync.Mutex
	sumSeconds float64
	count      int
}

// NewDurationCache creates a duration-history cache bounded to maxEntries distinct tests.
func NewDurationCache(maxEntries int) *DurationCache {
	if maxEntries <= 0 {
		maxEntries = DefaultDurationCacheSize
	}

	expectedN := max(uint(maxEntries), minBloomElements) //nolint:gosec // maxEntries is always non-negative here.

	return &DurationCache{
		cache: lru.New(
			lru.WithMaxEntries[string, Duration](maxEntries),
			lru.WithBloomFilter[string, Duration](nameToBytes, expectedN),
			lru.WithCostEviction[string, Duration](evictionSampleSize, durationCost),
			lru.WithCloneFunc[string, Duration](cloneDuration),
		),
	}
}

// Get returns the last-known duration for a qualified test name, and whether it was present.
func (c *DurationCache) Get(qualifiedName string) (Duration, bool) {
	return c.cache.Get(qualifiedName)
}

// Put records an observed duration, overwriting any previous sample.
func (c *DurationCache) Put(qualifiedName string, d Duration) {
	prev, existed := c.cache.Get(qualifiedName)

	c.cache.Put(qualifiedName, d)

	c.mu.Lock()
	defer c.mu.Unlock()

	if existed {
		c.sumSeconds -= prev.Seconds
	} else {
		c.count++
	}

	c.sumSeconds += d.Seconds
}

// Observe folds a newly-measured elapsed time into the running mean for qualifiedName.
func (c *DurationCache) Observe(qualifiedName string, seconds float64) {
	prev, ok := c.cache.Get(qualifiedName)
	if !ok {
		c.Put(qualifiedName, Duration{Seconds: seconds, Samples: 1})

		return
	}

	c.mu.Lock()
	c.sumSeconds -= prev.Seconds
	c.mu.Unlock()

	total := prev.Seconds*float64(prev.Samples) + seconds
	samples := prev.Samples + 1

	c.cache.Put(qualifiedName, Duration{Seconds: total / float64(samples), Samples: samples})

	c.mu.Lock()
	c.sumSeconds += total / float64(samples)
	c.mu.Unlock()
}

// Mean returns the arithmetic mean duration across all observed entries, or zero if empty.
// Used as the fallback estimate for tests with no prior duration sample. The running sum is
// tracked alongside the LRU so Mean is O(1); it is an approximation once eviction has occurred,
// since evicted entries' contributions are not subtracted -- acceptable because Mean is only a
// coarse fallback for never-seen tests.
func (c *DurationCache) Mean() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.count == 0 {
		return 0
	}

	return c.sumSeconds / float64(c.count)
}

// Len returns the number of distinct tests with a recorded duration.
func (c *DurationCache) Len() int {
	return c.cache.Stats().Entries
}

// Snapshot returns a copy of every qualified-name-to-duration pair currently
// held, for persisting to disk between runs (see internal/checkpoint).
func (c *DurationCache) Snapshot() map[string]Duration {
	return c.cache.Items()
}

// LoadSnapshot seeds the cache from a previously persisted snapshot. Existing
// entries are left untouched; snapshot entries overwrite same-named ones.
func (c *DurationCache) LoadSnapshot(entries map[string]Duration) {
	for name, d := range entries {
		c.Put(name, d)
	}
}

// Clear removes all entries from the cache and resets the Bloom filter.
func (c *DurationCache) Clear() {
	c.cache.Clear()

	c.mu.Lock()
	c.sumSeconds = 0
	c.count = 0
	c.mu.Unlock()
}
