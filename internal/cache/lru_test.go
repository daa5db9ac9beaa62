package cache_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/karva-go/karva/internal/cache"
)

func TestDurationCache_GetPut(t *testing.T) {
	t.Parallel()

	dc := cache.NewDurationCache(0)

	_, found := dc.Get("pkg.mod::test_a")
	assert.False(t, found)

	dc.Put("pkg.mod::test_a", cache.Duration{Seconds: 1.5, Samples: 1})

	got, found := dc.Get("pkg.mod::test_a")
	assert.True(t, found)
	assert.InDelta(t, 1.5, got.Seconds, 0.0001)
	assert.Equal(t, 1, dc.Len())
}

func TestDurationCache_Observe_RunningMean(t *testing.T) {
	t.Parallel()

	dc := cache.NewDurationCache(0)

	dc.Observe("pkg.mod::test_a", 1.0)
	dc.Observe("pkg.mod::test_a", 3.0)

	got, found := dc.Get("pkg.mod::test_a")
	assert.True(t, found)
	assert.InDelta(t, 2.0, got.Seconds, 0.0001)
	assert.Equal(t, 2, got.Samples)
}

func TestDurationCache_Mean(t *testing.T) {
	t.Parallel()

	dc := cache.NewDurationCache(0)

	assert.InDelta(t, 0, dc.Mean(), 0.0001)

	dc.Put("a", cache.Duration{Seconds: 1.0, Samples: 1})
	dc.Put("b", cache.Duration{Seconds: 3.0, Samples: 1})

	assert.InDelta(t, 2.0, dc.Mean(), 0.0001)
}

func TestDurationCache_LRUEviction_CountBased(t *testing.T) {
	t.Parallel()

	dc := cache.NewDurationCache(2)

	dc.Put("a", cache.Duration{Seconds: 1})
	dc.Put("b", cache.Duration{Seconds: 2})
	dc.Put("c", cache.Duration{Seconds: 3})

	assert.LessOrEqual(t, dc.Len(), 2)
}

func TestDurationCache_Clear(t *testing.T) {
	t.Parallel()

	dc := cache.NewDurationCache(0)

	dc.Put("a", cache.Duration{Seconds: 1})
	assert.Equal(t, 1, dc.Len())

	dc.Clear()
	assert.Equal(t, 0, dc.Len())

	_, found := dc.Get("a")
	assert.False(t, found)
}

func TestDurationCache_Concurrent(t *testing.T) {
	t.Parallel()

	dc := cache.NewDurationCache(1000)

	var wg sync.WaitGroup

	for i := range 200 {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			dc.Put(fmt.Sprintf("pkg.mod::test_%d", i), cache.Duration{Seconds: float64(i)})
		}(i)
	}

	wg.Wait()

	assert.Positive(t, dc.Len())
}
