package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetMemoizesUntilExpiry(t *testing.T) {
	now := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	c := New(30 * time.Second)
	c.now = func() time.Time { return now }

	calls := 0
	load := func() (int, error) { calls++; return calls, nil }

	v, err := Get(c, "dashboard", load)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	v, _ = Get(c, "dashboard", load)
	assert.Equal(t, 1, v)
	assert.Equal(t, 1, c.Len())

	now = now.Add(31 * time.Second)
	v, _ = Get(c, "dashboard", load)
	assert.Equal(t, 2, v)
}

func TestInvalidateDropsEntries(t *testing.T) {
	c := New(time.Minute)
	calls := 0
	load := func() (string, error) { calls++; return "x", nil }

	Get(c, "k", load)
	c.Invalidate()
	assert.Equal(t, 0, c.Len())
	Get(c, "k", load)
	assert.Equal(t, 2, calls)
}

func TestErrorsAreNotCached(t *testing.T) {
	c := New(time.Minute)
	boom := errors.New("backend down")
	_, err := Get(c, "k", func() (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)

	v, err := Get(c, "k", func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestNilCacheAlwaysLoads(t *testing.T) {
	var c *Cache
	calls := 0
	for i := 0; i < 3; i++ {
		Get(c, "k", func() (int, error) { calls++; return calls, nil })
	}
	assert.Equal(t, 3, calls)
	c.Invalidate()
}

func TestConcurrentMissesShareOneLoad(t *testing.T) {
	c := New(time.Minute)
	var calls atomic.Int32
	release := make(chan struct{})
	load := func() (int, error) {
		calls.Add(1)
		<-release
		return 42, nil
	}

	var wg sync.WaitGroup
	results := make([]int, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = Get(c, "work-centers", load)
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Equal(t, 42, r)
	}
}
