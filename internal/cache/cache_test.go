// ABOUTME: Tests for the response cache used by the HubSpot client.
// ABOUTME: Validates TTL expiration, size limits, eviction, sweeping, and concurrency safety.

package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_GetMissing(t *testing.T) {
	c := New(5*time.Minute, 10)
	defer c.Close()

	_, ok := c.Get("never-set")
	assert.False(t, ok)
}

func TestCache_SetGet(t *testing.T) {
	c := New(5*time.Minute, 10)
	defer c.Close()

	c.Set("limit=10", []byte(`{"results":[]}`))

	got, ok := c.Get("limit=10")
	require.True(t, ok)
	assert.Equal(t, `{"results":[]}`, string(got))
}

func TestCache_ValuesAreCopied(t *testing.T) {
	c := New(5*time.Minute, 10)
	defer c.Close()

	src := []byte("abc")
	c.Set("k", src)
	src[0] = 'z'

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "abc", string(got))

	got[1] = 'z'
	again, _ := c.Get("k")
	assert.Equal(t, "abc", string(again))
}

func TestCache_Expired(t *testing.T) {
	c := New(10*time.Millisecond, 10)
	defer c.Close()

	c.Set("k", []byte("v"))
	_, ok := c.Get("k")
	require.True(t, ok)

	time.Sleep(20 * time.Millisecond)

	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(), "expired entry is dropped on read")
}

func TestCache_EvictsOldest(t *testing.T) {
	c := New(5*time.Minute, 3)
	defer c.Close()

	c.Set("a", []byte("1"))
	c.Set("b", []byte("2"))
	c.Set("c", []byte("3"))
	c.Set("d", []byte("4"))

	assert.Equal(t, 3, c.Len())
	_, ok := c.Get("a")
	assert.False(t, ok, "oldest key should be evicted")
	for _, k := range []string{"b", "c", "d"} {
		_, ok := c.Get(k)
		assert.True(t, ok, k)
	}
}

func TestCache_SetRefreshesOrder(t *testing.T) {
	c := New(5*time.Minute, 2)
	defer c.Close()

	c.Set("a", []byte("1"))
	c.Set("b", []byte("2"))
	c.Set("a", []byte("1b"))
	c.Set("c", []byte("3"))

	_, ok := c.Get("b")
	assert.False(t, ok, "b became the oldest after a was refreshed")
	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "1b", string(got))
}

func TestCache_DeleteAndPurge(t *testing.T) {
	c := New(5*time.Minute, 10)
	defer c.Close()

	c.Set("a", []byte("1"))
	c.Set("b", []byte("2"))

	c.Delete("a")
	c.Delete("missing")
	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())

	c.Purge()
	assert.Equal(t, 0, c.Len())

	c.Set("c", []byte("3"))
	assert.Equal(t, 1, c.Len(), "cache is usable after purge")
}

func TestCache_RemoveExpired(t *testing.T) {
	c := New(10*time.Millisecond, 10)
	defer c.Close()

	c.Set("a", []byte("1"))
	c.Set("b", []byte("2"))
	time.Sleep(20 * time.Millisecond)
	c.Set("fresh", []byte("3"))

	c.removeExpired()

	assert.Equal(t, 1, c.Len())
	_, ok := c.Get("fresh")
	assert.True(t, ok)
}

func TestCache_CloseIdempotent(t *testing.T) {
	c := New(time.Minute, 10)
	c.Close()
	assert.NotPanics(t, c.Close)
}

func TestCache_Concurrent(t *testing.T) {
	c := New(5*time.Minute, 50)
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("k-%d-%d", n, j%10)
				c.Set(key, []byte(key))
				c.Get(key)
				if j%25 == 0 {
					c.Delete(key)
				}
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 50)
}
