/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Fri Mar  8 09:27:16 2019 mstenber
 * Last modified: Thu Apr  4 15:02:09 2019 mstenber
 * Edit time:     38 min
 *
 */

package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stvp/assert"

	"github.com/fingon/go-anvilfs/anvil"
)

func coord(i int) anvil.ChunkCoord {
	return anvil.ChunkCoord{X: int32(i), Z: int32(-i)}
}

func TestCacheBasic(t *testing.T) {
	t.Parallel()
	c := New(10)
	_, ok := c.Get(coord(1))
	assert.True(t, !ok)

	c.Put(coord(1), []byte("one"))
	got, ok := c.Get(coord(1))
	assert.True(t, ok)
	assert.Equal(t, got, []byte("one"))
	assert.True(t, c.Contains(coord(1)))
	assert.Equal(t, c.Len(), 1)

	// Replacement, not mutation.
	c.Put(coord(1), []byte("two"))
	got, _ = c.Get(coord(1))
	assert.Equal(t, got, []byte("two"))
	assert.Equal(t, c.Len(), 1)

	c.Clear()
	assert.Equal(t, c.Len(), 0)
}

func TestCacheEviction(t *testing.T) {
	t.Parallel()
	c := New(5)
	for i := 0; i < 5; i++ {
		c.Put(coord(i), []byte{byte(i)})
	}
	// Re-access 0 so it is no longer the eviction candidate.
	_, ok := c.Get(coord(0))
	assert.True(t, ok)

	c.Put(coord(5), []byte{5})
	assert.True(t, c.Len() <= 5)
	assert.True(t, c.Contains(coord(0)))
	// 1 was the least recently used.
	assert.True(t, !c.Contains(coord(1)))
}

func TestCacheEvictsFirstUntouched(t *testing.T) {
	t.Parallel()
	c := New(5)
	for i := 0; i < 6; i++ {
		c.Put(coord(i), []byte{byte(i)})
	}
	assert.True(t, c.Len() <= 5)
	assert.True(t, !c.Contains(coord(0)))
	assert.True(t, c.Contains(coord(5)))
}

func TestCacheCopySafety(t *testing.T) {
	t.Parallel()
	c := New(10)
	orig := []byte("payload")
	c.Put(coord(1), orig)
	orig[0] = 'X'

	got, _ := c.Get(coord(1))
	assert.Equal(t, got, []byte("payload"))
	got[1] = 'Y'

	again, _ := c.Get(coord(1))
	assert.Equal(t, again, []byte("payload"))
}

func TestCacheConcurrent(t *testing.T) {
	t.Parallel()
	c := New(50)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				k := coord(i % 100)
				c.Put(k, []byte(fmt.Sprintf("%d", i)))
				if blob, ok := c.Get(k); ok {
					assert.True(t, len(blob) > 0)
				}
			}
		}(w)
	}
	wg.Wait()
	assert.True(t, c.Len() <= 50)
}
