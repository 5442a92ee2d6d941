/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Sat Mar  9 14:12:30 2019 mstenber
 * Last modified: Thu Apr  4 15:49:12 2019 mstenber
 * Edit time:     36 min
 *
 */

package memory

import (
	"sync"
	"testing"

	"github.com/stvp/assert"

	"github.com/fingon/go-anvilfs/anvil"
)

func TestMemoryBackend(t *testing.T) {
	t.Parallel()
	be := NewMemoryBackend()
	defer be.Close()
	ProdBackend(t, be)

	size, ok := be.TotalSizeBytes()
	assert.True(t, ok)
	assert.True(t, size > 0)
}

func TestMemoryCopySafety(t *testing.T) {
	t.Parallel()
	be := NewMemoryBackend()
	defer be.Close()
	c := anvil.ChunkCoord{X: 0, Z: 0}
	blob := []byte("payload")
	assert.Nil(t, be.Save(c, blob))
	blob[0] = 'X'
	got, err := be.Load(c)
	assert.Nil(t, err)
	assert.Equal(t, got, []byte("payload"))
}

func TestMemoryConcurrent(t *testing.T) {
	t.Parallel()
	be := NewMemoryBackend()
	defer be.Close()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				c := anvil.ChunkCoord{X: int32(i % 32), Z: int32(w)}
				assert.Nil(t, be.Save(c, []byte{byte(i)}))
				_, err := be.Load(c)
				assert.Nil(t, err)
			}
		}(w)
	}
	wg.Wait()
}
