/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Thu Apr  4 15:51:02 2019 mstenber
 * Last modified: Thu Apr  4 16:02:47 2019 mstenber
 * Edit time:     14 min
 *
 */

package memory

import (
	"sort"
	"testing"

	"github.com/stvp/assert"

	"github.com/fingon/go-anvilfs/anvil"
	"github.com/fingon/go-anvilfs/storage"
)

// ProdBackend exercises the Backend contract against any
// implementation; backend packages run it against their own stores.
// It lives outside the test files so they can import it.
func ProdBackend(t *testing.T, be storage.Backend) {
	c := anvil.ChunkCoord{X: 5, Z: -3}

	blob, err := be.Load(c)
	assert.Nil(t, err)
	assert.True(t, blob == nil)

	ok, err := be.Exists(c)
	assert.Nil(t, err)
	assert.True(t, !ok)

	assert.Nil(t, be.Save(c, []byte("v1")))
	ok, err = be.Exists(c)
	assert.Nil(t, err)
	assert.True(t, ok)

	blob, err = be.Load(c)
	assert.Nil(t, err)
	assert.Equal(t, blob, []byte("v1"))

	// Replace.
	assert.Nil(t, be.Save(c, []byte("v2")))
	blob, err = be.Load(c)
	assert.Nil(t, err)
	assert.Equal(t, blob, []byte("v2"))

	// Present lists the region's local indexes, sorted.
	region := c.Region()
	c2 := region.Chunk(0)
	assert.Nil(t, be.Save(c2, []byte("v3")))
	elsewhere := anvil.ChunkCoord{X: 1000, Z: 1000}
	assert.Nil(t, be.Save(elsewhere, []byte("v4")))

	present, err := be.Present(region)
	assert.Nil(t, err)
	assert.Equal(t, present, []int{0, c.LocalIndex()})
	assert.True(t, sort.IntsAreSorted(present))

	// Delete; deleting twice is fine.
	assert.Nil(t, be.Delete(c))
	assert.Nil(t, be.Delete(c))
	blob, err = be.Load(c)
	assert.Nil(t, err)
	assert.True(t, blob == nil)

	present, err = be.Present(region)
	assert.Nil(t, err)
	assert.Equal(t, present, []int{0})
}
