/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Thu Apr  4 16:08:19 2019 mstenber
 * Last modified: Thu Apr  4 16:33:40 2019 mstenber
 * Edit time:     18 min
 *
 */

package boltdb

import (
	"path/filepath"
	"testing"

	"github.com/stvp/assert"

	"github.com/fingon/go-anvilfs/anvil"
	"github.com/fingon/go-anvilfs/storage"
	"github.com/fingon/go-anvilfs/storage/memory"
)

func TestBoltBackend(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "chunks.db")
	be, err := NewBoltBackend(path, storage.CodecChain{storage.SnappyCodec{}})
	assert.Nil(t, err)
	defer be.Close()
	memory.ProdBackend(t, be)

	size, ok := be.TotalSizeBytes()
	assert.True(t, ok)
	assert.True(t, size > 0)
}

func TestBoltEncryptedReopen(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "chunks.db")
	chain := storage.CodecChain{
		storage.SnappyCodec{},
		storage.NewAESCodec([]byte("pw"), []byte("salt")),
	}
	c := anvil.ChunkCoord{X: 5, Z: -3}
	payload := []byte("sealed chunk payload")

	be, err := NewBoltBackend(path, chain)
	assert.Nil(t, err)
	assert.Nil(t, be.Save(c, payload))
	be.Close()

	be, err = NewBoltBackend(path, chain)
	assert.Nil(t, err)
	defer be.Close()
	got, err := be.Load(c)
	assert.Nil(t, err)
	assert.Equal(t, got, payload)

	present, err := be.Present(c.Region())
	assert.Nil(t, err)
	assert.Equal(t, present, []int{c.LocalIndex()})
}
