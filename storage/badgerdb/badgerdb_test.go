/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Thu Apr  4 16:05:31 2019 mstenber
 * Last modified: Thu Apr  4 16:31:12 2019 mstenber
 * Edit time:     22 min
 *
 */

package badgerdb

import (
	"testing"

	"github.com/stvp/assert"

	"github.com/fingon/go-anvilfs/anvil"
	"github.com/fingon/go-anvilfs/storage"
	"github.com/fingon/go-anvilfs/storage/memory"
)

func TestBadgerBackend(t *testing.T) {
	t.Parallel()
	be, err := NewBadgerBackend(t.TempDir(), storage.CodecChain{storage.SnappyCodec{}})
	assert.Nil(t, err)
	defer be.Close()
	memory.ProdBackend(t, be)
}

// Values pass through the configured codec on the way to disk and
// back; an encrypting chain must still round-trip across a reopen.
func TestBadgerEncryptedReopen(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	chain := storage.CodecChain{
		storage.SnappyCodec{},
		storage.NewAESCodec([]byte("pw"), []byte("salt")),
	}
	c := anvil.ChunkCoord{X: 5, Z: -3}
	payload := []byte("sealed chunk payload")

	be, err := NewBadgerBackend(dir, chain)
	assert.Nil(t, err)
	assert.Nil(t, be.Save(c, payload))
	be.Close()

	be, err = NewBadgerBackend(dir, chain)
	assert.Nil(t, err)
	defer be.Close()
	got, err := be.Load(c)
	assert.Nil(t, err)
	assert.Equal(t, got, payload)

	present, err := be.Present(c.Region())
	assert.Nil(t, err)
	assert.Equal(t, present, []int{c.LocalIndex()})
}
