/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Sat Mar  9 11:02:33 2019 mstenber
 * Last modified: Sat Mar  9 11:15:20 2019 mstenber
 * Edit time:     11 min
 *
 */

// discard package is the stateless backend: nothing is ever stored,
// every load is a miss, every save succeeds. The fully stateless
// configuration runs on this.
package discard

import (
	"github.com/fingon/go-anvilfs/anvil"
	"github.com/fingon/go-anvilfs/storage"
)

type discardBackend struct{}

var _ storage.Backend = discardBackend{}

func NewDiscardBackend() storage.Backend {
	return discardBackend{}
}

func (discardBackend) Close() {}

func (discardBackend) Load(coord anvil.ChunkCoord) ([]byte, error) {
	return nil, nil
}

func (discardBackend) Save(coord anvil.ChunkCoord, blob []byte) error {
	return nil
}

func (discardBackend) Exists(coord anvil.ChunkCoord) (bool, error) {
	return false, nil
}

func (discardBackend) Delete(coord anvil.ChunkCoord) error {
	return nil
}

func (discardBackend) Present(region anvil.RegionCoord) ([]int, error) {
	return nil, nil
}

func (discardBackend) TotalSizeBytes() (uint64, bool) {
	return 0, false
}
