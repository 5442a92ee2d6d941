/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Sat Mar  9 11:20:41 2019 mstenber
 * Last modified: Mon Mar 25 19:08:11 2019 mstenber
 * Edit time:     33 min
 *
 */

// memory package provides in-process storage; chunks are simply kept
// in a map. Useful for tests and for development without a database.
package memory

import (
	"sort"

	"github.com/fingon/go-anvilfs/anvil"
	"github.com/fingon/go-anvilfs/mlog"
	"github.com/fingon/go-anvilfs/storage"
	"github.com/fingon/go-anvilfs/util"
)

type memoryBackend struct {
	lock   util.MutexLocked
	chunks map[anvil.ChunkCoord][]byte
}

var _ storage.Backend = &memoryBackend{}

func NewMemoryBackend() storage.Backend {
	return &memoryBackend{chunks: make(map[anvil.ChunkCoord][]byte)}
}

func (self *memoryBackend) Close() {}

func (self *memoryBackend) Load(coord anvil.ChunkCoord) ([]byte, error) {
	defer self.lock.Locked()()
	blob, ok := self.chunks[coord]
	if !ok {
		return nil, nil
	}
	mlog.Printf2("storage/memory/memory", "mem.Load %v: %d bytes", coord, len(blob))
	return append([]byte(nil), blob...), nil
}

func (self *memoryBackend) Save(coord anvil.ChunkCoord, blob []byte) error {
	defer self.lock.Locked()()
	mlog.Printf2("storage/memory/memory", "mem.Save %v: %d bytes", coord, len(blob))
	self.chunks[coord] = append([]byte(nil), blob...)
	return nil
}

func (self *memoryBackend) Exists(coord anvil.ChunkCoord) (bool, error) {
	defer self.lock.Locked()()
	_, ok := self.chunks[coord]
	return ok, nil
}

func (self *memoryBackend) Delete(coord anvil.ChunkCoord) error {
	defer self.lock.Locked()()
	delete(self.chunks, coord)
	return nil
}

func (self *memoryBackend) Present(region anvil.RegionCoord) ([]int, error) {
	defer self.lock.Locked()()
	var present []int
	for coord := range self.chunks {
		if coord.Region() == region {
			present = append(present, coord.LocalIndex())
		}
	}
	sort.Ints(present)
	return present, nil
}

func (self *memoryBackend) TotalSizeBytes() (uint64, bool) {
	defer self.lock.Locked()()
	var total uint64
	for _, blob := range self.chunks {
		total += uint64(len(blob))
	}
	return total, true
}
