/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Thu Mar  7 08:45:12 2019 mstenber
 * Last modified: Sat Mar 23 17:35:44 2019 mstenber
 * Edit time:     58 min
 *
 */

// cache package provides the bounded chunk blob cache: coordinate to
// wire blob, least-recently-used eviction, safe under concurrent use.
package cache

import (
	"github.com/bluele/gcache"

	"github.com/fingon/go-anvilfs/anvil"
	"github.com/fingon/go-anvilfs/mlog"
)

const DefaultCapacity = 500

// ChunkCache wraps an LRU with defensive copies in both directions so
// no caller can corrupt a cached blob through a shared slice.
type ChunkCache struct {
	c gcache.Cache
}

func New(capacity int) *ChunkCache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &ChunkCache{c: gcache.New(capacity).LRU().Build()}
}

// Get returns a copy of the cached blob, promoting the entry.
func (self *ChunkCache) Get(coord anvil.ChunkCoord) ([]byte, bool) {
	v, err := self.c.GetIFPresent(coord)
	if err != nil {
		return nil, false
	}
	blob := v.([]byte)
	mlog.Printf2("cache/cache", "cc.Get %v: %d bytes", coord, len(blob))
	return append([]byte(nil), blob...), true
}

// Put stores a copy of blob, replacing and promoting on an existing
// key, evicting the least recently used entry when over capacity.
func (self *ChunkCache) Put(coord anvil.ChunkCoord, blob []byte) {
	mlog.Printf2("cache/cache", "cc.Put %v: %d bytes", coord, len(blob))
	self.c.Set(coord, append([]byte(nil), blob...))
}

// Contains reports presence without promoting the entry.
func (self *ChunkCache) Contains(coord anvil.ChunkCoord) bool {
	return self.c.Has(coord)
}

func (self *ChunkCache) Len() int {
	return self.c.Len(false)
}

func (self *ChunkCache) Clear() {
	self.c.Purge()
}
