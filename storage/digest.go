/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Sat Mar  9 10:14:52 2019 mstenber
 * Last modified: Sat Mar  9 10:40:03 2019 mstenber
 * Edit time:     19 min
 *
 */

package storage

import (
	"github.com/fingon/go-anvilfs/anvil"
	"github.com/fingon/go-anvilfs/util"
)

// DigestCache remembers the digest of the last payload stored per
// coordinate so rewrites of identical content stay cheap. Bounded only by
// the set of coordinates touched in one process lifetime; entries are
// 32 bytes each.
type DigestCache struct {
	lock util.MutexLocked
	m    map[anvil.ChunkCoord]Digest
}

// Unchanged reports whether data matches the last stored payload, and
// records its digest for the next call.
func (self *DigestCache) Unchanged(coord anvil.ChunkCoord, data []byte) bool {
	d := DigestOf(data)
	defer self.lock.Locked()()
	if self.m == nil {
		self.m = make(map[anvil.ChunkCoord]Digest)
	}
	old, seen := self.m[coord]
	self.m[coord] = d
	return seen && old == d
}

// Forget drops the recorded digest (on delete, or after a failed
// save, so the next save is not skipped).
func (self *DigestCache) Forget(coord anvil.ChunkCoord) {
	defer self.lock.Locked()()
	delete(self.m, coord)
}
