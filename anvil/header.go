/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Sun Mar  3 09:55:40 2019 mstenber
 * Last modified: Mon Mar 25 08:30:12 2019 mstenber
 * Edit time:     96 min
 *
 */

package anvil

import (
	"encoding/binary"

	"github.com/fingon/go-anvilfs/util"
)

// Header is the cached 8192-byte header of one region file: 1024
// 4-byte location entries (24-bit sector offset, 8-bit sector count)
// followed by 1024 4-byte big-endian timestamps. It is built once per
// open region and patched in place as chunks are written; reads never
// observe a partially patched entry.
type Header struct {
	lock util.RWMutexLocked
	buf  [HeaderBytes]byte
}

// BuildHeader synthesizes a header whose location table marks exactly
// the given local indexes as present. Each present chunk gets its
// fixed slot with a full-stride sector count; the real count is
// patched in when the chunk is actually written or served.
func BuildHeader(present []int) *Header {
	self := &Header{}
	for _, index := range present {
		if index < 0 || index >= ChunksPerRegion {
			continue
		}
		self.patchLocation(index, SlotSector(index), SectorsPerChunk)
	}
	return self
}

func (self *Header) patchLocation(index int, sector uint32, count uint8) {
	o := index * 4
	self.buf[o] = byte(sector >> 16)
	self.buf[o+1] = byte(sector >> 8)
	self.buf[o+2] = byte(sector)
	self.buf[o+3] = count
}

// MarkPresent patches the location and timestamp entries for one local
// chunk index.
func (self *Header) MarkPresent(index int, sector uint32, count uint8, timestamp uint32) {
	if index < 0 || index >= ChunksPerRegion {
		return
	}
	defer self.lock.Locked()()
	self.patchLocation(index, sector, count)
	binary.BigEndian.PutUint32(self.buf[SectorBytes+index*4:], timestamp)
}

// Location returns the table entry for one local index. A zero sector
// and count means the chunk is not present.
func (self *Header) Location(index int) (sector uint32, count uint8) {
	defer self.lock.RLocked()()
	o := index * 4
	sector = uint32(self.buf[o])<<16 | uint32(self.buf[o+1])<<8 | uint32(self.buf[o+2])
	count = self.buf[o+3]
	return
}

// PresentCount returns the number of non-zero location entries.
func (self *Header) PresentCount() int {
	defer self.lock.RLocked()()
	n := 0
	for i := 0; i < ChunksPerRegion; i++ {
		o := i * 4
		if self.buf[o] != 0 || self.buf[o+1] != 0 || self.buf[o+2] != 0 || self.buf[o+3] != 0 {
			n++
		}
	}
	return n
}

// ReadAt copies header content at the given offset into p, returning
// the number of bytes copied (0 if offset is past the header).
func (self *Header) ReadAt(p []byte, offset uint64) int {
	if offset >= HeaderBytes {
		return 0
	}
	defer self.lock.RLocked()()
	return copy(p, self.buf[offset:])
}
