/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Sat Mar  2 11:05:33 2019 mstenber
 * Last modified: Fri Mar 22 10:11:47 2019 mstenber
 * Edit time:     103 min
 *
 */

// anvil package knows the byte layout of the region container format:
// sector granularity, the 8 KB header, chunk payload framing, and the
// coordinate math tying chunks to regions and regions to file names.
package anvil

import (
	"fmt"
	"strconv"
	"strings"
)

// SectorBytes is the allocation granularity within a region file.
const SectorBytes = 4096

// HeaderBytes is the fixed region file header: a 4096-byte location
// table followed by a 4096-byte timestamp table.
const HeaderBytes = 2 * SectorBytes

// RegionSize is the number of chunks per region axis.
const RegionSize = 32

// ChunksPerRegion is the number of location/timestamp table entries.
const ChunksPerRegion = RegionSize * RegionSize

// SectorsPerChunk is the fixed per-chunk slot stride in the virtual
// file. 32 sectors = 128 KB per chunk; average chunks are ~5 KB, so
// this leaves generous room without making the virtual file absurd.
const SectorsPerChunk = 32

// FirstDataSector is where chunk slots begin (right after the header).
const FirstDataSector = 2

// VirtualFileBytes is the stat-visible size of every region file.
// Reporting zero would make the first read treat the file as empty.
const VirtualFileBytes = HeaderBytes + ChunksPerRegion*SectorsPerChunk*SectorBytes

// ChunkCoord identifies one chunk by absolute integer coordinates.
type ChunkCoord struct {
	X, Z int32
}

func (self ChunkCoord) String() string {
	return fmt.Sprintf("chunk(%d,%d)", self.X, self.Z)
}

// Region returns the region owning this chunk (Euclidean division).
func (self ChunkCoord) Region() RegionCoord {
	return RegionCoord{X: self.X >> 5, Z: self.Z >> 5}
}

// LocalIndex returns the chunk's 0..1023 index within its region.
func (self ChunkCoord) LocalIndex() int {
	return int(self.Z&31)*RegionSize + int(self.X&31)
}

// RegionCoord identifies one region (= one virtual .mca file).
type RegionCoord struct {
	X, Z int32
}

func (self RegionCoord) String() string {
	return fmt.Sprintf("region(%d,%d)", self.X, self.Z)
}

// FileName returns the canonical region file name.
func (self RegionCoord) FileName() string {
	return fmt.Sprintf("r.%d.%d.mca", self.X, self.Z)
}

// Chunk returns the absolute coordinate of the chunk at the given
// local index within this region.
func (self RegionCoord) Chunk(index int) ChunkCoord {
	return ChunkCoord{
		X: self.X*RegionSize + int32(index%RegionSize),
		Z: self.Z*RegionSize + int32(index/RegionSize),
	}
}

// ParseRegionFileName parses "r.<x>.<z>.mca". Anything that does not
// match exactly is not a region file.
func ParseRegionFileName(name string) (r RegionCoord, ok bool) {
	parts := strings.Split(name, ".")
	if len(parts) != 4 || parts[0] != "r" || parts[3] != "mca" {
		return
	}
	x, err := strconv.ParseInt(parts[1], 10, 32)
	if err != nil {
		return
	}
	z, err := strconv.ParseInt(parts[2], 10, 32)
	if err != nil {
		return
	}
	return RegionCoord{X: int32(x), Z: int32(z)}, true
}

// SlotSector returns the first sector of the fixed slot assigned to
// the given local chunk index.
func SlotSector(index int) uint32 {
	return FirstDataSector + uint32(index)*SectorsPerChunk
}

// SlotFileOffset returns the byte offset of the slot.
func SlotFileOffset(index int) uint64 {
	return uint64(SlotSector(index)) * SectorBytes
}

// SlotIndexForOffset maps a byte offset in the chunk data area back to
// the local chunk index owning it. ok is false for header offsets and
// offsets past the last slot.
func SlotIndexForOffset(offset uint64) (index int, ok bool) {
	if offset < HeaderBytes {
		return 0, false
	}
	i := (offset - HeaderBytes) / (SectorsPerChunk * SectorBytes)
	if i >= ChunksPerRegion {
		return 0, false
	}
	return int(i), true
}

// SectorCountFor returns the location-table sector count for a blob of
// the given wire length, capped at the slot stride.
func SectorCountFor(blobLen int) uint8 {
	n := (blobLen + SectorBytes - 1) / SectorBytes
	if n < 1 {
		n = 1
	}
	if n > SectorsPerChunk {
		n = SectorsPerChunk
	}
	return uint8(n)
}
