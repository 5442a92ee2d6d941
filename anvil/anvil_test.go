/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Sat Mar  9 11:42:17 2019 mstenber
 * Last modified: Thu Apr  4 13:01:22 2019 mstenber
 * Edit time:     41 min
 *
 */

package anvil

import (
	"math/rand"
	"testing"

	"github.com/stvp/assert"
)

func TestCoordMath(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 100000; i++ {
		c := ChunkCoord{X: int32(rng.Uint32()), Z: int32(rng.Uint32())}
		r := c.Region()
		idx := c.LocalIndex()
		assert.True(t, idx >= 0 && idx < ChunksPerRegion)
		assert.Equal(t, r.Chunk(idx), c)
	}
}

func TestCoordMathEdges(t *testing.T) {
	t.Parallel()
	cases := []struct {
		c   ChunkCoord
		r   RegionCoord
		idx int
	}{
		{ChunkCoord{0, 0}, RegionCoord{0, 0}, 0},
		{ChunkCoord{31, 31}, RegionCoord{0, 0}, 1023},
		{ChunkCoord{32, 0}, RegionCoord{1, 0}, 0},
		{ChunkCoord{-1, -1}, RegionCoord{-1, -1}, 1023},
		{ChunkCoord{-32, -32}, RegionCoord{-1, -1}, 0},
		{ChunkCoord{5, -3}, RegionCoord{0, -1}, 29*32 + 5},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.c.Region(), tc.r)
		assert.Equal(t, tc.c.LocalIndex(), tc.idx)
		assert.Equal(t, tc.r.Chunk(tc.idx), tc.c)
	}
}

func TestParseRegionFileName(t *testing.T) {
	t.Parallel()
	r, ok := ParseRegionFileName("r.0.0.mca")
	assert.True(t, ok)
	assert.Equal(t, r, RegionCoord{0, 0})

	r, ok = ParseRegionFileName("r.-12.345.mca")
	assert.True(t, ok)
	assert.Equal(t, r, RegionCoord{-12, 345})

	assert.Equal(t, r.FileName(), "r.-12.345.mca")

	for _, bad := range []string{
		"r.0.0.mcc", "r.0.mca", "r..0.mca", "r.0.0.mca.bak",
		"session.lock", "r.x.y.mca", "", "r.0.0",
	} {
		_, ok = ParseRegionFileName(bad)
		assert.True(t, !ok, bad)
	}
}

func TestSlotMath(t *testing.T) {
	t.Parallel()
	assert.Equal(t, SlotSector(0), uint32(FirstDataSector))
	assert.Equal(t, SlotFileOffset(0), uint64(HeaderBytes))

	for _, idx := range []int{0, 1, 500, 1023} {
		off := SlotFileOffset(idx)
		got, ok := SlotIndexForOffset(off)
		assert.True(t, ok)
		assert.Equal(t, got, idx)
		// Interior of the slot maps back too.
		got, ok = SlotIndexForOffset(off + SectorBytes + 17)
		assert.True(t, ok)
		assert.Equal(t, got, idx)
	}
	_, ok := SlotIndexForOffset(0)
	assert.True(t, !ok)
	_, ok = SlotIndexForOffset(VirtualFileBytes)
	assert.True(t, !ok)
}

func TestSectorCountFor(t *testing.T) {
	t.Parallel()
	assert.Equal(t, SectorCountFor(1), uint8(1))
	assert.Equal(t, SectorCountFor(SectorBytes), uint8(1))
	assert.Equal(t, SectorCountFor(SectorBytes+1), uint8(2))
	assert.Equal(t, SectorCountFor(5*SectorBytes), uint8(5))
}
