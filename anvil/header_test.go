/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Sun Mar 10 09:03:27 2019 mstenber
 * Last modified: Thu Apr  4 13:25:50 2019 mstenber
 * Edit time:     33 min
 *
 */

package anvil

import (
	"encoding/binary"
	"math/rand"
	"testing"

	"github.com/stvp/assert"
)

func TestHeaderEmpty(t *testing.T) {
	t.Parallel()
	h := BuildHeader(nil)
	assert.Equal(t, h.PresentCount(), 0)
	buf := make([]byte, HeaderBytes)
	n := h.ReadAt(buf, 0)
	assert.Equal(t, n, HeaderBytes)
	for _, b := range buf {
		assert.Equal(t, b, byte(0))
	}
}

func TestHeaderBuildAndPatch(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(7))
	indexes := map[int]bool{}
	for len(indexes) < 100 {
		indexes[rng.Intn(ChunksPerRegion)] = true
	}
	present := make([]int, 0, len(indexes))
	for i := range indexes {
		present = append(present, i)
	}
	h := BuildHeader(present)
	assert.Equal(t, h.PresentCount(), len(present))

	// No two entries may overlap.
	type span struct{ lo, hi uint32 }
	var spans []span
	for i := 0; i < ChunksPerRegion; i++ {
		sector, count := h.Location(i)
		if sector == 0 && count == 0 {
			assert.True(t, !indexes[i])
			continue
		}
		assert.True(t, indexes[i])
		assert.True(t, sector >= FirstDataSector)
		spans = append(spans, span{sector, sector + uint32(count)})
	}
	for i, a := range spans {
		for _, b := range spans[i+1:] {
			assert.True(t, a.hi <= b.lo || b.hi <= a.lo)
		}
	}

	// Patch one entry; only that entry and its timestamp change.
	idx := present[0]
	h.MarkPresent(idx, SlotSector(idx), 3, 12345)
	sector, count := h.Location(idx)
	assert.Equal(t, sector, SlotSector(idx))
	assert.Equal(t, count, uint8(3))

	ts := make([]byte, 4)
	h.ReadAt(ts, uint64(SectorBytes+idx*4))
	assert.Equal(t, binary.BigEndian.Uint32(ts), uint32(12345))
	assert.Equal(t, h.PresentCount(), len(present))
}

func TestHeaderReadAtBounds(t *testing.T) {
	t.Parallel()
	h := BuildHeader([]int{0})
	buf := make([]byte, 16)
	assert.Equal(t, h.ReadAt(buf, HeaderBytes), 0)
	assert.Equal(t, h.ReadAt(buf, HeaderBytes-8), 8)

	// Location entry for index 0 starts at offset 0.
	n := h.ReadAt(buf[:4], 0)
	assert.Equal(t, n, 4)
	sector := uint32(buf[0])<<16 | uint32(buf[1])<<8 | uint32(buf[2])
	assert.Equal(t, sector, SlotSector(0))
	assert.Equal(t, buf[3], uint8(SectorsPerChunk))
}
