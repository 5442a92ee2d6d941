/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Created:       Wed Mar 13 10:20:33 2019 mstenber
 * Last modified: Thu Apr  4 16:41:17 2019 mstenber
 * Edit time:     34 min
 *
 */

package fs

import (
	"math/rand"
	"testing"

	"github.com/stvp/assert"

	"github.com/fingon/go-anvilfs/anvil"
)

func TestRegionInoBijection(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(11))
	seen := make(map[uint64]anvil.RegionCoord, 100000)
	for len(seen) < 100000 {
		r := anvil.RegionCoord{X: int32(rng.Uint32()), Z: int32(rng.Uint32())}
		ino := RegionIno(r)
		if prev, dup := seen[ino]; dup {
			assert.Equal(t, prev, r)
			continue
		}
		seen[ino] = r
		assert.Equal(t, RegionFromIno(ino), r)
	}
}

func TestInodeTableStability(t *testing.T) {
	t.Parallel()
	var table inodeTable
	rng := rand.New(rand.NewSource(12))
	coords := make([]anvil.RegionCoord, 1000)
	inos := make(map[uint64]bool, len(coords))
	for i := range coords {
		coords[i] = anvil.RegionCoord{X: int32(rng.Uint32()), Z: int32(rng.Uint32())}
		ino := table.InoForRegion(coords[i])
		assert.True(t, ino > rootIno)
		inos[ino] = true
	}
	for _, r := range coords {
		ino := table.InoForRegion(r)
		id, ok := table.Resolve(ino)
		assert.True(t, ok)
		assert.Equal(t, id.Region, r)
		assert.Equal(t, id.Aux, "")
	}
	// All distinct (modulo duplicate random coordinates).
	assert.True(t, len(inos) >= 990)
}

// Regions whose nominal packing lands on the reserved low inodes (0 is
// invalid, 1 is the root) get displaced but stay stable and resolvable.
func TestInodeReservedDisplacement(t *testing.T) {
	t.Parallel()
	var table inodeTable
	r0 := anvil.RegionCoord{X: 0, Z: 0}  // nominal 0
	r1 := anvil.RegionCoord{X: 0, Z: -1} // nominal 1
	assert.Equal(t, RegionIno(r0), uint64(0))
	assert.Equal(t, RegionIno(r1), uint64(1))

	i0 := table.InoForRegion(r0)
	i1 := table.InoForRegion(r1)
	assert.True(t, i0 > rootIno)
	assert.True(t, i1 > rootIno)
	assert.NotEqual(t, i0, i1)
	assert.Equal(t, table.InoForRegion(r0), i0)

	id, ok := table.Resolve(i0)
	assert.True(t, ok)
	assert.Equal(t, id.Region, r0)
}

func TestInoForName(t *testing.T) {
	t.Parallel()
	var table inodeTable

	ino, id := table.InoForName("r.5.-3.mca")
	assert.Equal(t, id.Aux, "")
	assert.Equal(t, id.Region, anvil.RegionCoord{X: 5, Z: -3})
	assert.Equal(t, ino, table.InoForRegion(id.Region))

	lock, lockID := table.InoForName("session.lock")
	assert.Equal(t, lockID.Aux, "session.lock")
	assert.NotEqual(t, lock, ino)
	again, _ := table.InoForName("session.lock")
	assert.Equal(t, again, lock)

	other, _ := table.InoForName("level.dat")
	assert.NotEqual(t, other, lock)

	id, ok := table.Resolve(lock)
	assert.True(t, ok)
	assert.Equal(t, id.Aux, "session.lock")
}
