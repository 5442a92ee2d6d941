/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Created:       Wed Mar 13 09:41:52 2019 mstenber
 * Last modified: Wed Apr  3 11:02:19 2019 mstenber
 * Edit time:     121 min
 *
 */

package fs

import (
	"hash/fnv"

	"github.com/fingon/go-anvilfs/anvil"
	"github.com/fingon/go-anvilfs/mlog"
	"github.com/fingon/go-anvilfs/util"
)

// RegionIno packs a region coordinate into an inode number: zig-zag
// encode each axis to 32 bits, concatenate. Bijective over the full
// i32 range on both axes.
func RegionIno(region anvil.RegionCoord) uint64 {
	return uint64(zigzag32(region.X))<<32 | uint64(zigzag32(region.Z))
}

// RegionFromIno is the exact inverse of RegionIno.
func RegionFromIno(ino uint64) anvil.RegionCoord {
	return anvil.RegionCoord{
		X: unzigzag32(uint32(ino >> 32)),
		Z: unzigzag32(uint32(ino)),
	}
}

func zigzag32(v int32) uint32 {
	return (uint32(v) << 1) ^ uint32(v>>31)
}

func unzigzag32(u uint32) int32 {
	return int32(u>>1) ^ -int32(u&1)
}

// auxQuadrant is the nominal home of auxiliary (non-region) file
// inodes. Region packing spans the whole 64-bit space, so this is a
// convention rather than a hard partition; actual collisions among
// instantiated objects are resolved by the table below.
const auxQuadrant = uint64(1) << 62

func auxIno(name string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(name))
	return auxQuadrant | (h.Sum64() &^ (uint64(3) << 62))
}

// fileIdentity is what an inode resolves back to.
type fileIdentity struct {
	Region anvil.RegionCoord
	// Aux is non-empty for auxiliary files (session.lock and
	// friends), in which case Region is meaningless.
	Aux string
}

// inodeTable assigns inode numbers lazily on first lookup and keeps
// them stable for the process lifetime. Nominal numbers come from
// RegionIno and auxIno; an object whose nominal number is reserved
// (0 and 1 belong to the mount protocol) or already taken by an
// earlier object gets displaced to a rehashed free number. Resolution
// always goes through the table, so displacement is invisible to
// callers.
type inodeTable struct {
	lock     util.MutexLocked
	byIno    map[uint64]fileIdentity
	byRegion map[anvil.RegionCoord]uint64
	byAux    map[string]uint64
}

func (self *inodeTable) init() {
	if self.byIno == nil {
		self.byIno = make(map[uint64]fileIdentity)
		self.byRegion = make(map[anvil.RegionCoord]uint64)
		self.byAux = make(map[string]uint64)
	}
}

// InoForName maps a directory entry name to its inode, creating the
// mapping on first use. A name that does not parse as a region
// filename is an auxiliary file.
func (self *inodeTable) InoForName(name string) (uint64, fileIdentity) {
	if region, ok := anvil.ParseRegionFileName(name); ok {
		return self.InoForRegion(region), fileIdentity{Region: region}
	}
	defer self.lock.Locked()()
	self.init()
	if ino, ok := self.byAux[name]; ok {
		return ino, fileIdentity{Aux: name}
	}
	ino := self.claim(auxIno(name))
	id := fileIdentity{Aux: name}
	self.byIno[ino] = id
	self.byAux[name] = ino
	mlog.Printf2("fs/inode", "inode %v = aux %q", ino, name)
	return ino, id
}

func (self *inodeTable) InoForRegion(region anvil.RegionCoord) uint64 {
	defer self.lock.Locked()()
	self.init()
	if ino, ok := self.byRegion[region]; ok {
		return ino
	}
	ino := self.claim(RegionIno(region))
	self.byIno[ino] = fileIdentity{Region: region}
	self.byRegion[region] = ino
	mlog.Printf2("fs/inode", "inode %v = region %v", ino, region)
	return ino
}

// claim returns nominal if it is free and valid, otherwise the first
// free number along its rehash sequence. Callers hold the lock.
func (self *inodeTable) claim(nominal uint64) uint64 {
	ino := nominal
	for {
		if ino > rootIno {
			if _, taken := self.byIno[ino]; !taken {
				return ino
			}
		}
		ino = rehash(ino)
	}
}

// rehash is the splitmix64 finalizer; it visits the whole u64 space
// so the claim loop always terminates.
func rehash(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	if x == 0 {
		x = 1
	}
	return x
}

// Resolve maps an inode number handed out earlier back to its
// identity.
func (self *inodeTable) Resolve(ino uint64) (fileIdentity, bool) {
	defer self.lock.Locked()()
	id, ok := self.byIno[ino]
	return id, ok
}
