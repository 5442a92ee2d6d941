/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Created:       Wed Mar 13 11:14:09 2019 mstenber
 * Last modified: Thu Apr  4 09:33:50 2019 mstenber
 * Edit time:     284 min
 *
 */

package fs

import (
	"log"
	"time"

	"github.com/pkg/errors"

	"github.com/fingon/go-anvilfs/anvil"
	"github.com/fingon/go-anvilfs/mlog"
	"github.com/fingon/go-anvilfs/nbt"
	"github.com/fingon/go-anvilfs/storage"
	"github.com/fingon/go-anvilfs/util"
)

// virtualFile serves the byte range of one region file that does not
// exist anywhere: the header from its in-memory table, chunk sectors
// from cache, storage, or the generator. One instance per open
// region, shared by all handles on it, dropped when the last handle
// closes.
type virtualFile struct {
	fs     *Fs
	region anvil.RegionCoord
	header *anvil.Header

	// lock guards refs, closed and inflight. Data-path state has
	// its own synchronization (header internally, cache and
	// backend globally).
	lock     util.MutexLocked
	refs     int
	closed   bool
	inflight map[anvil.ChunkCoord]bool
}

func newVirtualFile(fs *Fs, region anvil.RegionCoord) *virtualFile {
	self := &virtualFile{
		fs:       fs,
		region:   region,
		inflight: make(map[anvil.ChunkCoord]bool),
	}
	present, err := fs.backend.Present(region)
	if err != nil {
		// Treated as "nothing stored"; chunks resurface through
		// regeneration and later writes.
		log.Printf("region %v: presence scan failed, starting empty: %v",
			region, err)
		present = nil
	}
	self.header = anvil.BuildHeader(present)
	mlog.Printf2("fs/vfile", "vfile %v open, %d chunks present",
		region, len(present))
	return self
}

func (self *virtualFile) close() {
	defer self.lock.Locked()()
	self.closed = true
}

func (self *virtualFile) isClosed() bool {
	defer self.lock.Locked()()
	return self.closed
}

// ReadAt fills p from the virtual file content at offset. Short reads
// never happen below the virtual file size; bytes past any chunk's
// logical end are zero.
func (self *virtualFile) ReadAt(p []byte, offset uint64) (int, error) {
	total := len(p)
	for len(p) > 0 {
		n, err := self.readPart(p, offset)
		if err != nil {
			return 0, err
		}
		if n == 0 {
			break
		}
		p = p[n:]
		offset += uint64(n)
	}
	self.fs.bench.RecordRead(total - len(p))
	return total - len(p), nil
}

// readPart serves the longest prefix of p that comes from a single
// source (header, one chunk's slot, or end-of-file zeros).
func (self *virtualFile) readPart(p []byte, offset uint64) (int, error) {
	if offset < anvil.HeaderBytes {
		return self.header.ReadAt(p, offset), nil
	}
	index, ok := anvil.SlotIndexForOffset(offset)
	if !ok {
		// Past the last slot; the file just ends.
		return 0, nil
	}
	coord := self.region.Chunk(index)
	blob, err := self.fetchChunk(coord, true)
	if err != nil {
		return 0, err
	}
	within := int(offset - anvil.SlotFileOffset(index))
	slotLeft := anvil.SectorsPerChunk*anvil.SectorBytes - within
	n := len(p)
	if n > slotLeft {
		n = slotLeft
	}
	copied := 0
	if within < len(blob) {
		copied = copy(p[:n], blob[within:])
	}
	// Probes past the blob's logical end read as zeros.
	for i := copied; i < n; i++ {
		p[i] = 0
	}
	return n, nil
}

// fetchChunk resolves one chunk blob: cache, then storage, then the
// generator, back-filling the more local layers on the way out.
// foreground requests additionally trigger neighborhood prefetch.
func (self *virtualFile) fetchChunk(coord anvil.ChunkCoord, foreground bool) ([]byte, error) {
	fs := self.fs
	if blob, ok := fs.cache.Get(coord); ok {
		fs.bench.RecordCacheHit()
		return blob, nil
	}
	fs.bench.RecordCacheMiss()

	start := time.Now()
	blob, err := fs.backend.Load(coord)
	if err != nil {
		// Unreachable or unrestorable storage is a miss, not a
		// failure; availability wins.
		log.Printf("chunk %v: load failed, regenerating: %v", coord, err)
		blob = nil
	}
	if blob != nil {
		if _, blerr := anvil.BlobLen(blob); blerr != nil {
			log.Printf("chunk %v: stored blob malformed, regenerating: %v",
				coord, blerr)
			blob = nil
		}
	}
	if blob != nil {
		fs.bench.RecordLoad(time.Since(start))
	} else {
		blob, err = self.generateChunk(coord)
		if err != nil {
			return nil, err
		}
	}
	fs.cache.Put(coord, blob)
	if foreground {
		self.schedulePrefetch(coord)
	}
	return blob, nil
}

func (self *virtualFile) generateChunk(coord anvil.ChunkCoord) ([]byte, error) {
	fs := self.fs
	start := time.Now()
	root, err := fs.gen.Generate(coord, fs.config.Seed)
	if err != nil {
		return nil, errors.Wrapf(err, "generate %v", coord)
	}
	raw, err := nbt.Marshal(root, "")
	if err != nil {
		return nil, errors.Wrapf(err, "encode %v", coord)
	}
	blob, err := anvil.WrapChunk(raw, fs.config.Scheme)
	if err != nil {
		return nil, errors.Wrapf(err, "wrap %v", coord)
	}
	fs.bench.RecordGeneration(time.Since(start))
	fs.bench.RecordCompression(len(raw), len(blob))
	mlog.Printf2("fs/vfile", "generated %v: %d -> %d bytes",
		coord, len(raw), len(blob))

	// Persist the generated chunk so the next process finds it.
	// Failure here costs durability only.
	sstart := time.Now()
	if err := fs.backend.Save(coord, blob); err != nil {
		log.Printf("chunk %v: save of generated chunk failed: %v", coord, err)
	} else {
		fs.bench.RecordSave(time.Since(sstart))
	}
	return blob, nil
}

// schedulePrefetch warms the neighborhood of a foreground chunk.
// Best-effort throughout: saturated workers, already-cached and
// already-in-flight neighbors are all skipped, failures never
// surface.
func (self *virtualFile) schedulePrefetch(center anvil.ChunkCoord) {
	r := self.fs.config.PrefetchRadius
	if r <= 0 {
		return
	}
	for dz := -r; dz <= r; dz++ {
		for dx := -r; dx <= r; dx++ {
			if dx == 0 && dz == 0 {
				continue
			}
			coord := anvil.ChunkCoord{
				X: center.X + int32(dx),
				Z: center.Z + int32(dz),
			}
			if self.fs.cache.Contains(coord) {
				continue
			}
			self.prefetchOne(coord)
		}
	}
}

func (self *virtualFile) prefetchOne(coord anvil.ChunkCoord) {
	if !self.beginInflight(coord) {
		return
	}
	started := self.fs.limiter.TryGo(func() {
		defer self.forgetInflight(coord)
		if self.isClosed() {
			return
		}
		mlog.Printf2("fs/vfile", "prefetch %v", coord)
		if _, err := self.fetchChunk(coord, false); err != nil {
			mlog.Printf2("fs/vfile", " prefetch %v failed: %v", coord, err)
		}
	})
	if !started {
		self.forgetInflight(coord)
	}
}

func (self *virtualFile) beginInflight(coord anvil.ChunkCoord) bool {
	defer self.lock.Locked()()
	if self.closed || self.inflight[coord] {
		return false
	}
	self.inflight[coord] = true
	return true
}

func (self *virtualFile) forgetInflight(coord anvil.ChunkCoord) {
	defer self.lock.Locked()()
	delete(self.inflight, coord)
}

// WriteAt absorbs a write to the virtual file. Header-range writes
// succeed without effect (the header is derived from chunk presence,
// not authored). Chunk writes are parsed, stored under the coordinate
// the payload itself declares, and always acknowledged in full.
func (self *virtualFile) WriteAt(data []byte, offset uint64) (int, error) {
	if offset < anvil.HeaderBytes {
		mlog.Printf2("fs/vfile", "vfile %v header write ignored (%d@%d)",
			self.region, len(data), offset)
		return len(data), nil
	}
	blobLen, err := anvil.BlobLen(data)
	if err != nil {
		// Corrupt payload from the caller; reject this chunk
		// only, nothing was mutated.
		log.Printf("region %v: malformed chunk write at %d: %v",
			self.region, offset, err)
		return 0, err
	}
	blob := data[:blobLen:blobLen]
	raw, _, err := anvil.UnwrapChunk(blob)
	if err != nil {
		log.Printf("region %v: undecodable chunk write at %d: %v",
			self.region, offset, err)
		return 0, err
	}
	root, _, err := nbt.Unmarshal(raw)
	if err != nil {
		log.Printf("region %v: unparseable chunk tree at %d: %v",
			self.region, offset, err)
		return 0, err
	}
	// The payload's own coordinate is authoritative; the offset is
	// a hint the caller is free to get wrong when relocating
	// sectors.
	x, z, err := nbt.ChunkPos(root)
	if err != nil {
		log.Printf("region %v: chunk write at %d has no position: %v",
			self.region, offset, err)
		return 0, err
	}
	coord := anvil.ChunkCoord{X: x, Z: z}
	if hint, ok := anvil.SlotIndexForOffset(offset); ok {
		if hinted := self.region.Chunk(hint); hinted != coord {
			mlog.Printf2("fs/vfile", "vfile %v write: offset implies %v, payload says %v",
				self.region, hinted, coord)
		}
	}

	fs := self.fs
	start := time.Now()
	if err := fs.backend.Save(coord, blob); err != nil {
		if storage.IsRejected(err) {
			log.Printf("chunk %v: storage rejected write: %v", coord, err)
			return 0, err
		}
		// Unavailable: acknowledge anyway. The cache keeps reads
		// in this process correct; durability waits for the next
		// successful write.
		log.Printf("chunk %v: write not durable: %v", coord, err)
	} else {
		fs.bench.RecordSave(time.Since(start))
	}
	fs.cache.Put(coord, blob)
	fs.bench.RecordWrite(len(data))

	if coord.Region() == self.region {
		index := coord.LocalIndex()
		self.header.MarkPresent(index, anvil.SlotSector(index),
			anvil.SectorCountFor(len(blob)),
			uint32(time.Now().Unix()))
	} else {
		// Stored under its true coordinate; the owning region's
		// header picks it up on its next open.
		log.Printf("region %v: absorbed write for foreign chunk %v",
			self.region, coord)
	}
	return len(data), nil
}
