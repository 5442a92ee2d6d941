/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Created:       Wed Mar 13 08:55:12 2019 mstenber
 * Last modified: Thu Apr  4 10:11:48 2019 mstenber
 * Edit time:     197 min
 *
 */

// fs package implements fuse.RawFileSystem presenting a region
// directory that exists nowhere: region files are synthesized from
// cache, storage and the generator, and writes into them are absorbed
// into storage. The low-level API fits well since the served objects
// have no real backing tree, just coordinate arithmetic.
package fs

import (
	"sort"
	"time"

	"github.com/hanwen/go-fuse/fuse"

	"github.com/fingon/go-anvilfs/anvil"
	"github.com/fingon/go-anvilfs/bench"
	"github.com/fingon/go-anvilfs/cache"
	"github.com/fingon/go-anvilfs/gen"
	"github.com/fingon/go-anvilfs/mlog"
	"github.com/fingon/go-anvilfs/storage"
	"github.com/fingon/go-anvilfs/util"
)

const rootIno = fuse.FUSE_ROOT_ID

type Config struct {
	// CacheSize is the chunk cache capacity in entries; zero means
	// cache.DefaultCapacity.
	CacheSize int

	// PrefetchRadius in chunks around each foreground miss; zero
	// disables prefetch.
	PrefetchRadius int

	// PrefetchWorkers bounds concurrent background warm-ups; zero
	// means util.DefaultLimit.
	PrefetchWorkers int

	// Seed fed to the generator.
	Seed int64

	// Scheme used when wrapping generated chunks.
	Scheme anvil.Scheme
}

type Fs struct {
	Ops fsOps

	backend storage.Backend
	cache   *cache.ChunkCache
	gen     gen.Generator
	bench   *bench.Metrics
	config  Config
	inodes  inodeTable
	limiter util.ParallelLimiter
	started time.Time

	// lock guards vfiles and auxData.
	lock    util.MutexLocked
	vfiles  map[anvil.RegionCoord]*virtualFile
	auxData map[string][]byte
}

func NewFs(backend storage.Backend, generator gen.Generator, metrics *bench.Metrics, config Config) *Fs {
	if config.CacheSize <= 0 {
		config.CacheSize = cache.DefaultCapacity
	}
	self := &Fs{
		backend: backend,
		cache:   cache.New(config.CacheSize),
		gen:     generator,
		bench:   metrics,
		config:  config,
		vfiles:  make(map[anvil.RegionCoord]*virtualFile),
		auxData: make(map[string][]byte),
		started: time.Now(),
	}
	self.limiter.LimitTotal = config.PrefetchWorkers
	self.Ops.fs = self
	self.Ops.RawFileSystem = fuse.NewDefaultRawFileSystem()
	return self
}

// Close tears down every open virtual file and the backend. The
// caller unmounts first; requests arriving after Close would find no
// state to serve.
func (self *Fs) Close() {
	mlog.Printf2("fs/fs", "fs.Close")
	func() {
		defer self.lock.Locked()()
		for _, vf := range self.vfiles {
			vf.close()
		}
		self.vfiles = make(map[anvil.RegionCoord]*virtualFile)
	}()
	self.backend.Close()
}

// openRegion returns the region's virtual file, creating it on first
// open, and takes a reference on it.
func (self *Fs) openRegion(region anvil.RegionCoord) *virtualFile {
	if vf := self.takeRef(region); vf != nil {
		return vf
	}
	// Header construction talks to storage; do it outside the fs
	// lock and tolerate the (harmless) race of two first opens.
	created := newVirtualFile(self, region)
	defer self.lock.Locked()()
	vf := self.vfiles[region]
	if vf == nil {
		self.vfiles[region] = created
		vf = created
	} else {
		created.close()
	}
	vf.refs++
	return vf
}

func (self *Fs) takeRef(region anvil.RegionCoord) *virtualFile {
	defer self.lock.Locked()()
	vf := self.vfiles[region]
	if vf != nil {
		vf.refs++
	}
	return vf
}

// regionFile returns the open virtual file for a region, or nil.
func (self *Fs) regionFile(region anvil.RegionCoord) *virtualFile {
	defer self.lock.Locked()()
	return self.vfiles[region]
}

// releaseRegion drops one reference; the last release tears the
// virtual file down so in-flight prefetch cannot touch stale state.
func (self *Fs) releaseRegion(region anvil.RegionCoord) {
	defer self.lock.Locked()()
	vf := self.vfiles[region]
	if vf == nil {
		return
	}
	vf.refs--
	if vf.refs <= 0 {
		mlog.Printf2("fs/fs", "fs.releaseRegion %v closing", region)
		delete(self.vfiles, region)
		vf.close()
	}
}

// auxRead returns a copy of the current content of an auxiliary
// file. auxWrite rewrites the stored slice in place, so handing out
// the live backing array would let a concurrent write race the
// reader.
func (self *Fs) auxRead(name string) []byte {
	defer self.lock.Locked()()
	return append([]byte(nil), self.auxData[name]...)
}

// auxExists reports whether an auxiliary file has been created this
// mount, and its current size.
func (self *Fs) auxExists(name string) (size int, ok bool) {
	defer self.lock.Locked()()
	data, ok := self.auxData[name]
	return len(data), ok
}

// auxWrite absorbs a write to an auxiliary file. Content is retained
// in memory only, so the server can read back what it wrote
// (session.lock does exactly that).
func (self *Fs) auxWrite(name string, data []byte, offset uint64) {
	defer self.lock.Locked()()
	old := self.auxData[name]
	end := offset + uint64(len(data))
	if uint64(len(old)) < end {
		grown := make([]byte, end)
		copy(grown, old)
		old = grown
	}
	copy(old[offset:], data)
	self.auxData[name] = old
}

func (self *Fs) auxForget(name string) {
	defer self.lock.Locked()()
	delete(self.auxData, name)
}

func (self *Fs) auxTouch(name string) {
	defer self.lock.Locked()()
	if _, ok := self.auxData[name]; !ok {
		self.auxData[name] = nil
	}
}

// DirNames lists the names the root directory currently shows: every
// auxiliary file touched and every region instantiated this mount.
// The server opens regions by name rather than by listing, so this
// does not try to enumerate storage.
func (self *Fs) DirNames() []string {
	defer self.lock.Locked()()
	defer self.inodes.lock.Locked()()
	names := make([]string, 0, len(self.inodes.byRegion)+len(self.auxData))
	for region := range self.inodes.byRegion {
		names = append(names, region.FileName())
	}
	for name := range self.auxData {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Report returns the metrics summary, for logging at shutdown.
func (self *Fs) Report() string {
	return self.bench.Report()
}
