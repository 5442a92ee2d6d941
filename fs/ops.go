/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Created:       Thu Mar 14 08:02:31 2019 mstenber
 * Last modified: Thu Apr  4 11:40:02 2019 mstenber
 * Edit time:     248 min
 *
 */

package fs

import (
	"log"

	. "github.com/hanwen/go-fuse/fuse"

	"github.com/fingon/go-anvilfs/anvil"
	"github.com/fingon/go-anvilfs/mlog"
)

const attrTimeout = 1000000000 // 1s, in ns

// fsOps is the kernel-facing surface. It embeds the default (ENOSYS)
// implementation and overrides only what a game server's file I/O
// pattern exercises; everything the pattern never does stays
// unimplemented on purpose.
type fsOps struct {
	RawFileSystem
	fs *Fs
}

func (self *fsOps) String() string {
	return "anvilfs"
}

func (self *fsOps) fillAttr(ino uint64, id fileIdentity, attr *Attr) {
	attr.Ino = ino
	attr.Blksize = anvil.SectorBytes
	now := uint64(self.fs.started.Unix())
	attr.Atime = now
	attr.Mtime = now
	attr.Ctime = now
	attr.Nlink = 1
	if id.Aux != "" {
		size, _ := self.fs.auxExists(id.Aux)
		attr.Mode = S_IFREG | 0644
		attr.Size = uint64(size)
		return
	}
	// Region files always claim their full virtual extent; a zero
	// size would make the server treat the file as empty on its
	// very first read.
	attr.Mode = S_IFREG | 0644
	attr.Size = anvil.VirtualFileBytes
	attr.Blocks = attr.Size / 512
}

func (self *fsOps) fillRootAttr(attr *Attr) {
	attr.Ino = rootIno
	attr.Mode = S_IFDIR | 0755
	attr.Nlink = 2
	now := uint64(self.fs.started.Unix())
	attr.Atime = now
	attr.Mtime = now
	attr.Ctime = now
}

func (self *fsOps) Lookup(header *InHeader, name string, out *EntryOut) Status {
	if header.NodeId != rootIno {
		return ENOTDIR
	}
	mlog.Printf2("fs/ops", "ops.Lookup %q", name)
	if region, ok := anvil.ParseRegionFileName(name); ok {
		ino := self.fs.inodes.InoForRegion(region)
		out.NodeId = ino
		self.fillAttr(ino, fileIdentity{Region: region}, &out.Attr)
		out.SetEntryTimeout(attrTimeout)
		out.SetAttrTimeout(attrTimeout)
		return OK
	}
	if _, ok := self.fs.auxExists(name); !ok {
		return ENOENT
	}
	ino, id := self.fs.inodes.InoForName(name)
	out.NodeId = ino
	self.fillAttr(ino, id, &out.Attr)
	out.SetEntryTimeout(attrTimeout)
	out.SetAttrTimeout(attrTimeout)
	return OK
}

func (self *fsOps) Forget(nodeID, nlookup uint64) {
	// Inode numbers are stable for the mount lifetime; nothing to
	// reclaim.
}

func (self *fsOps) GetAttr(input *GetAttrIn, out *AttrOut) Status {
	if input.NodeId == rootIno {
		self.fillRootAttr(&out.Attr)
		out.SetTimeout(attrTimeout)
		return OK
	}
	id, ok := self.fs.inodes.Resolve(input.NodeId)
	if !ok {
		return ENOENT
	}
	self.fillAttr(input.NodeId, id, &out.Attr)
	out.SetTimeout(attrTimeout)
	return OK
}

// SetAttr accepts everything and changes nothing; region file
// metadata is derived, and the server's occasional truncate/utimens
// must not fail.
func (self *fsOps) SetAttr(input *SetAttrIn, out *AttrOut) Status {
	if input.NodeId == rootIno {
		self.fillRootAttr(&out.Attr)
		return OK
	}
	id, ok := self.fs.inodes.Resolve(input.NodeId)
	if !ok {
		return ENOENT
	}
	self.fillAttr(input.NodeId, id, &out.Attr)
	return OK
}

func (self *fsOps) Open(input *OpenIn, out *OpenOut) Status {
	id, ok := self.fs.inodes.Resolve(input.NodeId)
	if !ok {
		return ENOENT
	}
	if id.Aux == "" {
		mlog.Printf2("fs/ops", "ops.Open region %v", id.Region)
		self.fs.openRegion(id.Region)
	}
	out.OpenFlags = FOPEN_KEEP_CACHE
	return OK
}

func (self *fsOps) Release(input *ReleaseIn) {
	id, ok := self.fs.inodes.Resolve(input.NodeId)
	if !ok || id.Aux != "" {
		return
	}
	self.fs.releaseRegion(id.Region)
}

func (self *fsOps) Read(input *ReadIn, buf []byte) (ReadResult, Status) {
	id, ok := self.fs.inodes.Resolve(input.NodeId)
	if !ok {
		return nil, ENOENT
	}
	if id.Aux != "" {
		data := self.fs.auxRead(id.Aux)
		if input.Offset >= uint64(len(data)) {
			return ReadResultData(nil), OK
		}
		data = data[input.Offset:]
		if uint64(len(data)) > uint64(input.Size) {
			data = data[:input.Size]
		}
		return ReadResultData(data), OK
	}
	vf := self.fs.regionFile(id.Region)
	if vf == nil {
		// Read without open; serve it anyway.
		vf = self.fs.openRegion(id.Region)
		defer self.fs.releaseRegion(id.Region)
	}
	n, err := vf.ReadAt(buf[:input.Size], input.Offset)
	if err != nil {
		log.Printf("read %v@%d: %v", id.Region, input.Offset, err)
		return nil, EIO
	}
	return ReadResultData(buf[:n]), OK
}

func (self *fsOps) Write(input *WriteIn, data []byte) (uint32, Status) {
	id, ok := self.fs.inodes.Resolve(input.NodeId)
	if !ok {
		return 0, ENOENT
	}
	if id.Aux != "" {
		// Auxiliary files accept and retain everything so the
		// server never observes an I/O error on them.
		self.fs.auxWrite(id.Aux, data, input.Offset)
		return uint32(len(data)), OK
	}
	vf := self.fs.regionFile(id.Region)
	if vf == nil {
		vf = self.fs.openRegion(id.Region)
		defer self.fs.releaseRegion(id.Region)
	}
	n, err := vf.WriteAt(data, input.Offset)
	if err != nil {
		return 0, EIO
	}
	return uint32(n), OK
}

func (self *fsOps) Create(input *CreateIn, name string, out *CreateOut) Status {
	if input.NodeId != rootIno {
		return ENOTDIR
	}
	mlog.Printf2("fs/ops", "ops.Create %q", name)
	if _, ok := anvil.ParseRegionFileName(name); !ok {
		self.fs.auxTouch(name)
	}
	ino, id := self.fs.inodes.InoForName(name)
	if id.Aux == "" {
		self.fs.openRegion(id.Region)
	}
	out.NodeId = ino
	self.fillAttr(ino, id, &out.Attr)
	out.SetEntryTimeout(attrTimeout)
	out.SetAttrTimeout(attrTimeout)
	out.OpenFlags = FOPEN_KEEP_CACHE
	return OK
}

// The namespace is flat and derived; anything that would reshape it is
// refused outright.
func (self *fsOps) Mkdir(input *MkdirIn, name string, out *EntryOut) Status {
	return EPERM
}

func (self *fsOps) Rmdir(header *InHeader, name string) Status {
	return EPERM
}

func (self *fsOps) Rename(input *RenameIn, oldName, newName string) Status {
	return EPERM
}

func (self *fsOps) Link(input *LinkIn, filename string, out *EntryOut) Status {
	return EPERM
}

func (self *fsOps) Symlink(header *InHeader, pointedTo, linkName string, out *EntryOut) Status {
	return EPERM
}

func (self *fsOps) Mknod(input *MknodIn, name string, out *EntryOut) Status {
	return EPERM
}

// Unlink succeeds without deleting anything: region content lives in
// storage, and auxiliary files are forgotten.
func (self *fsOps) Unlink(header *InHeader, name string) Status {
	if header.NodeId != rootIno {
		return ENOTDIR
	}
	mlog.Printf2("fs/ops", "ops.Unlink %q", name)
	if _, ok := anvil.ParseRegionFileName(name); !ok {
		self.fs.auxForget(name)
	}
	return OK
}

func (self *fsOps) OpenDir(input *OpenIn, out *OpenOut) Status {
	if input.NodeId != rootIno {
		return ENOTDIR
	}
	return OK
}

func (self *fsOps) ReadDir(input *ReadIn, l *DirEntryList) Status {
	if input.NodeId != rootIno {
		return ENOTDIR
	}
	names := self.fs.DirNames()
	for i := int(input.Offset); i < len(names); i++ {
		ino, _ := self.fs.inodes.InoForName(names[i])
		if !l.AddDirEntry(DirEntry{Mode: S_IFREG, Name: names[i], Ino: ino}) {
			break
		}
	}
	return OK
}

func (self *fsOps) ReadDirPlus(input *ReadIn, l *DirEntryList) Status {
	if input.NodeId != rootIno {
		return ENOTDIR
	}
	names := self.fs.DirNames()
	for i := int(input.Offset); i < len(names); i++ {
		ino, id := self.fs.inodes.InoForName(names[i])
		e := l.AddDirLookupEntry(DirEntry{Mode: S_IFREG, Name: names[i], Ino: ino})
		if e == nil {
			break
		}
		e.NodeId = ino
		self.fillAttr(ino, id, &e.Attr)
	}
	return OK
}

func (self *fsOps) ReleaseDir(input *ReleaseIn) {
}

func (self *fsOps) Access(input *AccessIn) Status {
	return OK
}

func (self *fsOps) Flush(input *FlushIn) Status {
	return OK
}

// Fsync is acknowledged immediately; durability is storage's problem
// and the caller cannot do anything useful with a failure here.
func (self *fsOps) Fsync(input *FsyncIn) Status {
	return OK
}

func (self *fsOps) FsyncDir(input *FsyncIn) Status {
	return OK
}

func (self *fsOps) StatFs(input *InHeader, out *StatfsOut) Status {
	out.Bsize = anvil.SectorBytes
	out.Frsize = anvil.SectorBytes
	out.NameLen = 255
	if used, ok := self.fs.backend.TotalSizeBytes(); ok {
		blocks := used / anvil.SectorBytes
		out.Blocks = blocks * 2
		out.Bfree = blocks
		out.Bavail = blocks
	}
	return OK
}
