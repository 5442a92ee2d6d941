/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Sat Mar  9 13:42:18 2019 mstenber
 * Last modified: Mon Apr  1 10:55:36 2019 mstenber
 * Edit time:     88 min
 *
 */

// badgerdb package provides the binary-blob backend on badger: blobs
// are stored verbatim (modulo the configured value codec) keyed by
// coordinate, region-major so header reconstruction is a prefix scan.
package badgerdb

import (
	"log"

	"github.com/dgraph-io/badger"
	"github.com/pkg/errors"

	"github.com/fingon/go-anvilfs/anvil"
	"github.com/fingon/go-anvilfs/mlog"
	"github.com/fingon/go-anvilfs/storage"
)

// chunkPrefix namespaces chunk keys; everything else in the db is
// free for future use.
var chunkPrefix = []byte("c")

type badgerBackend struct {
	db     *badger.DB
	codec  storage.CodecChain
	digest storage.DigestCache
}

var _ storage.Backend = &badgerBackend{}

func NewBadgerBackend(dir string, codec storage.CodecChain) (storage.Backend, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(storage.ErrUnavailable, "badger.Open %s: %v", dir, err)
	}
	return &badgerBackend{db: db, codec: codec}, nil
}

func (self *badgerBackend) Close() {
	if err := self.db.Close(); err != nil {
		log.Printf("badger close: %v", err)
	}
}

func (self *badgerBackend) key(coord anvil.ChunkCoord) []byte {
	return append(append([]byte(nil), chunkPrefix...), storage.CoordKey(coord)...)
}

func (self *badgerBackend) Load(coord anvil.ChunkCoord) ([]byte, error) {
	var value []byte
	err := self.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(self.key(coord))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(storage.ErrUnavailable, "badger load %v: %v", coord, err)
	}
	blob, err := self.codec.Decode(value)
	if err != nil {
		return nil, errors.Wrapf(storage.ErrRejected, "badger decode %v: %v", coord, err)
	}
	mlog.Printf2("storage/badgerdb/badgerdb", "bad.Load %v: %d bytes", coord, len(blob))
	return blob, nil
}

func (self *badgerBackend) Save(coord anvil.ChunkCoord, blob []byte) error {
	if self.digest.Unchanged(coord, blob) {
		mlog.Printf2("storage/badgerdb/badgerdb", "bad.Save %v unchanged, skipped", coord)
		return nil
	}
	value, err := self.codec.Encode(blob)
	if err != nil {
		self.digest.Forget(coord)
		return errors.Wrapf(storage.ErrRejected, "badger encode %v: %v", coord, err)
	}
	err = self.db.Update(func(txn *badger.Txn) error {
		return txn.Set(self.key(coord), value)
	})
	if err != nil {
		self.digest.Forget(coord)
		return errors.Wrapf(storage.ErrUnavailable, "badger save %v: %v", coord, err)
	}
	mlog.Printf2("storage/badgerdb/badgerdb", "bad.Save %v: %d bytes", coord, len(blob))
	return nil
}

func (self *badgerBackend) Exists(coord anvil.ChunkCoord) (bool, error) {
	err := self.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(self.key(coord))
		return err
	})
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(storage.ErrUnavailable, "badger exists %v: %v", coord, err)
	}
	return true, nil
}

func (self *badgerBackend) Delete(coord anvil.ChunkCoord) error {
	self.digest.Forget(coord)
	err := self.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(self.key(coord))
	})
	if err != nil {
		return errors.Wrapf(storage.ErrUnavailable, "badger delete %v: %v", coord, err)
	}
	return nil
}

func (self *badgerBackend) Present(region anvil.RegionCoord) ([]int, error) {
	prefix := append(append([]byte(nil), chunkPrefix...), storage.RegionPrefix(region)...)
	var present []int
	err := self.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().Key()
			if index, ok := storage.LocalIndexFromKey(key[len(chunkPrefix):]); ok {
				present = append(present, index)
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(storage.ErrUnavailable, "badger scan %v: %v", region, err)
	}
	return present, nil
}

func (self *badgerBackend) TotalSizeBytes() (uint64, bool) {
	lsm, vlog := self.db.Size()
	return uint64(lsm + vlog), true
}
