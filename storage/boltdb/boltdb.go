/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Sat Mar  9 16:10:05 2019 mstenber
 * Last modified: Mon Apr  1 11:32:29 2019 mstenber
 * Edit time:     71 min
 *
 */

// boltdb package is the binary-blob backend on bbolt: a single
// "chunks" bucket keyed by coordinate, region-major. Simpler and
// slower than badger; handy when one file on disk is worth more than
// throughput.
package boltdb

import (
	"bytes"
	"log"
	"os"

	bbolt "go.etcd.io/bbolt"
	"github.com/pkg/errors"

	"github.com/fingon/go-anvilfs/anvil"
	"github.com/fingon/go-anvilfs/mlog"
	"github.com/fingon/go-anvilfs/storage"
)

var chunksBucket = []byte("chunks")

type boltBackend struct {
	db     *bbolt.DB
	codec  storage.CodecChain
	digest storage.DigestCache
}

var _ storage.Backend = &boltBackend{}

func NewBoltBackend(path string, codec storage.CodecChain) (storage.Backend, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, errors.Wrapf(storage.ErrUnavailable, "bbolt.Open %s: %v", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(chunksBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrapf(storage.ErrUnavailable, "bbolt bucket: %v", err)
	}
	return &boltBackend{db: db, codec: codec}, nil
}

func (self *boltBackend) Close() {
	if err := self.db.Close(); err != nil {
		log.Printf("bbolt close: %v", err)
	}
}

func (self *boltBackend) Load(coord anvil.ChunkCoord) ([]byte, error) {
	var value []byte
	err := self.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(chunksBucket).Get(storage.CoordKey(coord))
		if v != nil {
			value = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(storage.ErrUnavailable, "bbolt load %v: %v", coord, err)
	}
	if value == nil {
		return nil, nil
	}
	blob, err := self.codec.Decode(value)
	if err != nil {
		return nil, errors.Wrapf(storage.ErrRejected, "bbolt decode %v: %v", coord, err)
	}
	mlog.Printf2("storage/boltdb/boltdb", "bolt.Load %v: %d bytes", coord, len(blob))
	return blob, nil
}

func (self *boltBackend) Save(coord anvil.ChunkCoord, blob []byte) error {
	if self.digest.Unchanged(coord, blob) {
		mlog.Printf2("storage/boltdb/boltdb", "bolt.Save %v unchanged, skipped", coord)
		return nil
	}
	value, err := self.codec.Encode(blob)
	if err != nil {
		self.digest.Forget(coord)
		return errors.Wrapf(storage.ErrRejected, "bbolt encode %v: %v", coord, err)
	}
	err = self.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(chunksBucket).Put(storage.CoordKey(coord), value)
	})
	if err != nil {
		self.digest.Forget(coord)
		return errors.Wrapf(storage.ErrUnavailable, "bbolt save %v: %v", coord, err)
	}
	mlog.Printf2("storage/boltdb/boltdb", "bolt.Save %v: %d bytes", coord, len(blob))
	return nil
}

func (self *boltBackend) Exists(coord anvil.ChunkCoord) (bool, error) {
	var found bool
	err := self.db.View(func(tx *bbolt.Tx) error {
		found = tx.Bucket(chunksBucket).Get(storage.CoordKey(coord)) != nil
		return nil
	})
	if err != nil {
		return false, errors.Wrapf(storage.ErrUnavailable, "bbolt exists %v: %v", coord, err)
	}
	return found, nil
}

func (self *boltBackend) Delete(coord anvil.ChunkCoord) error {
	self.digest.Forget(coord)
	err := self.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(chunksBucket).Delete(storage.CoordKey(coord))
	})
	if err != nil {
		return errors.Wrapf(storage.ErrUnavailable, "bbolt delete %v: %v", coord, err)
	}
	return nil
}

func (self *boltBackend) Present(region anvil.RegionCoord) ([]int, error) {
	prefix := storage.RegionPrefix(region)
	var present []int
	err := self.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(chunksBucket).Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			if index, ok := storage.LocalIndexFromKey(k); ok {
				present = append(present, index)
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(storage.ErrUnavailable, "bbolt scan %v: %v", region, err)
	}
	return present, nil
}

func (self *boltBackend) TotalSizeBytes() (uint64, bool) {
	fi, err := os.Stat(self.db.Path())
	if err != nil {
		return 0, false
	}
	return uint64(fi.Size()), true
}
