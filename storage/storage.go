/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Fri Mar  8 09:22:31 2019 mstenber
 * Last modified: Sat Mar 30 11:40:55 2019 mstenber
 * Edit time:     142 min
 *
 */

// storage package defines the persistence abstraction for chunk
// blobs, keyed by coordinate. Backends live in subpackages; the
// factory package maps configuration names to constructors.
package storage

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/fingon/go-anvilfs/anvil"
)

// ErrUnavailable marks a backend that is unreachable or timed out.
// The read path treats it as a miss and regenerates; the write path
// logs, acknowledges and drops.
var ErrUnavailable = errors.New("storage unavailable")

// ErrRejected marks a backend that was reachable but refused the
// operation (e.g. a constraint violation). Writes fail visibly.
var ErrRejected = errors.New("storage rejected operation")

func IsUnavailable(err error) bool {
	return errors.Cause(err) == ErrUnavailable
}

func IsRejected(err error) bool {
	return errors.Cause(err) == ErrRejected
}

// Backend persists chunk blobs (wire form: length prefix, scheme tag,
// payload). Implementations are safe for concurrent use; same-key
// races are last-writer-wins.
type Backend interface {
	// Close releases the backend's resources.
	Close()

	// Load returns the stored blob, or (nil, nil) when absent.
	Load(coord anvil.ChunkCoord) ([]byte, error)

	// Save stores the blob, replacing any previous version.
	Save(coord anvil.ChunkCoord, blob []byte) error

	// Exists reports presence without fetching the blob.
	Exists(coord anvil.ChunkCoord) (bool, error)

	// Delete removes the chunk; deleting an absent chunk is not an
	// error.
	Delete(coord anvil.ChunkCoord) error

	// Present returns the sorted local indexes of the region's
	// chunks held by this backend. Used to rebuild region headers.
	Present(region anvil.RegionCoord) ([]int, error)

	// TotalSizeBytes reports the backend's persisted size; ok is
	// false for backends where the question is meaningless.
	TotalSizeBytes() (size uint64, ok bool)
}

// CoordKey encodes a coordinate into a 10-byte key: zig-zag region X,
// zig-zag region Z (4 bytes each, big-endian), then the local index.
// Region-major layout makes Present a prefix scan on KV backends.
func CoordKey(coord anvil.ChunkCoord) []byte {
	k := make([]byte, 10)
	r := coord.Region()
	binary.BigEndian.PutUint32(k, zigzag32(r.X))
	binary.BigEndian.PutUint32(k[4:], zigzag32(r.Z))
	binary.BigEndian.PutUint16(k[8:], uint16(coord.LocalIndex()))
	return k
}

// RegionPrefix returns the 8-byte key prefix shared by all chunks of
// one region.
func RegionPrefix(region anvil.RegionCoord) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint32(k, zigzag32(region.X))
	binary.BigEndian.PutUint32(k[4:], zigzag32(region.Z))
	return k
}

// LocalIndexFromKey recovers the local index from a CoordKey.
func LocalIndexFromKey(key []byte) (int, bool) {
	if len(key) != 10 {
		return 0, false
	}
	index := int(binary.BigEndian.Uint16(key[8:]))
	if index >= anvil.ChunksPerRegion {
		return 0, false
	}
	return index, true
}

func zigzag32(v int32) uint32 {
	return uint32((v << 1) ^ (v >> 31))
}
