/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Sun Mar 10 12:30:44 2019 mstenber
 * Last modified: Wed Apr  3 09:51:27 2019 mstenber
 * Edit time:     203 min
 *
 */

// pg package persists chunks in Postgres, one row per coordinate.
// Two modes: Binary keeps the wire blob in a BYTEA column;
// Structured decodes the tag tree and keeps it as JSONB, trading CPU
// for queryability of the persisted content.
package pg

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/fingon/go-anvilfs/anvil"
	"github.com/fingon/go-anvilfs/mlog"
	"github.com/fingon/go-anvilfs/nbt"
	"github.com/fingon/go-anvilfs/nbt/nbtjson"
	"github.com/fingon/go-anvilfs/storage"
)

// Mode selects the persisted column shape.
type Mode int

const (
	Binary Mode = iota
	Structured
)

// opTimeout bounds every statement so a dead database degrades to the
// miss/acknowledge policy instead of hanging worker threads.
const opTimeout = 5 * time.Second

const binarySchema = `
CREATE TABLE IF NOT EXISTS chunks_raw (
    x INT NOT NULL,
    z INT NOT NULL,
    scheme SMALLINT NOT NULL,
    data BYTEA NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (x, z)
);`

const structuredSchema = `
CREATE TABLE IF NOT EXISTS chunks_doc (
    x INT NOT NULL,
    z INT NOT NULL,
    scheme SMALLINT NOT NULL,
    root TEXT NOT NULL DEFAULT '',
    data JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (x, z)
);
CREATE INDEX IF NOT EXISTS idx_chunks_doc_data ON chunks_doc USING GIN (data);`

type pgBackend struct {
	db     *sqlx.DB
	mode   Mode
	table  string
	digest storage.DigestCache
}

var _ storage.Backend = &pgBackend{}

func NewPgBackend(conn string, mode Mode) (storage.Backend, error) {
	db, err := sqlx.Connect("postgres", conn)
	if err != nil {
		return nil, errors.Wrapf(storage.ErrUnavailable, "pg connect: %v", err)
	}
	self := &pgBackend{db: db, mode: mode, table: "chunks_raw"}
	schema := binarySchema
	if mode == Structured {
		self.table = "chunks_doc"
		schema = structuredSchema
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, classify(err, "pg schema init")
	}
	return self, nil
}

// classify maps driver errors to the storage taxonomy: a reachable
// server that refused us is a rejection, anything else (network,
// timeout) is unavailability.
func classify(err error, what string) error {
	if err == nil {
		return nil
	}
	if pqerr, ok := err.(*pq.Error); ok {
		return errors.Wrapf(storage.ErrRejected, "%s: %v", what, pqerr)
	}
	return errors.Wrapf(storage.ErrUnavailable, "%s: %v", what, err)
}

func (self *pgBackend) Close() {
	if err := self.db.Close(); err != nil {
		log.Printf("pg close: %v", err)
	}
}

func (self *pgBackend) Load(coord anvil.ChunkCoord) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if self.mode == Binary {
		var data []byte
		err := self.db.GetContext(ctx, &data,
			`SELECT data FROM `+self.table+` WHERE x = $1 AND z = $2`,
			coord.X, coord.Z)
		if err == sql.ErrNoRows {
			return nil, nil
		}
		if err != nil {
			return nil, classify(err, "pg load")
		}
		mlog.Printf2("storage/pg/pg", "pg.Load %v: %d bytes raw", coord, len(data))
		return data, nil
	}
	var row struct {
		Scheme int16  `db:"scheme"`
		Root   string `db:"root"`
		Data   []byte `db:"data"`
	}
	err := self.db.GetContext(ctx, &row,
		`SELECT scheme, root, data FROM `+self.table+` WHERE x = $1 AND z = $2`,
		coord.X, coord.Z)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err, "pg load")
	}
	blob, err := documentToBlob(row.Data, anvil.Scheme(row.Scheme), row.Root)
	if err != nil {
		// An unrestorable document is operationally the same as
		// data that was never persisted.
		return nil, err
	}
	mlog.Printf2("storage/pg/pg", "pg.Load %v: %d bytes from document", coord, len(blob))
	return blob, nil
}

func (self *pgBackend) Save(coord anvil.ChunkCoord, blob []byte) error {
	if self.digest.Unchanged(coord, blob) {
		mlog.Printf2("storage/pg/pg", "pg.Save %v unchanged, skipped", coord)
		return nil
	}
	scheme := anvil.SchemeNone
	data := blob
	rootName := ""
	if self.mode == Structured {
		var err error
		data, scheme, rootName, err = blobToDocument(blob)
		if err != nil {
			self.digest.Forget(coord)
			return err
		}
	} else if len(blob) > 4 {
		scheme = anvil.Scheme(blob[4])
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	var err error
	if self.mode == Structured {
		_, err = self.db.ExecContext(ctx,
			`INSERT INTO `+self.table+` (x, z, scheme, root, data, updated_at)
			 VALUES ($1, $2, $3, $4, $5, NOW())
			 ON CONFLICT (x, z) DO UPDATE SET scheme = $3, root = $4, data = $5, updated_at = NOW()`,
			coord.X, coord.Z, int16(scheme), rootName, data)
	} else {
		_, err = self.db.ExecContext(ctx,
			`INSERT INTO `+self.table+` (x, z, scheme, data, updated_at)
			 VALUES ($1, $2, $3, $4, NOW())
			 ON CONFLICT (x, z) DO UPDATE SET scheme = $3, data = $4, updated_at = NOW()`,
			coord.X, coord.Z, int16(scheme), data)
	}
	if err != nil {
		self.digest.Forget(coord)
		return classify(err, "pg save")
	}
	mlog.Printf2("storage/pg/pg", "pg.Save %v: %d bytes", coord, len(data))
	return nil
}

func (self *pgBackend) Exists(coord anvil.ChunkCoord) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	var one int
	err := self.db.GetContext(ctx, &one,
		`SELECT 1 FROM `+self.table+` WHERE x = $1 AND z = $2`,
		coord.X, coord.Z)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, classify(err, "pg exists")
	}
	return true, nil
}

func (self *pgBackend) Delete(coord anvil.ChunkCoord) error {
	self.digest.Forget(coord)
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	_, err := self.db.ExecContext(ctx,
		`DELETE FROM `+self.table+` WHERE x = $1 AND z = $2`,
		coord.X, coord.Z)
	if err != nil {
		return classify(err, "pg delete")
	}
	return nil
}

func (self *pgBackend) Present(region anvil.RegionCoord) ([]int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	x0 := int32(region.X) * anvil.RegionSize
	z0 := int32(region.Z) * anvil.RegionSize
	rows, err := self.db.QueryxContext(ctx,
		`SELECT x, z FROM `+self.table+`
		 WHERE x >= $1 AND x < $2 AND z >= $3 AND z < $4
		 ORDER BY z, x`,
		x0, x0+anvil.RegionSize, z0, z0+anvil.RegionSize)
	if err != nil {
		return nil, classify(err, "pg present")
	}
	defer rows.Close()
	var present []int
	for rows.Next() {
		var x, z int32
		if err := rows.Scan(&x, &z); err != nil {
			return nil, classify(err, "pg present scan")
		}
		present = append(present, anvil.ChunkCoord{X: x, Z: z}.LocalIndex())
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "pg present rows")
	}
	return present, nil
}

func (self *pgBackend) TotalSizeBytes() (uint64, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	var size int64
	err := self.db.GetContext(ctx, &size,
		`SELECT pg_total_relation_size($1)`, self.table)
	if err != nil {
		return 0, false
	}
	return uint64(size), true
}

// blobToDocument unwraps a wire blob into its JSON document form,
// remembering the original compression scheme and root name for the
// return trip; the JSON form has no place for either.
func blobToDocument(blob []byte) (doc []byte, scheme anvil.Scheme, rootName string, err error) {
	raw, scheme, err := anvil.UnwrapChunk(blob)
	if err != nil {
		return nil, 0, "", errors.Wrapf(storage.ErrRejected, "unwrap: %v", err)
	}
	root, rootName, err := nbt.Unmarshal(raw)
	if err != nil {
		return nil, 0, "", errors.Wrapf(storage.ErrRejected, "decode tree: %v", err)
	}
	doc, err = nbtjson.Marshal(root)
	if err != nil {
		return nil, 0, "", errors.Wrapf(storage.ErrRejected, "to document: %v", err)
	}
	return doc, scheme, rootName, nil
}

// documentToBlob is the inverse: restore the tree, re-serialize under
// the stored root name, and re-frame with the stored compression
// scheme.
func documentToBlob(doc []byte, scheme anvil.Scheme, rootName string) ([]byte, error) {
	v, err := nbtjson.Unmarshal(doc)
	if err != nil {
		return nil, err
	}
	root, ok := v.(*nbt.Compound)
	if !ok {
		return nil, errors.Wrap(nbtjson.ErrConversion,
			"document root is not a compound")
	}
	raw, err := nbt.Marshal(root, rootName)
	if err != nil {
		return nil, err
	}
	return anvil.WrapChunk(raw, scheme)
}
