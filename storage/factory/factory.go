/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Mon Mar 11 07:55:10 2019 mstenber
 * Last modified: Wed Apr  3 10:06:41 2019 mstenber
 * Edit time:     39 min
 *
 */

package factory

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/fingon/go-anvilfs/mlog"
	"github.com/fingon/go-anvilfs/storage"
	"github.com/fingon/go-anvilfs/storage/badgerdb"
	"github.com/fingon/go-anvilfs/storage/boltdb"
	"github.com/fingon/go-anvilfs/storage/discard"
	"github.com/fingon/go-anvilfs/storage/memory"
	"github.com/fingon/go-anvilfs/storage/pg"
)

// Config carries everything any backend might want; each backend
// picks the fields it cares about.
type Config struct {
	// Directory for file-based stores (badger), or database file
	// path (bolt).
	Directory string

	// Conn is the Postgres connection string.
	Conn string

	// Password enables value encryption on KV backends when
	// non-empty. Salt defaults if left empty.
	Password string
	Salt     string
}

type factoryCallback func(config Config) (storage.Backend, error)

var backendFactories = map[string]factoryCallback{
	"discard": func(config Config) (storage.Backend, error) {
		return discard.NewDiscardBackend(), nil
	},
	"memory": func(config Config) (storage.Backend, error) {
		return memory.NewMemoryBackend(), nil
	},
	"badger": func(config Config) (storage.Backend, error) {
		return badgerdb.NewBadgerBackend(config.Directory, newCodec(config))
	},
	"bolt": func(config Config) (storage.Backend, error) {
		return boltdb.NewBoltBackend(config.Directory, newCodec(config))
	},
	"pg-raw": func(config Config) (storage.Backend, error) {
		return pg.NewPgBackend(config.Conn, pg.Binary)
	},
	"pg-json": func(config Config) (storage.Backend, error) {
		return pg.NewPgBackend(config.Conn, pg.Structured)
	}}

func List() []string {
	keys := make([]string, 0, len(backendFactories))
	for k := range backendFactories {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func New(name string, config Config) (storage.Backend, error) {
	mlog.Printf2("storage/factory/factory", "f.New %v %v", name, config.Directory)
	cb, ok := backendFactories[name]
	if !ok {
		return nil, errors.Errorf("unknown storage backend %q (have %v)",
			name, List())
	}
	return cb(config)
}

func newCodec(config Config) storage.CodecChain {
	var chain storage.CodecChain
	chain = append(chain, storage.SnappyCodec{})
	if config.Password != "" {
		mlog.Printf2("storage/factory/factory", " with encryption")
		salt := config.Salt
		if salt == "" {
			salt = "anvilfs"
		}
		chain = append(chain,
			storage.NewAESCodec([]byte(config.Password), []byte(salt)))
	}
	return chain
}
