/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Thu Apr  4 16:12:44 2019 mstenber
 * Last modified: Thu Apr  4 16:58:03 2019 mstenber
 * Edit time:     31 min
 *
 */

package pg

import (
	"os"
	"testing"

	"github.com/stvp/assert"

	"github.com/fingon/go-anvilfs/anvil"
	"github.com/fingon/go-anvilfs/nbt"
	"github.com/fingon/go-anvilfs/storage/memory"
)

// pgConn returns the test database connection string, or skips: these
// tests need a live server.
func pgConn(t *testing.T) string {
	conn := os.Getenv("ANVILFS_PG_TEST")
	if conn == "" {
		t.Skip("set ANVILFS_PG_TEST to a connection string to run")
	}
	return conn
}

func sampleBlob(t *testing.T, rootName string) []byte {
	root := nbt.NewCompound().
		Set("xPos", nbt.Int(5)).
		Set("zPos", nbt.Int(-3)).
		Set("marker", nbt.String("doc round trip"))
	raw, err := nbt.Marshal(root, rootName)
	assert.Nil(t, err)
	blob, err := anvil.WrapChunk(raw, anvil.SchemeZlib)
	assert.Nil(t, err)
	return blob
}

// The document form carries neither framing nor the root name; both
// must survive the trip through the side columns.
func TestDocumentRoundTrip(t *testing.T) {
	t.Parallel()
	for _, rootName := range []string{"", "Level"} {
		blob := sampleBlob(t, rootName)
		doc, scheme, gotName, err := blobToDocument(blob)
		assert.Nil(t, err)
		assert.Equal(t, scheme, anvil.SchemeZlib)
		assert.Equal(t, gotName, rootName)

		back, err := documentToBlob(doc, scheme, gotName)
		assert.Nil(t, err)

		raw, scheme2, err := anvil.UnwrapChunk(back)
		assert.Nil(t, err)
		assert.Equal(t, scheme2, anvil.SchemeZlib)
		root, name, err := nbt.Unmarshal(raw)
		assert.Nil(t, err)
		assert.Equal(t, name, rootName)
		v, ok := root.Get("marker")
		assert.True(t, ok)
		assert.Equal(t, v, nbt.String("doc round trip"))
	}
}

func TestDocumentRejectsGarbage(t *testing.T) {
	t.Parallel()
	_, _, _, err := blobToDocument([]byte("not a blob"))
	assert.True(t, err != nil)
	_, err = documentToBlob([]byte(`"just a string"`), anvil.SchemeZlib, "")
	assert.True(t, err != nil)
}

func TestPgBinaryBackend(t *testing.T) {
	conn := pgConn(t)
	be, err := NewPgBackend(conn, Binary)
	assert.Nil(t, err)
	defer be.Close()
	memory.ProdBackend(t, be)
}

func TestPgStructuredBackend(t *testing.T) {
	conn := pgConn(t)
	be, err := NewPgBackend(conn, Structured)
	assert.Nil(t, err)
	defer be.Close()

	c := anvil.ChunkCoord{X: 17, Z: -21}
	defer be.Delete(c)
	blob := sampleBlob(t, "Level")
	assert.Nil(t, be.Save(c, blob))

	got, err := be.Load(c)
	assert.Nil(t, err)
	raw, scheme, err := anvil.UnwrapChunk(got)
	assert.Nil(t, err)
	assert.Equal(t, scheme, anvil.SchemeZlib)
	_, name, err := nbt.Unmarshal(raw)
	assert.Nil(t, err)
	assert.Equal(t, name, "Level")
}
