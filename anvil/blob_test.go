/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Sat Mar  9 12:20:08 2019 mstenber
 * Last modified: Thu Apr  4 13:10:41 2019 mstenber
 * Edit time:     27 min
 *
 */

package anvil

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stvp/assert"
)

func TestBlobRoundTrip(t *testing.T) {
	t.Parallel()
	payload := bytes.Repeat([]byte("region emulation "), 100)
	for _, scheme := range []Scheme{SchemeNone, SchemeGzip, SchemeZlib, SchemeLZ4} {
		blob, err := WrapChunk(payload, scheme)
		assert.Nil(t, err)

		n, err := BlobLen(blob)
		assert.Nil(t, err)
		assert.Equal(t, n, len(blob))

		raw, got, err := UnwrapChunk(blob)
		assert.Nil(t, err)
		assert.Equal(t, got, scheme)
		assert.Equal(t, raw, payload)
	}
}

func TestBlobCompresses(t *testing.T) {
	t.Parallel()
	payload := bytes.Repeat([]byte{0}, 100000)
	blob, err := WrapChunk(payload, SchemeZlib)
	assert.Nil(t, err)
	assert.True(t, len(blob) < len(payload)/10)
}

func TestBlobMalformed(t *testing.T) {
	t.Parallel()
	_, _, err := UnwrapChunk(nil)
	assert.True(t, err != nil)

	_, _, err = UnwrapChunk([]byte{0, 0, 0})
	assert.True(t, err != nil)

	// Unknown compression tag.
	blob := []byte{0, 0, 0, 2, 99, 42}
	_, _, err = UnwrapChunk(blob)
	assert.True(t, err != nil)

	// Length prefix pointing past the buffer.
	blob, err = WrapChunk([]byte("hi"), SchemeNone)
	assert.Nil(t, err)
	binary.BigEndian.PutUint32(blob, 10000)
	_, _, err = UnwrapChunk(blob)
	assert.True(t, err != nil)
	_, err = BlobLen(blob)
	assert.True(t, err != nil)

	// Truncated zlib payload.
	blob, err = WrapChunk(bytes.Repeat([]byte("x"), 1000), SchemeZlib)
	assert.Nil(t, err)
	cut := blob[:len(blob)-5]
	binary.BigEndian.PutUint32(cut, uint32(len(cut)-4))
	_, _, err = UnwrapChunk(cut)
	assert.True(t, err != nil)
}

func TestParseScheme(t *testing.T) {
	t.Parallel()
	s, err := ParseScheme("zlib")
	assert.Nil(t, err)
	assert.Equal(t, s, SchemeZlib)
	_, err = ParseScheme("brotli")
	assert.True(t, err != nil)
}
