/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Sun Mar  3 14:20:18 2019 mstenber
 * Last modified: Sat Mar 23 13:02:09 2019 mstenber
 * Edit time:     127 min
 *
 */

package anvil

import (
	"bytes"
	"encoding/binary"
	"io/ioutil"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/pierrec/lz4"
	"github.com/pkg/errors"
)

// Scheme is the 1-byte compression scheme tag inside a chunk blob.
// These are wire constants; changing them breaks the container format.
type Scheme uint8

const (
	SchemeNone Scheme = 0
	SchemeGzip Scheme = 1
	SchemeZlib Scheme = 2
	SchemeLZ4  Scheme = 3
)

func (self Scheme) String() string {
	switch self {
	case SchemeNone:
		return "none"
	case SchemeGzip:
		return "gzip"
	case SchemeZlib:
		return "zlib"
	case SchemeLZ4:
		return "lz4"
	}
	return "invalid"
}

// ParseScheme maps a configuration string to a Scheme.
func ParseScheme(name string) (Scheme, error) {
	switch name {
	case "none":
		return SchemeNone, nil
	case "gzip":
		return SchemeGzip, nil
	case "zlib", "":
		return SchemeZlib, nil
	case "lz4":
		return SchemeLZ4, nil
	}
	return 0, errors.Errorf("unknown compression scheme %q", name)
}

// ErrMalformedBlob is returned for truncated or otherwise unusable
// chunk blobs.
var ErrMalformedBlob = errors.New("malformed chunk blob")

// blobHeaderLen is the 4-byte big-endian length prefix plus the scheme
// tag byte. The length prefix covers the tag byte and the payload.
const blobHeaderLen = 5

// WrapChunk frames raw chunk content into the wire blob: length
// prefix, scheme tag, compressed payload.
func WrapChunk(raw []byte, scheme Scheme) ([]byte, error) {
	var payload []byte
	switch scheme {
	case SchemeNone:
		payload = raw
	case SchemeGzip:
		var b bytes.Buffer
		w := gzip.NewWriter(&b)
		if _, err := w.Write(raw); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		payload = b.Bytes()
	case SchemeZlib:
		var b bytes.Buffer
		w := zlib.NewWriter(&b)
		if _, err := w.Write(raw); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		payload = b.Bytes()
	case SchemeLZ4:
		var b bytes.Buffer
		w := lz4.NewWriter(&b)
		if _, err := w.Write(raw); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		payload = b.Bytes()
	default:
		return nil, errors.Wrapf(ErrMalformedBlob, "scheme %d", scheme)
	}
	blob := make([]byte, blobHeaderLen+len(payload))
	binary.BigEndian.PutUint32(blob, uint32(len(payload)+1))
	blob[4] = byte(scheme)
	copy(blob[blobHeaderLen:], payload)
	return blob, nil
}

// UnwrapChunk reverses WrapChunk. The blob may carry trailing sector
// padding past the declared length; it is ignored.
func UnwrapChunk(blob []byte) (raw []byte, scheme Scheme, err error) {
	if len(blob) < blobHeaderLen {
		return nil, 0, errors.Wrap(ErrMalformedBlob, "short blob")
	}
	declared := binary.BigEndian.Uint32(blob)
	if declared < 1 || uint64(declared)+4 > uint64(len(blob)) {
		return nil, 0, errors.Wrapf(ErrMalformedBlob,
			"declared %d bytes, have %d", declared, len(blob))
	}
	scheme = Scheme(blob[4])
	payload := blob[blobHeaderLen : 4+declared]
	switch scheme {
	case SchemeNone:
		raw = append([]byte(nil), payload...)
	case SchemeGzip:
		r, e := gzip.NewReader(bytes.NewReader(payload))
		if e != nil {
			return nil, scheme, errors.Wrap(ErrMalformedBlob, e.Error())
		}
		raw, e = ioutil.ReadAll(r)
		if e != nil {
			return nil, scheme, errors.Wrap(ErrMalformedBlob, e.Error())
		}
	case SchemeZlib:
		r, e := zlib.NewReader(bytes.NewReader(payload))
		if e != nil {
			return nil, scheme, errors.Wrap(ErrMalformedBlob, e.Error())
		}
		raw, e = ioutil.ReadAll(r)
		if e != nil {
			return nil, scheme, errors.Wrap(ErrMalformedBlob, e.Error())
		}
	case SchemeLZ4:
		var e error
		raw, e = ioutil.ReadAll(lz4.NewReader(bytes.NewReader(payload)))
		if e != nil {
			return nil, scheme, errors.Wrap(ErrMalformedBlob, e.Error())
		}
	default:
		return nil, scheme, errors.Wrapf(ErrMalformedBlob,
			"unknown scheme %d", scheme)
	}
	return raw, scheme, nil
}

// BlobLen returns the framed length a blob declares, without
// decompressing anything. Used to size location table entries. The
// input may carry trailing sector padding but must contain the whole
// declared frame.
func BlobLen(blob []byte) (int, error) {
	if len(blob) < blobHeaderLen {
		return 0, errors.Wrap(ErrMalformedBlob, "short blob")
	}
	declared := binary.BigEndian.Uint32(blob)
	if declared < 1 || uint64(declared)+4 > uint64(len(blob)) {
		return 0, errors.Wrapf(ErrMalformedBlob,
			"declared %d bytes, have %d", declared, len(blob))
	}
	return int(declared) + 4, nil
}
