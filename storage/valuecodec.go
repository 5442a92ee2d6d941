/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Fri Mar  8 14:05:17 2019 mstenber
 * Last modified: Sun Mar 31 09:28:40 2019 mstenber
 * Edit time:     119 min
 *
 */

package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"log"

	"github.com/golang/snappy"
	sha256 "github.com/minio/sha256-simd"
	"github.com/pkg/errors"
	"golang.org/x/crypto/pbkdf2"
)

// ValueCodec transforms blob bytes on their way into and out of a KV
// backend. Encode/Decode must be exact inverses.
type ValueCodec interface {
	Encode(data []byte) ([]byte, error)
	Decode(data []byte) ([]byte, error)
}

// CodecChain applies codecs in order on Encode and in reverse on
// Decode. An empty chain is a valid no-op.
type CodecChain []ValueCodec

func (self CodecChain) Encode(data []byte) (ret []byte, err error) {
	ret = data
	for _, c := range self {
		ret, err = c.Encode(ret)
		if err != nil {
			return nil, err
		}
	}
	return ret, nil
}

func (self CodecChain) Decode(data []byte) (ret []byte, err error) {
	ret = data
	for i := len(self) - 1; i >= 0; i-- {
		ret, err = self[i].Decode(ret)
		if err != nil {
			return nil, err
		}
	}
	return ret, nil
}

// SnappyCodec compresses values when it helps; a 1-byte marker tells
// the decoder whether the rest is compressed or plain.
type SnappyCodec struct{}

const (
	snappyPlain      = 0
	snappyCompressed = 1
)

func (SnappyCodec) Encode(data []byte) ([]byte, error) {
	compressed := snappy.Encode(nil, data)
	if len(compressed) < len(data) {
		return append([]byte{snappyCompressed}, compressed...), nil
	}
	return append([]byte{snappyPlain}, data...), nil
}

func (SnappyCodec) Decode(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("empty encoded value")
	}
	switch data[0] {
	case snappyPlain:
		return append([]byte(nil), data[1:]...), nil
	case snappyCompressed:
		return snappy.Decode(nil, data[1:])
	}
	return nil, errors.Errorf("unknown snappy marker %d", data[0])
}

// AESCodec encrypts values with AES-GCM; the key is derived from a
// password+salt with PBKDF2-SHA256. The nonce is prefixed to each
// encoded value.
type AESCodec struct {
	gcm cipher.AEAD
}

const aesIterations = 12345

func NewAESCodec(password, salt []byte) *AESCodec {
	key := pbkdf2.Key(password, salt, aesIterations, 32, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		log.Panic("aes.NewCipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		log.Panic("cipher.NewGCM", err)
	}
	return &AESCodec{gcm: gcm}
}

func (self *AESCodec) Encode(data []byte) ([]byte, error) {
	nonce := make([]byte, self.gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return self.gcm.Seal(nonce, nonce, data, nil), nil
}

func (self *AESCodec) Decode(data []byte) ([]byte, error) {
	n := self.gcm.NonceSize()
	if len(data) < n {
		return nil, errors.New("encrypted value shorter than nonce")
	}
	return self.gcm.Open(nil, data[:n], data[n:], nil)
}

// Digest is the content digest used by persistent backends to skip
// storing a payload identical to the last stored one for the same
// coordinate.
type Digest [sha256.Size]byte

func DigestOf(data []byte) Digest {
	return sha256.Sum256(data)
}
