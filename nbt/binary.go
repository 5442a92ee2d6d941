/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Mon Mar  4 10:42:55 2019 mstenber
 * Last modified: Wed Mar 27 09:17:30 2019 mstenber
 * Edit time:     204 min
 *
 */

package nbt

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

// maxDepth bounds nesting so corrupt input cannot blow the stack.
const maxDepth = 512

// Marshal encodes a named root compound into the binary wire form.
// A list whose items disagree with its element tag cannot be
// represented on the wire and is an error.
func Marshal(root *Compound, rootName string) ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte(byte(TagCompound))
	writeString(&b, rootName)
	if err := writePayload(&b, root); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// Unmarshal decodes a binary document produced by Marshal (or by any
// conforming writer).
func Unmarshal(data []byte) (root *Compound, rootName string, err error) {
	r := &reader{data: data}
	t := r.u8()
	if Tag(t) != TagCompound {
		return nil, "", errors.Wrapf(ErrMalformed, "root tag %d", t)
	}
	rootName = r.str()
	v := r.payload(TagCompound, 0)
	if r.err != nil {
		return nil, "", r.err
	}
	return v.(*Compound), rootName, nil
}

func writeString(b *bytes.Buffer, s string) {
	var l [2]byte
	binary.BigEndian.PutUint16(l[:], uint16(len(s)))
	b.Write(l[:])
	b.WriteString(s)
}

func writePayload(b *bytes.Buffer, v Value) error {
	switch x := v.(type) {
	case Byte:
		b.WriteByte(byte(x))
	case Short:
		var e [2]byte
		binary.BigEndian.PutUint16(e[:], uint16(x))
		b.Write(e[:])
	case Int:
		var e [4]byte
		binary.BigEndian.PutUint32(e[:], uint32(x))
		b.Write(e[:])
	case Long:
		var e [8]byte
		binary.BigEndian.PutUint64(e[:], uint64(x))
		b.Write(e[:])
	case Float:
		var e [4]byte
		binary.BigEndian.PutUint32(e[:], math.Float32bits(float32(x)))
		b.Write(e[:])
	case Double:
		var e [8]byte
		binary.BigEndian.PutUint64(e[:], math.Float64bits(float64(x)))
		b.Write(e[:])
	case String:
		writeString(b, string(x))
	case ByteArray:
		writeCount(b, len(x))
		b.Write(x)
	case IntArray:
		writeCount(b, len(x))
		for _, n := range x {
			var e [4]byte
			binary.BigEndian.PutUint32(e[:], uint32(n))
			b.Write(e[:])
		}
	case LongArray:
		writeCount(b, len(x))
		for _, n := range x {
			var e [8]byte
			binary.BigEndian.PutUint64(e[:], uint64(n))
			b.Write(e[:])
		}
	case List:
		b.WriteByte(byte(x.Of))
		writeCount(b, len(x.Items))
		for _, item := range x.Items {
			if item.Tag() != x.Of {
				return errors.Wrapf(ErrMalformed,
					"list item tag %v in list of %v", item.Tag(), x.Of)
			}
			if err := writePayload(b, item); err != nil {
				return err
			}
		}
	case *Compound:
		for _, k := range x.keys {
			child := x.values[k]
			b.WriteByte(byte(child.Tag()))
			writeString(b, k)
			if err := writePayload(b, child); err != nil {
				return err
			}
		}
		b.WriteByte(byte(TagEnd))
	}
	return nil
}

func writeCount(b *bytes.Buffer, n int) {
	var e [4]byte
	binary.BigEndian.PutUint32(e[:], uint32(n))
	b.Write(e[:])
}

type reader struct {
	data []byte
	pos  int
	err  error
}

func (self *reader) fail(format string, args ...interface{}) {
	if self.err == nil {
		self.err = errors.Wrapf(ErrMalformed, format, args...)
	}
}

func (self *reader) take(n int) []byte {
	if self.err != nil {
		return nil
	}
	if n < 0 || self.pos+n > len(self.data) {
		self.fail("truncated at %d (+%d of %d)", self.pos, n, len(self.data))
		return nil
	}
	b := self.data[self.pos : self.pos+n]
	self.pos += n
	return b
}

func (self *reader) u8() byte {
	b := self.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (self *reader) u16() uint16 {
	b := self.take(2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

func (self *reader) u32() uint32 {
	b := self.take(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (self *reader) u64() uint64 {
	b := self.take(8)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func (self *reader) str() string {
	n := int(self.u16())
	return string(self.take(n))
}

func (self *reader) count() int {
	n := int(int32(self.u32()))
	if n < 0 {
		self.fail("negative count %d", n)
		return 0
	}
	// A count cannot exceed what remains even at one byte per item.
	if n > len(self.data)-self.pos {
		self.fail("count %d exceeds remaining input", n)
		return 0
	}
	return n
}

func (self *reader) payload(t Tag, depth int) Value {
	if self.err != nil {
		return nil
	}
	if depth > maxDepth {
		self.fail("nesting deeper than %d", maxDepth)
		return nil
	}
	switch t {
	case TagByte:
		return Byte(self.u8())
	case TagShort:
		return Short(self.u16())
	case TagInt:
		return Int(self.u32())
	case TagLong:
		return Long(self.u64())
	case TagFloat:
		return Float(math.Float32frombits(self.u32()))
	case TagDouble:
		return Double(math.Float64frombits(self.u64()))
	case TagString:
		return String(self.str())
	case TagByteArray:
		n := self.count()
		return ByteArray(append([]byte(nil), self.take(n)...))
	case TagIntArray:
		n := self.count()
		a := make(IntArray, n)
		for i := range a {
			a[i] = int32(self.u32())
		}
		return a
	case TagLongArray:
		n := self.count()
		a := make(LongArray, n)
		for i := range a {
			a[i] = int64(self.u64())
		}
		return a
	case TagList:
		elem := Tag(self.u8())
		n := self.count()
		l := List{Of: elem}
		if n > 0 && (elem == TagEnd || elem > TagLongArray) {
			self.fail("list of invalid element tag %d", elem)
			return nil
		}
		if n > 0 {
			l.Items = make([]Value, 0, n)
		}
		for i := 0; i < n; i++ {
			v := self.payload(elem, depth+1)
			if self.err != nil {
				return nil
			}
			l.Items = append(l.Items, v)
		}
		return l
	case TagCompound:
		c := NewCompound()
		for {
			child := Tag(self.u8())
			if self.err != nil {
				return nil
			}
			if child == TagEnd {
				return c
			}
			if child > TagLongArray {
				self.fail("invalid tag %d in compound", child)
				return nil
			}
			name := self.str()
			v := self.payload(child, depth+1)
			if self.err != nil {
				return nil
			}
			c.Set(name, v)
		}
	}
	self.fail("invalid tag %d", t)
	return nil
}
