/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Mon Mar  4 08:11:29 2019 mstenber
 * Last modified: Tue Mar 26 12:55:01 2019 mstenber
 * Edit time:     188 min
 *
 */

// nbt package implements the typed tag tree used for serialized chunk
// content, and its big-endian binary wire codec.
//
// Array tags (ByteArray/IntArray/LongArray) are distinct from a List
// of scalars even when values coincide; that distinction is load
// bearing for the structured-document converter and must survive all
// round trips.
package nbt

import "github.com/pkg/errors"

// Tag is the wire type byte of a tree node.
type Tag byte

const (
	TagEnd Tag = iota
	TagByte
	TagShort
	TagInt
	TagLong
	TagFloat
	TagDouble
	TagByteArray
	TagString
	TagList
	TagCompound
	TagIntArray
	TagLongArray
)

var tagNames = map[Tag]string{
	TagEnd:       "end",
	TagByte:      "byte",
	TagShort:     "short",
	TagInt:       "int",
	TagLong:      "long",
	TagFloat:     "float",
	TagDouble:    "double",
	TagByteArray: "byte_array",
	TagString:    "string",
	TagList:      "list",
	TagCompound:  "compound",
	TagIntArray:  "int_array",
	TagLongArray: "long_array",
}

func (self Tag) String() string {
	if s, ok := tagNames[self]; ok {
		return s
	}
	return "invalid"
}

// TagByName is the inverse of Tag.String.
func TagByName(name string) (Tag, bool) {
	for t, n := range tagNames {
		if n == name {
			return t, true
		}
	}
	return TagEnd, false
}

// ErrMalformed is returned for undecodable binary input.
var ErrMalformed = errors.New("malformed nbt data")

// Value is one node of the tree.
type Value interface {
	Tag() Tag
}

type Byte int8
type Short int16
type Int int32
type Long int64
type Float float32
type Double float64
type String string
type ByteArray []byte
type IntArray []int32
type LongArray []int64

func (Byte) Tag() Tag      { return TagByte }
func (Short) Tag() Tag     { return TagShort }
func (Int) Tag() Tag       { return TagInt }
func (Long) Tag() Tag      { return TagLong }
func (Float) Tag() Tag     { return TagFloat }
func (Double) Tag() Tag    { return TagDouble }
func (String) Tag() Tag    { return TagString }
func (ByteArray) Tag() Tag { return TagByteArray }
func (IntArray) Tag() Tag  { return TagIntArray }
func (LongArray) Tag() Tag { return TagLongArray }

// List is an ordered sequence of values sharing one element tag. An
// empty list may carry TagEnd as its element tag.
type List struct {
	Of    Tag
	Items []Value
}

func (List) Tag() Tag { return TagList }

// Append adds a value, adopting its tag on first use.
func (self *List) Append(v Value) {
	if len(self.Items) == 0 && self.Of == TagEnd {
		self.Of = v.Tag()
	}
	self.Items = append(self.Items, v)
}

// Compound is an insertion-ordered name→value mapping.
type Compound struct {
	keys   []string
	values map[string]Value
}

func (*Compound) Tag() Tag { return TagCompound }

func NewCompound() *Compound {
	return &Compound{values: make(map[string]Value)}
}

// Set inserts or replaces; insertion order of first appearance is kept.
func (self *Compound) Set(name string, v Value) *Compound {
	if self.values == nil {
		self.values = make(map[string]Value)
	}
	if _, seen := self.values[name]; !seen {
		self.keys = append(self.keys, name)
	}
	self.values[name] = v
	return self
}

func (self *Compound) Get(name string) (Value, bool) {
	v, ok := self.values[name]
	return v, ok
}

// GetCompound returns the named child compound, or nil.
func (self *Compound) GetCompound(name string) *Compound {
	v, ok := self.values[name]
	if !ok {
		return nil
	}
	c, _ := v.(*Compound)
	return c
}

// GetInt returns the named value coerced from any integer scalar tag.
func (self *Compound) GetInt(name string) (int64, bool) {
	v, ok := self.values[name]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case Byte:
		return int64(n), true
	case Short:
		return int64(n), true
	case Int:
		return int64(n), true
	case Long:
		return int64(n), true
	}
	return 0, false
}

func (self *Compound) Keys() []string {
	return self.keys
}

func (self *Compound) Len() int {
	return len(self.keys)
}
