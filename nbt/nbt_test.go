/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Tue Mar  5 08:12:44 2019 mstenber
 * Last modified: Thu Apr  4 14:02:13 2019 mstenber
 * Edit time:     52 min
 *
 */

package nbt

import (
	"reflect"
	"testing"

	"github.com/stvp/assert"
)

func sampleTree() *Compound {
	inner := NewCompound()
	inner.Set("name", String("value"))
	inner.Set("count", Int(-42))

	list := List{Of: TagCompound}
	item := NewCompound()
	item.Set("Y", Byte(-4))
	list.Append(item)

	ints := List{Of: TagInt}
	ints.Append(Int(1))
	ints.Append(Int(2))
	ints.Append(Int(3))

	root := NewCompound()
	root.Set("b", Byte(127))
	root.Set("s", Short(-32768))
	root.Set("i", Int(1<<30))
	root.Set("l", Long(-1<<60))
	root.Set("f", Float(1.5))
	root.Set("d", Double(-2.25))
	root.Set("str", String("hello ä world"))
	root.Set("ba", ByteArray{0, 1, 255})
	root.Set("ia", IntArray{1, -2, 3})
	root.Set("la", LongArray{1 << 40, -1})
	root.Set("inner", inner)
	root.Set("sections", list)
	root.Set("ints", ints)
	root.Set("empty", List{Of: TagEnd})
	return root
}

func TestBinaryRoundTrip(t *testing.T) {
	t.Parallel()
	root := sampleTree()
	data, err := Marshal(root, "")
	assert.Nil(t, err)
	got, name, err := Unmarshal(data)
	assert.Nil(t, err)
	assert.Equal(t, name, "")
	assert.True(t, reflect.DeepEqual(got, root))
	// Key order is part of the format.
	assert.Equal(t, got.Keys(), root.Keys())
}

func TestBinaryNamedRoot(t *testing.T) {
	t.Parallel()
	root := NewCompound()
	root.Set("x", Int(1))
	data, err := Marshal(root, "Level")
	assert.Nil(t, err)
	_, name, err := Unmarshal(data)
	assert.Nil(t, err)
	assert.Equal(t, name, "Level")
}

func TestBinaryMalformed(t *testing.T) {
	t.Parallel()
	root := sampleTree()
	data, err := Marshal(root, "")
	assert.Nil(t, err)

	_, _, err = Unmarshal(nil)
	assert.True(t, err != nil)

	// Every truncation must fail, never panic.
	for n := 0; n < len(data); n += 7 {
		_, _, err = Unmarshal(data[:n])
		assert.True(t, err != nil)
	}

	// Wrong root tag.
	bad := append([]byte(nil), data...)
	bad[0] = byte(TagList)
	_, _, err = Unmarshal(bad)
	assert.True(t, err != nil)

	// Absurd array count.
	bad = []byte{byte(TagCompound), 0, 0,
		byte(TagIntArray), 0, 1, 'a', 0x7f, 0xff, 0xff, 0xff}
	_, _, err = Unmarshal(bad)
	assert.True(t, err != nil)
}

// A hand-built list whose items do not match its element tag must be
// refused; encoding it anyway would yield an undecodable document.
func TestBinaryListTagMismatch(t *testing.T) {
	t.Parallel()
	root := NewCompound()
	root.Set("mixed", List{Of: TagInt,
		Items: []Value{Int(1), String("nope")}})
	_, err := Marshal(root, "")
	assert.True(t, err != nil)

	// Nested lists are checked too.
	root = NewCompound()
	root.Set("outer", List{Of: TagList,
		Items: []Value{List{Of: TagByte, Items: []Value{Short(1)}}}})
	_, err = Marshal(root, "")
	assert.True(t, err != nil)
}

func TestCompoundAccessors(t *testing.T) {
	t.Parallel()
	root := sampleTree()
	v, ok := root.Get("b")
	assert.True(t, ok)
	assert.Equal(t, v, Byte(127))
	_, ok = root.Get("nope")
	assert.True(t, !ok)

	n, ok := root.GetInt("s")
	assert.True(t, ok)
	assert.Equal(t, n, int64(-32768))
	_, ok = root.GetInt("str")
	assert.True(t, !ok)

	inner := root.GetCompound("inner")
	assert.True(t, inner != nil)
	assert.Equal(t, root.GetCompound("b"), (*Compound)(nil))

	// Set on an existing key replaces in place, preserving order.
	keys := root.Keys()
	root.Set("b", Byte(1))
	assert.Equal(t, root.Keys(), keys)
	assert.Equal(t, root.Len(), len(keys))
}

func TestChunkPos(t *testing.T) {
	t.Parallel()
	root := NewCompound()
	root.Set("xPos", Int(5))
	root.Set("zPos", Int(-3))
	x, z, err := ChunkPos(root)
	assert.Nil(t, err)
	assert.Equal(t, x, int32(5))
	assert.Equal(t, z, int32(-3))

	// Legacy layout wraps the position in a Level compound.
	level := NewCompound()
	level.Set("xPos", Int(-100))
	level.Set("zPos", Int(200))
	legacy := NewCompound()
	legacy.Set("Level", level)
	x, z, err = ChunkPos(legacy)
	assert.Nil(t, err)
	assert.Equal(t, x, int32(-100))
	assert.Equal(t, z, int32(200))

	_, _, err = ChunkPos(NewCompound())
	assert.True(t, err != nil)
}
