/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Thu Mar  7 10:31:55 2019 mstenber
 * Last modified: Thu Apr  4 14:30:21 2019 mstenber
 * Edit time:     67 min
 *
 */

package nbtjson

import (
	"reflect"
	"testing"

	"github.com/stvp/assert"

	"github.com/fingon/go-anvilfs/nbt"
)

// fullTree has every tag type, plus a List of plain ints whose length
// matches an IntArray elsewhere. The two must stay distinct through
// the document form.
func fullTree() *nbt.Compound {
	ints := nbt.List{Of: nbt.TagInt}
	ints.Append(nbt.Int(1))
	ints.Append(nbt.Int(-2))
	ints.Append(nbt.Int(3))

	strs := nbt.List{Of: nbt.TagString}
	strs.Append(nbt.String("a"))
	strs.Append(nbt.String("b"))

	nested := nbt.List{Of: nbt.TagList}
	nested.Append(ints)

	inner := nbt.NewCompound()
	inner.Set("zPos", nbt.Int(-3))
	inner.Set("xPos", nbt.Int(5))

	compounds := nbt.List{Of: nbt.TagCompound}
	compounds.Append(inner)

	root := nbt.NewCompound()
	root.Set("b", nbt.Byte(-128))
	root.Set("s", nbt.Short(300))
	root.Set("i", nbt.Int(70000))
	root.Set("l", nbt.Long(1<<60))
	root.Set("f", nbt.Float(0.5))
	root.Set("d", nbt.Double(-1.25))
	root.Set("str", nbt.String("with \"quotes\" and ü"))
	root.Set("ba", nbt.ByteArray{0, 127, 255})
	root.Set("ia", nbt.IntArray{1, -2, 3})
	root.Set("la", nbt.LongArray{1 << 50, -1, 0})
	root.Set("ints", ints)
	root.Set("strs", strs)
	root.Set("nested", nested)
	root.Set("compounds", compounds)
	root.Set("empty", nbt.List{Of: nbt.TagEnd})
	return root
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()
	root := fullTree()
	doc, err := Marshal(root)
	assert.Nil(t, err)

	got, err := Unmarshal(doc)
	assert.Nil(t, err)
	assert.True(t, reflect.DeepEqual(got, nbt.Value(root)))

	// The plain-int list stayed a list, the array stayed an array.
	c := got.(*nbt.Compound)
	v, _ := c.Get("ints")
	assert.Equal(t, v.Tag(), nbt.TagList)
	v, _ = c.Get("ia")
	assert.Equal(t, v.Tag(), nbt.TagIntArray)
	assert.Equal(t, c.Keys(), root.Keys())
}

func TestRoundTripTagKeyEscape(t *testing.T) {
	t.Parallel()
	evil := nbt.NewCompound()
	evil.Set(tagKey, nbt.String("gotcha"))
	evil.Set("other", nbt.Int(1))
	root := nbt.NewCompound()
	root.Set("evil", evil)

	doc, err := Marshal(root)
	assert.Nil(t, err)
	got, err := Unmarshal(doc)
	assert.Nil(t, err)
	assert.True(t, reflect.DeepEqual(got, nbt.Value(root)))
}

func TestScalarTypesPreserved(t *testing.T) {
	t.Parallel()
	// Same numeric value under every integer tag; restoration must
	// come from the tag, never the magnitude.
	root := nbt.NewCompound()
	root.Set("asByte", nbt.Byte(7))
	root.Set("asShort", nbt.Short(7))
	root.Set("asInt", nbt.Int(7))
	root.Set("asLong", nbt.Long(7))
	doc, err := Marshal(root)
	assert.Nil(t, err)
	got, err := Unmarshal(doc)
	assert.Nil(t, err)
	c := got.(*nbt.Compound)
	v, _ := c.Get("asByte")
	assert.Equal(t, v, nbt.Value(nbt.Byte(7)))
	v, _ = c.Get("asShort")
	assert.Equal(t, v, nbt.Value(nbt.Short(7)))
	v, _ = c.Get("asInt")
	assert.Equal(t, v, nbt.Value(nbt.Int(7)))
	v, _ = c.Get("asLong")
	assert.Equal(t, v, nbt.Value(nbt.Long(7)))
}

func TestRejectBareSequence(t *testing.T) {
	t.Parallel()
	// A bare numeric sequence where an array (or anything) is
	// expected is rejected, not guessed at.
	for _, doc := range []string{
		`{"ia":[1,2,3]}`,
		`{"n":42}`,
		`{"b":true}`,
		`{"x":null}`,
		`[1,2,3]`,
		`42`,
	} {
		_, err := Unmarshal([]byte(doc))
		assert.True(t, err != nil, doc)
	}
}

func TestRejectBadTagged(t *testing.T) {
	t.Parallel()
	for _, doc := range []string{
		// Unknown tag name.
		`{"x":{"__nbt":"quux","value":1}}`,
		// Missing value.
		`{"x":{"__nbt":"int"}}`,
		// Out-of-range scalars.
		`{"x":{"__nbt":"byte","value":200}}`,
		`{"x":{"__nbt":"short","value":70000}}`,
		`{"x":{"__nbt":"int","value":3000000000}}`,
		// Array element out of byte range.
		`{"x":{"__nbt":"byte_array","value":[0,300]}}`,
		// List without element type.
		`{"x":{"__nbt":"list","value":[1]}}`,
		// Non-empty list of end tag.
		`{"x":{"__nbt":"list","of":"end","value":[1]}}`,
		// Fractional value under an integer tag.
		`{"x":{"__nbt":"int","value":1.5}}`,
	} {
		_, err := Unmarshal([]byte(doc))
		assert.True(t, err != nil, doc)
	}
}

func TestNonFiniteRejected(t *testing.T) {
	t.Parallel()
	root := nbt.NewCompound()
	big := float32(1e38)
	root.Set("f", nbt.Float(big*big))
	_, err := Marshal(root)
	assert.True(t, err != nil)
}
