/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Wed Mar  6 09:04:17 2019 mstenber
 * Last modified: Thu Mar 28 14:22:50 2019 mstenber
 * Edit time:     311 min
 *
 */

// nbtjson package converts between the nbt tag tree and a JSON
// document suitable for queryable persistence.
//
// A naive numbers-and-arrays mapping is lossy in both directions, so
// the document carries explicit type metadata:
//
//   - numeric scalars become {"__nbt":"<tag>","value":n}
//   - array tags become {"__nbt":"byte_array","value":[...]} (never a
//     bare sequence; a bare sequence is rejected on restoration, not
//     guessed at)
//   - lists become {"__nbt":"list","of":"<tag>","value":[...]} with
//     items in payload form (the "of" tag types them)
//   - compounds become plain JSON objects in insertion order; a
//     compound that itself contains a "__nbt" key is escaped as
//     {"__nbt":"compound","value":{...}}
//   - strings are bare JSON strings
//
// For every tree d: Unmarshal(Marshal(d)) == d, including tag types,
// array-vs-list distinctions and compound key order.
package nbtjson

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"

	"github.com/fingon/go-anvilfs/nbt"
	"github.com/pkg/errors"
)

// ErrConversion is the base error for any conversion failure.
var ErrConversion = errors.New("structured document conversion failed")

const tagKey = "__nbt"

// Marshal converts a tree value into its JSON document form.
func Marshal(v nbt.Value) ([]byte, error) {
	var b bytes.Buffer
	if err := writeValue(&b, v); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func writeTagged(b *bytes.Buffer, tag nbt.Tag, write func() error) error {
	b.WriteString(`{"` + tagKey + `":"`)
	b.WriteString(tag.String())
	b.WriteString(`","value":`)
	if err := write(); err != nil {
		return err
	}
	b.WriteByte('}')
	return nil
}

// writeValue emits the self-describing form used for compound members
// and the document root.
func writeValue(b *bytes.Buffer, v nbt.Value) error {
	switch x := v.(type) {
	case nbt.String:
		return writeString(b, string(x))
	case *nbt.Compound:
		return writeCompound(b, x)
	case nbt.List:
		return writeList(b, x)
	case nbt.ByteArray, nbt.IntArray, nbt.LongArray:
		return writeTagged(b, v.Tag(), func() error {
			return writeArrayPayload(b, v)
		})
	case nbt.Byte, nbt.Short, nbt.Int, nbt.Long, nbt.Float, nbt.Double:
		return writeTagged(b, v.Tag(), func() error {
			return writeNumber(b, x)
		})
	}
	return errors.Wrapf(ErrConversion, "unsupported value %T", v)
}

func writeString(b *bytes.Buffer, s string) error {
	enc, err := json.Marshal(s)
	if err != nil {
		return errors.Wrap(ErrConversion, err.Error())
	}
	b.Write(enc)
	return nil
}

func writeNumber(b *bytes.Buffer, v nbt.Value) error {
	switch x := v.(type) {
	case nbt.Byte:
		b.WriteString(strconv.FormatInt(int64(x), 10))
	case nbt.Short:
		b.WriteString(strconv.FormatInt(int64(x), 10))
	case nbt.Int:
		b.WriteString(strconv.FormatInt(int64(x), 10))
	case nbt.Long:
		b.WriteString(strconv.FormatInt(int64(x), 10))
	case nbt.Float:
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return errors.Wrap(ErrConversion, "non-finite float")
		}
		b.WriteString(strconv.FormatFloat(f, 'g', -1, 32))
	case nbt.Double:
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return errors.Wrap(ErrConversion, "non-finite double")
		}
		b.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	}
	return nil
}

func writeArrayPayload(b *bytes.Buffer, v nbt.Value) error {
	b.WriteByte('[')
	switch a := v.(type) {
	case nbt.ByteArray:
		for i, n := range a {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.FormatInt(int64(int8(n)), 10))
		}
	case nbt.IntArray:
		for i, n := range a {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.FormatInt(int64(n), 10))
		}
	case nbt.LongArray:
		for i, n := range a {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.FormatInt(n, 10))
		}
	}
	b.WriteByte(']')
	return nil
}

func writeCompound(b *bytes.Buffer, c *nbt.Compound) error {
	escape := false
	for _, k := range c.Keys() {
		if k == tagKey {
			escape = true
			break
		}
	}
	if escape {
		return writeTagged(b, nbt.TagCompound, func() error {
			return writeCompoundBody(b, c)
		})
	}
	return writeCompoundBody(b, c)
}

func writeCompoundBody(b *bytes.Buffer, c *nbt.Compound) error {
	b.WriteByte('{')
	for i, k := range c.Keys() {
		if i > 0 {
			b.WriteByte(',')
		}
		if err := writeString(b, k); err != nil {
			return err
		}
		b.WriteByte(':')
		v, _ := c.Get(k)
		if err := writeValue(b, v); err != nil {
			return err
		}
	}
	b.WriteByte('}')
	return nil
}

func writeList(b *bytes.Buffer, l nbt.List) error {
	b.WriteString(`{"` + tagKey + `":"list","of":"`)
	b.WriteString(l.Of.String())
	b.WriteString(`","value":[`)
	for i, item := range l.Items {
		if i > 0 {
			b.WriteByte(',')
		}
		if err := writePayload(b, l.Of, item); err != nil {
			return err
		}
	}
	b.WriteString(`]}`)
	return nil
}

// writePayload emits list items; the list's "of" tag already types
// them, so scalars and arrays go bare.
func writePayload(b *bytes.Buffer, of nbt.Tag, v nbt.Value) error {
	if v.Tag() != of {
		return errors.Wrapf(ErrConversion,
			"list item tag %v in list of %v", v.Tag(), of)
	}
	switch x := v.(type) {
	case nbt.String:
		return writeString(b, string(x))
	case *nbt.Compound:
		return writeCompound(b, x)
	case nbt.List:
		return writeList(b, x)
	case nbt.ByteArray, nbt.IntArray, nbt.LongArray:
		return writeArrayPayload(b, v)
	default:
		return writeNumber(b, x)
	}
}
