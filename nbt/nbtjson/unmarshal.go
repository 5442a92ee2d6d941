/*
 * Author: Markus Stenberg <fingon@iki.fi>
 *
 * Copyright (c) 2019 Markus Stenberg
 *
 * Created:       Wed Mar  6 13:37:02 2019 mstenber
 * Last modified: Fri Mar 29 10:48:26 2019 mstenber
 * Edit time:     247 min
 *
 */

package nbtjson

import (
	"bytes"
	"encoding/json"
	"io"
	"strconv"

	"github.com/fingon/go-anvilfs/nbt"
	"github.com/pkg/errors"
)

// Unmarshal restores a tree from its JSON document form. Anything the
// Marshal side could not have produced is rejected: bare numbers
// without a type tag, bare sequences where an array tag is required,
// out-of-range scalars, unknown tags.
func Unmarshal(data []byte) (nbt.Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	j, err := decodeAny(dec)
	if err != nil {
		return nil, errors.Wrap(ErrConversion, err.Error())
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.Wrap(ErrConversion, "trailing data after document")
	}
	return convertValue(j)
}

// jsonObj preserves member order, which encoding/json maps discard.
type jsonObj struct {
	keys   []string
	values map[string]interface{}
}

func (self *jsonObj) get(k string) (interface{}, bool) {
	v, ok := self.values[k]
	return v, ok
}

func decodeAny(dec *json.Decoder) (interface{}, error) {
	t, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return decodeFrom(dec, t)
}

func decodeFrom(dec *json.Decoder, t json.Token) (interface{}, error) {
	switch tok := t.(type) {
	case json.Delim:
		switch tok {
		case '{':
			o := &jsonObj{values: make(map[string]interface{})}
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				k := kt.(string)
				v, err := decodeAny(dec)
				if err != nil {
					return nil, err
				}
				if _, dup := o.values[k]; !dup {
					o.keys = append(o.keys, k)
				}
				o.values[k] = v
			}
			if _, err := dec.Token(); err != nil { // closing brace
				return nil, err
			}
			return o, nil
		case '[':
			var a []interface{}
			for dec.More() {
				v, err := decodeAny(dec)
				if err != nil {
					return nil, err
				}
				a = append(a, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return a, nil
		}
		return nil, errors.Errorf("unexpected delimiter %v", tok)
	default:
		return t, nil
	}
}

// convertValue handles the self-describing form (document root and
// compound members).
func convertValue(j interface{}) (nbt.Value, error) {
	switch x := j.(type) {
	case string:
		return nbt.String(x), nil
	case *jsonObj:
		if tag, ok := taggedAs(x); ok {
			return convertTagged(tag, x)
		}
		return convertCompound(x)
	case json.Number:
		return nil, errors.Wrapf(ErrConversion,
			"bare number %v without type tag", x)
	case []interface{}:
		return nil, errors.Wrap(ErrConversion,
			"bare sequence is neither a tagged array nor a tagged list")
	case bool, nil:
		return nil, errors.Wrapf(ErrConversion, "unsupported value %v", x)
	}
	return nil, errors.Wrapf(ErrConversion, "unsupported value %T", j)
}

func taggedAs(o *jsonObj) (nbt.Tag, bool) {
	v, ok := o.get(tagKey)
	if !ok {
		return nbt.TagEnd, false
	}
	name, ok := v.(string)
	if !ok {
		return nbt.TagEnd, false
	}
	tag, ok := nbt.TagByName(name)
	return tag, ok
}

func convertTagged(tag nbt.Tag, o *jsonObj) (nbt.Value, error) {
	value, ok := o.get("value")
	if !ok && tag != nbt.TagList {
		return nil, errors.Wrapf(ErrConversion, "%v tag without value", tag)
	}
	switch tag {
	case nbt.TagByte, nbt.TagShort, nbt.TagInt, nbt.TagLong,
		nbt.TagFloat, nbt.TagDouble:
		return convertScalar(tag, value)
	case nbt.TagByteArray, nbt.TagIntArray, nbt.TagLongArray:
		items, ok := value.([]interface{})
		if !ok {
			return nil, errors.Wrapf(ErrConversion,
				"%v value is not a sequence", tag)
		}
		return convertArray(tag, items)
	case nbt.TagCompound:
		inner, ok := value.(*jsonObj)
		if !ok {
			return nil, errors.Wrap(ErrConversion,
				"escaped compound value is not an object")
		}
		return convertCompound(inner)
	case nbt.TagList:
		return convertList(o)
	}
	return nil, errors.Wrapf(ErrConversion, "unsupported tag %v", tag)
}

func convertCompound(o *jsonObj) (*nbt.Compound, error) {
	c := nbt.NewCompound()
	for _, k := range o.keys {
		v, err := convertValue(o.values[k])
		if err != nil {
			return nil, errors.Wrapf(err, "key %q", k)
		}
		c.Set(k, v)
	}
	return c, nil
}

func convertScalar(tag nbt.Tag, value interface{}) (nbt.Value, error) {
	num, ok := value.(json.Number)
	if !ok {
		return nil, errors.Wrapf(ErrConversion,
			"%v value is not a number", tag)
	}
	switch tag {
	case nbt.TagFloat:
		f, err := strconv.ParseFloat(num.String(), 32)
		if err != nil {
			return nil, errors.Wrap(ErrConversion, err.Error())
		}
		return nbt.Float(f), nil
	case nbt.TagDouble:
		f, err := num.Float64()
		if err != nil {
			return nil, errors.Wrap(ErrConversion, err.Error())
		}
		return nbt.Double(f), nil
	}
	n, err := num.Int64()
	if err != nil {
		return nil, errors.Wrapf(ErrConversion,
			"%v value %v is not integral", tag, num)
	}
	switch tag {
	case nbt.TagByte:
		if n < -128 || n > 127 {
			return nil, errors.Wrapf(ErrConversion, "byte out of range: %d", n)
		}
		return nbt.Byte(n), nil
	case nbt.TagShort:
		if n < -32768 || n > 32767 {
			return nil, errors.Wrapf(ErrConversion, "short out of range: %d", n)
		}
		return nbt.Short(n), nil
	case nbt.TagInt:
		if n < -2147483648 || n > 2147483647 {
			return nil, errors.Wrapf(ErrConversion, "int out of range: %d", n)
		}
		return nbt.Int(n), nil
	}
	return nbt.Long(n), nil
}

func convertArray(tag nbt.Tag, items []interface{}) (nbt.Value, error) {
	ints := make([]int64, len(items))
	for i, item := range items {
		num, ok := item.(json.Number)
		if !ok {
			return nil, errors.Wrapf(ErrConversion,
				"%v element %d is not a number", tag, i)
		}
		n, err := num.Int64()
		if err != nil {
			return nil, errors.Wrapf(ErrConversion,
				"%v element %d is not integral", tag, i)
		}
		ints[i] = n
	}
	switch tag {
	case nbt.TagByteArray:
		a := make(nbt.ByteArray, len(ints))
		for i, n := range ints {
			if n < -128 || n > 255 {
				return nil, errors.Wrapf(ErrConversion,
					"byte_array element out of range: %d", n)
			}
			a[i] = byte(n)
		}
		return a, nil
	case nbt.TagIntArray:
		a := make(nbt.IntArray, len(ints))
		for i, n := range ints {
			if n < -2147483648 || n > 2147483647 {
				return nil, errors.Wrapf(ErrConversion,
					"int_array element out of range: %d", n)
			}
			a[i] = int32(n)
		}
		return a, nil
	}
	return nbt.LongArray(ints), nil
}

func convertList(o *jsonObj) (nbt.Value, error) {
	ofName, ok := o.get("of")
	if !ok {
		return nil, errors.Wrap(ErrConversion, "list without element tag")
	}
	name, ok := ofName.(string)
	if !ok {
		return nil, errors.Wrap(ErrConversion, "list element tag is not a string")
	}
	of, ok := nbt.TagByName(name)
	if !ok {
		return nil, errors.Wrapf(ErrConversion, "unknown list element tag %q", name)
	}
	value, ok := o.get("value")
	if !ok {
		return nil, errors.Wrap(ErrConversion, "list without value")
	}
	items, ok := value.([]interface{})
	if !ok && value != nil {
		return nil, errors.Wrap(ErrConversion, "list value is not a sequence")
	}
	if len(items) > 0 && of == nbt.TagEnd {
		return nil, errors.Wrap(ErrConversion, "non-empty list of end tag")
	}
	l := nbt.List{Of: of}
	if len(items) > 0 {
		l.Items = make([]nbt.Value, 0, len(items))
	}
	for i, item := range items {
		v, err := convertPayload(of, item)
		if err != nil {
			return nil, errors.Wrapf(err, "list item %d", i)
		}
		l.Items = append(l.Items, v)
	}
	return l, nil
}

// convertPayload handles list items, typed by the list's element tag.
func convertPayload(of nbt.Tag, j interface{}) (nbt.Value, error) {
	switch of {
	case nbt.TagString:
		s, ok := j.(string)
		if !ok {
			return nil, errors.Wrap(ErrConversion, "expected string")
		}
		return nbt.String(s), nil
	case nbt.TagCompound:
		o, ok := j.(*jsonObj)
		if !ok {
			return nil, errors.Wrap(ErrConversion, "expected object")
		}
		if tag, tagged := taggedAs(o); tagged {
			if tag != nbt.TagCompound {
				return nil, errors.Wrapf(ErrConversion,
					"expected compound, got tagged %v", tag)
			}
			return convertTagged(tag, o)
		}
		return convertCompound(o)
	case nbt.TagList:
		o, ok := j.(*jsonObj)
		if !ok {
			return nil, errors.Wrap(ErrConversion, "expected list object")
		}
		tag, tagged := taggedAs(o)
		if !tagged || tag != nbt.TagList {
			return nil, errors.Wrap(ErrConversion, "expected tagged list")
		}
		return convertList(o)
	case nbt.TagByteArray, nbt.TagIntArray, nbt.TagLongArray:
		items, ok := j.([]interface{})
		if !ok && j != nil {
			return nil, errors.Wrapf(ErrConversion, "expected %v sequence", of)
		}
		return convertArray(of, items)
	default:
		return convertScalar(of, j)
	}
}
