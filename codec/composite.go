package codec

import (
	"encoding/binary"
	"fmt"
)

func appendInt32(dst []byte, v int32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	return append(dst, b[:]...)
}

func getInt32(data []byte, off int) (int32, error) {
	if len(data) < off+4 {
		return 0, fmt.Errorf("codec: short read at offset %d", off)
	}
	return int32(binary.BigEndian.Uint32(data[off : off+4])), nil
}

// ---- Array / Set envelope (spec.md §3, §4.E) ----

func encodeSequenceEnvelope(inner Codec, values []interface{}) ([]byte, error) {
	var body []byte
	if len(values) == 0 {
		body = appendInt32(body, 0) // ndims=0: empty sequence
	} else {
		body = appendInt32(body, 1)               // ndims
		body = appendInt32(body, 0)               // reserved
		body = appendInt32(body, int32(len(values))) // dim_length
		body = appendInt32(body, 1)               // lower
		for _, v := range values {
			eb, err := inner.Encode(nil, v)
			if err != nil {
				return nil, err
			}
			body = appendInt32(body, int32(len(eb)))
			body = append(body, eb...)
		}
	}
	out := appendInt32(nil, int32(len(body)))
	out = append(out, body...)
	return out, nil
}

func decodeSequenceEnvelope(inner Codec, data []byte) ([]interface{}, error) {
	length, err := getInt32(data, 0)
	if err != nil {
		return nil, err
	}
	if int(length)+4 > len(data) {
		return nil, fmt.Errorf("codec: array envelope declares %d bytes, have %d", length, len(data)-4)
	}
	ndims, err := getInt32(data, 4)
	if err != nil {
		return nil, err
	}
	if ndims == 0 {
		// An ndims=0 envelope always decodes to the empty sequence,
		// regardless of the inner codec (spec.md testable property 6).
		return []interface{}{}, nil
	}
	off := 8
	if _, err := getInt32(data, off); err != nil { // reserved
		return nil, err
	}
	off += 4
	dimLength, err := getInt32(data, off)
	if err != nil {
		return nil, err
	}
	off += 4
	if _, err := getInt32(data, off); err != nil { // lower
		return nil, err
	}
	off += 4

	out := make([]interface{}, 0, dimLength)
	for i := int32(0); i < dimLength; i++ {
		elLen, err := getInt32(data, off)
		if err != nil {
			return nil, err
		}
		off += 4
		if elLen < 0 {
			out = append(out, nil)
			continue
		}
		if off+int(elLen) > len(data) {
			return nil, fmt.Errorf("codec: array element %d truncated", i)
		}
		v, err := inner.Decode(data[off : off+int(elLen)])
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		off += int(elLen)
	}
	return out, nil
}

func (c *ArrayCodec) Encode(dst []byte, value interface{}) ([]byte, error) {
	values, ok := value.([]interface{})
	if !ok {
		return nil, fmt.Errorf("value can not be encoded as array: %#v", value)
	}
	b, err := encodeSequenceEnvelope(c.Inner, values)
	if err != nil {
		return nil, err
	}
	return append(dst, b...), nil
}

func (c *ArrayCodec) Decode(data []byte) (interface{}, error) {
	return decodeSequenceEnvelope(c.Inner, data)
}

func (c *SetCodec) Encode(dst []byte, value interface{}) ([]byte, error) {
	values, ok := value.([]interface{})
	if !ok {
		return nil, fmt.Errorf("value can not be encoded as set: %#v", value)
	}
	b, err := encodeSequenceEnvelope(c.Inner, values)
	if err != nil {
		return nil, err
	}
	return append(dst, b...), nil
}

func (c *SetCodec) Decode(data []byte) (interface{}, error) {
	return decodeSequenceEnvelope(c.Inner, data)
}

// ---- Tuple / NamedTuple element list (count:i32, then length:i32 or -1 per element) ----

func encodeElementList(elements [][]byte) []byte {
	dst := appendInt32(nil, int32(len(elements)))
	for _, e := range elements {
		if e == nil {
			dst = appendInt32(dst, -1)
			continue
		}
		dst = appendInt32(dst, int32(len(e)))
		dst = append(dst, e...)
	}
	return dst
}

func decodeElementList(data []byte) ([][]byte, error) {
	count, err := getInt32(data, 0)
	if err != nil {
		return nil, err
	}
	off := 4
	out := make([][]byte, 0, count)
	for i := int32(0); i < count; i++ {
		elLen, err := getInt32(data, off)
		if err != nil {
			return nil, err
		}
		off += 4
		if elLen < 0 {
			out = append(out, nil)
			continue
		}
		if off+int(elLen) > len(data) {
			return nil, fmt.Errorf("codec: element %d truncated", i)
		}
		out = append(out, data[off:off+int(elLen)])
		off += int(elLen)
	}
	return out, nil
}

func (c *TupleCodec) Encode(dst []byte, value interface{}) ([]byte, error) {
	values, ok := value.([]interface{})
	if !ok {
		return nil, fmt.Errorf("value can not be encoded as tuple: %#v", value)
	}
	if len(values) != len(c.Elements) {
		return nil, fmt.Errorf("value can not be encoded as tuple: expected %d elements, got %d", len(c.Elements), len(values))
	}
	elems := make([][]byte, len(values))
	for i, v := range values {
		eb, err := c.Elements[i].Encode(nil, v)
		if err != nil {
			return nil, err
		}
		elems[i] = eb
	}
	return append(dst, encodeElementList(elems)...), nil
}

func (c *TupleCodec) Decode(data []byte) (interface{}, error) {
	elems, err := decodeElementList(data)
	if err != nil {
		return nil, err
	}
	if len(elems) != len(c.Elements) {
		return nil, fmt.Errorf("codec: tuple declares %d elements, codec has %d", len(elems), len(c.Elements))
	}
	out := make([]interface{}, len(elems))
	for i, eb := range elems {
		if eb == nil {
			out[i] = nil
			continue
		}
		v, err := c.Elements[i].Decode(eb)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (c *NamedTupleCodec) Encode(dst []byte, value interface{}) ([]byte, error) {
	ntv, ok := value.(NamedTupleValue)
	if !ok {
		return nil, fmt.Errorf("value can not be encoded as named tuple: %#v", value)
	}
	if len(ntv.Values) != len(c.Elems) {
		return nil, fmt.Errorf("value can not be encoded as named tuple: expected %d elements, got %d", len(c.Elems), len(ntv.Values))
	}
	elems := make([][]byte, len(ntv.Values))
	for i, v := range ntv.Values {
		eb, err := c.Elems[i].Encode(nil, v)
		if err != nil {
			return nil, err
		}
		elems[i] = eb
	}
	return append(dst, encodeElementList(elems)...), nil
}

func (c *NamedTupleCodec) Decode(data []byte) (interface{}, error) {
	elems, err := decodeElementList(data)
	if err != nil {
		return nil, err
	}
	if len(elems) != len(c.Elems) {
		return nil, fmt.Errorf("codec: named tuple declares %d elements, codec has %d", len(elems), len(c.Elems))
	}
	out := NamedTupleValue{Names: c.Names, Values: make([]interface{}, len(elems))}
	for i, eb := range elems {
		if eb == nil {
			continue
		}
		v, err := c.Elems[i].Decode(eb)
		if err != nil {
			return nil, err
		}
		out.Values[i] = v
	}
	return out, nil
}

// ---- Object / Shape (decode only — encoding is rejected, server-only) ----

func (c *ObjectCodec) Encode(dst []byte, value interface{}) ([]byte, error) {
	return nil, fmt.Errorf("codec: std::Object is server-only and cannot be encoded as a query argument")
}

func (c *ObjectCodec) Decode(data []byte) (interface{}, error) {
	elems, err := decodeElementList(data)
	if err != nil {
		return nil, err
	}
	if len(elems) != len(c.Fields) {
		return nil, fmt.Errorf("codec: object declares %d fields, codec has %d", len(elems), len(c.Fields))
	}
	out := ObjectValue{Fields: make([]ObjectFieldValue, len(elems))}
	for i, eb := range elems {
		fv := ObjectFieldValue{Name: c.Fields[i].Name, Flags: c.Fields[i].Flags}
		if eb != nil {
			v, err := c.Fields[i].Codec.Decode(eb)
			if err != nil {
				return nil, err
			}
			fv.Value = v
		}
		out.Fields[i] = fv
	}
	return out, nil
}

// ---- Enumeration ----

func (c *EnumCodec) Encode(dst []byte, value interface{}) ([]byte, error) {
	s, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("value can not be encoded as enum: %#v", value)
	}
	for _, label := range c.Labels {
		if label == s {
			return append(dst, s...), nil
		}
	}
	return nil, fmt.Errorf("value can not be encoded as enum: %q is not one of %v", s, c.Labels)
}

func (c *EnumCodec) Decode(data []byte) (interface{}, error) {
	return string(data), nil
}

// ---- Range ----

const (
	rangeFlagEmpty         = 1 << 0
	rangeFlagLowerInclusive = 1 << 1
	rangeFlagUpperInclusive = 1 << 2
	rangeFlagNoLower        = 1 << 3
	rangeFlagNoUpper        = 1 << 4
)

func (c *RangeCodec) Encode(dst []byte, value interface{}) ([]byte, error) {
	r, ok := value.(Range)
	if !ok {
		return nil, fmt.Errorf("value can not be encoded as range: %#v", value)
	}
	var flags byte
	if r.Empty {
		flags |= rangeFlagEmpty
		return append(dst, flags), nil
	}
	if r.LowerInclusive {
		flags |= rangeFlagLowerInclusive
	}
	if r.UpperInclusive {
		flags |= rangeFlagUpperInclusive
	}
	if r.Lower == nil {
		flags |= rangeFlagNoLower
	}
	if r.Upper == nil {
		flags |= rangeFlagNoUpper
	}
	dst = append(dst, flags)
	if r.Lower != nil {
		lb, err := c.Inner.Encode(nil, r.Lower)
		if err != nil {
			return nil, err
		}
		dst = appendInt32(dst, int32(len(lb)))
		dst = append(dst, lb...)
	}
	if r.Upper != nil {
		ub, err := c.Inner.Encode(nil, r.Upper)
		if err != nil {
			return nil, err
		}
		dst = appendInt32(dst, int32(len(ub)))
		dst = append(dst, ub...)
	}
	return dst, nil
}

func (c *RangeCodec) Decode(data []byte) (interface{}, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("codec: range payload empty")
	}
	flags := data[0]
	r := Range{}
	if flags&rangeFlagEmpty != 0 {
		r.Empty = true
		return r, nil
	}
	r.LowerInclusive = flags&rangeFlagLowerInclusive != 0
	r.UpperInclusive = flags&rangeFlagUpperInclusive != 0
	off := 1
	if flags&rangeFlagNoLower == 0 {
		l, err := getInt32(data, off)
		if err != nil {
			return nil, err
		}
		off += 4
		v, err := c.Inner.Decode(data[off : off+int(l)])
		if err != nil {
			return nil, err
		}
		r.Lower = v
		off += int(l)
	}
	if flags&rangeFlagNoUpper == 0 {
		l, err := getInt32(data, off)
		if err != nil {
			return nil, err
		}
		off += 4
		v, err := c.Inner.Decode(data[off : off+int(l)])
		if err != nil {
			return nil, err
		}
		r.Upper = v
		off += int(l)
	}
	return r, nil
}

// EncodeArguments builds the positional-argument envelope for a query's
// input codecs: {i32 element_count; for each: i32 reserved=0; bytes
// value} (spec.md §4.E).
func EncodeArguments(codecs []Codec, values []interface{}) ([]byte, error) {
	if len(codecs) != len(values) {
		return nil, fmt.Errorf("codec: expected %d arguments, got %d", len(codecs), len(values))
	}
	dst := appendInt32(nil, int32(len(values)))
	for i, v := range values {
		dst = appendInt32(dst, 0) // reserved
		eb, err := codecs[i].Encode(nil, v)
		if err != nil {
			return nil, err
		}
		dst = appendInt32(dst, int32(len(eb)))
		dst = append(dst, eb...)
	}
	return dst, nil
}
