// Package codec implements the type-descriptor parser, codec factory,
// and value codec library: it turns a server-supplied descriptor blob
// into a recursive codec tree and uses that tree to encode query
// arguments and decode result rows (spec.md §4.D, §4.E).
package codec

import (
	"encoding/hex"
	"fmt"
)

// TypeID is the 16-byte server-assigned identifier for a type. Two
// codecs sharing a TypeID are behaviourally identical; the codec cache
// keys on TypeID alone.
type TypeID [16]byte

func (id TypeID) String() string {
	return hex.EncodeToString(id[:])
}

// ElementFlags mark per-element behaviour inside an Object/Shape
// descriptor (spec.md §4.D).
type ElementFlags uint8

const (
	FlagImplicit     ElementFlags = 1 << 0 // synthetic field, e.g. id
	FlagLinkProperty ElementFlags = 1 << 1
	FlagLink         ElementFlags = 1 << 2
)

func (f ElementFlags) Implicit() bool     { return f&FlagImplicit != 0 }
func (f ElementFlags) LinkProperty() bool { return f&FlagLinkProperty != 0 }
func (f ElementFlags) Link() bool         { return f&FlagLink != 0 }

// Codec encodes Go values into wire bytes and decodes wire bytes back
// into Go values for one server-described type.
type Codec interface {
	ID() TypeID
	// Encode appends value's wire encoding to dst, rejecting values
	// outside the codec's domain with an error (the client reports it
	// to its caller as an invalid_argument_error).
	Encode(dst []byte, value interface{}) ([]byte, error)
	// Decode consumes data (the full element payload, envelope already
	// stripped by the caller for composites) and returns the Go value.
	Decode(data []byte) (interface{}, error)
}

// ScalarCodec handles one base or aliased scalar type.
type ScalarCodec struct {
	TypeID TypeID
	Kind   PrimitiveKind
}

func (c *ScalarCodec) ID() TypeID { return c.TypeID }

// ArrayCodec is a one-dimensional array with envelope framing
// (length:i32, ndims:i32, reserved:i32, dim_length:i32, lower:i32,
// elements...).
type ArrayCodec struct {
	TypeID TypeID
	Inner  Codec
}

func (c *ArrayCodec) ID() TypeID { return c.TypeID }

// SetCodec is like ArrayCodec but may be empty or carry ndims=0.
type SetCodec struct {
	TypeID TypeID
	Inner  Codec
}

func (c *SetCodec) ID() TypeID { return c.TypeID }

// TupleCodec is a fixed-arity ordered sequence of heterogeneous codecs.
type TupleCodec struct {
	TypeID   TypeID
	Elements []Codec
}

func (c *TupleCodec) ID() TypeID { return c.TypeID }

// NamedTupleCodec is a TupleCodec whose elements also carry names.
type NamedTupleCodec struct {
	TypeID TypeID
	Names  []string
	Elems  []Codec
}

func (c *NamedTupleCodec) ID() TypeID { return c.TypeID }

// ObjectField is one element of an Object/Shape codec.
type ObjectField struct {
	Name  string
	Flags ElementFlags
	Codec Codec
}

// ObjectCodec decodes server rows into an ordered field mapping;
// encoding is rejected since objects are server-only (spec.md §4.E).
type ObjectCodec struct {
	TypeID TypeID
	Fields []ObjectField
}

func (c *ObjectCodec) ID() TypeID { return c.TypeID }

// EnumCodec encodes/decodes a string constrained to a fixed label set.
type EnumCodec struct {
	TypeID TypeID
	Labels []string
}

func (c *EnumCodec) ID() TypeID { return c.TypeID }

// RangeCodec wraps an inner scalar with a present/empty/bound envelope.
type RangeCodec struct {
	TypeID TypeID
	Inner  Codec
}

func (c *RangeCodec) ID() TypeID { return c.TypeID }

// Range is the decoded value of a RangeCodec.
type Range struct {
	Empty         bool
	Lower         interface{}
	Upper         interface{}
	LowerInclusive bool
	UpperInclusive bool
}

// NamedTupleValue is the decoded value of a NamedTupleCodec: an ordered
// mapping that is also indexable by position (spec.md §4.E).
type NamedTupleValue struct {
	Names  []string
	Values []interface{}
}

// Get returns the value for a named field, or (nil, false) if absent.
func (v NamedTupleValue) Get(name string) (interface{}, bool) {
	for i, n := range v.Names {
		if n == name {
			return v.Values[i], true
		}
	}
	return nil, false
}

// ObjectValue is the decoded value of an ObjectCodec: an ordered field
// mapping tagging each field with its flags.
type ObjectValue struct {
	Fields []ObjectFieldValue
}

// ObjectFieldValue is one decoded field of an ObjectValue.
type ObjectFieldValue struct {
	Name  string
	Flags ElementFlags
	Value interface{}
}

// Get returns the value for a named field, or (nil, false) if absent.
func (v ObjectValue) Get(name string) (interface{}, bool) {
	for _, f := range v.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

func fmtTypeMismatch(kind PrimitiveKind, v interface{}) error {
	return fmt.Errorf("value can not be encoded as %s: %#v", kind, v)
}
