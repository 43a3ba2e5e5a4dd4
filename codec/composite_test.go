package codec

import "testing"

// TestEmptyArrayEnvelope is testable property 6: an ndims=0 envelope
// decodes to the empty sequence regardless of the inner codec.
func TestEmptyArrayEnvelope(t *testing.T) {
	inner := &ScalarCodec{Kind: KindInt32}
	ac := &ArrayCodec{Inner: inner}

	enc, err := ac.Encode(nil, []interface{}{})
	if err != nil {
		t.Fatal(err)
	}
	dec, err := ac.Decode(enc)
	if err != nil {
		t.Fatal(err)
	}
	got := dec.([]interface{})
	if len(got) != 0 {
		t.Fatalf("expected empty sequence, got %v", got)
	}
}

func TestArrayRoundTrip(t *testing.T) {
	inner := &ScalarCodec{Kind: KindInt32}
	ac := &ArrayCodec{Inner: inner}

	values := []interface{}{int32(1), int32(2), int32(3)}
	enc, err := ac.Encode(nil, values)
	if err != nil {
		t.Fatal(err)
	}
	dec, err := ac.Decode(enc)
	if err != nil {
		t.Fatal(err)
	}
	got := dec.([]interface{})
	if len(got) != 3 || got[0] != int32(1) || got[1] != int32(2) || got[2] != int32(3) {
		t.Fatalf("got %v", got)
	}
}

// TestEmptyTuple grounds the "Select ()" end-to-end scenario: the
// zero-length tuple round-trips to an empty value slice.
func TestEmptyTuple(t *testing.T) {
	tc := &TupleCodec{Elements: nil}
	enc, err := tc.Encode(nil, []interface{}{})
	if err != nil {
		t.Fatal(err)
	}
	dec, err := tc.Decode(enc)
	if err != nil {
		t.Fatal(err)
	}
	got := dec.([]interface{})
	if len(got) != 0 {
		t.Fatalf("expected zero-length tuple, got %v", got)
	}
}

func TestTupleRoundTrip(t *testing.T) {
	tc := &TupleCodec{Elements: []Codec{
		&ScalarCodec{Kind: KindInt32},
		&ScalarCodec{Kind: KindString},
	}}
	values := []interface{}{int32(42), "answer"}
	enc, err := tc.Encode(nil, values)
	if err != nil {
		t.Fatal(err)
	}
	dec, err := tc.Decode(enc)
	if err != nil {
		t.Fatal(err)
	}
	got := dec.([]interface{})
	if got[0] != int32(42) || got[1] != "answer" {
		t.Fatalf("got %v", got)
	}
}

// TestObjectFieldOrderAndFlags is testable property 7: object decoding
// preserves declared field order and flag bits.
func TestObjectFieldOrderAndFlags(t *testing.T) {
	oc := &ObjectCodec{Fields: []ObjectField{
		{Name: "id", Flags: FlagImplicit, Codec: &ScalarCodec{Kind: KindUUID}},
		{Name: "name", Flags: 0, Codec: &ScalarCodec{Kind: KindString}},
		{Name: "owner", Flags: FlagLink, Codec: &ScalarCodec{Kind: KindString}},
	}}

	nameBytes, _ := (&ScalarCodec{Kind: KindString}).Encode(nil, "widget")
	ownerBytes, _ := (&ScalarCodec{Kind: KindString}).Encode(nil, "alice")
	idBytes := make([]byte, 16)

	payload := encodeElementList([][]byte{idBytes, nameBytes, ownerBytes})

	dec, err := oc.Decode(payload)
	if err != nil {
		t.Fatal(err)
	}
	ov := dec.(ObjectValue)
	if len(ov.Fields) != 3 {
		t.Fatalf("expected 3 fields, got %d", len(ov.Fields))
	}
	if ov.Fields[0].Name != "id" || !ov.Fields[0].Flags.Implicit() {
		t.Fatalf("field 0 = %+v", ov.Fields[0])
	}
	if ov.Fields[1].Name != "name" || ov.Fields[1].Value != "widget" {
		t.Fatalf("field 1 = %+v", ov.Fields[1])
	}
	if ov.Fields[2].Name != "owner" || !ov.Fields[2].Flags.Link() || ov.Fields[2].Value != "alice" {
		t.Fatalf("field 2 = %+v", ov.Fields[2])
	}

	if _, err := oc.Encode(nil, ov); err == nil {
		t.Fatal("expected Object.Encode to be rejected (server-only)")
	}
}

func TestEncodeArguments(t *testing.T) {
	codecs := []Codec{&ScalarCodec{Kind: KindInt32}, &ScalarCodec{Kind: KindString}}
	out, err := EncodeArguments(codecs, []interface{}{int32(7), "x"})
	if err != nil {
		t.Fatal(err)
	}
	n, err := getInt32(out, 0)
	if err != nil || n != 2 {
		t.Fatalf("element count = %d, %v", n, err)
	}
}
