package wire

import (
	"bytes"
	"testing"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	w := NewWriter(0)
	w.PutUint8(0xAB)
	w.PutUint16(0x1234)
	w.PutUint32(0xDEADBEEF)
	w.PutUint64(0x0102030405060708)
	w.PutBytes([]byte("hello"))
	w.PutString("world")
	w.PutHeaders([]Header{{Code: 1, Value: []byte("a")}, {Code: 2, Value: []byte("bb")}})

	r := NewReader(w.Bytes())

	if v, err := r.GetUint8(); err != nil || v != 0xAB {
		t.Fatalf("GetUint8 = %v, %v", v, err)
	}
	if v, err := r.GetUint16(); err != nil || v != 0x1234 {
		t.Fatalf("GetUint16 = %v, %v", v, err)
	}
	if v, err := r.GetUint32(); err != nil || v != 0xDEADBEEF {
		t.Fatalf("GetUint32 = %v, %v", v, err)
	}
	if v, err := r.GetUint64(); err != nil || v != 0x0102030405060708 {
		t.Fatalf("GetUint64 = %v, %v", v, err)
	}
	if v, err := r.GetBytes(); err != nil || !bytes.Equal(v, []byte("hello")) {
		t.Fatalf("GetBytes = %v, %v", v, err)
	}
	if v, err := r.GetString(); err != nil || v != "world" {
		t.Fatalf("GetString = %q, %v", v, err)
	}
	hs, err := r.GetHeaders()
	if err != nil {
		t.Fatalf("GetHeaders: %v", err)
	}
	if len(hs) != 2 || hs[0].Code != 1 || string(hs[0].Value) != "a" || hs[1].Code != 2 || string(hs[1].Value) != "bb" {
		t.Fatalf("GetHeaders = %+v", hs)
	}
	if err := r.ExpectEnd(); err != nil {
		t.Fatalf("ExpectEnd: %v", err)
	}
}

func TestReaderShortRead(t *testing.T) {
	r := NewReader([]byte{0x01, 0x02})
	if _, err := r.GetUint32(); err == nil {
		t.Fatal("expected short read error")
	}
}

func TestReaderTrailingBytes(t *testing.T) {
	r := NewReader([]byte{0x01, 0x02, 0x03})
	if _, err := r.GetUint8(); err != nil {
		t.Fatal(err)
	}
	if err := r.ExpectEnd(); err == nil {
		t.Fatal("expected trailing bytes error")
	}
}
