// Package wire implements the primitive codec kit, message framer, and
// message catalogue for the driver's binary wire protocol: fixed-width
// integers, length-prefixed bytes/strings, headers, and the client<->server
// message structs built out of them.
//
// Decoders read a byte slice through a Reader cursor: each returns the
// decoded value and advances the cursor past it, and fails only when the
// slice is shorter than the field declares (spec.md §4.A).
package wire

import (
	"encoding/binary"
	"fmt"
)

// Header is one entry of a client<->server header list: a 16-bit code and
// an opaque byte value.
type Header struct {
	Code  uint16
	Value []byte
}

// Writer accumulates encoded bytes for a single outbound message payload.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty Writer, optionally pre-sized.
func NewWriter(sizeHint int) *Writer {
	return &Writer{buf: make([]byte, 0, sizeHint)}
}

// Bytes returns the accumulated payload.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

func (w *Writer) PutUint8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *Writer) PutInt8(v int8) {
	w.PutUint8(uint8(v))
}

func (w *Writer) PutUint16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) PutInt16(v int16) {
	w.PutUint16(uint16(v))
}

func (w *Writer) PutUint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) PutInt32(v int32) {
	w.PutUint32(uint32(v))
}

func (w *Writer) PutUint64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) PutInt64(v int64) {
	w.PutUint64(uint64(v))
}

// PutBytes writes a u32 length prefix followed by the raw bytes.
func (w *Writer) PutBytes(b []byte) {
	w.PutUint32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}

// PutRaw appends bytes with no length prefix (used for fixed-size fields
// like a 16-byte type id).
func (w *Writer) PutRaw(b []byte) {
	w.buf = append(w.buf, b...)
}

// PutString writes a u32-length-prefixed UTF-8 string.
func (w *Writer) PutString(s string) {
	w.PutBytes([]byte(s))
}

// PutHeader writes a single (code:u16, value:bytes) header.
func (w *Writer) PutHeader(h Header) {
	w.PutUint16(h.Code)
	w.PutBytes(h.Value)
}

// PutHeaders writes a counted sequence of headers: u16 n, then n headers.
func (w *Writer) PutHeaders(hs []Header) {
	w.PutUint16(uint16(len(hs)))
	for _, h := range hs {
		w.PutHeader(h)
	}
}

// Reader decodes primitives from a byte slice, consuming it left to right.
// Every Get* method fails with an error if the declared field would read
// past the end of the remaining slice; it never allocates a short-read
// buffer.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps b for sequential decoding.
func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Remaining returns the number of unconsumed bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

// Rest returns the unconsumed tail without advancing the cursor.
func (r *Reader) Rest() []byte { return r.buf[r.pos:] }

// AtEnd reports whether all bytes have been consumed.
func (r *Reader) AtEnd() bool { return r.pos >= len(r.buf) }

func (r *Reader) need(n int) error {
	if r.Remaining() < n {
		return fmt.Errorf("wire: short read: need %d bytes, have %d", n, r.Remaining())
	}
	return nil
}

func (r *Reader) GetUint8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *Reader) GetInt8() (int8, error) {
	v, err := r.GetUint8()
	return int8(v), err
}

func (r *Reader) GetUint16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *Reader) GetInt16() (int16, error) {
	v, err := r.GetUint16()
	return int16(v), err
}

func (r *Reader) GetUint32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *Reader) GetInt32() (int32, error) {
	v, err := r.GetUint32()
	return int32(v), err
}

func (r *Reader) GetUint64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *Reader) GetInt64() (int64, error) {
	v, err := r.GetUint64()
	return int64(v), err
}

// GetRaw reads exactly n raw bytes with no length prefix.
func (r *Reader) GetRaw(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// GetBytes reads a u32-length-prefixed byte slice.
func (r *Reader) GetBytes() ([]byte, error) {
	n, err := r.GetUint32()
	if err != nil {
		return nil, err
	}
	return r.GetRaw(int(n))
}

// GetString reads a u32-length-prefixed UTF-8 string.
func (r *Reader) GetString() (string, error) {
	b, err := r.GetBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// GetHeader reads one (code:u16, value:bytes) header.
func (r *Reader) GetHeader() (Header, error) {
	code, err := r.GetUint16()
	if err != nil {
		return Header{}, err
	}
	value, err := r.GetBytes()
	if err != nil {
		return Header{}, err
	}
	return Header{Code: code, Value: value}, nil
}

// GetHeaders reads a counted sequence of headers: u16 n, then n headers.
func (r *Reader) GetHeaders() ([]Header, error) {
	n, err := r.GetUint16()
	if err != nil {
		return nil, err
	}
	hs := make([]Header, 0, n)
	for i := 0; i < int(n); i++ {
		h, err := r.GetHeader()
		if err != nil {
			return nil, err
		}
		hs = append(hs, h)
	}
	return hs, nil
}

// ExpectEnd fails if the reader has trailing, undeclared bytes: decoders
// must consume the entire message payload (spec.md §4.C).
func (r *Reader) ExpectEnd() error {
	if !r.AtEnd() {
		return fmt.Errorf("wire: %d trailing bytes after decode", r.Remaining())
	}
	return nil
}
