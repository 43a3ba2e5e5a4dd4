package client

import (
	"net"
	"testing"

	"github.com/ha1tch/veloq-go/codec"
	"github.com/ha1tch/veloq-go/pkg/log"
	"github.com/ha1tch/veloq-go/wire"
)

// newTestConn returns a Conn whose netConn/framer are wired to one end
// of an in-process pipe, and the other end for a fake-server goroutine
// to drive. Tests exercise the locked state-machine methods directly,
// bypassing TLS (covered separately by conn_test.go's TLS config unit
// tests).
func newTestConn(t *testing.T) (*Conn, net.Conn, *wire.Framer) {
	t.Helper()
	client, server := net.Pipe()
	c := NewConn(Options{Logger: log.Null()})
	c.netConn = client
	c.framer = wire.NewFramer(client, nil, c.logger)
	serverFramer := wire.NewFramer(server, nil, log.Null())
	t.Cleanup(func() { client.Close(); server.Close() })
	return c, server, serverFramer
}

func writeFrames(t *testing.T, conn net.Conn, frames ...wire.Frame) {
	t.Helper()
	if err := wire.WriteFrames(conn, frames...); err != nil {
		t.Fatalf("writing test frames: %v", err)
	}
}

func readFrame(t *testing.T, f *wire.Framer) wire.Frame {
	t.Helper()
	frame, err := f.Next()
	if err != nil {
		t.Fatalf("reading client frame: %v", err)
	}
	return frame
}

// float32TypeID/stringTypeID locate the well-known base scalar ids
// registered for std::float32/std::str.
func float32TypeID() codec.TypeID {
	for id, kind := range codec.BaseScalarTypeIDs {
		if kind == codec.KindFloat32 {
			return id
		}
	}
	panic("no float32 base scalar registered")
}

func stringTypeID() codec.TypeID {
	for id, kind := range codec.BaseScalarTypeIDs {
		if kind == codec.KindString {
			return id
		}
	}
	panic("no string base scalar registered")
}

// buildTupleDescriptor returns a descriptor blob for tuple(float32) at
// typeID, suitable as either an input or output shape.
func buildTupleDescriptor(typeID codec.TypeID) []byte {
	w := wire.NewWriter(0)
	f32 := float32TypeID()
	w.PutUint8(codec.TagBaseScalar)
	w.PutRaw(f32[:])
	w.PutUint8(codec.TagTuple)
	w.PutRaw(typeID[:])
	w.PutUint16(1)
	w.PutUint16(0)
	return w.Bytes()
}

// buildEmptyTupleDescriptor returns a descriptor blob for a zero-arity
// tuple (spec.md §8 "empty tuple" scenario).
func buildEmptyTupleDescriptor(typeID codec.TypeID) []byte {
	w := wire.NewWriter(0)
	w.PutUint8(codec.TagTuple)
	w.PutRaw(typeID[:])
	w.PutUint16(0)
	return w.Bytes()
}

// The helpers below build raw frames for server->client message kinds
// that (unlike client->server ones) have no Encode method in wire,
// since a real server never needs to decode its own replies.

func frameServerHandshake(major, minor uint16) wire.Frame {
	w := wire.NewWriter(0)
	w.PutUint16(major)
	w.PutUint16(minor)
	w.PutUint16(0) // no extensions
	return wire.Frame{Type: byte(wire.MsgServerHandshake), Payload: w.Bytes()}
}

func frameAuthOK() wire.Frame {
	w := wire.NewWriter(0)
	w.PutUint32(wire.AuthSubcodeOK)
	return wire.Frame{Type: byte(wire.MsgAuthentication), Payload: w.Bytes()}
}

func frameServerKeyData(data []byte) wire.Frame {
	w := wire.NewWriter(0)
	w.PutRaw(data)
	return wire.Frame{Type: byte(wire.MsgServerKeyData), Payload: w.Bytes()}
}

func frameParameterStatus(name, value string) wire.Frame {
	w := wire.NewWriter(0)
	w.PutBytes([]byte(name))
	w.PutBytes([]byte(value))
	return wire.Frame{Type: byte(wire.MsgParameterStatus), Payload: w.Bytes()}
}

func frameReadyForCommand(ts wire.TransactionState) wire.Frame {
	w := wire.NewWriter(0)
	w.PutHeaders(nil)
	w.PutUint8(uint8(ts))
	return wire.Frame{Type: byte(wire.MsgReadyForCommand), Payload: w.Bytes()}
}

func framePrepareComplete(cardinality wire.Cardinality, inputID, outputID codec.TypeID) wire.Frame {
	w := wire.NewWriter(0)
	w.PutHeaders(nil)
	w.PutUint8(uint8(cardinality))
	w.PutRaw(inputID[:])
	w.PutRaw(outputID[:])
	return wire.Frame{Type: byte(wire.MsgPrepareComplete), Payload: w.Bytes()}
}

func frameCommandDataDescription(cardinality wire.Cardinality, inputID codec.TypeID, inputDesc []byte, outputID codec.TypeID, outputDesc []byte) wire.Frame {
	w := wire.NewWriter(0)
	w.PutHeaders(nil)
	w.PutUint8(uint8(cardinality))
	w.PutRaw(inputID[:])
	w.PutBytes(inputDesc)
	w.PutRaw(outputID[:])
	w.PutBytes(outputDesc)
	return wire.Frame{Type: byte(wire.MsgCommandDataDescription), Payload: w.Bytes()}
}

func frameData(elements ...[]byte) wire.Frame {
	w := wire.NewWriter(0)
	w.PutUint16(uint16(len(elements)))
	for _, e := range elements {
		w.PutBytes(e)
	}
	return wire.Frame{Type: byte(wire.MsgData), Payload: w.Bytes()}
}

func frameCommandComplete(status string) wire.Frame {
	w := wire.NewWriter(0)
	w.PutHeaders(nil)
	w.PutString(status)
	return wire.Frame{Type: byte(wire.MsgCommandComplete), Payload: w.Bytes()}
}

func frameErrorResponse(code uint32, message string) wire.Frame {
	w := wire.NewWriter(0)
	w.PutUint8(2) // severity: error
	w.PutUint32(code)
	w.PutString(message)
	w.PutHeaders(nil)
	return wire.Frame{Type: byte(wire.MsgErrorResponse), Payload: w.Bytes()}
}
