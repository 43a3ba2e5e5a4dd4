package client

import (
	"testing"

	"github.com/ha1tch/veloq-go/config"
	"github.com/ha1tch/veloq-go/pkg/errors"
	"github.com/ha1tch/veloq-go/pkg/version"
	"github.com/ha1tch/veloq-go/wire"
)

func TestHandshakeAuthOKReachesIdle(t *testing.T) {
	c, server, sf := newTestConn(t)
	ep := &config.Endpoint{User: "u", Database: "d"}

	done := make(chan error, 1)
	go func() { done <- c.handshakeLocked(ep) }()

	f := readFrame(t, sf)
	if wire.MessageType(f.Type) != wire.MsgClientHandshake {
		t.Fatalf("expected client_handshake, got %#x", f.Type)
	}

	writeFrames(t, server,
		frameAuthOK(),
		frameServerKeyData([]byte{1, 2, 3, 4}),
		frameParameterStatus("pgversion", "1"),
		frameReadyForCommand(wire.TxNotInTransaction),
	)

	if err := <-done; err != nil {
		t.Fatalf("unexpected handshake error: %v", err)
	}
	if c.state != StateIdle {
		t.Fatalf("state = %v, want idle", c.state)
	}
	if c.transactionState != wire.TxNotInTransaction {
		t.Fatalf("transactionState = %v", c.transactionState)
	}
	if string(c.serverKeyData) != "\x01\x02\x03\x04" {
		t.Fatalf("serverKeyData not preserved: %v", c.serverKeyData)
	}
	if v, ok := c.paramStatus["pgversion"]; !ok || v != "1" {
		t.Fatalf("parameter_status not recorded: %v", c.paramStatus)
	}
}

// testable property: a server_handshake naming an unsupported major or
// out-of-range minor version is a fatal protocol error.
func TestHandshakeRejectsUnsupportedVersion(t *testing.T) {
	c, server, sf := newTestConn(t)
	ep := &config.Endpoint{User: "u", Database: "d"}

	done := make(chan error, 1)
	go func() { done <- c.handshakeLocked(ep) }()

	readFrame(t, sf) // client_handshake
	writeFrames(t, server, frameServerHandshake(version.ProtocolMajor+1, version.ProtocolMinor))

	err := <-done
	if err == nil {
		t.Fatal("expected an error for an unsupported protocol version")
	}
	if errors.GetCode(err) != errors.ErrCodeProtocolVersion {
		t.Fatalf("error code = %v, want ErrCodeProtocolVersion", errors.GetCode(err))
	}
}

func TestHandshakeRejectsTooLowMinorVersion(t *testing.T) {
	c, server, sf := newTestConn(t)
	ep := &config.Endpoint{User: "u", Database: "d"}

	done := make(chan error, 1)
	go func() { done <- c.handshakeLocked(ep) }()

	readFrame(t, sf)
	writeFrames(t, server, frameServerHandshake(version.ProtocolMajor, version.MinAcceptedMinor-1))

	err := <-done
	if err == nil {
		t.Fatal("expected an error for a minor version below the accepted range")
	}
	if errors.GetCode(err) != errors.ErrCodeProtocolVersion {
		t.Fatalf("error code = %v, want ErrCodeProtocolVersion", errors.GetCode(err))
	}
}

func TestHandshakeAcceptsNegotiatedMinorVersion(t *testing.T) {
	c, server, sf := newTestConn(t)
	ep := &config.Endpoint{User: "u", Database: "d"}

	done := make(chan error, 1)
	go func() { done <- c.handshakeLocked(ep) }()

	readFrame(t, sf)
	writeFrames(t, server,
		frameServerHandshake(version.ProtocolMajor, version.MaxAcceptedMinor),
		frameAuthOK(),
		frameReadyForCommand(wire.TxNotInTransaction),
	)

	if err := <-done; err != nil {
		t.Fatalf("unexpected error negotiating the in-range minor version: %v", err)
	}
}

func TestHandshakeSurfacesErrorResponse(t *testing.T) {
	c, server, sf := newTestConn(t)
	ep := &config.Endpoint{User: "u", Database: "d"}

	done := make(chan error, 1)
	go func() { done <- c.handshakeLocked(ep) }()

	readFrame(t, sf)
	writeFrames(t, server, frameErrorResponse(1234, "bad credentials"))

	err := <-done
	if err == nil {
		t.Fatal("expected an error")
	}
	if errors.GetCode(err) != errors.ErrCodeServerError {
		t.Fatalf("error code = %v, want ErrCodeServerError", errors.GetCode(err))
	}
	if c.state != StateFailed {
		t.Fatalf("state = %v, want failed", c.state)
	}
}
