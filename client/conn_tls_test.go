package client

import (
	"context"
	"crypto/tls"
	"net"
	"testing"
	"time"

	"github.com/ha1tch/veloq-go/config"
	"github.com/ha1tch/veloq-go/pkg/tlsutil"
	"github.com/ha1tch/veloq-go/wire"
)

// TestConnectOverRealTLSInsecureMode dials a real TLS listener (rather
// than bypassing TLS via net.Pipe, as the rest of this package's tests
// do) to exercise buildTLSConfig's insecure mode against an actual
// handshake, using a throwaway self-signed certificate.
func TestConnectOverRealTLSInsecureMode(t *testing.T) {
	tlsCfg, err := tlsutil.GenerateSelfSignedCert()
	if err != nil {
		t.Fatalf("generating self-signed cert: %v", err)
	}

	ln, err := tls.Listen("tcp", "127.0.0.1:0", tlsCfg)
	if err != nil {
		t.Fatalf("listening: %v", err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		accepted <- conn
	}()

	addr := ln.Addr().(*net.TCPAddr)
	ep := &config.Endpoint{
		Addrs:          []config.HostPort{{Host: "127.0.0.1", Port: addr.Port}},
		User:           "u",
		Database:       "d",
		TLSSecurity:    config.TLSInsecure,
		ConnectTimeout: 2 * time.Second,
	}

	c := NewConn(Options{})
	done := make(chan error, 1)
	go func() { done <- c.Connect(context.Background(), ep) }()

	var serverConn net.Conn
	select {
	case serverConn = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("server never accepted a connection")
	}
	defer serverConn.Close()

	server := wire.NewFramer(serverConn, nil, nil)
	f, err := server.Next()
	if err != nil {
		t.Fatalf("reading client_handshake over real TLS: %v", err)
	}
	if wire.MessageType(f.Type) != wire.MsgClientHandshake {
		t.Fatalf("expected client_handshake, got %#x", f.Type)
	}

	if err := wire.WriteFrames(serverConn,
		frameAuthOK(),
		frameReadyForCommand(wire.TxNotInTransaction),
	); err != nil {
		t.Fatalf("writing handshake reply: %v", err)
	}

	if err := <-done; err != nil {
		t.Fatalf("Connect over real TLS failed: %v", err)
	}
	if c.State() != StateIdle {
		t.Fatalf("state = %v, want idle", c.State())
	}
}
