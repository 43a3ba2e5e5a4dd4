package client

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"

	"github.com/ha1tch/veloq-go/config"
	verrors "github.com/ha1tch/veloq-go/pkg/errors"
	"github.com/ha1tch/veloq-go/wire"
)

// Connect dials the first reachable address in ep.Addrs, negotiates
// TLS, and runs the handshake and authentication sub-states through to
// idle (spec.md §4.G). A nil or empty address list is rejected before
// any socket is opened (testable property 8).
func (c *Conn) Connect(ctx context.Context, ep *config.Endpoint) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ep == nil || len(ep.Addrs) == 0 {
		return verrors.NoEndpoints().Err()
	}

	c.endpoint = ep
	c.state = StateTCPTLSConnecting

	var lastErr error
	var conn *tls.Conn
	for _, addr := range ep.Addrs {
		var err error
		conn, err = dialTLS(ctx, addr, ep)
		if err != nil {
			lastErr = err
			continue
		}
		lastErr = nil
		break
	}
	if lastErr != nil {
		c.state = StateFailed
		return verrors.ConnectionFailed(fmt.Sprintf("connecting: %v", lastErr)).Err()
	}

	c.netConn = conn
	c.framer = wire.NewFramer(conn, nil, c.logger)

	if err := c.handshakeLocked(ep); err != nil {
		c.teardownLocked()
		return err
	}
	return nil
}

func dialTLS(ctx context.Context, addr config.HostPort, ep *config.Endpoint) (*tls.Conn, error) {
	d := net.Dialer{Timeout: ep.ConnectTimeout}
	raw, err := d.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", addr.Host, addr.Port))
	if err != nil {
		return nil, err
	}
	tlsConn := tls.Client(raw, buildTLSConfig(ep))
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		raw.Close()
		return nil, err
	}
	return tlsConn, nil
}

// buildTLSConfig translates an Endpoint's derived TLS security mode
// (config.Resolve) into a *tls.Config (spec.md §3, §6).
func buildTLSConfig(ep *config.Endpoint) *tls.Config {
	cfg := &tls.Config{
		MinVersion: tls.VersionTLS12,
		NextProtos: []string{config.ALPNProtocol},
		ServerName: ep.TLSServerName,
	}

	var pool *x509.CertPool
	if len(ep.TLSCA) > 0 {
		pool = x509.NewCertPool()
		pool.AppendCertsFromPEM(ep.TLSCA)
	}

	switch ep.TLSSecurity {
	case config.TLSInsecure:
		cfg.InsecureSkipVerify = true
	case config.TLSNoHostVerification:
		// Verify the certificate chain (against the supplied CA, or the
		// system pool if none was given) but skip the hostname check.
		cfg.InsecureSkipVerify = true
		cfg.VerifyPeerCertificate = verifyChainIgnoringHostname(pool)
	default: // strict
		if pool != nil {
			cfg.RootCAs = pool
		}
	}
	return cfg
}

func verifyChainIgnoringHostname(pool *x509.CertPool) func([][]byte, [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		if len(rawCerts) == 0 {
			return fmt.Errorf("tls: no certificates presented by server")
		}
		certs := make([]*x509.Certificate, len(rawCerts))
		for i, raw := range rawCerts {
			cert, err := x509.ParseCertificate(raw)
			if err != nil {
				return fmt.Errorf("tls: parsing server certificate: %w", err)
			}
			certs[i] = cert
		}
		intermediates := x509.NewCertPool()
		for _, cert := range certs[1:] {
			intermediates.AddCert(cert)
		}
		_, err := certs[0].Verify(x509.VerifyOptions{
			Roots:         pool,
			Intermediates: intermediates,
		})
		return err
	}
}

// Close sends terminate and closes the socket unconditionally; any
// reply received after terminate is ignored (spec.md §4.G).
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateClosed || c.state == StateDisconnected {
		return nil
	}
	if c.netConn != nil {
		_ = c.send(wire.Terminate{}.Encode())
	}
	var err error
	if c.netConn != nil {
		err = c.netConn.Close()
	}
	c.state = StateClosed
	return err
}
