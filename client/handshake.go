package client

import (
	"fmt"

	"github.com/ha1tch/veloq-go/config"
	verrors "github.com/ha1tch/veloq-go/pkg/errors"
	"github.com/ha1tch/veloq-go/pkg/version"
	"github.com/ha1tch/veloq-go/scram"
	"github.com/ha1tch/veloq-go/wire"
)

// handshakeLocked sends client_handshake and drives the
// handshake/authenticating/awaiting_ready sub-states through to idle.
// The caller must hold c.mu.
func (c *Conn) handshakeLocked(ep *config.Endpoint) error {
	c.state = StateHandshaking

	hs := wire.ClientHandshake{
		MajorVer: version.ProtocolMajor,
		MinorVer: version.ProtocolMinor,
		Params: []wire.ConnParam{
			{Name: "user", Value: ep.User},
			{Name: "database", Value: ep.Database},
		},
	}
	if err := c.send(hs.Encode()); err != nil {
		return verrors.ConnectionFailed(fmt.Sprintf("sending client_handshake: %v", err)).Err()
	}

	for {
		frame, err := c.framer.Next()
		if err != nil {
			return verrors.ConnectionFailed(fmt.Sprintf("reading handshake reply: %v", err)).Err()
		}

		switch wire.MessageType(frame.Type) {
		case wire.MsgServerHandshake:
			sh, err := wire.DecodeServerHandshake(frame.Payload)
			if err != nil {
				return verrors.Protocol(verrors.ErrCodeProtocolFraming, err.Error()).Err()
			}
			// testable property 9: major must match exactly; minor must
			// fall within the accepted range (currently a single value).
			if sh.MajorVer != version.ProtocolMajor ||
				sh.MinorVer < version.MinAcceptedMinor || sh.MinorVer > version.MaxAcceptedMinor {
				return verrors.Protocol(verrors.ErrCodeProtocolVersion,
					fmt.Sprintf("server requested unsupported protocol version %d.%d", sh.MajorVer, sh.MinorVer)).Err()
			}
			continue // wait for the next message without resending the handshake

		case wire.MsgAuthentication:
			am, err := wire.DecodeAuthMessage(frame.Payload)
			if err != nil {
				return verrors.Protocol(verrors.ErrCodeProtocolFraming, err.Error()).Err()
			}
			switch am.Subcode {
			case wire.AuthSubcodeOK:
				return c.awaitReadyLocked()
			case wire.AuthSubcodeSASL:
				if err := c.runSCRAMLocked(ep, am); err != nil {
					return err
				}
				return c.awaitReadyLocked()
			default:
				return verrors.Auth("unexpected authentication subcode during handshake").Err()
			}

		case wire.MsgErrorResponse:
			return c.surfaceErrorLocked(frame.Payload)

		default:
			return verrors.Protocol(verrors.ErrCodeProtocolUnknownTag,
				fmt.Sprintf("unexpected message %#x during handshake", frame.Type)).Err()
		}
	}
}

// runSCRAMLocked drives the SCRAM-SHA-256 sub-state machine of
// spec.md §4.H from the connection's authenticating state.
func (c *Conn) runSCRAMLocked(ep *config.Endpoint, am wire.AuthMessage) error {
	supported := false
	for _, m := range am.SASLMethods {
		if m == scram.Method {
			supported = true
			break
		}
	}
	if !supported {
		return verrors.Auth("server does not offer SCRAM-SHA-256").Err()
	}
	if ep.Password == "" {
		return verrors.Auth("server requires SCRAM-SHA-256 but no password was supplied").Err()
	}

	c.state = StateAuthenticating
	cl, err := scram.NewClient(ep.User, ep.Password)
	if err != nil {
		return verrors.Auth(fmt.Sprintf("preparing SCRAM client: %v", err)).Err()
	}

	first, err := cl.FirstMessage()
	if err != nil {
		return verrors.Auth(fmt.Sprintf("building client-first message: %v", err)).Err()
	}
	init := wire.AuthSASLInitialResponse{Method: scram.Method, SASLData: first}
	if err := c.send(init.Encode()); err != nil {
		return verrors.ConnectionFailed(err.Error()).Err()
	}

	serverFirst, err := c.nextAuthMessage(wire.AuthSubcodeSASLContinue)
	if err != nil {
		return err
	}
	final, err := cl.HandleServerFirst(serverFirst.SASLData)
	if err != nil {
		return verrors.Auth(fmt.Sprintf("processing server-first message: %v", err)).Err()
	}

	resp := wire.AuthSASLResponse{SASLData: final}
	if err := c.send(resp.Encode()); err != nil {
		return verrors.ConnectionFailed(err.Error()).Err()
	}

	serverFinal, err := c.nextAuthMessage(wire.AuthSubcodeSASLFinal)
	if err != nil {
		return err
	}
	if err := cl.HandleServerFinal(serverFinal.SASLData); err != nil {
		return verrors.Auth(fmt.Sprintf("server signature verification failed: %v", err)).Err()
	}

	final2, err := c.nextAuthMessage(wire.AuthSubcodeOK)
	if err != nil {
		return err
	}
	_ = final2
	return nil
}

// nextAuthMessage reads one frame, surfacing a server error_response or
// a protocol error, and requires it be an authentication message with
// the given subcode.
func (c *Conn) nextAuthMessage(wantSubcode uint32) (wire.AuthMessage, error) {
	frame, err := c.framer.Next()
	if err != nil {
		return wire.AuthMessage{}, verrors.ConnectionFailed(err.Error()).Err()
	}
	if wire.MessageType(frame.Type) == wire.MsgErrorResponse {
		return wire.AuthMessage{}, c.surfaceErrorLocked(frame.Payload)
	}
	am, err := wire.DecodeAuthMessage(frame.Payload)
	if err != nil {
		return wire.AuthMessage{}, verrors.Protocol(verrors.ErrCodeProtocolFraming, err.Error()).Err()
	}
	if am.Subcode != wantSubcode {
		return wire.AuthMessage{}, verrors.Auth(
			fmt.Sprintf("unexpected authentication subcode %#x, expected %#x", am.Subcode, wantSubcode)).Err()
	}
	return am, nil
}

// awaitReadyLocked consumes server_key_data and parameter_status until
// ready_for_command, setting transaction_state and returning to idle
// (spec.md §4.G "Await-ready"). The caller must hold c.mu.
func (c *Conn) awaitReadyLocked() error {
	c.state = StateAwaitingReady
	for {
		frame, err := c.framer.Next()
		if err != nil {
			c.state = StateFailed
			return verrors.ConnectionFailed(err.Error()).Err()
		}

		switch wire.MessageType(frame.Type) {
		case wire.MsgServerKeyData:
			kd, err := wire.DecodeServerKeyData(frame.Payload)
			if err != nil {
				c.state = StateFailed
				return verrors.Protocol(verrors.ErrCodeProtocolFraming, err.Error()).Err()
			}
			c.serverKeyData = kd.Data

		case wire.MsgParameterStatus:
			ps, err := wire.DecodeParameterStatus(frame.Payload)
			if err != nil {
				c.state = StateFailed
				return verrors.Protocol(verrors.ErrCodeProtocolFraming, err.Error()).Err()
			}
			if c.paramStatus == nil {
				c.paramStatus = make(map[string]string)
			}
			c.paramStatus[string(ps.Name)] = string(ps.Value)

		case wire.MsgReadyForCommand:
			rfc, err := wire.DecodeReadyForCommand(frame.Payload)
			if err != nil {
				c.state = StateFailed
				return verrors.Protocol(verrors.ErrCodeProtocolFraming, err.Error()).Err()
			}
			c.transactionState = rfc.TransactionState
			c.state = StateIdle
			return nil

		case wire.MsgErrorResponse:
			return c.surfaceErrorLocked(frame.Payload)

		default:
			c.state = StateFailed
			return verrors.Protocol(verrors.ErrCodeProtocolUnknownTag,
				fmt.Sprintf("unexpected message %#x while awaiting ready", frame.Type)).Err()
		}
	}
}

func (c *Conn) surfaceErrorLocked(payload []byte) error {
	c.state = StateFailed
	er, err := wire.DecodeErrorResponse(payload)
	if err != nil {
		return verrors.Protocol(verrors.ErrCodeProtocolFraming, fmt.Sprintf("decoding error_response: %v", err)).Err()
	}
	return verrors.Server(er.Code, er.Message).Err()
}
