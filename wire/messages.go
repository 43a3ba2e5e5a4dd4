package wire

import "fmt"

// MessageType is the one-byte tag identifying a frame's payload shape
// (spec.md §4.C).
type MessageType byte

const (
	// Client -> server
	MsgClientHandshake            MessageType = 0x56
	MsgAuthSASLInitialResponse     MessageType = 0x70
	MsgAuthSASLResponse            MessageType = 0x72
	MsgPrepare                     MessageType = 0x50
	MsgDescribeStatement           MessageType = 0x44
	MsgExecute                     MessageType = 0x45
	MsgOptimisticExecute           MessageType = 0x4F
	MsgExecuteScript               MessageType = 0x51
	MsgFlush                       MessageType = 0x48
	MsgSync                        MessageType = 0x53
	MsgTerminate                   MessageType = 0x58

	// Server -> client
	MsgServerHandshake         MessageType = 0x76
	MsgAuthentication          MessageType = 0x52 // subcoded: ok / sasl / sasl_continue / sasl_final
	MsgServerKeyData           MessageType = 0x4B
	MsgParameterStatus         MessageType = 0x53
	MsgReadyForCommand         MessageType = 0x5A
	MsgPrepareComplete         MessageType = 0x31
	MsgCommandDataDescription  MessageType = 0x54
	MsgData                    MessageType = 0x44
	MsgCommandComplete         MessageType = 0x43
	MsgErrorResponse           MessageType = 0x45
	MsgLogMessage              MessageType = 0x4C
	MsgDumpBlock               MessageType = 0x3D
)

// Authentication subcodes, carried as the first u32 of an Authentication
// (0x52) payload.
const (
	AuthSubcodeOK           uint32 = 0
	AuthSubcodeSASL         uint32 = 0x0A
	AuthSubcodeSASLContinue uint32 = 0x0B
	AuthSubcodeSASLFinal    uint32 = 0x0C
)

// Cardinality is the expected or reported shape of a query's result set.
type Cardinality uint8

const (
	CardinalityNoResult   Cardinality = 0x6E // 'n'
	CardinalityAtMostOne  Cardinality = 0x6F // 'o'
	CardinalityOne        Cardinality = 0x41 // 'A'
	CardinalityMany       Cardinality = 0x6D // 'm'
)

// IOFormat selects how the server encodes result rows.
type IOFormat uint8

const (
	IOFormatBinary      IOFormat = 0x62 // 'b'
	IOFormatJSON        IOFormat = 0x6A // 'j'
	IOFormatJSONElements IOFormat = 0x4A // 'J'
)

// DescribeAspect selects what describe_statement asks for.
type DescribeAspect uint8

const (
	DescribeAspectDataDescription DescribeAspect = 0x54 // 'T'
)

// TransactionState is the connection's current transaction status, as
// reported by ready_for_command.
type TransactionState uint8

const (
	TxNotInTransaction   TransactionState = 0x49 // 'I'
	TxInTransaction      TransactionState = 0x54 // 'T'
	TxInFailedTransaction TransactionState = 0x45 // 'E'
)

// ConnParam is one client_handshake connection parameter (e.g. user,
// database).
type ConnParam struct {
	Name  string
	Value string
}

// ProtocolExtension is a named, header-bearing handshake extension. The
// driver never requests any, but the wire format carries the field.
type ProtocolExtension struct {
	Name    string
	Headers []Header
}

// ---- Client -> server ----

// ClientHandshake is the first message sent on a new connection.
type ClientHandshake struct {
	MajorVer   uint16
	MinorVer   uint16
	Params     []ConnParam
	Extensions []ProtocolExtension
}

func (m ClientHandshake) Encode() Frame {
	w := NewWriter(64)
	w.PutUint16(m.MajorVer)
	w.PutUint16(m.MinorVer)
	w.PutUint16(uint16(len(m.Params)))
	for _, p := range m.Params {
		w.PutString(p.Name)
		w.PutString(p.Value)
	}
	w.PutUint16(uint16(len(m.Extensions)))
	for _, e := range m.Extensions {
		w.PutString(e.Name)
		w.PutHeaders(e.Headers)
	}
	return Frame{Type: byte(MsgClientHandshake), Payload: w.Bytes()}
}

// AuthSASLInitialResponse begins a SCRAM exchange.
type AuthSASLInitialResponse struct {
	Method   string
	SASLData []byte
}

func (m AuthSASLInitialResponse) Encode() Frame {
	w := NewWriter(32 + len(m.SASLData))
	w.PutString(m.Method)
	w.PutBytes(m.SASLData)
	return Frame{Type: byte(MsgAuthSASLInitialResponse), Payload: w.Bytes()}
}

// AuthSASLResponse carries a SCRAM client-final message.
type AuthSASLResponse struct {
	SASLData []byte
}

func (m AuthSASLResponse) Encode() Frame {
	w := NewWriter(16 + len(m.SASLData))
	w.PutBytes(m.SASLData)
	return Frame{Type: byte(MsgAuthSASLResponse), Payload: w.Bytes()}
}

// Prepare requests the server parse and cache a statement.
type Prepare struct {
	Headers             []Header
	IOFormat            IOFormat
	ExpectedCardinality Cardinality
	CommandText         string
}

func (m Prepare) Encode() Frame {
	w := NewWriter(32 + len(m.CommandText))
	w.PutHeaders(m.Headers)
	w.PutUint8(uint8(m.IOFormat))
	w.PutUint8(uint8(m.ExpectedCardinality))
	w.PutString(m.CommandText)
	return Frame{Type: byte(MsgPrepare), Payload: w.Bytes()}
}

// DescribeStatement asks the server to resend a prepared statement's type
// descriptors.
type DescribeStatement struct {
	Headers       []Header
	Aspect        DescribeAspect
	StatementName []byte
}

func (m DescribeStatement) Encode() Frame {
	w := NewWriter(16)
	w.PutHeaders(m.Headers)
	w.PutUint8(uint8(m.Aspect))
	w.PutBytes(m.StatementName)
	return Frame{Type: byte(MsgDescribeStatement), Payload: w.Bytes()}
}

// Execute runs a previously prepared statement with pre-encoded
// arguments (the positional-argument envelope of spec.md §4.E).
type Execute struct {
	Headers       []Header
	StatementName []byte
	Arguments     []byte
}

func (m Execute) Encode() Frame {
	w := NewWriter(16 + len(m.Arguments))
	w.PutHeaders(m.Headers)
	w.PutBytes(m.StatementName)
	w.PutRaw(m.Arguments)
	return Frame{Type: byte(MsgExecute), Payload: w.Bytes()}
}

// OptimisticExecute combines prepare+execute in one round trip when the
// client believes its cached codecs are still valid.
type OptimisticExecute struct {
	Headers             []Header
	IOFormat            IOFormat
	ExpectedCardinality Cardinality
	CommandText         string
	InputTypedescID     [16]byte
	OutputTypedescID    [16]byte
	Arguments           []byte
}

func (m OptimisticExecute) Encode() Frame {
	w := NewWriter(48 + len(m.CommandText) + len(m.Arguments))
	w.PutHeaders(m.Headers)
	w.PutUint8(uint8(m.IOFormat))
	w.PutUint8(uint8(m.ExpectedCardinality))
	w.PutString(m.CommandText)
	w.PutRaw(m.InputTypedescID[:])
	w.PutRaw(m.OutputTypedescID[:])
	w.PutRaw(m.Arguments)
	return Frame{Type: byte(MsgOptimisticExecute), Payload: w.Bytes()}
}

// ExecuteScript runs opaque locale-SQL text as a single script, used by
// the state machine to implement begin/commit/rollback.
type ExecuteScript struct {
	Headers []Header
	Script  string
}

func (m ExecuteScript) Encode() Frame {
	w := NewWriter(32 + len(m.Script))
	w.PutHeaders(m.Headers)
	w.PutString(m.Script)
	return Frame{Type: byte(MsgExecuteScript), Payload: w.Bytes()}
}

// Flush and Sync are empty-payload boundary messages.
type Flush struct{}

func (Flush) Encode() Frame { return Frame{Type: byte(MsgFlush)} }

type Sync struct{}

func (Sync) Encode() Frame { return Frame{Type: byte(MsgSync)} }

// Terminate ends the session; the socket is closed unconditionally after
// sending it and any further reply is ignored.
type Terminate struct{}

func (Terminate) Encode() Frame { return Frame{Type: byte(MsgTerminate)} }

// ---- Server -> client ----

// ServerHandshake is the server's reply when it wants to negotiate a
// different protocol version than requested.
type ServerHandshake struct {
	MajorVer   uint16
	MinorVer   uint16
	Extensions []ProtocolExtension
}

func DecodeServerHandshake(payload []byte) (ServerHandshake, error) {
	r := NewReader(payload)
	var m ServerHandshake
	var err error
	if m.MajorVer, err = r.GetUint16(); err != nil {
		return m, err
	}
	if m.MinorVer, err = r.GetUint16(); err != nil {
		return m, err
	}
	n, err := r.GetUint16()
	if err != nil {
		return m, err
	}
	for i := 0; i < int(n); i++ {
		name, err := r.GetString()
		if err != nil {
			return m, err
		}
		hdrs, err := r.GetHeaders()
		if err != nil {
			return m, err
		}
		m.Extensions = append(m.Extensions, ProtocolExtension{Name: name, Headers: hdrs})
	}
	return m, r.ExpectEnd()
}

// AuthMessage is the decoded payload of a 0x52 authentication frame,
// before subcode-specific fields are interpreted.
type AuthMessage struct {
	Subcode uint32
	// SASLMethods is populated when Subcode == AuthSubcodeSASL.
	SASLMethods []string
	// SASLData is populated when Subcode is SASLContinue or SASLFinal.
	SASLData []byte
}

func DecodeAuthMessage(payload []byte) (AuthMessage, error) {
	r := NewReader(payload)
	var m AuthMessage
	var err error
	if m.Subcode, err = r.GetUint32(); err != nil {
		return m, err
	}
	switch m.Subcode {
	case AuthSubcodeOK:
	case AuthSubcodeSASL:
		n, err := r.GetUint32()
		if err != nil {
			return m, err
		}
		for i := 0; i < int(n); i++ {
			s, err := r.GetString()
			if err != nil {
				return m, err
			}
			m.SASLMethods = append(m.SASLMethods, s)
		}
	case AuthSubcodeSASLContinue, AuthSubcodeSASLFinal:
		if m.SASLData, err = r.GetBytes(); err != nil {
			return m, err
		}
	default:
		return m, fmt.Errorf("wire: unknown authentication subcode %#x", m.Subcode)
	}
	return m, r.ExpectEnd()
}

// ServerKeyData is an opaque blob returned during await-ready and
// preserved without interpretation (spec.md §9 open question).
type ServerKeyData struct {
	Data []byte
}

func DecodeServerKeyData(payload []byte) (ServerKeyData, error) {
	r := NewReader(payload)
	data, err := r.GetRaw(r.Remaining())
	return ServerKeyData{Data: append([]byte(nil), data...)}, err
}

// ParameterStatus is parsed to preserve framing but its contents are
// currently discarded by the state machine (spec.md §9 open question).
type ParameterStatus struct {
	Name  []byte
	Value []byte
}

func DecodeParameterStatus(payload []byte) (ParameterStatus, error) {
	r := NewReader(payload)
	var m ParameterStatus
	var err error
	if m.Name, err = r.GetBytes(); err != nil {
		return m, err
	}
	if m.Value, err = r.GetBytes(); err != nil {
		return m, err
	}
	return m, r.ExpectEnd()
}

// ReadyForCommand reports the transaction state and returns the
// connection to idle.
type ReadyForCommand struct {
	Headers          []Header
	TransactionState TransactionState
}

func DecodeReadyForCommand(payload []byte) (ReadyForCommand, error) {
	r := NewReader(payload)
	var m ReadyForCommand
	var err error
	if m.Headers, err = r.GetHeaders(); err != nil {
		return m, err
	}
	ts, err := r.GetUint8()
	if err != nil {
		return m, err
	}
	m.TransactionState = TransactionState(ts)
	return m, r.ExpectEnd()
}

// PrepareComplete reports the cardinality and type ids the server holds
// for a just-prepared statement.
type PrepareComplete struct {
	Headers          []Header
	Cardinality      Cardinality
	InputTypedescID  [16]byte
	OutputTypedescID [16]byte
}

func DecodePrepareComplete(payload []byte) (PrepareComplete, error) {
	r := NewReader(payload)
	var m PrepareComplete
	var err error
	if m.Headers, err = r.GetHeaders(); err != nil {
		return m, err
	}
	c, err := r.GetUint8()
	if err != nil {
		return m, err
	}
	m.Cardinality = Cardinality(c)
	in, err := r.GetRaw(16)
	if err != nil {
		return m, err
	}
	copy(m.InputTypedescID[:], in)
	out, err := r.GetRaw(16)
	if err != nil {
		return m, err
	}
	copy(m.OutputTypedescID[:], out)
	return m, r.ExpectEnd()
}

// CommandDataDescription carries the full type-descriptor blobs for a
// statement's input and output shapes.
type CommandDataDescription struct {
	Headers           []Header
	ResultCardinality Cardinality
	InputTypedescID   [16]byte
	InputTypedesc     []byte
	OutputTypedescID  [16]byte
	OutputTypedesc    []byte
}

func DecodeCommandDataDescription(payload []byte) (CommandDataDescription, error) {
	r := NewReader(payload)
	var m CommandDataDescription
	var err error
	if m.Headers, err = r.GetHeaders(); err != nil {
		return m, err
	}
	c, err := r.GetUint8()
	if err != nil {
		return m, err
	}
	m.ResultCardinality = Cardinality(c)
	in, err := r.GetRaw(16)
	if err != nil {
		return m, err
	}
	copy(m.InputTypedescID[:], in)
	if m.InputTypedesc, err = r.GetBytes(); err != nil {
		return m, err
	}
	out, err := r.GetRaw(16)
	if err != nil {
		return m, err
	}
	copy(m.OutputTypedescID[:], out)
	if m.OutputTypedesc, err = r.GetBytes(); err != nil {
		return m, err
	}
	return m, r.ExpectEnd()
}

// Data carries one result row as an ordered sequence of element bytes,
// appended verbatim to the result's row buffer.
type Data struct {
	Elements [][]byte
}

func DecodeData(payload []byte) (Data, error) {
	r := NewReader(payload)
	n, err := r.GetUint16()
	if err != nil {
		return Data{}, err
	}
	m := Data{Elements: make([][]byte, 0, n)}
	for i := 0; i < int(n); i++ {
		e, err := r.GetBytes()
		if err != nil {
			return m, err
		}
		m.Elements = append(m.Elements, e)
	}
	return m, r.ExpectEnd()
}

// CommandComplete ends a command with a human-readable status tag
// (e.g. "SELECT", "COMMIT").
type CommandComplete struct {
	Headers []Header
	Status  string
}

func DecodeCommandComplete(payload []byte) (CommandComplete, error) {
	r := NewReader(payload)
	var m CommandComplete
	var err error
	if m.Headers, err = r.GetHeaders(); err != nil {
		return m, err
	}
	if m.Status, err = r.GetString(); err != nil {
		return m, err
	}
	return m, r.ExpectEnd()
}

// ErrorResponse is the server's error wire format (spec.md §6).
type ErrorResponse struct {
	Severity   uint8
	Code       uint32
	Message    string
	Attributes []Header
}

func DecodeErrorResponse(payload []byte) (ErrorResponse, error) {
	r := NewReader(payload)
	var m ErrorResponse
	var err error
	if m.Severity, err = r.GetUint8(); err != nil {
		return m, err
	}
	if m.Code, err = r.GetUint32(); err != nil {
		return m, err
	}
	if m.Message, err = r.GetString(); err != nil {
		return m, err
	}
	if m.Attributes, err = r.GetHeaders(); err != nil {
		return m, err
	}
	return m, r.ExpectEnd()
}

// DumpBlock is decoded only to preserve framing; dump/restore is out of
// scope for this driver.
type DumpBlock struct {
	Headers []Header
	Data    []byte
}

func DecodeDumpBlock(payload []byte) (DumpBlock, error) {
	r := NewReader(payload)
	var m DumpBlock
	var err error
	if m.Headers, err = r.GetHeaders(); err != nil {
		return m, err
	}
	m.Data = append([]byte(nil), r.Rest()...)
	return m, nil
}
