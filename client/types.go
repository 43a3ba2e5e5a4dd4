// Package client implements the connection state machine (spec.md
// §4.G): it drives the wire, codec, query, and scram packages together
// to take a Conn from a cold dial through handshake, authentication,
// and the idle/busy request-response cycle.
package client

import (
	"net"
	"sync"
	"time"

	"github.com/ha1tch/veloq-go/codec"
	"github.com/ha1tch/veloq-go/config"
	"github.com/ha1tch/veloq-go/pkg/log"
	"github.com/ha1tch/veloq-go/query"
	"github.com/ha1tch/veloq-go/wire"
)

// State is one node of the connection state machine of spec.md §4.G.
type State int

const (
	StateDisconnected State = iota
	StateTCPTLSConnecting
	StateHandshaking
	StateAuthenticating
	StateAwaitingReady
	StateIdle
	StateBusyPrepare
	StateBusyExecute
	StateBusyScript
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateTCPTLSConnecting:
		return "tcp+tls_connecting"
	case StateHandshaking:
		return "handshaking"
	case StateAuthenticating:
		return "authenticating"
	case StateAwaitingReady:
		return "awaiting_ready"
	case StateIdle:
		return "idle"
	case StateBusyPrepare:
		return "busy(prepare)"
	case StateBusyExecute:
		return "busy(execute)"
	case StateBusyScript:
		return "busy(script)"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// DefaultCallTimeout is the call timeout a Conn records when
// Options.CallTimeout is unset. The value is only stored on the Conn: no
// deadline is set on socket reads, so a read inside a call waits until
// data arrives or the connection fails.
const DefaultCallTimeout = 15 * time.Second

// Result is the decoded outcome of an execute/script call: zero or more
// rows (each a sequence of still-encoded element byte slices, matching
// spec.md §4.G's "appending each element verbatim to the result's row
// buffer") and the server's human-readable completion tag.
type Result struct {
	Rows   [][][]byte
	Status string
}

// Options configures a new Conn. Every field is optional; a nil cache
// gives the Conn its own fresh codec or query cache, and a nil logger a
// discarding one. Passing the same caches to several Conns shares them,
// matching spec.md §9's "expose as explicit handles ... not as
// global singletons".
type Options struct {
	CodecCache  *codec.Cache
	QueryCache  *query.Cache
	Logger      *log.Logger
	CallTimeout time.Duration
}

// Conn is one connection to the server. It is owned by one executor at
// a time; the pooling layer (an external collaborator) is responsible
// for serialising calls onto it (spec.md §5).
type Conn struct {
	mu sync.Mutex

	netConn net.Conn
	framer  *wire.Framer

	state            State
	transactionState wire.TransactionState
	serverKeyData    []byte
	paramStatus      map[string]string

	codecCache *codec.Cache
	queryCache *query.Cache
	logger     *log.Logger

	endpoint    *config.Endpoint
	callTimeout time.Duration
}

// NewConn constructs a Conn in the disconnected state. Call Connect to
// dial and run the handshake.
func NewConn(opts Options) *Conn {
	if opts.CodecCache == nil {
		opts.CodecCache = codec.NewCache()
	}
	if opts.QueryCache == nil {
		opts.QueryCache = query.NewCache()
	}
	if opts.Logger == nil {
		opts.Logger = log.Null()
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	return &Conn{
		state:       StateDisconnected,
		codecCache:  opts.CodecCache,
		queryCache:  opts.QueryCache,
		logger:      opts.Logger,
		callTimeout: opts.CallTimeout,
	}
}

// State returns the connection's current state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// TransactionState returns the transaction state most recently reported
// by ready_for_command.
func (c *Conn) TransactionState() wire.TransactionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transactionState
}

// ServerKeyData returns the opaque blob preserved from server_key_data
// (spec.md §9 open question: its post-handshake role is unclear in the
// source; this driver keeps it without interpreting it).
func (c *Conn) ServerKeyData() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serverKeyData
}

// ParameterStatus returns the value most recently seen for name via
// parameter_status, or ("", false) if none was seen. These are parsed
// to preserve framing but are otherwise unused (spec.md §9 open
// question) — the slot exists for a future extension to expose them.
func (c *Conn) ParameterStatus(name string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.paramStatus[name]
	return v, ok
}

func (c *Conn) send(frames ...wire.Frame) error {
	return wire.WriteFrames(c.netConn, frames...)
}

func (c *Conn) teardownLocked() {
	if c.netConn != nil {
		c.netConn.Close()
	}
	if c.state != StateClosed {
		c.state = StateFailed
	}
}
