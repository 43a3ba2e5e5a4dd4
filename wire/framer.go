package wire

import (
	"bufio"
	"io"

	"github.com/ha1tch/veloq-go/pkg/log"
)

// MaxFrameLength is the largest single payload the framer will allocate a
// buffer for in one socket read. Frames declaring a larger length are
// still read, but across multiple bounded reads rather than one
// allocation (spec.md §4.B).
const MaxFrameLength = 64 * 1024 * 1024

// LogMessageType is the server→client log message tag. The framer
// consumes these transparently and never returns them from Next.
const LogMessageType byte = 0x4C

// Frame is one decoded (mtype, payload) pair. Payload excludes the
// 1-byte type tag and the 4-byte length prefix.
type Frame struct {
	Type    byte
	Payload []byte
}

// LogSink receives log_message frames that the framer consumes
// transparently on behalf of the caller.
type LogSink interface {
	HandleLogMessage(severity uint8, code uint32, text string)
}

// Framer reads length-prefixed frames off a streaming reader, growing its
// internal buffer only as far as each declared frame requires.
type Framer struct {
	r    *bufio.Reader
	sink LogSink
	log  *log.Logger
}

// NewFramer wraps r. sink may be nil, in which case log messages are
// decoded and discarded.
func NewFramer(r io.Reader, sink LogSink, logger *log.Logger) *Framer {
	if logger == nil {
		logger = log.Null()
	}
	return &Framer{r: bufio.NewReaderSize(r, 4096), sink: sink, log: logger}
}

// Next reads and returns the next non-log-message frame, blocking until a
// full frame is available or the underlying reader errors. It implements
// the 4-step algorithm of spec.md §4.B, bounding any single read to
// MaxFrameLength to avoid runaway allocation on a malformed length.
func (f *Framer) Next() (Frame, error) {
	for {
		header := make([]byte, 5)
		if _, err := io.ReadFull(f.r, header); err != nil {
			return Frame{}, err
		}
		mtype := header[0]
		length, err := NewReader(header[1:]).GetUint32()
		if err != nil {
			return Frame{}, err
		}
		// length includes itself (4 bytes) but excludes mtype.
		if length < 4 {
			return Frame{}, errFramingShortLength
		}
		payloadLen := int(length) - 4
		payload, err := f.readBounded(payloadLen)
		if err != nil {
			return Frame{}, err
		}
		if mtype == LogMessageType {
			f.deliverLogMessage(payload)
			continue
		}
		return Frame{Type: mtype, Payload: payload}, nil
	}
}

// readBounded reads exactly n bytes, never allocating more than
// MaxFrameLength at a time even if n is huge; it still eventually reads
// the full n bytes, satisfying callers that declare a legitimately large
// frame, while refusing to allocate an attacker-declared buffer in one shot.
func (f *Framer) readBounded(n int) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	out := make([]byte, 0, min(n, MaxFrameLength))
	remaining := n
	for remaining > 0 {
		chunk := remaining
		if chunk > MaxFrameLength {
			chunk = MaxFrameLength
		}
		buf := make([]byte, chunk)
		if _, err := io.ReadFull(f.r, buf); err != nil {
			return nil, err
		}
		out = append(out, buf...)
		remaining -= chunk
	}
	return out, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func (f *Framer) deliverLogMessage(payload []byte) {
	r := NewReader(payload)
	severity, err := r.GetUint8()
	if err != nil {
		return
	}
	code, err := r.GetUint32()
	if err != nil {
		return
	}
	text, err := r.GetString()
	if err != nil {
		return
	}
	if f.sink != nil {
		f.sink.HandleLogMessage(severity, code, text)
	}
	f.log.Wire().Debug("log_message", "severity", severity, "code", code, "text", text)
}

type framingError string

func (e framingError) Error() string { return string(e) }

const errFramingShortLength = framingError("wire: frame length shorter than header")

// WriteFrames coalesces one or more frames into a single write call, so a
// state-handler step that emits multiple messages never interleaves with
// another goroutine's write on the same connection (spec.md §5).
func WriteFrames(w io.Writer, frames ...Frame) error {
	out := NewWriter(0)
	for _, fr := range frames {
		out.PutUint8(fr.Type)
		out.PutUint32(uint32(len(fr.Payload) + 4))
		out.PutRaw(fr.Payload)
	}
	_, err := w.Write(out.Bytes())
	return err
}
