package client

import (
	"context"
	"fmt"

	"github.com/ha1tch/veloq-go/codec"
	verrors "github.com/ha1tch/veloq-go/pkg/errors"
	"github.com/ha1tch/veloq-go/query"
	"github.com/ha1tch/veloq-go/wire"
)

// Prepare caches-or-prepares stmt for the given cardinality and output
// format, materialising its argument and result codecs (spec.md §4.G
// "Prepare").
func (c *Conn) Prepare(ctx context.Context, stmt string, cardinality wire.Cardinality, ioFormat wire.IOFormat) (*query.PreparedQuery, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prepareLocked(stmt, cardinality, ioFormat)
}

func (c *Conn) prepareLocked(stmt string, cardinality wire.Cardinality, ioFormat wire.IOFormat) (*query.PreparedQuery, error) {
	key := query.Key{Statement: stmt, Cardinality: cardinality, OutputFormat: ioFormat}
	if cached, ok := c.queryCache.Get(key); ok {
		return cached, nil
	}

	c.state = StateBusyPrepare
	prep := wire.Prepare{IOFormat: ioFormat, ExpectedCardinality: cardinality, CommandText: stmt}
	if err := c.send(prep.Encode(), wire.Flush{}.Encode()); err != nil {
		c.state = StateFailed
		return nil, verrors.ConnectionFailed(err.Error()).Err()
	}

	pc, err := c.readPrepareComplete()
	if err != nil {
		return nil, err
	}

	inputCodec, haveIn := c.codecCache.Get(codec.TypeID(pc.InputTypedescID))
	outputCodec, haveOut := c.codecCache.Get(codec.TypeID(pc.OutputTypedescID))
	if !haveIn || !haveOut {
		desc := wire.DescribeStatement{Aspect: wire.DescribeAspectDataDescription}
		if err := c.send(desc.Encode(), wire.Flush{}.Encode()); err != nil {
			c.state = StateFailed
			return nil, verrors.ConnectionFailed(err.Error()).Err()
		}
		cdd, err := c.readCommandDataDescription()
		if err != nil {
			return nil, err
		}
		inputCodec, outputCodec, err = c.materializeCodecs(cdd)
		if err != nil {
			return nil, err
		}
	}

	// testable property: cardinality==one against a no_result statement is
	// a cardinality violation (spec.md §4.G "Prepare").
	if cardinality == wire.CardinalityOne && pc.Cardinality == wire.CardinalityNoResult {
		c.state = StateFailed
		return nil, verrors.CardinalityViolation(
			"expected cardinality one but the statement's result cardinality is no_result").Err()
	}

	pq := &query.PreparedQuery{
		Statement:        stmt,
		Cardinality:      pc.Cardinality,
		OutputFormat:     ioFormat,
		InputTypedescID:  codec.TypeID(pc.InputTypedescID),
		OutputTypedescID: codec.TypeID(pc.OutputTypedescID),
		InputCodec:       inputCodec,
		OutputCodec:      outputCodec,
	}
	c.queryCache.Add(key, pq)
	c.state = StateIdle
	return pq, nil
}

func (c *Conn) readPrepareComplete() (wire.PrepareComplete, error) {
	frame, err := c.framer.Next()
	if err != nil {
		c.state = StateFailed
		return wire.PrepareComplete{}, verrors.ConnectionFailed(err.Error()).Err()
	}
	switch wire.MessageType(frame.Type) {
	case wire.MsgPrepareComplete:
		pc, err := wire.DecodePrepareComplete(frame.Payload)
		if err != nil {
			c.state = StateFailed
			return wire.PrepareComplete{}, verrors.Protocol(verrors.ErrCodeProtocolFraming, err.Error()).Err()
		}
		return pc, nil
	case wire.MsgErrorResponse:
		return wire.PrepareComplete{}, c.surfaceErrorLocked(frame.Payload)
	default:
		c.state = StateFailed
		return wire.PrepareComplete{}, verrors.Protocol(verrors.ErrCodeProtocolUnknownTag,
			fmt.Sprintf("unexpected message %#x after prepare", frame.Type)).Err()
	}
}

func (c *Conn) readCommandDataDescription() (wire.CommandDataDescription, error) {
	frame, err := c.framer.Next()
	if err != nil {
		c.state = StateFailed
		return wire.CommandDataDescription{}, verrors.ConnectionFailed(err.Error()).Err()
	}
	switch wire.MessageType(frame.Type) {
	case wire.MsgCommandDataDescription:
		cdd, err := wire.DecodeCommandDataDescription(frame.Payload)
		if err != nil {
			c.state = StateFailed
			return wire.CommandDataDescription{}, verrors.Protocol(verrors.ErrCodeProtocolFraming, err.Error()).Err()
		}
		return cdd, nil
	case wire.MsgErrorResponse:
		return wire.CommandDataDescription{}, c.surfaceErrorLocked(frame.Payload)
	default:
		c.state = StateFailed
		return wire.CommandDataDescription{}, verrors.Protocol(verrors.ErrCodeProtocolUnknownTag,
			fmt.Sprintf("unexpected message %#x while describing statement", frame.Type)).Err()
	}
}

func (c *Conn) materializeCodecs(cdd wire.CommandDataDescription) (codec.Codec, codec.Codec, error) {
	inputCodec, err := codec.ParseDescriptors(cdd.InputTypedesc, c.codecCache)
	if err != nil {
		c.state = StateFailed
		return nil, nil, verrors.Protocol(verrors.ErrCodeProtocolDescriptor, err.Error()).Err()
	}
	outputCodec, err := codec.ParseDescriptors(cdd.OutputTypedesc, c.codecCache)
	if err != nil {
		c.state = StateFailed
		return nil, nil, verrors.Protocol(verrors.ErrCodeProtocolDescriptor, err.Error()).Err()
	}
	return inputCodec, outputCodec, nil
}

// encodeArgs encodes values against the positional-argument envelope of
// spec.md §4.E, using inputCodec's elements (the server always describes
// the input shape as a tuple of the statement's parameters).
func encodeArgs(inputCodec codec.Codec, args []interface{}) ([]byte, error) {
	tuple, ok := inputCodec.(*codec.TupleCodec)
	if !ok {
		return nil, verrors.Internal("input codec is not a tuple").Err()
	}
	encoded, err := codec.EncodeArguments(tuple.Elements, args)
	if err != nil {
		return nil, verrors.InvalidArgument(err.Error()).Err()
	}
	return encoded, nil
}

// Execute runs pq with args (already positioned per pq.InputCodec),
// returning the decoded result stream (spec.md §4.G "Execute").
func (c *Conn) Execute(ctx context.Context, pq *query.PreparedQuery, args []interface{}) (*Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.executeLocked(pq, args)
}

func (c *Conn) executeLocked(pq *query.PreparedQuery, args []interface{}) (*Result, error) {
	argBytes, err := encodeArgs(pq.InputCodec, args)
	if err != nil {
		return nil, err // invalid_argument_error; no wire traffic occurred
	}

	c.state = StateBusyExecute
	ex := wire.Execute{Arguments: argBytes}
	if err := c.send(ex.Encode(), wire.Sync{}.Encode()); err != nil {
		c.state = StateFailed
		return nil, verrors.ConnectionFailed(err.Error()).Err()
	}

	res, err := c.readResultStream(nil)
	if err != nil {
		return nil, err
	}
	if err := c.awaitReadyLocked(); err != nil {
		return nil, err
	}
	return res, nil
}

// readResultStream consumes data frames until command_complete,
// optionally starting from an already-read frame (used by
// OptimisticExecute's fast path, which must inspect the first reply
// before knowing whether to keep reading data or fall back to a plain
// execute).
func (c *Conn) readResultStream(first *wire.Frame) (*Result, error) {
	res := &Result{}
	for {
		var frame wire.Frame
		if first != nil {
			frame, first = *first, nil
		} else {
			var err error
			frame, err = c.framer.Next()
			if err != nil {
				c.state = StateFailed
				return nil, verrors.ConnectionFailed(err.Error()).Err()
			}
		}

		switch wire.MessageType(frame.Type) {
		case wire.MsgData:
			d, err := wire.DecodeData(frame.Payload)
			if err != nil {
				c.state = StateFailed
				return nil, verrors.Protocol(verrors.ErrCodeProtocolFraming, err.Error()).Err()
			}
			res.Rows = append(res.Rows, d.Elements)

		case wire.MsgCommandComplete:
			cc, err := wire.DecodeCommandComplete(frame.Payload)
			if err != nil {
				c.state = StateFailed
				return nil, verrors.Protocol(verrors.ErrCodeProtocolFraming, err.Error()).Err()
			}
			res.Status = cc.Status
			return res, nil

		case wire.MsgErrorResponse:
			return nil, c.surfaceErrorLocked(frame.Payload)

		default:
			c.state = StateFailed
			return nil, verrors.Protocol(verrors.ErrCodeProtocolUnknownTag,
				fmt.Sprintf("unexpected message %#x during execute", frame.Type)).Err()
		}
	}
}

// OptimisticExecute combines prepare+execute in one round trip when the
// query cache already holds codecs for (stmt, cardinality, ioFormat)
// (spec.md §4.G "Optimistic execute"). If the cache is empty it prepares
// first; if the server reports the cached descriptors are stale it
// re-materialises codecs and falls back to a plain execute rather than
// re-issuing optimistic_execute (testable property 13).
func (c *Conn) OptimisticExecute(ctx context.Context, stmt string, cardinality wire.Cardinality, ioFormat wire.IOFormat, args []interface{}) (*Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := query.Key{Statement: stmt, Cardinality: cardinality, OutputFormat: ioFormat}
	pq, ok := c.queryCache.Get(key)
	if !ok {
		prepared, err := c.prepareLocked(stmt, cardinality, ioFormat)
		if err != nil {
			return nil, err
		}
		pq = prepared
	}

	argBytes, err := encodeArgs(pq.InputCodec, args)
	if err != nil {
		return nil, err
	}

	c.state = StateBusyExecute
	oe := wire.OptimisticExecute{
		IOFormat:            ioFormat,
		ExpectedCardinality: cardinality,
		CommandText:         stmt,
		InputTypedescID:     [16]byte(pq.InputTypedescID),
		OutputTypedescID:    [16]byte(pq.OutputTypedescID),
		Arguments:           argBytes,
	}
	if err := c.send(oe.Encode(), wire.Sync{}.Encode()); err != nil {
		c.state = StateFailed
		return nil, verrors.ConnectionFailed(err.Error()).Err()
	}

	frame, err := c.framer.Next()
	if err != nil {
		c.state = StateFailed
		return nil, verrors.ConnectionFailed(err.Error()).Err()
	}

	if wire.MessageType(frame.Type) == wire.MsgCommandDataDescription {
		cdd, err := wire.DecodeCommandDataDescription(frame.Payload)
		if err != nil {
			c.state = StateFailed
			return nil, verrors.Protocol(verrors.ErrCodeProtocolFraming, err.Error()).Err()
		}
		inputCodec, outputCodec, err := c.materializeCodecs(cdd)
		if err != nil {
			return nil, err
		}
		newArgBytes, err := encodeArgs(inputCodec, args)
		if err != nil {
			return nil, err
		}

		newPQ := &query.PreparedQuery{
			Statement:        stmt,
			Cardinality:      cdd.ResultCardinality,
			OutputFormat:     ioFormat,
			InputTypedescID:  codec.TypeID(cdd.InputTypedescID),
			OutputTypedescID: codec.TypeID(cdd.OutputTypedescID),
			InputCodec:       inputCodec,
			OutputCodec:      outputCodec,
		}
		c.queryCache.Add(key, newPQ)

		ex := wire.Execute{Arguments: newArgBytes}
		if err := c.send(ex.Encode(), wire.Sync{}.Encode()); err != nil {
			c.state = StateFailed
			return nil, verrors.ConnectionFailed(err.Error()).Err()
		}
		res, err := c.readResultStream(nil)
		if err != nil {
			return nil, err
		}
		if err := c.awaitReadyLocked(); err != nil {
			return nil, err
		}
		return res, nil
	}

	if wire.MessageType(frame.Type) == wire.MsgErrorResponse {
		return nil, c.surfaceErrorLocked(frame.Payload)
	}

	res, err := c.readResultStream(&frame)
	if err != nil {
		return nil, err
	}
	if err := c.awaitReadyLocked(); err != nil {
		return nil, err
	}
	return res, nil
}
