package client

import (
	"context"

	verrors "github.com/ha1tch/veloq-go/pkg/errors"
	"github.com/ha1tch/veloq-go/wire"
)

// BeginTransaction opens a transaction via execute_script (spec.md §4.G
// "Transaction lifecycle"). A connection already in_transaction or
// in_failed_transaction is left untouched: the state machine never
// stacks transactions.
func (c *Conn) BeginTransaction(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.transactionState == wire.TxInTransaction || c.transactionState == wire.TxInFailedTransaction {
		return nil
	}
	return c.runScriptLocked("START TRANSACTION;")
}

// Commit ends a transaction. A connection not_in_transaction is a no-op;
// one in_failed_transaction surfaces a synthetic rollback error rather
// than attempting to commit a transaction the server has already
// abandoned (testable property 11).
func (c *Conn) Commit(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.transactionState {
	case wire.TxNotInTransaction:
		return nil
	case wire.TxInFailedTransaction:
		return verrors.New(verrors.ErrCodeServerError,
			"cannot commit: transaction is in a failed state and must be rolled back").Err()
	}
	return c.runScriptLocked("COMMIT;")
}

// Rollback ends a transaction, discarding its effects. A connection
// not_in_transaction is a no-op; in_failed_transaction is rolled back
// normally, which is the only way out of that state.
func (c *Conn) Rollback(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.transactionState == wire.TxNotInTransaction {
		return nil
	}
	return c.runScriptLocked("ROLLBACK;")
}

func (c *Conn) runScriptLocked(script string) error {
	c.state = StateBusyScript
	es := wire.ExecuteScript{Script: script}
	if err := c.send(es.Encode()); err != nil {
		c.state = StateFailed
		return verrors.ConnectionFailed(err.Error()).Err()
	}

	for {
		frame, err := c.framer.Next()
		if err != nil {
			c.state = StateFailed
			return verrors.ConnectionFailed(err.Error()).Err()
		}
		switch wire.MessageType(frame.Type) {
		case wire.MsgCommandComplete:
			continue // ready_for_command follows and carries the new transaction_state
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
				"unexpected message during script execution").Err()
		}
	}
}
