package gatttool

import (
	"errors"
	"fmt"
)

// Session-level errors
var (
	// ErrTimeout indicates that no expected response arrived within the response timeout.
	// Replaces the indefinite wait of a plain expect loop.
	ErrTimeout = errors.New("timeout waiting for gatttool response")

	// ErrClosed indicates the gatttool process exited or the session was closed.
	ErrClosed = errors.New("gatttool session closed")

	// ErrNotConnected indicates gatttool refused a command because the peripheral
	// is not connected ("Command failed: disconnected").
	ErrNotConnected = errors.New("peripheral not connected")
)

// ParseError reports a response line that does not fit the gatttool grammar.
type ParseError struct {
	Line   string // offending line, prompt residue removed
	Reason string // what was expected
}

func (e *ParseError) Error() string {
	if e.Line == "" {
		return fmt.Sprintf("parse error: %s", e.Reason)
	}
	return fmt.Sprintf("parse error: %s in %q", e.Reason, e.Line)
}

// ConnectError reports a refused or failed connection attempt.
type ConnectError struct {
	Address string
	Reason  string
	Err     error // underlying session error (timeout, closed), if any
}

func (e *ConnectError) Error() string {
	msg := fmt.Sprintf("failed to connect to %s", e.Address)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// ReadFailedError reports a read that gatttool answered with an ATT error,
// e.g. "Characteristic value/descriptor read failed: Attribute can't be read".
type ReadFailedError struct {
	Handle string
	Reason string
}

func (e *ReadFailedError) Error() string {
	return fmt.Sprintf("read of handle %s failed: %s", e.Handle, e.Reason)
}
