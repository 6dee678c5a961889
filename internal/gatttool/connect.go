package gatttool

import (
	"context"
	"strings"
)

// Connect issues "connect" and waits for gatttool to confirm or refuse it.
// A refusal is returned as *ConnectError; a timeout or closed session is
// wrapped in *ConnectError as well, so callers can apply one policy.
func Connect(ctx context.Context, t Transport, address string) error {
	if err := t.Send(CmdConnect); err != nil {
		return &ConnectError{Address: address, Err: err}
	}

	c, err := t.Expect(ctx, ConnectSuccessMarker, ConnectErrorMarker)
	if err != nil {
		return &ConnectError{Address: address, Err: err}
	}
	if c.Index == 1 {
		return &ConnectError{Address: address, Reason: strings.TrimSpace(c.Group(1))}
	}
	return nil
}

// Disconnect closes the link and asks gatttool to exit. Errors are ignored by
// most callers since the process is torn down right after.
func Disconnect(t Transport) error {
	if err := t.Send(CmdDisconnect); err != nil {
		return err
	}
	return t.Send(CmdExit)
}
