package main

import (
	"errors"
	"fmt"
	"os/exec"

	"github.com/srg/gattwalk/internal/gatttool"
)

// FormatUserError turns an error returned by the discovery run into a
// message for the terminal. Unrecognized errors are printed as they are.
func FormatUserError(err error) string {
	var connectErr *gatttool.ConnectError
	var parseErr *gatttool.ParseError

	switch {
	case errors.As(err, &connectErr):
		reason := connectErr.Reason
		if reason == "" && connectErr.Err != nil {
			reason = FormatUserError(connectErr.Err)
		}
		if reason == "" {
			return fmt.Sprintf("could not connect to %s. Is device advertising?", connectErr.Address)
		}
		return fmt.Sprintf("could not connect to %s (%s). Is device advertising?", connectErr.Address, reason)
	case errors.As(err, &parseErr):
		return fmt.Sprintf("unexpected gatttool output: %s", parseErr.Error())
	case errors.Is(err, gatttool.ErrTimeout):
		return "gatttool did not answer in time; the peripheral may be out of range (see --timeout)"
	case errors.Is(err, gatttool.ErrNotConnected):
		return "the peripheral is not connected; it may have dropped the link"
	case errors.Is(err, gatttool.ErrClosed):
		return "gatttool exited unexpectedly"
	case errors.Is(err, exec.ErrNotFound):
		return "gatttool executable not found; install BlueZ or pass --tool"
	}
	return err.Error()
}
