package testutils

import (
	"io"
	"os"
	"strings"
	"sync"
	"syscall"
)

// Responder produces the console output for one command line. Returning
// exit=true ends the output stream after that output, like a process exiting.
type Responder func(command string) (output string, exit bool)

// ScriptedConsole implements gatttool.Console on top of a Responder. Reads
// never block; Write answers every complete command line synchronously.
type ScriptedConsole struct {
	mu       sync.Mutex
	respond  Responder
	out      []byte
	in       string
	commands []string
	exited   bool
	closed   bool
	readable chan struct{}
}

// NewScriptedConsole creates a console that first shows initial.
func NewScriptedConsole(initial string, respond Responder) *ScriptedConsole {
	c := &ScriptedConsole{respond: respond, readable: make(chan struct{}, 1)}
	c.Emit(initial)
	return c
}

// Emit appends s to the console output.
func (c *ScriptedConsole) Emit(s string) {
	c.mu.Lock()
	c.out = append(c.out, s...)
	c.mu.Unlock()
	select {
	case c.readable <- struct{}{}:
	default:
	}
}

// Commands returns the command lines received so far.
func (c *ScriptedConsole) Commands() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.commands...)
}

// Readable implements gatttool.Console.
func (c *ScriptedConsole) Readable() <-chan struct{} {
	return c.readable
}

// Read implements gatttool.Console without blocking.
func (c *ScriptedConsole) Read(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, os.ErrClosed
	}
	if len(c.out) == 0 {
		if c.exited {
			return 0, io.EOF
		}
		return 0, syscall.EAGAIN
	}
	n := copy(p, c.out)
	c.out = c.out[n:]
	return n, nil
}

// Write splits p into command lines and queues the responses.
func (c *ScriptedConsole) Write(p []byte) (int, error) {
	c.mu.Lock()
	if c.closed || c.exited {
		c.mu.Unlock()
		return 0, os.ErrClosed
	}
	c.in += string(p)
	var lines []string
	for {
		i := strings.IndexByte(c.in, '\n')
		if i < 0 {
			break
		}
		lines = append(lines, strings.TrimSpace(c.in[:i]))
		c.in = c.in[i+1:]
	}
	c.commands = append(c.commands, lines...)
	c.mu.Unlock()

	for _, line := range lines {
		output, exit := c.respond(line)
		c.Emit(output)
		if exit {
			c.mu.Lock()
			c.exited = true
			c.mu.Unlock()
			c.Emit("")
			break
		}
	}
	return len(p), nil
}

// Close implements io.Closer.
func (c *ScriptedConsole) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
