package gatttool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultResponseTimeout bounds every Expect call whose context carries
// no deadline of its own.
const DefaultResponseTimeout = 10 * time.Second

// Console is the byte stream of an interactive tool. Read must not block:
// it returns syscall.EAGAIN when nothing is buffered and io.EOF once the
// stream ended. Readable fires whenever new bytes may be available.
type Console interface {
	io.ReadWriteCloser
	Readable() <-chan struct{}
}

// Transport is the request/response channel the discovery core drives.
type Transport interface {
	// Send writes one command line.
	Send(command string) error
	// Expect blocks until one of patterns matches the output and returns the
	// text consumed up to and including the match.
	Expect(ctx context.Context, patterns ...*regexp.Regexp) (*Capture, error)
}

// Capture is the result of a successful Expect.
type Capture struct {
	Index  int      // index of the matching pattern
	Before string   // output preceding the match
	Match  string   // the matched text
	Groups []string // submatches, Groups[0] == Match
}

// Text returns everything consumed by the Expect call.
func (c *Capture) Text() string {
	return c.Before + c.Match
}

// Group returns submatch i or "" when absent.
func (c *Capture) Group(i int) string {
	if i < len(c.Groups) {
		return c.Groups[i]
	}
	return ""
}

// SessionOptions configures a Session.
type SessionOptions struct {
	ResponseTimeout time.Duration  // 0 = DefaultResponseTimeout
	Logger          *logrus.Logger // nil = discard
}

// Session implements Transport over a Console with expect-style matching.
// Expect matches already buffered output before it waits, so a context
// that is already past its deadline still returns a buffered match.
// A Session is not safe for concurrent use; the protocol has one outstanding
// request at a time.
type Session struct {
	console Console
	logger  *logrus.Logger
	timeout time.Duration
	pending string // unconsumed output, escape sequences stripped
	chunk   []byte
	eof     bool
}

// NewSession wraps console.
func NewSession(console Console, opts *SessionOptions) *Session {
	if opts == nil {
		opts = &SessionOptions{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	timeout := opts.ResponseTimeout
	if timeout <= 0 {
		timeout = DefaultResponseTimeout
	}
	return &Session{
		console: console,
		logger:  logger,
		timeout: timeout,
		chunk:   make([]byte, 4096),
	}
}

// Send writes command followed by a newline.
func (s *Session) Send(command string) error {
	s.logger.WithField("command", command).Debug("gatttool <-")
	if _, err := s.console.Write([]byte(command + "\n")); err != nil {
		if errors.Is(err, os.ErrClosed) {
			return ErrClosed
		}
		return fmt.Errorf("failed to send %q: %w", command, err)
	}
	return nil
}

// Expect waits until the earliest match of any pattern appears in the output.
// Output up to the end of the match is consumed. When several patterns match,
// the one starting first wins; ties go to the lower index.
func (s *Session) Expect(ctx context.Context, patterns ...*regexp.Regexp) (*Capture, error) {
	if len(patterns) == 0 {
		return nil, errors.New("expect: no patterns")
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	for {
		if err := s.fill(); err != nil {
			return nil, err
		}
		if c := s.match(patterns); c != nil {
			s.logger.WithFields(logrus.Fields{
				"pattern": patterns[c.Index].String(),
				"match":   c.Match,
			}).Debug("gatttool ->")
			return c, nil
		}
		if s.eof {
			s.logger.WithField("unconsumed", s.pending).Debug("gatttool output ended")
			return nil, ErrClosed
		}

		select {
		case <-ctx.Done():
			return nil, s.waitError(ctx, patterns)
		case <-s.console.Readable():
		}
	}
}

// Close closes the underlying console.
func (s *Session) Close() error {
	return s.console.Close()
}

// bound applies the response timeout unless ctx carries its own deadline.
func (s *Session) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Session) waitError(ctx context.Context, patterns []*regexp.Regexp) error {
	if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ctx.Err()
	}
	expected := make([]string, len(patterns))
	for i, p := range patterns {
		expected[i] = p.String()
	}
	s.logger.WithFields(logrus.Fields{
		"expected":   expected,
		"unconsumed": s.pending,
	}).Debug("gatttool response timed out")
	return fmt.Errorf("%w (expected %s)", ErrTimeout, strings.Join(expected, " | "))
}

// fill moves everything the console has buffered into pending.
func (s *Session) fill() error {
	if s.eof {
		return nil
	}
	read := false
	for {
		n, err := s.console.Read(s.chunk)
		if n > 0 {
			s.pending += string(s.chunk[:n])
			read = true
		}
		if err == nil {
			if n == 0 {
				break
			}
			continue
		}
		if errors.Is(err, syscall.EAGAIN) {
			break
		}
		if errors.Is(err, io.EOF) {
			s.eof = true
			break
		}
		if errors.Is(err, os.ErrClosed) {
			return ErrClosed
		}
		return fmt.Errorf("failed to read gatttool output: %w", err)
	}
	if read {
		s.pending = StripANSI(s.pending)
	}
	return nil
}

func (s *Session) match(patterns []*regexp.Regexp) *Capture {
	best, bestStart := -1, -1
	var bestLoc []int
	for i, p := range patterns {
		loc := p.FindStringSubmatchIndex(s.pending)
		if loc == nil {
			continue
		}
		if best == -1 || loc[0] < bestStart {
			best, bestStart, bestLoc = i, loc[0], loc
		}
	}
	if best == -1 {
		return nil
	}

	groups := make([]string, len(bestLoc)/2)
	for g := range groups {
		if bestLoc[2*g] >= 0 {
			groups[g] = s.pending[bestLoc[2*g]:bestLoc[2*g+1]]
		}
	}
	c := &Capture{
		Index:  best,
		Before: s.pending[:bestLoc[0]],
		Match:  s.pending[bestLoc[0]:bestLoc[1]],
		Groups: groups,
	}
	s.pending = s.pending[bestLoc[1]:]
	return c
}
