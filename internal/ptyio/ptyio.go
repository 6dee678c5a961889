// Package ptyio runs an interactive command-line tool on a pseudo-terminal and
// buffers its output in a ring so callers can consume it without blocking.
//
// # Basic Usage
//
//	proc, err := ptyio.Start(ctx, &ptyio.Options{
//	    Path:   "gatttool",
//	    Args:   []string{"-b", "AA:BB:CC:DD:EE:FF", "--interactive"},
//	    Logger: logger,
//	})
//	if err != nil {
//	    return err
//	}
//	defer proc.Close()
//
//	// Send a line to the tool:
//	_, err = proc.Write([]byte("connect\n"))
//
//	// Wait for output and read it (non-blocking):
//	<-proc.Readable()
//	buf := make([]byte, 4096)
//	n, err := proc.Read(buf)
//
// Readline based tools wrap long lines at the terminal width, so the pty is
// opened with a wide window (see DefaultCols).
package ptyio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime/pprof"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/creack/pty"
	"github.com/sirupsen/logrus"
	"github.com/smallnest/ringbuffer"
	"golang.org/x/sys/unix"
)

const (
	// DefaultPollTimeoutMs bounds how long the reader waits in poll(2) before
	// re-checking for shutdown.
	DefaultPollTimeoutMs = 50

	// DefaultReadCap is the capacity of the output ring buffer.
	DefaultReadCap = 64 * 1024

	// DefaultCols is the pty width. Wide enough that readline never wraps a
	// response line.
	DefaultCols = 1024

	// DefaultRows is the pty height.
	DefaultRows = 50

	// DefaultExitGrace is how long Close waits for the child after SIGTERM.
	DefaultExitGrace = 2 * time.Second
)

// Options configures Start. Zero values use the defaults above.
type Options struct {
	Path          string         // executable, resolved through PATH
	Args          []string       // command line arguments
	Env           []string       // extra environment entries appended to os.Environ()
	ReadCap       int            // ring buffer capacity for child output
	PollTimeoutMs int            // poll timeout in milliseconds
	ExitGrace     time.Duration  // SIGTERM to SIGKILL delay on Close
	Logger        *logrus.Logger // optional, nil discards
}

// Stats provides runtime counters for diagnostics.
type Stats struct {
	ReadQueueLen     int
	ReadQueueCap     int
	DroppedReadCount uint64 // bytes lost to ring buffer overflow
	ReadBytesTotal   uint64
	WriteBytesTotal  uint64
}

// noopLogger is shared by processes started without a logger.
var noopLogger = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}()

// Process is a child process attached to a pty master.
// Read and Write are safe for use by one consumer and one producer.
type Process struct {
	logger        *logrus.Logger
	cmd           *exec.Cmd
	master        *os.File
	readBuf       *ringbuffer.RingBuffer
	readable      chan struct{}
	pollTimeoutMs int
	exitGrace     time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	readerDone chan struct{} // closed when the reader saw EOF/EIO
	exited     chan struct{} // closed when cmd.Wait returned
	exitErr    error

	closed      uint32
	droppedRead uint64
	readBytes   uint64
	writeBytes  uint64
}

// Start launches opts.Path on a new pty and begins buffering its output.
// The child is not bound to ctx; it lives until Close is called or it exits.
func Start(ctx context.Context, opts *Options) (*Process, error) {
	if opts == nil || opts.Path == "" {
		return nil, errors.New("ptyio: executable path is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = noopLogger
	}
	readCap := opts.ReadCap
	if readCap <= 0 {
		readCap = DefaultReadCap
	}
	pollTimeout := opts.PollTimeoutMs
	if pollTimeout <= 0 {
		pollTimeout = DefaultPollTimeoutMs
	}
	exitGrace := opts.ExitGrace
	if exitGrace <= 0 {
		exitGrace = DefaultExitGrace
	}

	cmd := exec.Command(opts.Path, opts.Args...)
	cmd.Env = append(os.Environ(), opts.Env...)

	master, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: DefaultRows, Cols: DefaultCols})
	if err != nil {
		return nil, fmt.Errorf("failed to start %s on a pty: %w", opts.Path, err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	p := &Process{
		logger:        logger,
		cmd:           cmd,
		master:        master,
		readBuf:       ringbuffer.New(readCap),
		readable:      make(chan struct{}, 1),
		pollTimeoutMs: pollTimeout,
		exitGrace:     exitGrace,
		ctx:           loopCtx,
		cancel:        cancel,
		readerDone:    make(chan struct{}),
		exited:        make(chan struct{}),
	}

	logger.WithFields(logrus.Fields{
		"path": opts.Path,
		"args": opts.Args,
		"pid":  cmd.Process.Pid,
	}).Debug("child process started")

	p.wg.Add(2)
	goNamed(ctx, "pty-read-loop", func(context.Context) {
		defer p.wg.Done()
		p.readLoop()
	})
	goNamed(ctx, "pty-wait-child", func(context.Context) {
		defer p.wg.Done()
		p.exitErr = cmd.Wait()
		close(p.exited)
		logger.WithError(p.exitErr).Debug("child process exited")
	})

	return p, nil
}

// goNamed starts fn on a goroutine carrying a pprof label, so the reader is
// identifiable in goroutine dumps.
func goNamed(parent context.Context, name string, fn func(ctx context.Context)) {
	if parent == nil {
		parent = context.Background()
	}
	labels := pprof.Labels("goroutine_name", name)
	go pprof.Do(parent, labels, fn)
}

func (p *Process) readLoop() {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Errorf("pty read loop panicked (recovered): %v", r)
		}
		close(p.readerDone)
		p.notify()
	}()

	// Capture the descriptor once; Close nils nothing but may close the file.
	fd := int(p.master.Fd())
	pollFd := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	buf := make([]byte, 4096)

	for {
		select {
		case <-p.ctx.Done():
			return
		default:
		}

		nReady, err := unix.Poll(pollFd, p.pollTimeoutMs)
		if err != nil && !errors.Is(err, syscall.EINTR) {
			p.logger.Warnf("pty poll error: %v", err)
			continue
		}
		if nReady == 0 {
			continue
		}

		n, err := unix.Read(fd, buf)
		if n > 0 {
			written, writeErr := p.readBuf.Write(buf[:n])
			if writeErr != nil && !errors.Is(writeErr, ringbuffer.ErrIsFull) {
				p.logger.Warnf("pty buffer write error: %v", writeErr)
			}
			if written < n {
				atomic.AddUint64(&p.droppedRead, uint64(n-written))
				p.logger.Warnf("pty read buffer overflow: dropped %d bytes", n-written)
			}
			atomic.AddUint64(&p.readBytes, uint64(written))
			p.notify()
		}

		if err != nil {
			switch {
			case errors.Is(err, syscall.EAGAIN), errors.Is(err, syscall.EINTR):
				continue
			case errors.Is(err, syscall.EIO), errors.Is(err, syscall.EBADF):
				// EIO: the slave side closed because the child exited.
				p.logger.Debug("pty read loop exiting: slave closed")
				return
			default:
				p.logger.Warnf("pty read error: %v", err)
				return
			}
		}
		if n == 0 && err == nil {
			return
		}
	}
}

// notify signals Readable without blocking.
func (p *Process) notify() {
	select {
	case p.readable <- struct{}{}:
	default:
	}
}

// Readable returns a channel that receives a value whenever new output was
// buffered or the child's output stream ended.
func (p *Process) Readable() <-chan struct{} {
	return p.readable
}

// Read copies buffered output into b without blocking.
//
// Return values:
//   - (n, nil) where n > 0: bytes were available
//   - (0, syscall.EAGAIN): nothing buffered yet
//   - (0, io.EOF): the child's output ended and the buffer is drained
//   - (0, os.ErrClosed): Close was called
func (p *Process) Read(b []byte) (int, error) {
	if atomic.LoadUint32(&p.closed) == 1 {
		return 0, os.ErrClosed
	}
	if len(b) == 0 {
		return 0, nil
	}

	n, err := p.readBuf.TryRead(b)
	if n > 0 {
		return n, nil
	}
	if err != nil && !errors.Is(err, ringbuffer.ErrIsEmpty) {
		return 0, err
	}

	select {
	case <-p.readerDone:
		if p.readBuf.IsEmpty() {
			return 0, io.EOF
		}
		return p.readBuf.TryRead(b)
	default:
		return 0, syscall.EAGAIN
	}
}

// Write sends data to the child's terminal.
func (p *Process) Write(data []byte) (int, error) {
	if atomic.LoadUint32(&p.closed) == 1 {
		return 0, os.ErrClosed
	}
	n, err := p.master.Write(data)
	atomic.AddUint64(&p.writeBytes, uint64(n))
	if err != nil {
		return n, fmt.Errorf("pty write failed: %w", err)
	}
	return n, nil
}

// Exited is closed once the child process has terminated.
func (p *Process) Exited() <-chan struct{} {
	return p.exited
}

// Pid returns the child's process id.
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// Close terminates the child (SIGTERM, then SIGKILL after the exit grace),
// closes the master and waits for the background goroutines.
func (p *Process) Close() error {
	if !atomic.CompareAndSwapUint32(&p.closed, 0, 1) {
		return nil
	}

	select {
	case <-p.exited:
	default:
		if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
			p.logger.WithError(err).Debug("failed to signal child")
		}
		select {
		case <-p.exited:
		case <-time.After(p.exitGrace):
			p.logger.Warn("child did not exit after SIGTERM, killing it")
			_ = p.cmd.Process.Kill()
		}
	}

	p.cancel()
	if err := p.master.Close(); err != nil {
		p.logger.Warnf("failed to close pty master: %v", err)
	}
	p.wg.Wait()

	var exitErr *exec.ExitError
	if p.exitErr != nil && !errors.As(p.exitErr, &exitErr) {
		return p.exitErr
	}
	return nil
}

// Stats returns instantaneous counters.
func (p *Process) Stats() Stats {
	return Stats{
		ReadQueueLen:     p.readBuf.Length(),
		ReadQueueCap:     p.readBuf.Capacity(),
		DroppedReadCount: atomic.LoadUint64(&p.droppedRead),
		ReadBytesTotal:   atomic.LoadUint64(&p.readBytes),
		WriteBytesTotal:  atomic.LoadUint64(&p.writeBytes),
	}
}
