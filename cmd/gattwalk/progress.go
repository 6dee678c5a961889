package main

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

const (
	progressUpdateInterval = 100 * time.Millisecond
	clearLineSequence      = "\r\033[K"
)

// ProgressPrinter writes phase messages, one per line.
//
// When animate is set the current phase is redrawn with its elapsed time
// until the next phase replaces it; the final output is the same as without
// animation.
//
// Usage:
//
//	p := NewProgressPrinter(os.Stderr, isTerminal)
//	p.Start()
//	defer p.Stop()
//
// A ProgressPrinter is single-use. Start may be called at most once, and Stop
// should be called exactly once.
type ProgressPrinter struct {
	out     io.Writer
	animate bool

	mu         sync.Mutex
	phase      string
	phaseStart time.Time

	ticker   atomic.Pointer[time.Ticker]
	stopChan chan struct{}
	done     chan struct{} // closed when goroutine exits
	started  atomic.Bool   // ensures Start is called at most once
}

// NewProgressPrinter creates a progress printer writing to out.
func NewProgressPrinter(out io.Writer, animate bool) *ProgressPrinter {
	return &ProgressPrinter{out: out, animate: animate}
}

// Start begins redrawing the current phase in a background goroutine.
// Without animation it does nothing. Panics if called more than once.
func (p *ProgressPrinter) Start() {
	if !p.started.CompareAndSwap(false, true) {
		panic("ProgressPrinter.Start called more than once")
	}
	if !p.animate {
		return
	}

	p.done = make(chan struct{})
	p.stopChan = make(chan struct{})
	ticker := time.NewTicker(progressUpdateInterval)
	p.ticker.Store(ticker)

	go func() {
		defer close(p.done)
		for {
			select {
			case <-p.stopChan:
				return
			case <-ticker.C:
				p.mu.Lock()
				if p.phase != "" {
					seconds := int(time.Since(p.phaseStart).Seconds())
					if seconds > 0 {
						fmt.Fprintf(p.out, "%s%s (%ds)", clearLineSequence, p.phase, seconds)
					}
				}
				p.mu.Unlock()
			}
		}
	}()
}

// Callback returns a progress callback that switches to a new phase.
// This function is safe to call from multiple goroutines.
func (p *ProgressPrinter) Callback() func(phase string) {
	return func(phase string) {
		p.mu.Lock()
		defer p.mu.Unlock()

		if !p.animate {
			fmt.Fprintln(p.out, phase)
			return
		}
		p.finishLine()
		p.phase = phase
		p.phaseStart = time.Now()
		fmt.Fprint(p.out, phase)
	}
}

// finishLine rewrites the current phase without its timer and ends the line.
// Callers hold p.mu.
func (p *ProgressPrinter) finishLine() {
	if p.phase == "" {
		return
	}
	fmt.Fprintf(p.out, "%s%s\n", clearLineSequence, p.phase)
	p.phase = ""
}

// Flush ends the current phase line so other output can follow on a fresh
// line. The next phase starts a new line as usual.
func (p *ProgressPrinter) Flush() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finishLine()
}

// Stop stops the redraw goroutine and ends the current line.
// This function is safe to call multiple times.
func (p *ProgressPrinter) Stop() {
	ticker := p.ticker.Swap(nil)
	if ticker == nil {
		return // Not animated or already stopped
	}

	ticker.Stop()
	close(p.stopChan)
	<-p.done

	p.mu.Lock()
	p.finishLine()
	p.mu.Unlock()
}
