package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/interact/internal/ir"
)

const readSize = 4096

// Expecter matches a child's output against patterns and sends it lines.
//
// Expect, SendLine and LastMatch are meant to be driven from one goroutine.
// SetTranscript and Close may be called from any goroutine.
type Expecter struct {
	r      io.Reader
	w      io.Writer
	closer io.Closer
	echo   func(enabled bool) error

	q     *chunkQueue
	buf   []byte
	ended error // first read error, set once the stream is drained
	last  ir.Match
	cache map[ir.Pattern]*regexp.Regexp

	mu         sync.Mutex
	transcript io.Writer

	closed atomic.Bool
}

// Option configures an Expecter.
type Option func(*Expecter)

// WithEchoControl sets the function SetEcho delegates to.
// Without it SetEcho is a no-op, which is right for pipes and scripts.
func WithEchoControl(fn func(enabled bool) error) Option {
	return func(e *Expecter) {
		e.echo = fn
	}
}

// WithTranscript tees the exchange to w from the start.
func WithTranscript(w io.Writer) Option {
	return func(e *Expecter) {
		e.transcript = w
	}
}

// New starts reading from r and returns an Expecter that writes to w.
// If r is an io.Closer, Close closes it.
func New(r io.Reader, w io.Writer, opts ...Option) *Expecter {
	e := &Expecter{
		r:     r,
		w:     w,
		q:     newChunkQueue(),
		cache: make(map[ir.Pattern]*regexp.Regexp),
	}
	if c, ok := r.(io.Closer); ok {
		e.closer = c
	}
	for _, opt := range opts {
		opt(e)
	}
	go e.readLoop()
	return e
}

func (e *Expecter) readLoop() {
	defer e.q.Close()

	buf := make([]byte, readSize)
	for {
		n, err := e.r.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			e.q.Enqueue(chunk{data: data})
		}
		if err != nil {
			e.q.Enqueue(chunk{err: err})
			return
		}
	}
}

// Expect waits until one of patterns matches the pending output and returns
// its index.
//
// Patterns are tried in list order against the whole buffer; the first one
// that matches anywhere wins, and output is consumed through the end of its
// match. When the stream ends the index of the EOF pattern is returned, or
// ErrStreamEnded if there is none. When timeout (> 0) elapses the index of the
// TIMEOUT pattern is returned, or ErrTimeout. A zero timeout waits
// indefinitely. Cancelling ctx returns ctx.Err().
func (e *Expecter) Expect(ctx context.Context, patterns []ir.Pattern, timeout time.Duration) (int, error) {
	if e.closed.Load() {
		return -1, ErrClosed
	}

	compiled, eofIdx, timeoutIdx, err := e.compile(patterns)
	if err != nil {
		return -1, err
	}

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	for {
		e.drain()

		if idx, ok := e.scan(compiled); ok {
			return idx, nil
		}

		if e.ended != nil {
			if !isEndOfStream(e.ended) {
				return -1, fmt.Errorf("transport: read: %w", e.ended)
			}
			e.last = ir.Match{Index: eofIdx, Before: string(e.buf)}
			e.buf = nil
			if eofIdx < 0 {
				return -1, ErrStreamEnded
			}
			return eofIdx, nil
		}

		select {
		case <-ctx.Done():
			return -1, ctx.Err()
		case <-expired:
			// Output stays buffered for the next wait.
			e.last = ir.Match{Index: timeoutIdx, Before: string(e.buf)}
			if timeoutIdx < 0 {
				return -1, ErrTimeout
			}
			return timeoutIdx, nil
		case <-e.q.Wait():
		}
	}
}

// compile resolves patterns to regexps, caching across calls.
// Sentinel slots are nil and reported by index.
func (e *Expecter) compile(patterns []ir.Pattern) ([]*regexp.Regexp, int, int, error) {
	compiled := make([]*regexp.Regexp, len(patterns))
	eofIdx, timeoutIdx := -1, -1

	for i, p := range patterns {
		switch p.Kind {
		case ir.PatternEOF:
			if eofIdx < 0 {
				eofIdx = i
			}
			continue
		case ir.PatternTimeout:
			if timeoutIdx < 0 {
				timeoutIdx = i
			}
			continue
		}

		re, ok := e.cache[p]
		if !ok {
			var err error
			re, err = p.Compile()
			if err != nil {
				return nil, -1, -1, fmt.Errorf("transport: pattern %d: %w", i, err)
			}
			e.cache[p] = re
		}
		compiled[i] = re
	}

	return compiled, eofIdx, timeoutIdx, nil
}

// drain moves every queued chunk into the buffer.
func (e *Expecter) drain() {
	for {
		c, ok := e.q.TryDequeue()
		if !ok {
			return
		}
		if c.err != nil {
			if e.ended == nil {
				e.ended = c.err
				slog.Debug("transport stream ended", "error", c.err)
			}
			continue
		}
		e.buf = append(e.buf, c.data...)
		e.tee(c.data)
	}
}

func (e *Expecter) scan(compiled []*regexp.Regexp) (int, bool) {
	for i, re := range compiled {
		if re == nil {
			continue
		}
		loc := re.FindIndex(e.buf)
		if loc == nil {
			continue
		}
		e.last = ir.Match{
			Index:  i,
			Before: string(e.buf[:loc[0]]),
			Text:   string(e.buf[loc[0]:loc[1]]),
		}
		e.buf = e.buf[loc[1]:]
		return i, true
	}
	return -1, false
}

// SendLine writes text followed by a newline.
func (e *Expecter) SendLine(text string) error {
	if e.closed.Load() {
		return ErrClosed
	}
	line := []byte(text + "\n")
	if _, err := e.w.Write(line); err != nil {
		return fmt.Errorf("transport: send: %w", err)
	}
	e.tee(line)
	return nil
}

// SetEcho turns terminal echo of sent input on or off.
func (e *Expecter) SetEcho(enabled bool) error {
	if e.echo == nil {
		return nil
	}
	if err := e.echo(enabled); err != nil {
		return fmt.Errorf("transport: set echo: %w", err)
	}
	return nil
}

// LastMatch describes the output consumed by the most recent Expect.
func (e *Expecter) LastMatch() ir.Match {
	return e.last
}

// Pending returns output received but not yet consumed by a match.
func (e *Expecter) Pending() string {
	e.drain()
	return string(e.buf)
}

// SetTranscript tees received output and sent lines to w. Nil stops the tee.
func (e *Expecter) SetTranscript(w io.Writer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.transcript = w
}

func (e *Expecter) tee(data []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.transcript != nil {
		_, _ = e.transcript.Write(data)
	}
}

// Close stops the Expecter and closes the underlying reader if it can be closed.
func (e *Expecter) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	if e.closer != nil {
		return e.closer.Close()
	}
	return nil
}
