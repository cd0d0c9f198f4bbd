package engine

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/roach88/interact/internal/ir"
)

// Session is the transport the engine drives.
// transport.Expecter and transport.Process implement it.
type Session interface {
	// SendLine sends text followed by a line terminator.
	SendLine(text string) error

	// Expect waits for the first pattern that matches and returns its index.
	// EOF and TIMEOUT sentinels in patterns are returned by index when the
	// stream ends or timeout elapses. A zero timeout waits indefinitely.
	Expect(ctx context.Context, patterns []ir.Pattern, timeout time.Duration) (int, error)

	// SetEcho turns terminal echo of sent input on or off.
	SetEcho(enabled bool) error

	// LastMatch describes the output consumed by the most recent Expect.
	LastMatch() ir.Match
}

// Transcriber is implemented by sessions that can tee the exchange.
type Transcriber interface {
	SetTranscript(w io.Writer)
}

// Recorder receives transcript events as the engine produces them.
type Recorder interface {
	Record(ctx context.Context, ev ir.Event) error
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, ev ir.Event) error

// Record calls f.
func (f RecorderFunc) Record(ctx context.Context, ev ir.Event) error {
	return f(ctx, ev)
}

// MemoryRecorder keeps events in memory. Read Events once the sessions
// feeding it have finished.
type MemoryRecorder struct {
	mu     sync.Mutex
	Events []ir.Event
}

// Record appends ev.
func (m *MemoryRecorder) Record(_ context.Context, ev ir.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, ev)
	return nil
}
