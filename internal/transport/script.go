package transport

import (
	"bytes"
	"io"
	"sync"
)

// StepKind names what a scripted child does next.
type StepKind string

const (
	// StepEmit writes Text to the reader side.
	StepEmit StepKind = "emit"
	// StepAwaitInput blocks output until one line has been written.
	StepAwaitInput StepKind = "await_input"
	// StepHang blocks output until the script is closed.
	StepHang StepKind = "hang"
	// StepPause blocks output until Release is called.
	StepPause StepKind = "pause"
)

// Step is one instruction of a Script.
type Step struct {
	Kind StepKind `yaml:"kind" json:"kind"`
	Text string   `yaml:"text,omitempty" json:"text,omitempty"`
}

// Emit returns a step that outputs text.
func Emit(text string) Step { return Step{Kind: StepEmit, Text: text} }

// AwaitInput returns a step that waits for one input line.
func AwaitInput() Step { return Step{Kind: StepAwaitInput} }

// Hang returns a step that never produces output.
func Hang() Step { return Step{Kind: StepHang} }

// Pause returns a step that waits for a Release.
func Pause() Step { return Step{Kind: StepPause} }

// Script is an in-memory child process driven by a fixed list of steps.
//
// Reads return emitted text in order; once the steps run out reads return
// io.EOF. Writes are split into lines and recorded. A Script is an
// io.ReadWriteCloser, so New(script, script) yields a working Expecter.
type Script struct {
	mu       sync.Mutex
	steps    []Step
	pos      int
	pending  []byte
	partial  []byte
	inbox    []string
	received []string
	releases int
	closed   bool

	wake chan struct{} // buffered, size 1
	done chan struct{}
}

// NewScript returns a Script that plays steps.
func NewScript(steps ...Step) *Script {
	return &Script{
		steps: steps,
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Read implements io.Reader.
func (s *Script) Read(p []byte) (int, error) {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return 0, io.EOF
		}
		if len(s.pending) > 0 {
			n := copy(p, s.pending)
			s.pending = s.pending[n:]
			s.mu.Unlock()
			return n, nil
		}
		if s.pos >= len(s.steps) {
			s.mu.Unlock()
			return 0, io.EOF
		}

		step := s.steps[s.pos]
		blocked := false
		switch step.Kind {
		case StepEmit:
			s.pending = []byte(step.Text)
			s.pos++
		case StepAwaitInput:
			if len(s.inbox) > 0 {
				s.inbox = s.inbox[1:]
				s.pos++
			} else {
				blocked = true
			}
		case StepPause:
			if s.releases > 0 {
				s.releases--
				s.pos++
			} else {
				blocked = true
			}
		default:
			blocked = true
		}
		s.mu.Unlock()

		if blocked {
			select {
			case <-s.wake:
			case <-s.done:
			}
		}
	}
}

// Write implements io.Writer. Complete lines are recorded and release
// pending AwaitInput steps.
func (s *Script) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}

	s.partial = append(s.partial, p...)
	for {
		i := bytes.IndexByte(s.partial, '\n')
		if i < 0 {
			break
		}
		line := string(bytes.TrimSuffix(s.partial[:i], []byte("\r")))
		s.partial = s.partial[i+1:]
		s.received = append(s.received, line)
		s.inbox = append(s.inbox, line)
	}

	select {
	case s.wake <- struct{}{}:
	default:
	}

	return len(p), nil
}

// Release lets one Pause step pass.
func (s *Script) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.releases++
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Close ends the script. Blocked reads return io.EOF.
func (s *Script) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)
	return nil
}

// Received returns every complete line written so far.
func (s *Script) Received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, len(s.received))
	copy(out, s.received)
	return out
}
