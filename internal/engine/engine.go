package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/roach88/interact/internal/diag"
	"github.com/roach88/interact/internal/ir"
)

// stderr is where the default Printer writes.
var stderr io.Writer = os.Stderr

// Engine holds the settings for driving sessions. One Engine may run many
// sessions one after another; each Run owns its own rule list and clock.
type Engine struct {
	timeout   time.Duration
	verbosity int
	printer   *diag.Printer
	recorder  Recorder
	idGen     SessionIDGenerator
	sessionID string
	clock     *Clock
	sleep     func(ctx context.Context, d time.Duration) error
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithTimeout bounds each wait for a match. Zero, the default, waits
// indefinitely and the TIMEOUT rule never fires.
func WithTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.timeout = d
	}
}

// WithVerbosity sets the diagnostic level on a Printer writing to stderr.
// Ignored when WithPrinter is also given, in either order.
func WithVerbosity(level int) EngineOption {
	return func(e *Engine) {
		e.verbosity = level
	}
}

// WithPrinter sets where diagnostics go.
func WithPrinter(p *diag.Printer) EngineOption {
	return func(e *Engine) {
		e.printer = p
	}
}

// WithRecorder records the transcript of every session.
func WithRecorder(r Recorder) EngineOption {
	return func(e *Engine) {
		e.recorder = r
	}
}

// WithSessionID fixes the id of every session the Engine runs instead of
// generating one.
func WithSessionID(id string) EngineOption {
	return func(e *Engine) {
		e.sessionID = id
	}
}

// WithSessionIDGenerator sets how session ids are generated.
// Default: UUIDv7Generator.
func WithSessionIDGenerator(g SessionIDGenerator) EngineOption {
	return func(e *Engine) {
		e.idGen = g
	}
}

// WithClock stamps events from c instead of a fresh clock per session.
func WithClock(c *Clock) EngineOption {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithSleep replaces how Sleep actions wait. Replay uses it to skip delays.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) EngineOption {
	return func(e *Engine) {
		e.sleep = fn
	}
}

// New creates an Engine. The printer is resolved once all options are
// applied.
func New(opts ...EngineOption) *Engine {
	e := &Engine{
		idGen: UUIDv7Generator{},
		sleep: sleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.printer == nil {
		e.printer = diag.New(stderr, e.verbosity)
	}
	return e
}

// Run drives s with rules until an outcome is reached. See Engine.Run.
func Run(ctx context.Context, s Session, rules []ir.Rule, opts ...EngineOption) (ir.Outcome, error) {
	return New(opts...).Run(ctx, s, rules)
}

// Run drives s with rules until the stream ends, a wait times out, or a rule
// stops processing. It returns 0, -1, -2 or -3.
//
// Errors are returned for a malformed rule list, transport failures and
// context cancellation. Run does not close s. Concurrent calls are safe as
// long as the Recorder is.
func (e *Engine) Run(ctx context.Context, s Session, rules []ir.Rule) (ir.Outcome, error) {
	working, err := Normalize(rules)
	if err != nil {
		return ir.OutcomeEOF, err
	}

	id := e.sessionID
	if id == "" {
		id = e.idGen.Generate()
	}

	clock := e.clock
	if clock == nil {
		clock = NewClock()
	}

	r := &run{
		Engine: e,
		ctx:    ctx,
		id:     id,
		clock:  clock,
		log:    slog.With("session", id),
	}

	if err := s.SetEcho(false); err != nil {
		return ir.OutcomeEOF, NewTransportError(id, "set echo", err)
	}

	if e.printer.Enabled(diag.Transcript) {
		if t, ok := s.(Transcriber); ok {
			t.SetTranscript(e.printer.Writer(diag.Transcript))
			defer t.SetTranscript(nil)
		}
	}

	r.log.Debug("session starting", "rules", len(working), "timeout", e.timeout)

	for {
		patterns := ir.Patterns(working)

		idx, err := s.Expect(ctx, patterns, e.timeout)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return ir.OutcomeEOF, fmt.Errorf("session %s: %w", id, err)
			}
			return ir.OutcomeEOF, NewTransportError(id, "expect", err)
		}
		if idx < 0 || idx >= len(working) {
			return ir.OutcomeEOF, NewTransportError(id, "expect",
				fmt.Errorf("matched index %d out of range for %d patterns", idx, len(working)))
		}

		rule := working[idx]
		m := s.LastMatch()
		r.matched(idx, rule, m)

		switch rule.Pattern.Kind {
		case ir.PatternEOF:
			e.printer.Debugf(diag.Matches, "EOF")
			return r.finish(ir.OutcomeEOF), nil
		case ir.PatternTimeout:
			e.printer.Noticef("timed out")
			return r.finish(ir.OutcomeTimedOut), nil
		}

		env := Env{
			Session:   s,
			Printer:   e.printer,
			Sleep:     e.sleep,
			Record:    r.record,
			RuleIndex: idx,
		}

		status, next, err := Dispatch(ctx, env, rule.Action, working)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return ir.OutcomeEOF, fmt.Errorf("session %s: %w", id, err)
			}
			return ir.OutcomeEOF, NewTransportError(id, "send", err)
		}
		working = next

		r.record(ir.Event{
			Kind:      ir.EventDispatch,
			RuleIndex: idx,
			Action:    rule.Action.String(),
			Status:    status,
		})

		if status.Terminal() {
			e.printer.Debugf(diag.Matches, "stopping (%d)", int(status))
			return r.finish(status), nil
		}
	}
}

// run is the per-session state of Engine.Run.
type run struct {
	*Engine
	ctx   context.Context
	id    string
	clock *Clock
	log   *slog.Logger
}

func (r *run) matched(idx int, rule ir.Rule, m ir.Match) {
	if r.printer.Enabled(diag.Trace) {
		r.printer.Debugf(diag.Trace, "MATCH: %q / %q", m.Before, m.Text)
	}
	if rule.Pattern.IsSentinel() {
		r.printer.Debugf(diag.Matches, "  matched %s", rule.Pattern)
	} else {
		r.printer.Debugf(diag.Matches, "  matched response text %q", m.Text)
	}
	r.printer.Debugf(diag.Matches, "  with rule %d: %s -> %s", idx, rule.Pattern, rule.Action)

	r.log.Debug("rule matched", "rule", idx, "pattern", rule.Pattern.String())

	r.record(ir.Event{
		Kind:      ir.EventMatch,
		RuleIndex: idx,
		Pattern:   rule.Pattern.String(),
		Before:    m.Before,
		Text:      m.Text,
	})
}

func (r *run) finish(o ir.Outcome) ir.Outcome {
	r.record(ir.Event{Kind: ir.EventOutcome, Status: o})
	r.log.Info("session finished", "outcome", o.String(), "status", int(o))
	return o
}

// record stamps ev and hands it to the recorder. Recorder failures are
// logged and do not change the outcome of the session.
func (r *run) record(ev ir.Event) {
	if r.recorder == nil {
		return
	}
	ev.SessionID = r.id
	ev.Seq = r.clock.Next()
	if err := r.recorder.Record(r.ctx, ev); err != nil {
		r.log.Error("failed to record event", "seq", ev.Seq, "kind", ev.Kind, "error", err)
	}
}
