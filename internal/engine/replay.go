package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/interact/internal/diag"
	"github.com/roach88/interact/internal/ir"
	"github.com/roach88/interact/internal/transport"
)

// DefaultReplayWait bounds each wait during a replay. Scripted output is
// immediate, so any wait this long means the rules no longer match it.
const DefaultReplayWait = 250 * time.Millisecond

// ReplayResult compares a recorded session with its replay.
type ReplayResult struct {
	SessionID string

	Recorded ir.Outcome
	Replayed ir.Outcome

	RecordedHash string
	ReplayedHash string

	// Events is the replayed transcript.
	Events []ir.Event
}

// Match reports whether the replay reproduced the recording.
func (r *ReplayResult) Match() bool {
	return r.Recorded == r.Replayed && r.RecordedHash == r.ReplayedHash
}

type replayConfig struct {
	wait    time.Duration
	printer *diag.Printer
}

// ReplayOption configures Replay.
type ReplayOption func(*replayConfig)

// WithReplayWait overrides DefaultReplayWait.
func WithReplayWait(d time.Duration) ReplayOption {
	return func(c *replayConfig) {
		c.wait = d
	}
}

// WithReplayPrinter shows the replay's diagnostics. Default: discarded.
func WithReplayPrinter(p *diag.Printer) ReplayOption {
	return func(c *replayConfig) {
		c.printer = p
	}
}

// Replay re-runs rules against a scripted child rebuilt from recorded and
// checks that the same transcript comes out.
//
// The script releases the output of each recorded match only when the engine
// starts the corresponding wait, and holds later output until the recorded
// lines have been sent, so the replayed engine sees the child the way the
// original did. Sleep actions are skipped.
//
// A divergence is reported as a RuntimeError with code REPLAY_DIVERGED
// alongside the result.
func Replay(ctx context.Context, rules []ir.Rule, recorded []ir.Event, opts ...ReplayOption) (*ReplayResult, error) {
	cfg := &replayConfig{
		wait:    DefaultReplayWait,
		printer: diag.Discard(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if len(recorded) == 0 {
		return nil, fmt.Errorf("replay: no recorded events")
	}
	id := recorded[0].SessionID
	last := recorded[len(recorded)-1]
	if last.Kind != ir.EventOutcome {
		return nil, fmt.Errorf("replay: session %s has no outcome; it did not finish", id)
	}

	script := transport.NewScript(ReplaySteps(recorded)...)
	exp := transport.New(script, script)
	defer exp.Close()

	sess := &replaySession{Expecter: exp, script: script, wait: cfg.wait}
	rec := &MemoryRecorder{}

	outcome, err := New(
		WithSessionID(id),
		WithRecorder(rec),
		WithPrinter(cfg.printer),
		WithSleep(func(context.Context, time.Duration) error { return nil }),
	).Run(ctx, sess, rules)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}

	res := &ReplayResult{
		SessionID: id,
		Recorded:  last.Status,
		Replayed:  outcome,
		Events:    rec.Events,
	}
	if res.RecordedHash, err = ir.TranscriptHash(recorded); err != nil {
		return nil, err
	}
	if res.ReplayedHash, err = ir.TranscriptHash(rec.Events); err != nil {
		return nil, err
	}

	return res, diverged(id, recorded, rec.Events)
}

// ReplaySteps rebuilds the child's side of a recorded session: a pause and
// the consumed output for each match, an input wait for each sent line, and
// a hang where the session timed out.
func ReplaySteps(events []ir.Event) []transport.Step {
	eofName, timeoutName := ir.EOF().String(), ir.Timeout().String()

	var steps []transport.Step
	for _, ev := range events {
		switch ev.Kind {
		case ir.EventMatch:
			steps = append(steps, transport.Pause())
			switch ev.Pattern {
			case eofName:
				if ev.Before != "" {
					steps = append(steps, transport.Emit(ev.Before))
				}
				return steps
			case timeoutName:
				if ev.Before != "" {
					steps = append(steps, transport.Emit(ev.Before))
				}
				return append(steps, transport.Hang())
			default:
				steps = append(steps, transport.Emit(ev.Before+ev.Text))
			}
		case ir.EventSend:
			steps = append(steps, transport.AwaitInput())
		}
	}
	return steps
}

// diverged returns the first difference between two transcripts, ignoring
// session ids and seq numbers.
func diverged(id string, want, got []ir.Event) error {
	for i := 0; i < len(want) && i < len(got); i++ {
		w, g := describeEvent(want[i]), describeEvent(got[i])
		if w != g {
			return NewReplayDivergedError(id, fmt.Sprintf("event %d", i), w, g)
		}
	}
	if len(want) != len(got) {
		return NewReplayDivergedError(id, "event count",
			fmt.Sprintf("%d", len(want)), fmt.Sprintf("%d", len(got)))
	}
	return nil
}

func describeEvent(ev ir.Event) string {
	b, err := ir.MarshalCanonical(ev.Canonical())
	if err != nil {
		return fmt.Sprintf("%s(%v)", ev.Kind, err)
	}
	return string(b)
}

// replaySession releases one recorded chunk per wait and bounds every wait,
// so a rule set that stopped matching times out instead of hanging.
type replaySession struct {
	*transport.Expecter
	script *transport.Script
	wait   time.Duration
}

func (r *replaySession) Expect(ctx context.Context, patterns []ir.Pattern, _ time.Duration) (int, error) {
	r.script.Release()
	return r.Expecter.Expect(ctx, patterns, r.wait)
}
