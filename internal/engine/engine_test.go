package engine

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/interact/internal/diag"
	"github.com/roach88/interact/internal/ir"
	"github.com/roach88/interact/internal/transport"
)

// scripted returns a session over a scripted child and the script itself.
func scripted(t *testing.T, steps ...transport.Step) (*transport.Expecter, *transport.Script) {
	t.Helper()
	s := transport.NewScript(steps...)
	e := transport.New(s, s)
	t.Cleanup(func() { _ = e.Close() })
	return e, s
}

// testEngine returns an engine with captured diagnostics and recorded events.
func testEngine(opts ...EngineOption) (*Engine, *bytes.Buffer, *MemoryRecorder) {
	var out bytes.Buffer
	rec := &MemoryRecorder{}
	base := []EngineOption{
		WithPrinter(diag.New(&out, diag.Quiet)),
		WithRecorder(rec),
		WithSessionID("test-session"),
	}
	return New(append(base, opts...)...), &out, rec
}

func TestEngine_SendThenEOF(t *testing.T) {
	sess, script := scripted(t, transport.Emit("READY\n"), transport.AwaitInput())
	eng, _, _ := testEngine()

	rules := []ir.Rule{
		ir.On(ir.Regexp("READY"), ir.Send("start")),
		ir.On(ir.EOF(), ir.StopOK()),
	}

	outcome, err := eng.Run(context.Background(), sess, rules)
	require.NoError(t, err)
	assert.Equal(t, ir.OutcomeEOF, outcome, "EOF rule returns 0 whatever its action")
	assert.Equal(t, []string{"start"}, script.Received())
}

func TestEngine_StopErrorReportsMatch(t *testing.T) {
	sess, _ := scripted(t, transport.Emit("booting\nERROR: disk full\n"), transport.Hang())
	eng, out, _ := testEngine()

	rules := []ir.Rule{ir.On(ir.Regexp("ERROR:.*"), ir.StopError())}

	outcome, err := eng.Run(context.Background(), sess, rules)
	require.NoError(t, err)
	assert.Equal(t, ir.OutcomeFailed, outcome)
	assert.Contains(t, out.String(), "ERROR: disk full")
}

func TestEngine_TimesOutWithoutMatch(t *testing.T) {
	sess, _ := scripted(t, transport.Emit("loading..."), transport.Hang())
	eng, out, _ := testEngine(WithTimeout(50 * time.Millisecond))

	rules := []ir.Rule{ir.On(ir.Regexp("prompt>"), ir.StopOK())}

	start := time.Now()
	outcome, err := eng.Run(context.Background(), sess, rules)
	require.NoError(t, err)
	assert.Equal(t, ir.OutcomeTimedOut, outcome)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Contains(t, out.String(), "timed out")
}

func TestEngine_DeleteAffectsNextMatch(t *testing.T) {
	sess, script := scripted(t,
		transport.Emit("foo\n"),
		transport.AwaitInput(),
		transport.Emit("foo\n"),
		transport.Hang(),
	)
	eng, _, rec := testEngine()

	rules := []ir.Rule{
		ir.On(ir.Regexp("foo"), ir.Sequence(ir.Delete(ir.Regexp("foo")), ir.Send("bar"))),
		ir.On(ir.Regexp("foo"), ir.StopOK()),
	}

	outcome, err := eng.Run(context.Background(), sess, rules)
	require.NoError(t, err)
	assert.Equal(t, ir.OutcomeStopped, outcome)
	assert.Equal(t, []string{"bar"}, script.Received())

	// First match hit rule 0; after the delete the second hit rule 0 again,
	// which is now the stop rule.
	var matched []int
	for _, ev := range rec.Events {
		if ev.Kind == ir.EventMatch {
			matched = append(matched, ev.RuleIndex)
		}
	}
	assert.Equal(t, []int{0, 0}, matched)

	assert.Len(t, rules, 2, "caller's rule slice is untouched")
}

func TestEngine_FirstMatchWins(t *testing.T) {
	sess, script := scripted(t, transport.Emit("hello world\n"))
	eng, _, _ := testEngine()

	rules := []ir.Rule{
		ir.On(ir.Regexp("world"), ir.Send("first")),
		ir.On(ir.Regexp("hello"), ir.Send("second")),
		ir.On(ir.Regexp("world"), ir.StopOK()),
	}

	outcome, err := eng.Run(context.Background(), sess, rules)
	require.NoError(t, err)
	assert.Equal(t, ir.OutcomeEOF, outcome)
	assert.Equal(t, []string{"first"}, script.Received())
}

func TestEngine_StatusIsMinimumOverSequence(t *testing.T) {
	tests := []struct {
		name   string
		action ir.Action
		want   ir.Outcome
	}{
		{"all zero keeps going until EOF", ir.Sequence(ir.Send("a"), ir.Print("p")), ir.OutcomeEOF},
		{"stop ok", ir.Sequence(ir.Send("a"), ir.StopOK()), ir.OutcomeStopped},
		{"error beats ok", ir.Sequence(ir.StopOK(), ir.StopError(), ir.Send("a")), ir.OutcomeFailed},
		{"single stop ok terminates", ir.StopOK(), ir.OutcomeStopped},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess, _ := scripted(t, transport.Emit("go\n"))
			eng, _, _ := testEngine()

			outcome, err := eng.Run(context.Background(), sess, []ir.Rule{ir.On(ir.Regexp("go"), tt.action)})
			require.NoError(t, err)
			assert.Equal(t, tt.want, outcome)
		})
	}
}

func TestEngine_SequenceRunsEveryStep(t *testing.T) {
	sess, script := scripted(t, transport.Emit("go\n"), transport.Hang())
	eng, _, _ := testEngine()

	rules := []ir.Rule{ir.On(ir.Regexp("go"), ir.Sequence(ir.StopError(), ir.Send("after")))}

	outcome, err := eng.Run(context.Background(), sess, rules)
	require.NoError(t, err)
	assert.Equal(t, ir.OutcomeFailed, outcome)
	assert.Equal(t, []string{"after"}, script.Received(), "steps after a stop still run")
}

func TestEngine_NoTimeoutNeverTimesOut(t *testing.T) {
	sess, _ := scripted(t, transport.Hang())
	eng, _, _ := testEngine()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := eng.Run(ctx, sess, []ir.Rule{ir.On(ir.Regexp("never"), ir.StopOK())})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "cancellation is an error, not -3")
}

func TestEngine_UnknownActionWarnsAndContinues(t *testing.T) {
	sess, script := scripted(t, transport.Emit("odd\n"), transport.AwaitInput())
	eng, out, _ := testEngine()

	rules := []ir.Rule{ir.On(ir.Regexp("odd"), ir.Sequence(ir.Unknown("explode"), ir.Send("x")))}

	outcome, err := eng.Run(context.Background(), sess, rules)
	require.NoError(t, err)
	assert.Equal(t, ir.OutcomeEOF, outcome)
	assert.Contains(t, out.String(), `do not know action "explode"`)
	assert.Equal(t, []string{"x"}, script.Received())
}

func TestEngine_PrintGoesToDiagnostics(t *testing.T) {
	sess, _ := scripted(t, transport.Emit("note\n"))
	eng, out, _ := testEngine()

	_, err := eng.Run(context.Background(), sess, []ir.Rule{ir.On(ir.Regexp("note"), ir.Print("saw the note"))})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "saw the note")
}

func TestEngine_SleepUsesInjectedSleeper(t *testing.T) {
	sess, _ := scripted(t, transport.Emit("wait\n"))
	var slept []time.Duration
	eng, _, _ := testEngine(WithSleep(func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}))

	_, err := eng.Run(context.Background(), sess, []ir.Rule{ir.On(ir.Regexp("wait"), ir.Sleep(2*time.Second))})
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{2 * time.Second}, slept)
}

func TestEngine_RecordsTranscript(t *testing.T) {
	sess, _ := scripted(t, transport.Emit("READY\n"), transport.AwaitInput())
	eng, _, rec := testEngine()

	_, err := eng.Run(context.Background(), sess, []ir.Rule{ir.On(ir.Regexp("READY"), ir.Send("start"))})
	require.NoError(t, err)

	kinds := make([]ir.EventKind, len(rec.Events))
	for i, ev := range rec.Events {
		kinds[i] = ev.Kind
		assert.Equal(t, "test-session", ev.SessionID)
		assert.Equal(t, int64(i+1), ev.Seq, "seq is strictly increasing from 1")
	}
	assert.Equal(t, []ir.EventKind{
		ir.EventMatch, ir.EventSend, ir.EventDispatch,
		ir.EventMatch, ir.EventOutcome,
	}, kinds)

	assert.Equal(t, "READY", rec.Events[0].Text)
	assert.Equal(t, "start", rec.Events[1].Line)
	assert.Equal(t, "EOF", rec.Events[3].Pattern)
	assert.Equal(t, ir.OutcomeEOF, rec.Events[4].Status)
}

type failingSession struct {
	*transport.Expecter
	echoErr error
	sendErr error
}

func (f *failingSession) SetEcho(bool) error { return f.echoErr }

func (f *failingSession) SendLine(string) error { return f.sendErr }

func TestEngine_TransportErrorsPropagate(t *testing.T) {
	t.Run("send", func(t *testing.T) {
		exp, _ := scripted(t, transport.Emit("READY\n"))
		sess := &failingSession{Expecter: exp, sendErr: errors.New("broken pipe")}
		eng, _, _ := testEngine()

		_, err := eng.Run(context.Background(), sess, []ir.Rule{ir.On(ir.Regexp("READY"), ir.Send("x"))})
		require.Error(t, err)
		assert.True(t, IsTransportFailure(err))
		assert.Contains(t, err.Error(), "broken pipe")
	})

	t.Run("echo", func(t *testing.T) {
		exp, _ := scripted(t)
		sess := &failingSession{Expecter: exp, echoErr: errors.New("not a tty")}
		eng, _, _ := testEngine()

		_, err := eng.Run(context.Background(), sess, nil)
		assert.True(t, IsTransportFailure(err))
	})

	t.Run("stream ended without sentinel", func(t *testing.T) {
		exp, _ := scripted(t)
		_, err := exp.Expect(context.Background(), []ir.Pattern{ir.Regexp("x")}, 0)
		assert.ErrorIs(t, err, transport.ErrStreamEnded)
	})
}

func TestEngine_TranscriptTeeAtVerbosityOne(t *testing.T) {
	sess, _ := scripted(t, transport.Emit("READY\n"), transport.AwaitInput())
	var out bytes.Buffer
	eng := New(WithPrinter(diag.New(&out, diag.Transcript)))

	_, err := eng.Run(context.Background(), sess, []ir.Rule{ir.On(ir.Regexp("READY"), ir.Send("start"))})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "READY\nstart\n")
}

func TestRun_PackageLevel(t *testing.T) {
	sess, _ := scripted(t, transport.Emit("done\n"))
	outcome, err := Run(context.Background(), sess,
		[]ir.Rule{ir.On(ir.Literal("done"), ir.StopOK())},
		WithPrinter(diag.Discard()), WithTimeout(time.Second))
	require.NoError(t, err)
	assert.Equal(t, ir.OutcomeStopped, outcome)
}

func TestEngine_ConcurrentRunsKeepTheirOwnIDs(t *testing.T) {
	rec := &MemoryRecorder{}
	eng := New(
		WithPrinter(diag.Discard()),
		WithRecorder(rec),
		WithSessionIDGenerator(UUIDv7Generator{}),
	)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		sess, _ := scripted(t, transport.Emit("done\n"))
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := eng.Run(context.Background(), sess, []ir.Rule{ir.On(ir.Literal("done"), ir.StopOK())})
			assert.NoError(t, err)
			assert.Equal(t, ir.OutcomeStopped, outcome)
		}()
	}
	wg.Wait()

	ids := map[string]int{}
	for _, ev := range rec.Events {
		ids[ev.SessionID]++
	}
	assert.Len(t, ids, 4)
	for id, n := range ids {
		assert.Equal(t, 3, n, "session %s records match, dispatch and outcome", id)
	}
}

func TestEngine_FixedSessionIDAppliesToEveryRun(t *testing.T) {
	eng, _, rec := testEngine()

	for i := 0; i < 2; i++ {
		sess, _ := scripted(t, transport.Emit("done\n"))
		_, err := eng.Run(context.Background(), sess, []ir.Rule{ir.On(ir.Literal("done"), ir.StopOK())})
		require.NoError(t, err)
	}

	require.NotEmpty(t, rec.Events)
	for _, ev := range rec.Events {
		assert.Equal(t, "test-session", ev.SessionID)
	}
}

func TestNew_VerbosityIndependentOfOptionOrder(t *testing.T) {
	var errOut bytes.Buffer
	saved := stderr
	stderr = &errOut
	t.Cleanup(func() { stderr = saved })

	explicit := diag.Discard()
	assert.Same(t, explicit, New(WithPrinter(explicit), WithVerbosity(diag.Trace)).printer)
	assert.Same(t, explicit, New(WithVerbosity(diag.Trace), WithPrinter(explicit)).printer)

	eng := New(WithVerbosity(diag.Matches))
	assert.Equal(t, diag.Matches, eng.printer.Verbosity())
	assert.Equal(t, diag.Quiet, New().printer.Verbosity())
}
