package store

import (
	"context"
	"testing"

	"github.com/roach88/interact/internal/diag"
	"github.com/roach88/interact/internal/engine"
	"github.com/roach88/interact/internal/ir"
	"github.com/roach88/interact/internal/transport"
)

var _ engine.Recorder = (*Recorder)(nil)

func TestRecorder_PersistsEngineRunAndReplays(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestSession(t, s, "sess-1", 0)

	rules := []ir.Rule{
		ir.On(ir.Regexp("READY"), ir.Send("start")),
		ir.On(ir.Regexp("done"), ir.StopOK()),
	}

	script := transport.NewScript(
		transport.Emit("READY\n"),
		transport.AwaitInput(),
		transport.Emit("done\n"),
		transport.Hang(),
	)
	exp := transport.New(script, script)
	defer exp.Close()

	outcome, err := engine.Run(ctx, exp, rules,
		engine.WithSessionID("sess-1"),
		engine.WithRecorder(NewRecorder(s)),
		engine.WithPrinter(diag.Discard()),
	)
	if err != nil {
		t.Fatalf("engine.Run() failed: %v", err)
	}
	if outcome != ir.OutcomeStopped {
		t.Fatalf("outcome = %d, want %d", outcome, ir.OutcomeStopped)
	}

	sess, err := s.ReadSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("ReadSession() failed: %v", err)
	}
	if !sess.Finished || sess.Outcome != int(ir.OutcomeStopped) {
		t.Errorf("session not finished with outcome: %+v", sess)
	}

	events, err := s.ReadEvents(ctx, "sess-1")
	if err != nil {
		t.Fatalf("ReadEvents() failed: %v", err)
	}
	if len(events) == 0 || events[len(events)-1].Kind != ir.EventOutcome {
		t.Fatalf("transcript does not end with outcome: %+v", events)
	}

	res, err := engine.Replay(ctx, rules, events)
	if err != nil {
		t.Fatalf("Replay() failed: %v", err)
	}
	if !res.Match() {
		t.Errorf("replay diverged: %+v", res)
	}
}
