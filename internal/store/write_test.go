package store

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/roach88/interact/internal/ir"
)

func TestWriteSession_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	want := createTestSession(t, s, "sess-1", 10)
	want.EngineVersion = ir.EngineVersion
	want.TranscriptVersion = ir.TranscriptVersion

	got, err := s.ReadSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("ReadSession() failed: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ReadSession() = %+v, want %+v", got, want)
	}
}

func TestWriteSession_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	createTestSession(t, s, "sess-1", 0)
	if err := s.WriteSession(ctx, ir.Session{ID: "sess-1", RuleSet: "other"}); err != nil {
		t.Fatalf("second WriteSession() failed: %v", err)
	}

	got, err := s.ReadSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("ReadSession() failed: %v", err)
	}
	if got.RuleSet != "deploy" {
		t.Errorf("RuleSet = %q, want first write kept", got.RuleSet)
	}
}

func TestWriteSession_RequiresID(t *testing.T) {
	s := createTestStore(t)
	if err := s.WriteSession(context.Background(), ir.Session{}); err == nil {
		t.Fatal("expected error for empty id")
	}
}

func TestWriteEvent_RoundTripInSeqOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestSession(t, s, "sess-1", 0)

	events := []ir.Event{
		{SessionID: "sess-1", Seq: 3, Kind: ir.EventDispatch, Action: `send("start")`},
		{SessionID: "sess-1", Seq: 1, Kind: ir.EventMatch, Pattern: `"READY"`, Before: "boot\n", Text: "READY"},
		{SessionID: "sess-1", Seq: 2, Kind: ir.EventSend, Line: "start"},
		{SessionID: "sess-1", Seq: 4, Kind: ir.EventOutcome, Status: ir.OutcomeStopped},
	}
	for _, ev := range events {
		if err := s.WriteEvent(ctx, ev); err != nil {
			t.Fatalf("WriteEvent(%d) failed: %v", ev.Seq, err)
		}
	}

	got, err := s.ReadEvents(ctx, "sess-1")
	if err != nil {
		t.Fatalf("ReadEvents() failed: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("ReadEvents() returned %d events, want 4", len(got))
	}
	for i, ev := range got {
		if ev.Seq != int64(i+1) {
			t.Errorf("event %d has seq %d, want %d", i, ev.Seq, i+1)
		}
	}
	if !reflect.DeepEqual(got[0], events[1]) {
		t.Errorf("match event = %+v, want %+v", got[0], events[1])
	}
	if got[3].Status != ir.OutcomeStopped {
		t.Errorf("outcome status = %d, want %d", got[3].Status, ir.OutcomeStopped)
	}
}

func TestWriteEvent_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestSession(t, s, "sess-1", 0)

	ev := ir.Event{SessionID: "sess-1", Seq: 1, Kind: ir.EventSend, Line: "a"}
	for i := 0; i < 3; i++ {
		if err := s.WriteEvent(ctx, ev); err != nil {
			t.Fatalf("WriteEvent() attempt %d failed: %v", i, err)
		}
	}

	got, err := s.ReadEvents(ctx, "sess-1")
	if err != nil {
		t.Fatalf("ReadEvents() failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("got %d events, want 1", len(got))
	}
}

func TestWriteEvent_UnknownSessionRejected(t *testing.T) {
	s := createTestStore(t)

	err := s.WriteEvent(context.Background(), ir.Event{SessionID: "missing", Seq: 1, Kind: ir.EventSend})
	if err == nil {
		t.Fatal("expected foreign key violation")
	}
}

func TestFinishSession(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestSession(t, s, "sess-1", 0)

	if err := s.FinishSession(ctx, "sess-1", ir.OutcomeTimedOut); err != nil {
		t.Fatalf("FinishSession() failed: %v", err)
	}

	got, err := s.ReadSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("ReadSession() failed: %v", err)
	}
	if !got.Finished || got.Outcome != int(ir.OutcomeTimedOut) {
		t.Errorf("got finished=%v outcome=%d, want true/%d", got.Finished, got.Outcome, ir.OutcomeTimedOut)
	}

	err = s.FinishSession(ctx, "missing", ir.OutcomeEOF)
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("FinishSession(missing) = %v, want ErrSessionNotFound", err)
	}
}
