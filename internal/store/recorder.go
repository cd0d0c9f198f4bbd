package store

import (
	"context"

	"github.com/roach88/interact/internal/ir"
)

// Recorder writes engine events to a Store and finishes the session when
// the outcome event arrives. It satisfies engine.Recorder.
type Recorder struct {
	store *Store
}

// NewRecorder returns a Recorder writing to s.
func NewRecorder(s *Store) *Recorder {
	return &Recorder{store: s}
}

// Record stores ev. An outcome event also marks its session finished.
func (r *Recorder) Record(ctx context.Context, ev ir.Event) error {
	if err := r.store.WriteEvent(ctx, ev); err != nil {
		return err
	}
	if ev.Kind == ir.EventOutcome {
		return r.store.FinishSession(ctx, ev.SessionID, ev.Status)
	}
	return nil
}
