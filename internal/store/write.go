package store

import (
	"context"
	"fmt"

	"github.com/roach88/interact/internal/ir"
)

// WriteSession inserts a session header. Uses ON CONFLICT(id) DO NOTHING,
// so writing the same session twice keeps the first row.
//
// EngineVersion and TranscriptVersion default to the running versions.
func (s *Store) WriteSession(ctx context.Context, sess ir.Session) error {
	if sess.ID == "" {
		return fmt.Errorf("write session: id is required")
	}
	if sess.EngineVersion == "" {
		sess.EngineVersion = ir.EngineVersion
	}
	if sess.TranscriptVersion == "" {
		sess.TranscriptVersion = ir.TranscriptVersion
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions
		(id, ruleset, ruleset_hash, command, timeout_ms, started_seq, outcome, finished, engine_version, transcript_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		sess.ID,
		sess.RuleSet,
		sess.RuleSetHash,
		sess.Command,
		sess.TimeoutMS,
		sess.StartedSeq,
		sess.Outcome,
		sess.Finished,
		sess.EngineVersion,
		sess.TranscriptVersion,
	)
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// WriteEvent appends one transcript event.
// Uses ON CONFLICT(session_id, seq) DO NOTHING for idempotency.
//
// Note: The session referenced by SessionID must exist (foreign key constraint).
func (s *Store) WriteEvent(ctx context.Context, ev ir.Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events
		(session_id, seq, kind, rule_index, pattern, before, text, action, status, line)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, seq) DO NOTHING
	`,
		ev.SessionID,
		ev.Seq,
		string(ev.Kind),
		ev.RuleIndex,
		ev.Pattern,
		ev.Before,
		ev.Text,
		ev.Action,
		int(ev.Status),
		ev.Line,
	)
	if err != nil {
		return fmt.Errorf("write event %s/%d: %w", ev.SessionID, ev.Seq, err)
	}
	return nil
}

// FinishSession stores the outcome of a session and marks it finished.
// Returns an error if the session does not exist.
func (s *Store) FinishSession(ctx context.Context, id string, outcome ir.Outcome) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET outcome = ?, finished = 1 WHERE id = ?
	`, int(outcome), id)
	if err != nil {
		return fmt.Errorf("finish session %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish session %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("finish session %s: %w", id, ErrSessionNotFound)
	}
	return nil
}
