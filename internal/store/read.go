package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/interact/internal/ir"
)

// ErrSessionNotFound is returned when no session has the requested id.
var ErrSessionNotFound = errors.New("session not found")

const sessionColumns = `id, ruleset, ruleset_hash, command, timeout_ms, started_seq, outcome, finished, engine_version, transcript_version`

// ReadSession retrieves a session header by id.
// Returns ErrSessionNotFound if there is none.
func (s *Store) ReadSession(ctx context.Context, id string) (ir.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)

	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Session{}, fmt.Errorf("read session %s: %w", id, ErrSessionNotFound)
	}
	return sess, err
}

// ListSessions returns every session header, oldest first.
// Returns an empty slice (not nil) if the store holds none.
func (s *Store) ListSessions(ctx context.Context) ([]ir.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		ORDER BY started_seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []ir.Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// LatestSession returns the most recently started session.
// Returns ErrSessionNotFound if the store is empty.
func (s *Store) LatestSession(ctx context.Context) (ir.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		ORDER BY started_seq DESC, id COLLATE BINARY DESC
		LIMIT 1
	`)

	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Session{}, fmt.Errorf("latest session: %w", ErrSessionNotFound)
	}
	return sess, err
}

// ReadEvents returns the transcript of a session ordered by seq.
// Returns an empty slice (not nil) if the session has no events.
func (s *Store) ReadEvents(ctx context.Context, sessionID string) ([]ir.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, seq, kind, rule_index, pattern, before, text, action, status, line
		FROM events
		WHERE session_id = ?
		ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []ir.Event{}
	for rows.Next() {
		var (
			ev     ir.Event
			kind   string
			status int
		)
		if err := rows.Scan(
			&ev.SessionID, &ev.Seq, &kind, &ev.RuleIndex, &ev.Pattern,
			&ev.Before, &ev.Text, &ev.Action, &status, &ev.Line,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Kind = ir.EventKind(kind)
		ev.Status = ir.Outcome(status)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// CountMatches returns how many match events a session recorded per rule
// pattern.
func (s *Store) CountMatches(ctx context.Context, sessionID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pattern, COUNT(*)
		FROM events
		WHERE session_id = ? AND kind = ?
		GROUP BY pattern
		ORDER BY pattern COLLATE BINARY ASC
	`, sessionID, string(ir.EventMatch))
	if err != nil {
		return nil, fmt.Errorf("query match counts: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var (
			pattern string
			n       int
		)
		if err := rows.Scan(&pattern, &n); err != nil {
			return nil, fmt.Errorf("scan match count: %w", err)
		}
		counts[pattern] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate match counts: %w", err)
	}
	return counts, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (ir.Session, error) {
	var sess ir.Session
	if err := row.Scan(
		&sess.ID, &sess.RuleSet, &sess.RuleSetHash, &sess.Command,
		&sess.TimeoutMS, &sess.StartedSeq, &sess.Outcome, &sess.Finished,
		&sess.EngineVersion, &sess.TranscriptVersion,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ir.Session{}, err
		}
		return ir.Session{}, fmt.Errorf("scan session: %w", err)
	}
	return sess, nil
}
