package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/interact/internal/ir"
)

// createTestStore creates a new store in a temp dir for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestSession writes a session header with minimal required fields.
func createTestSession(t *testing.T, s *Store, id string, startedSeq int64) ir.Session {
	t.Helper()
	sess := ir.Session{
		ID:          id,
		RuleSet:     "deploy",
		RuleSetHash: "test-hash",
		Command:     "sh -c true",
		TimeoutMS:   1000,
		StartedSeq:  startedSeq,
	}
	if err := s.WriteSession(context.Background(), sess); err != nil {
		t.Fatalf("WriteSession() failed: %v", err)
	}
	return sess
}
