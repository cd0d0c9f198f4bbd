package testutil

// FixedSessionGenerator generates the same session id every time.
//
// The same scenario run with the same FixedSessionGenerator produces
// byte-identical transcripts, which is what golden snapshots compare.
//
// Unlike engine.FixedGenerator which returns ids in sequence, this generator
// never runs out.
//
// Thread-safety: FixedSessionGenerator is stateless and safe for concurrent use.
type FixedSessionGenerator struct {
	id string
}

// NewFixedSessionGenerator creates a fixed session id generator.
// If id is empty, Generate() returns "test-session".
func NewFixedSessionGenerator(id string) *FixedSessionGenerator {
	if id == "" {
		id = "test-session"
	}
	return &FixedSessionGenerator{id: id}
}

// Generate returns the fixed session id.
//
// Implements engine.SessionIDGenerator.
func (g *FixedSessionGenerator) Generate() string {
	return g.id
}
