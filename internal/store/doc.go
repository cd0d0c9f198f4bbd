// Package store provides SQLite-backed durable storage for interaction
// transcripts.
//
// The store is an append-only log with two tables:
//   - sessions: one header row per interaction (rule set, hash, command, outcome)
//   - events: the transcript, keyed by (session_id, seq)
//
// # Ordering
//
// All ordering uses seq INTEGER from the engine's logical clock, never
// timestamps. Queries order by seq ASC with id COLLATE BINARY as tie-breaker
// so reads are identical across runs and replays.
//
// # Idempotency
//
// Writing the same event twice is a no-op (ON CONFLICT DO NOTHING), so a
// recorder may retry after a partial failure without duplicating rows.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Events must belong to a stored session
package store
