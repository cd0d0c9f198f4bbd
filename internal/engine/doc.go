// Package engine drives an interactive child process with an ordered list of
// rules.
//
// ARCHITECTURE:
//
// One session is driven by one goroutine. Each iteration of the loop:
//  1. Rebuilds the pattern list from the working rule list
//  2. Waits on the session for the first pattern that matches
//  3. Returns on the EOF rule (0) or the TIMEOUT rule (-3)
//  4. Otherwise dispatches the matched rule's action and folds the
//     per-action statuses with min
//  5. Returns the folded status if it is -1 or lower, else loops
//
// The rule list is normalized once per session so exactly one EOF and one
// TIMEOUT rule exist. Delete actions shrink the working copy; the caller's
// slice is never touched. Deletions take effect on the next iteration.
//
// Outcomes:
//
//	 0  the stream ended (treated as a clean exit)
//	-1  a rule stopped processing on purpose
//	-2  a rule recognised an error in the output
//	-3  no rule matched before the timeout
//
// Transport failures and context cancellation are returned as errors, never
// folded into an outcome.
//
// Every match, dispatch, send, delete and final outcome can be recorded as an
// ir.Event stamped by the logical Clock. Recorded transcripts can be replayed
// against a scripted child to check that a rule set still behaves the same.
package engine
