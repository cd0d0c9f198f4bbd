// Package transport carries bytes between the interaction engine and a child
// process.
//
// An Expecter wraps any reader/writer pair: a reader goroutine pushes output
// chunks into a signalled queue and Expect scans the accumulated buffer for the
// first pattern that matches. Spawn starts a real command on a pseudo-terminal;
// Script is an in-memory child used by tests, scenarios and replay.
package transport
