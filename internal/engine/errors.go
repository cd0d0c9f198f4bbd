package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected while driving a session.
//
// Runtime errors include:
//   - Malformed rule set: a sentinel rule is not present exactly once
//   - Transport failure: the session could not send or wait
//   - Replay divergence: a replayed session did not reproduce its transcript
//
// RuntimeError includes structured fields for diagnostics.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// SessionID identifies the affected session, when known.
	SessionID string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause, if any.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeMalformedRuleSet indicates the rule list lacks an EOF or TIMEOUT rule.
	ErrCodeMalformedRuleSet RuntimeErrorCode = "MALFORMED_RULESET"

	// ErrCodeTransportFailure indicates the session failed to send or wait.
	ErrCodeTransportFailure RuntimeErrorCode = "TRANSPORT_FAILURE"

	// ErrCodeReplayDiverged indicates a replay produced a different transcript.
	ErrCodeReplayDiverged RuntimeErrorCode = "REPLAY_DIVERGED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.SessionID != "" {
		msg = fmt.Sprintf("%s (session=%s)", msg, e.SessionID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// IsMalformedRuleSet returns true if err is a malformed rule set error.
// Uses errors.As to handle wrapped errors.
func IsMalformedRuleSet(err error) bool {
	return hasCode(err, ErrCodeMalformedRuleSet)
}

// IsTransportFailure returns true if err is a transport failure.
func IsTransportFailure(err error) bool {
	return hasCode(err, ErrCodeTransportFailure)
}

// IsReplayDiverged returns true if err reports a replay divergence.
func IsReplayDiverged(err error) bool {
	return hasCode(err, ErrCodeReplayDiverged)
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// NewMalformedRuleSetError reports which sentinel is not present exactly once.
func NewMalformedRuleSetError(sentinel string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeMalformedRuleSet,
		Message: fmt.Sprintf("rule list must hold exactly one %s rule", sentinel),
		Details: map[string]string{"sentinel": sentinel},
	}
}

// NewTransportError wraps a session failure during op.
func NewTransportError(sessionID, op string, err error) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodeTransportFailure,
		Message:   op + " failed",
		SessionID: sessionID,
		Details:   map[string]string{"op": op},
		Err:       err,
	}
}

// NewReplayDivergedError reports the first point where a replay differs.
func NewReplayDivergedError(sessionID, what, want, got string) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodeReplayDiverged,
		Message:   fmt.Sprintf("%s differs: recorded %s, replayed %s", what, want, got),
		SessionID: sessionID,
		Details: map[string]string{
			"what":     what,
			"recorded": want,
			"replayed": got,
		},
	}
}
