package ir

import "time"

// Rule pairs a pattern with the action to take when it matches.
type Rule struct {
	Pattern Pattern `json:"pattern"`
	Action  Action  `json:"action"`

	// Name is an optional label used in diagnostics and transcripts.
	Name string `json:"name,omitempty"`
}

// On builds a rule.
func On(p Pattern, a Action) Rule {
	return Rule{Pattern: p, Action: a}
}

// RuleSet is a named, ordered rule list loaded from a rules file.
type RuleSet struct {
	Name string `json:"name"`

	// Timeout bounds each wait for a match. Zero waits indefinitely.
	Timeout time.Duration `json:"timeout,omitempty"`

	Rules []Rule `json:"rules"`
}

// Patterns returns the pattern of every rule, in order.
func Patterns(rules []Rule) []Pattern {
	out := make([]Pattern, len(rules))
	for i, r := range rules {
		out[i] = r.Pattern
	}
	return out
}

// Outcome is the result of an interaction, and the status of a single action.
type Outcome int

const (
	// OutcomeEOF means the stream ended. Treated as a clean exit;
	// the caller decides whether that was expected.
	OutcomeEOF Outcome = 0
	// OutcomeStopped means a rule ended processing intentionally.
	OutcomeStopped Outcome = -1
	// OutcomeFailed means a rule recognised an error in the output.
	OutcomeFailed Outcome = -2
	// OutcomeTimedOut means no pattern matched within the timeout.
	OutcomeTimedOut Outcome = -3
)

// String returns the outcome name used in CLI output and scenarios.
func (o Outcome) String() string {
	switch o {
	case OutcomeEOF:
		return "eof"
	case OutcomeStopped:
		return "stopped"
	case OutcomeFailed:
		return "failed"
	case OutcomeTimedOut:
		return "timeout"
	default:
		return "unknown"
	}
}

// ParseOutcome accepts an outcome name or its numeric code.
func ParseOutcome(s string) (Outcome, bool) {
	switch s {
	case "eof", "0":
		return OutcomeEOF, true
	case "stopped", "-1":
		return OutcomeStopped, true
	case "failed", "-2":
		return OutcomeFailed, true
	case "timeout", "-3":
		return OutcomeTimedOut, true
	}
	return 0, false
}

// Terminal reports whether a folded status ends the interaction.
func (o Outcome) Terminal() bool {
	return o <= OutcomeStopped
}
