package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes. The version suffix allows the
// encoding to change without colliding with old hashes.
const (
	DomainRuleSet    = "interact/ruleset/v1"
	DomainTranscript = "interact/transcript/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// RuleSetHash identifies a rule set by content. Two rule sets with the same
// rules in the same order hash identically regardless of where they were loaded from.
func RuleSetHash(rs RuleSet) (string, error) {
	canonical, err := MarshalCanonical(rs.Canonical())
	if err != nil {
		return "", fmt.Errorf("RuleSetHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainRuleSet, canonical), nil
}

// TranscriptHash identifies an event sequence by content. Session ids and seq
// numbers are excluded so a replay of the same interaction hashes identically.
func TranscriptHash(events []Event) (string, error) {
	list := make([]any, len(events))
	for i, ev := range events {
		list[i] = ev.Canonical()
	}
	canonical, err := MarshalCanonical(list)
	if err != nil {
		return "", fmt.Errorf("TranscriptHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainTranscript, canonical), nil
}

// MustRuleSetHash is RuleSetHash for rule sets known to be encodable.
// Panics on error.
func MustRuleSetHash(rs RuleSet) string {
	h, err := RuleSetHash(rs)
	if err != nil {
		panic(err)
	}
	return h
}

// Canonical returns p as a canonical-JSON-ready map.
func (p Pattern) Canonical() map[string]any {
	m := map[string]any{"kind": string(p.Kind)}
	if p.Expr != "" {
		m["expr"] = p.Expr
	}
	return m
}

// Canonical returns a as a canonical-JSON-ready map.
func (a Action) Canonical() map[string]any {
	m := map[string]any{"kind": string(a.Kind)}
	switch a.Kind {
	case ActionSend, ActionPrint:
		m["text"] = a.Text
	case ActionDelete:
		if a.Target != nil {
			m["target"] = a.Target.Canonical()
		}
	case ActionSleep:
		m["duration_ns"] = int64(a.Duration)
	case ActionSequence:
		steps := make([]any, len(a.Steps))
		for i, s := range a.Steps {
			steps[i] = s.Canonical()
		}
		m["steps"] = steps
	case ActionUnknown:
		m["tag"] = a.Tag
	}
	return m
}

// Canonical returns rs as a canonical-JSON-ready map.
func (rs RuleSet) Canonical() map[string]any {
	rules := make([]any, len(rs.Rules))
	for i, r := range rs.Rules {
		rule := map[string]any{
			"pattern": r.Pattern.Canonical(),
			"action":  r.Action.Canonical(),
		}
		if r.Name != "" {
			rule["name"] = r.Name
		}
		rules[i] = rule
	}
	return map[string]any{
		"name":       rs.Name,
		"timeout_ns": int64(rs.Timeout),
		"rules":      rules,
	}
}

// Canonical returns ev without its session id and seq.
func (ev Event) Canonical() map[string]any {
	m := map[string]any{
		"kind":       string(ev.Kind),
		"rule_index": ev.RuleIndex,
		"status":     ev.Status,
	}
	if ev.Pattern != "" {
		m["pattern"] = ev.Pattern
	}
	if ev.Before != "" {
		m["before"] = ev.Before
	}
	if ev.Text != "" {
		m["text"] = ev.Text
	}
	if ev.Action != "" {
		m["action"] = ev.Action
	}
	if ev.Line != "" {
		m["line"] = ev.Line
	}
	return m
}
