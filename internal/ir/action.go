package ir

import (
	"fmt"
	"strings"
	"time"
)

// ActionKind tags the variant held by an Action.
type ActionKind string

const (
	ActionNoop      ActionKind = "noop"
	ActionSend      ActionKind = "send"
	ActionDelete    ActionKind = "delete"
	ActionSleep     ActionKind = "sleep"
	ActionPrint     ActionKind = "print"
	ActionStopOK    ActionKind = "stop_ok"
	ActionStopError ActionKind = "stop_error"
	ActionSequence  ActionKind = "sequence"
	ActionUnknown   ActionKind = "unknown"
)

// Action is the reaction attached to a rule.
//
// Only the fields belonging to Kind are meaningful:
//   - Send: Text is sent as a line
//   - Delete: Target is the pattern of the rule to remove
//   - Sleep: Duration
//   - Print: Text is written to diagnostics
//   - Sequence: Steps run in order
//   - Unknown: Tag names the unrecognised action
//
// Build actions with the constructors below rather than by hand.
type Action struct {
	Kind     ActionKind    `json:"kind"`
	Text     string        `json:"text,omitempty"`
	Target   *Pattern      `json:"target,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	Steps    []Action      `json:"steps,omitempty"`
	Tag      string        `json:"tag,omitempty"`
}

// Noop does nothing. It is the default action of auto-appended sentinel rules.
func Noop() Action { return Action{Kind: ActionNoop} }

// Send sends text followed by a line terminator to the child process.
func Send(text string) Action { return Action{Kind: ActionSend, Text: text} }

// Delete removes the first rule whose pattern equals target.
func Delete(target Pattern) Action {
	t := target
	return Action{Kind: ActionDelete, Target: &t}
}

// Sleep suspends the interaction for d.
func Sleep(d time.Duration) Action { return Action{Kind: ActionSleep, Duration: d} }

// Print writes msg to the diagnostic stream.
func Print(msg string) Action { return Action{Kind: ActionPrint, Text: msg} }

// StopOK ends the interaction early without error.
func StopOK() Action { return Action{Kind: ActionStopOK} }

// StopError ends the interaction reporting that the output showed an error.
func StopError() Action { return Action{Kind: ActionStopError} }

// Sequence runs each step in order.
func Sequence(steps ...Action) Action {
	return Action{Kind: ActionSequence, Steps: steps}
}

// Unknown preserves an action tag nothing understands. Dispatching it warns and does nothing.
func Unknown(tag string) Action { return Action{Kind: ActionUnknown, Tag: tag} }

// Flatten returns the steps to dispatch for a.
// A non-sequence action is a sequence of one.
func (a Action) Flatten() []Action {
	if a.Kind == ActionSequence {
		return a.Steps
	}
	return []Action{a}
}

// String renders a compactly for logs and diagnostics.
func (a Action) String() string {
	switch a.Kind {
	case ActionSend:
		return fmt.Sprintf("send(%q)", a.Text)
	case ActionDelete:
		if a.Target == nil {
			return "delete(<nil>)"
		}
		return fmt.Sprintf("delete(%s)", a.Target)
	case ActionSleep:
		return fmt.Sprintf("sleep(%s)", a.Duration)
	case ActionPrint:
		return fmt.Sprintf("print(%q)", a.Text)
	case ActionSequence:
		parts := make([]string, len(a.Steps))
		for i, s := range a.Steps {
			parts[i] = s.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case ActionUnknown:
		return fmt.Sprintf("unknown(%q)", a.Tag)
	default:
		return string(a.Kind)
	}
}
