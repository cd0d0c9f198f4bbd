package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/roach88/interact/internal/diag"
	"github.com/roach88/interact/internal/ir"
)

// Env is what an action can touch while it is dispatched.
type Env struct {
	Session Session
	Printer *diag.Printer

	// Sleep blocks for d. Defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error

	// Record receives the send and delete events an action produces. May be nil.
	Record func(ev ir.Event)

	// RuleIndex is the index of the matched rule, for diagnostics.
	RuleIndex int
}

// Dispatch runs action against rules and returns its status and the rule
// list to use from the next iteration.
//
// A Sequence runs every step in order, even after one returns a terminal
// status, and reports the minimum. Other actions report:
//
//	Send, Delete, Sleep, Print, Unknown, Noop   0
//	StopOK                                     -1
//	StopError                                  -2
//
// rules is never modified in place; a Delete returns a shortened copy.
// Errors come only from the transport while sending and from ctx while sleeping.
func Dispatch(ctx context.Context, env Env, action ir.Action, rules []ir.Rule) (ir.Outcome, []ir.Rule, error) {
	if env.Printer == nil {
		env.Printer = diag.Discard()
	}
	if env.Sleep == nil {
		env.Sleep = sleepContext
	}

	if action.Kind == ir.ActionSequence {
		status := ir.OutcomeEOF
		for _, step := range action.Steps {
			s, next, err := Dispatch(ctx, env, step, rules)
			if err != nil {
				return status, rules, err
			}
			rules = next
			status = min(status, s)
		}
		return status, rules, nil
	}

	env.Printer.Debugf(diag.Trace, "    dealing with rule item %s", action)

	switch action.Kind {
	case ir.ActionSend:
		if err := env.Session.SendLine(action.Text); err != nil {
			return ir.OutcomeEOF, rules, fmt.Errorf("send %q: %w", action.Text, err)
		}
		env.record(ir.Event{Kind: ir.EventSend, RuleIndex: env.RuleIndex, Line: action.Text})
		return ir.OutcomeEOF, rules, nil

	case ir.ActionDelete:
		return ir.OutcomeEOF, env.deleteRule(action.Target, rules), nil

	case ir.ActionSleep:
		if err := env.Sleep(ctx, action.Duration); err != nil {
			return ir.OutcomeEOF, rules, err
		}
		return ir.OutcomeEOF, rules, nil

	case ir.ActionPrint:
		env.Printer.Printf("%s", action.Text)
		return ir.OutcomeEOF, rules, nil

	case ir.ActionStopOK:
		env.Printer.Debugf(diag.Matches, "  rule signalled that we are done")
		return ir.OutcomeStopped, rules, nil

	case ir.ActionStopError:
		env.Printer.Failf("underlying command reported a problem: %q", env.Session.LastMatch().Text)
		return ir.OutcomeFailed, rules, nil

	case ir.ActionNoop:
		return ir.OutcomeEOF, rules, nil

	default:
		tag := action.Tag
		if action.Kind != ir.ActionUnknown {
			tag = string(action.Kind)
		}
		env.Printer.Warnf("do not know action %q, skipping", tag)
		slog.Warn("unknown action", "rule", env.RuleIndex, "action", tag)
		return ir.OutcomeEOF, rules, nil
	}
}

// deleteRule removes the first rule whose pattern equals target.
// Sentinel rules are never removed.
func (env Env) deleteRule(target *ir.Pattern, rules []ir.Rule) []ir.Rule {
	if target == nil {
		env.Printer.Warnf("delete without a target pattern, skipping")
		return rules
	}
	if target.IsSentinel() {
		env.Printer.Warnf("refusing to delete the %s rule", target)
		slog.Warn("refused sentinel delete", "rule", env.RuleIndex, "pattern", target.String())
		return rules
	}

	i := slices.IndexFunc(rules, func(r ir.Rule) bool {
		return r.Pattern.Equal(*target)
	})
	if i < 0 {
		env.Printer.Debugf(diag.Trace, "    no rule with pattern %s to remove", target)
		return rules
	}

	env.Printer.Debugf(diag.Trace, "    removing rule, index %d: %s", i, target)
	env.record(ir.Event{Kind: ir.EventDelete, RuleIndex: i, Pattern: target.String()})

	out := slices.Clone(rules)
	return slices.Delete(out, i, i+1)
}

func (env Env) record(ev ir.Event) {
	if env.Record != nil {
		env.Record(ev)
	}
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
