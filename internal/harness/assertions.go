package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/interact/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes the transcript to help debug the failure.
type AssertionError struct {
	Type     string     // Assertion type for categorization
	Expected string     // Human-readable expected outcome
	Actual   string     // Human-readable actual outcome
	Trace    []ir.Event // Full transcript for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, ev := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s\n", ev.Seq, describe(ev))
	}

	return buf.String()
}

// describe renders one event for failure output.
func describe(ev ir.Event) string {
	switch ev.Kind {
	case ir.EventMatch:
		return fmt.Sprintf("match rule %d %s %q", ev.RuleIndex, ev.Pattern, ev.Text)
	case ir.EventSend:
		return fmt.Sprintf("send %q", ev.Line)
	case ir.EventDispatch:
		return fmt.Sprintf("dispatch rule %d %s -> %d", ev.RuleIndex, ev.Action, int(ev.Status))
	case ir.EventDelete:
		return fmt.Sprintf("delete rule %d %s", ev.RuleIndex, ev.Pattern)
	case ir.EventOutcome:
		return fmt.Sprintf("outcome %d (%s)", int(ev.Status), ev.Status)
	}
	return string(ev.Kind)
}

// assertSentContains checks that the line was sent at least once.
func assertSentContains(result *Result, a Assertion) error {
	if slices.Contains(result.Sent, a.Line) {
		return nil
	}
	return &AssertionError{
		Type:     AssertSentContains,
		Expected: fmt.Sprintf("line %q sent", a.Line),
		Actual:   fmt.Sprintf("sent %q", result.Sent),
		Trace:    result.Trace,
	}
}

// assertSentOrder checks that the lines were sent in the given order.
// Lines don't need to be consecutive (intervening lines are allowed).
func assertSentOrder(result *Result, a Assertion) error {
	pos := 0
	for _, want := range a.Lines {
		i := slices.Index(result.Sent[pos:], want)
		if i < 0 {
			actual := fmt.Sprintf("missing line: %q", want)
			if slices.Contains(result.Sent, want) {
				actual = fmt.Sprintf("%q sent out of order in %q", want, result.Sent)
			}
			return &AssertionError{
				Type:     AssertSentOrder,
				Expected: fmt.Sprintf("lines in order: %q", a.Lines),
				Actual:   actual,
				Trace:    result.Trace,
			}
		}
		pos += i + 1
	}
	return nil
}

// assertMatchCount checks that a pattern matched exactly Count times.
func assertMatchCount(result *Result, a Assertion) error {
	rendered := ir.Regexp(a.Pattern).String()

	count := 0
	for _, ev := range result.Matches() {
		if ev.Pattern == a.Pattern || ev.Pattern == rendered {
			count++
		}
	}

	if count != a.Count {
		return &AssertionError{
			Type:     AssertMatchCount,
			Expected: fmt.Sprintf("pattern %s matched %d time(s)", a.Pattern, a.Count),
			Actual:   fmt.Sprintf("matched %d time(s)", count),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertDiagnosticContains checks that some diagnostic line contains Text.
func assertDiagnosticContains(result *Result, a Assertion) error {
	for _, line := range result.Diagnostics {
		if strings.Contains(line, a.Text) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertDiagnosticContains,
		Expected: fmt.Sprintf("a diagnostic containing %q", a.Text),
		Actual:   fmt.Sprintf("diagnostics %q", result.Diagnostics),
		Trace:    result.Trace,
	}
}

// assertOutcome checks the session's outcome.
func assertOutcome(result *Result, a Assertion) error {
	want := ir.Outcome(*a.Outcome)
	if result.Outcome == want {
		return nil
	}
	return &AssertionError{
		Type:     AssertOutcome,
		Expected: fmt.Sprintf("outcome %d (%s)", int(want), want),
		Actual:   fmt.Sprintf("outcome %d (%s)", int(result.Outcome), result.Outcome),
		Trace:    result.Trace,
	}
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, a := range assertions {
		var err error

		switch a.Type {
		case AssertSentContains:
			err = assertSentContains(result, a)
		case AssertSentOrder:
			err = assertSentOrder(result, a)
		case AssertMatchCount:
			err = assertMatchCount(result, a)
		case AssertDiagnosticContains:
			err = assertDiagnosticContains(result, a)
		case AssertOutcome:
			if a.Outcome == nil {
				err = fmt.Errorf("outcome assertion has no outcome")
			} else {
				err = assertOutcome(result, a)
			}
		default:
			err = fmt.Errorf("unknown assertion type: %s", a.Type)
		}

		if err != nil {
			errors = append(errors, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}

	return errors
}
