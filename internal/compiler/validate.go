package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/interact/internal/ir"
)

// Validation codes. E2xx are errors that stop a rule set from running;
// W2xx are warnings about rules that load but probably do not do what was meant.
const (
	ErrRuleSetNameEmpty = "E201" // rule set has no name
	ErrInvalidRegexp    = "E202" // pattern does not compile
	ErrEmptyPattern     = "E203" // pattern expression is empty
	ErrNegativeTimeout  = "E204" // rule set timeout below zero
	ErrNegativeSleep    = "E205" // sleep duration below zero
	ErrDeleteNoTarget   = "E206" // delete without a target pattern
	ErrUnknownPattern   = "E207" // pattern kind not recognised

	WarnUnknownAction     = "W201" // action tag not recognised; no-op at runtime
	WarnDuplicateSentinel = "W202" // later EOF/TIMEOUT rules are dropped
	WarnDeleteNoMatch     = "W203" // delete targets no rule in the set
	WarnDeleteSentinel    = "W204" // delete targets EOF/TIMEOUT and is refused
	WarnSentinelAction    = "W205" // sentinel rule action is never dispatched
	WarnMatchesEmpty      = "W206" // pattern can match without consuming output
)

// Severity separates blocking errors from advisory warnings.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// ValidationError represents one finding about a rule set.
type ValidationError struct {
	Field    string   `json:"field"`
	Message  string   `json:"message"`
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Line     int      `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// IsWarning reports whether the finding is advisory.
func (e ValidationError) IsWarning() bool {
	return e.Severity == SeverityWarning
}

// Errors returns only the blocking findings.
func Errors(findings []ValidationError) []ValidationError {
	var out []ValidationError
	for _, f := range findings {
		if !f.IsWarning() {
			out = append(out, f)
		}
	}
	return out
}

// Warnings returns only the advisory findings.
func Warnings(findings []ValidationError) []ValidationError {
	var out []ValidationError
	for _, f := range findings {
		if f.IsWarning() {
			out = append(out, f)
		}
	}
	return out
}

// Validate checks a compiled rule set.
// Returns all findings (does not fail-fast), errors and warnings mixed in
// rule order.
func Validate(rs *ir.RuleSet) []ValidationError {
	var out []ValidationError

	fail := func(field, code, format string, args ...any) {
		out = append(out, ValidationError{
			Field:    field,
			Message:  fmt.Sprintf(format, args...),
			Code:     code,
			Severity: SeverityError,
		})
	}
	warn := func(field, code, format string, args ...any) {
		out = append(out, ValidationError{
			Field:    field,
			Message:  fmt.Sprintf(format, args...),
			Code:     code,
			Severity: SeverityWarning,
		})
	}

	// E201
	if strings.TrimSpace(rs.Name) == "" {
		fail("name", ErrRuleSetNameEmpty, "rule set name is required")
	}

	// E204
	if rs.Timeout < 0 {
		fail("timeout", ErrNegativeTimeout, "timeout must not be negative, got %s", rs.Timeout)
	}

	seen := map[ir.PatternKind]int{}
	for i, r := range rs.Rules {
		field := fmt.Sprintf("rules[%d]", i)

		switch r.Pattern.Kind {
		case ir.PatternEOF, ir.PatternTimeout:
			if first, dup := seen[r.Pattern.Kind]; dup {
				warn(field, WarnDuplicateSentinel,
					"duplicate %s rule is dropped; rules[%d] is used", r.Pattern, first)
			} else {
				seen[r.Pattern.Kind] = i
			}
			if r.Action.Kind != ir.ActionNoop {
				warn(field+".action", WarnSentinelAction,
					"%s ends the session without running its action %s", r.Pattern, r.Action)
			}
		case ir.PatternRegexp, ir.PatternLiteral:
			if r.Pattern.Expr == "" {
				fail(field+".pattern", ErrEmptyPattern, "pattern is empty and would match immediately")
			} else if re, err := r.Pattern.Compile(); err != nil {
				fail(field+".pattern", ErrInvalidRegexp, "%v", err)
			} else if re.MatchString("") {
				warn(field+".pattern", WarnMatchesEmpty,
					"pattern %s matches the empty string and fires on every wait", r.Pattern)
			}
		default:
			fail(field+".pattern", ErrUnknownPattern, "unknown pattern kind %q", r.Pattern.Kind)
		}

		validateAction(rs, r.Action, field+".action", fail, warn)
	}

	return out
}

type reportFunc func(field, code, format string, args ...any)

func validateAction(rs *ir.RuleSet, a ir.Action, field string, fail, warn reportFunc) {
	switch a.Kind {
	case ir.ActionUnknown:
		warn(field, WarnUnknownAction, "unknown action %q is skipped at runtime", a.Tag)
	case ir.ActionSleep:
		if a.Duration < 0 {
			fail(field, ErrNegativeSleep, "sleep must not be negative, got %s", a.Duration)
		}
	case ir.ActionDelete:
		if a.Target == nil {
			fail(field, ErrDeleteNoTarget, "delete needs a target pattern")
			return
		}
		if a.Target.IsSentinel() {
			warn(field, WarnDeleteSentinel, "%s rules cannot be deleted", a.Target)
			return
		}
		found := false
		for _, r := range rs.Rules {
			if r.Pattern.Equal(*a.Target) {
				found = true
				break
			}
		}
		if !found {
			warn(field, WarnDeleteNoMatch, "no rule has pattern %s", a.Target)
		}
	case ir.ActionSequence:
		for i, step := range a.Steps {
			validateAction(rs, step, fmt.Sprintf("%s[%d]", field, i), fail, warn)
		}
	}
}
