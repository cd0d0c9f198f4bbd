package harness

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/interact/internal/compiler"
	"github.com/roach88/interact/internal/diag"
	"github.com/roach88/interact/internal/engine"
	"github.com/roach88/interact/internal/ir"
	"github.com/roach88/interact/internal/testutil"
	"github.com/roach88/interact/internal/transport"
)

// Run executes a scenario and returns the result.
// See RunContext.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext executes a scenario against a scripted child.
//
// Execution flow:
//  1. Load, select and validate the rule set
//  2. Play the script through a transport.Script
//  3. Run the engine with a fixed session id and a recording sleeper
//  4. Check the expect clause and evaluate assertions
//
// An error is returned when the scenario cannot run at all. A scenario that
// runs but does not behave as expected returns a Result with Pass false.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	rs, err := LoadRuleSet(scenario)
	if err != nil {
		return nil, err
	}

	timeout := rs.Timeout
	if d, ok, err := scenario.TimeoutDuration(); err != nil {
		return nil, err
	} else if ok {
		timeout = d
	}

	script := transport.NewScript(scenario.Steps()...)
	exp := transport.New(script, script)
	defer exp.Close()

	var diagnostics bytes.Buffer
	rec := &engine.MemoryRecorder{}
	sleeper := testutil.NewSleeper()

	eng := engine.New(
		engine.WithTimeout(timeout),
		engine.WithPrinter(diag.New(&diagnostics, diag.Quiet)),
		engine.WithRecorder(rec),
		engine.WithSessionIDGenerator(testutil.NewFixedSessionGenerator(scenario.SessionID)),
		engine.WithSleep(sleeper.Sleep),
	)

	outcome, err := eng.Run(ctx, exp, rs.Rules)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	result := NewResult()
	result.Outcome = outcome
	result.Trace = append(result.Trace, rec.Events...)
	result.Sent = append(result.Sent, script.Received()...)
	result.Diagnostics = splitLines(diagnostics.String())
	result.Slept = sleeper.Slept()

	slog.Debug("scenario finished",
		"scenario", scenario.Name,
		"outcome", outcome.String(),
		"events", len(result.Trace),
	)

	checkExpect(result, scenario.Expect)
	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	return result, nil
}

// LoadRuleSet compiles the scenario's rules, picks the named rule set and
// rejects it if validation reports errors.
func LoadRuleSet(scenario *Scenario) (*ir.RuleSet, error) {
	var (
		sets []*ir.RuleSet
		err  error
	)
	if scenario.Source != "" {
		v := cuecontext.New().CompileString(scenario.Source)
		sets, err = compiler.CompileRuleSets(v)
		if err == nil && len(sets) == 0 {
			err = fmt.Errorf("no rule sets found in source")
		}
	} else {
		sets, err = compiler.LoadRuleSets(scenario.Rules)
	}
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	rs, err := compiler.SelectRuleSet(sets, scenario.RuleSet)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	if errs := compiler.Errors(compiler.Validate(rs)); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return nil, fmt.Errorf("scenario %s: invalid rule set %s: %s",
			scenario.Name, rs.Name, strings.Join(msgs, "; "))
	}
	return rs, nil
}

// checkExpect compares the result with the scenario's expect clause.
func checkExpect(result *Result, expect *ExpectClause) {
	if expect == nil {
		return
	}
	if expect.Outcome != nil && ir.Outcome(*expect.Outcome) != result.Outcome {
		result.AddError(fmt.Sprintf("expected outcome %d (%s), got %d (%s)",
			*expect.Outcome, ir.Outcome(*expect.Outcome), int(result.Outcome), result.Outcome))
	}
	if expect.Sent != nil && !slices.Equal(expect.Sent, result.Sent) {
		result.AddError(fmt.Sprintf("expected sent lines %q, got %q", expect.Sent, result.Sent))
	}
}

func splitLines(s string) []string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
