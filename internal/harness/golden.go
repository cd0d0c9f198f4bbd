package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/interact/internal/ir"
)

// GoldenDir is where golden transcripts live, relative to the test package.
const GoldenDir = "testdata/golden"

// Snapshot renders a scenario result as canonical JSON for golden comparison.
// It holds the outcome, the sent lines and every transcript event with its seq.
func Snapshot(scenarioName, sessionID string, result *Result) ([]byte, error) {
	if sessionID == "" {
		sessionID = "test-session"
	}

	trace := make([]any, len(result.Trace))
	for i, ev := range result.Trace {
		m := ev.Canonical()
		m["seq"] = ev.Seq
		trace[i] = m
	}

	sent := make([]any, len(result.Sent))
	for i, line := range result.Sent {
		sent[i] = line
	}

	return ir.MarshalCanonical(map[string]any{
		"scenario_name": scenarioName,
		"session_id":    sessionID,
		"outcome":       result.Outcome,
		"sent":          sent,
		"trace":         trace,
	})
}

// RunWithGolden executes a scenario and compares its transcript against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can also check Pass. Test failure (via
// goldie) occurs if the transcript doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	data, err := Snapshot(scenario.Name, scenario.SessionID, result)
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)

	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenarioName, "", result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}
