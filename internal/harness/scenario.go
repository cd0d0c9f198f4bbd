package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/interact/internal/transport"
)

// Scenario defines one scripted interaction and what it should produce.
type Scenario struct {
	// Name uniquely identifies this scenario. Also names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Rules is the path to a CUE rule file or directory.
	// Relative paths are resolved against the base path when loaded.
	Rules string `yaml:"rules,omitempty"`

	// Source holds CUE rules inline. Exactly one of Rules and Source is set.
	Source string `yaml:"source,omitempty"`

	// RuleSet names the rule set to run. Optional when there is only one.
	RuleSet string `yaml:"ruleset,omitempty"`

	// Timeout overrides the rule set timeout, as a Go duration string.
	Timeout string `yaml:"timeout,omitempty"`

	// SessionID fixes the session id. Defaults to "test-session".
	SessionID string `yaml:"session_id,omitempty"`

	// Script is what the simulated child does.
	Script []ScriptStep `yaml:"script"`

	// Expect checks the outcome and the sent lines.
	Expect *ExpectClause `yaml:"expect,omitempty"`

	// Assertions are further checks on the transcript.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// ScriptStep is one step of the simulated child. Exactly one field is set.
type ScriptStep struct {
	Emit       *string `yaml:"emit,omitempty"`
	AwaitInput bool    `yaml:"await_input,omitempty"`
	Hang       bool    `yaml:"hang,omitempty"`
}

// Step converts s to a transport step.
func (s ScriptStep) Step() transport.Step {
	switch {
	case s.Emit != nil:
		return transport.Emit(*s.Emit)
	case s.AwaitInput:
		return transport.AwaitInput()
	default:
		return transport.Hang()
	}
}

// ExpectClause specifies the expected end of the session.
type ExpectClause struct {
	// Outcome is the expected result: 0, -1, -2 or -3.
	Outcome *int `yaml:"outcome,omitempty"`

	// Sent is the exact list of lines sent to the child.
	// If nil, sent lines are not checked.
	Sent []string `yaml:"sent,omitempty"`
}

// Assertion validates the transcript.
type Assertion struct {
	// Type specifies the assertion type:
	// - "sent_contains": Line was sent
	// - "sent_order": Lines were sent in order
	// - "match_count": Pattern matched exactly Count times
	// - "diagnostic_contains": a diagnostic line contains Text
	// - "outcome": session ended with Outcome
	Type string `yaml:"type"`

	// Line is the sent line (used by sent_contains).
	Line string `yaml:"line,omitempty"`

	// Lines is the expected send order (used by sent_order).
	Lines []string `yaml:"lines,omitempty"`

	// Pattern is a rule pattern as written (`READY`) or as rendered in the
	// transcript (`"READY"`, `literal("x")`, `EOF`). Used by match_count.
	Pattern string `yaml:"pattern,omitempty"`

	// Count is the expected number of matches (used by match_count).
	Count int `yaml:"count,omitempty"`

	// Text is the expected diagnostic fragment (used by diagnostic_contains).
	Text string `yaml:"text,omitempty"`

	// Outcome is the expected outcome (used by outcome).
	Outcome *int `yaml:"outcome,omitempty"`
}

// Assertion type constants.
const (
	AssertSentContains       = "sent_contains"
	AssertSentOrder          = "sent_order"
	AssertMatchCount         = "match_count"
	AssertDiagnosticContains = "diagnostic_contains"
	AssertOutcome            = "outcome"
)

// TimeoutDuration parses Timeout. The second result is false when unset.
func (s *Scenario) TimeoutDuration() (time.Duration, bool, error) {
	if s.Timeout == "" {
		return 0, false, nil
	}
	d, err := time.ParseDuration(s.Timeout)
	if err != nil {
		return 0, false, fmt.Errorf("timeout: %w", err)
	}
	return d, true, nil
}

// Steps returns the script as transport steps.
func (s *Scenario) Steps() []transport.Step {
	steps := make([]transport.Step, len(s.Script))
	for i, st := range s.Script {
		steps[i] = st.Step()
	}
	return steps
}

// LoadScenario reads and parses a scenario YAML file.
// Relative rule paths are resolved against the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving a relative rules path against basePath.
//
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or is missing required fields.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Rules != "" && !filepath.IsAbs(scenario.Rules) && basePath != "" {
		scenario.Rules = filepath.Join(basePath, scenario.Rules)
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML. Unknown fields are rejected.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and well-formed.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if (s.Rules == "") == (s.Source == "") {
		return fmt.Errorf("exactly one of rules and source is required")
	}
	if _, _, err := s.TimeoutDuration(); err != nil {
		return err
	}
	if s.Expect != nil && s.Expect.Outcome != nil {
		if err := validateOutcome(*s.Expect.Outcome); err != nil {
			return fmt.Errorf("expect: %w", err)
		}
	}

	for i, step := range s.Script {
		set := 0
		if step.Emit != nil {
			set++
		}
		if step.AwaitInput {
			set++
		}
		if step.Hang {
			set++
		}
		if set != 1 {
			return fmt.Errorf("script[%d]: exactly one of emit, await_input and hang is required", i)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a, i); err != nil {
			return err
		}
	}
	return nil
}

func validateOutcome(o int) error {
	if o > 0 || o < -3 {
		return fmt.Errorf("outcome must be 0, -1, -2 or -3, got %d", o)
	}
	return nil
}

// validateAssertion checks that an assertion has the fields its type requires.
func validateAssertion(a Assertion, index int) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertSentContains:
		if a.Line == "" {
			return fmt.Errorf("assertions[%d]: line is required for sent_contains", index)
		}
	case AssertSentOrder:
		if len(a.Lines) == 0 {
			return fmt.Errorf("assertions[%d]: lines list is required for sent_order", index)
		}
	case AssertMatchCount:
		if a.Pattern == "" {
			return fmt.Errorf("assertions[%d]: pattern is required for match_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for match_count", index)
		}
	case AssertDiagnosticContains:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for diagnostic_contains", index)
		}
	case AssertOutcome:
		if a.Outcome == nil {
			return fmt.Errorf("assertions[%d]: outcome is required for outcome", index)
		}
		if err := validateOutcome(*a.Outcome); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
