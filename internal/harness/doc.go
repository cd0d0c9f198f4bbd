// Package harness runs rule sets against scripted children and checks the
// resulting transcripts.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: deploy_ready
//	description: "Sends start once the service is ready"
//	rules: rules/deploy.cue     # CUE file or directory, relative to the base path
//	ruleset: deploy             # optional when the file holds one rule set
//	timeout: 50ms               # optional, overrides the rule set timeout
//	script:
//	  - emit: "READY\n"
//	  - await_input: true
//	  - hang: true
//	expect:
//	  outcome: 0
//	  sent: [start]
//	assertions:
//	  - type: sent_contains
//	    line: start
//	  - type: match_count
//	    pattern: READY
//	    count: 1
//
// Rules may also be given inline with `source:` instead of `rules:`.
//
// # Assertion Types
//
//   - sent_contains: a line was sent to the child
//   - sent_order: lines were sent in this order (others may intervene)
//   - match_count: a rule pattern matched exactly N times
//   - diagnostic_contains: a diagnostic line contains the text
//   - outcome: the session ended with this outcome
//
// # Deterministic Testing
//
// Every scenario runs with a fixed session id, a fresh logical clock, and a
// recording sleeper, so the same scenario always produces the same
// transcript. RunWithGolden compares that transcript with a goldie fixture
// under testdata/golden.
package harness
