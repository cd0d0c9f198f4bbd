package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type compileResponse struct {
	Status string            `json:"status"`
	Data   CompilationResult `json:"data"`
}

func TestCompile_JSON(t *testing.T) {
	dir := t.TempDir()
	rules := writeFile(t, dir, "greet.cue", greetRules)

	out, _, err := execute(t, "compile", "--format", "json", rules)
	require.NoError(t, err)

	var resp compileResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.RuleSets, 2)

	greet := resp.Data.RuleSets[0]
	assert.Equal(t, "greet", greet.Name)
	assert.Equal(t, 4, greet.RuleCount, "EOF and TIMEOUT rules are appended")
	assert.NotEmpty(t, greet.Hash)

	var body struct {
		Name      string           `json:"name"`
		TimeoutNS int64            `json:"timeout_ns"`
		Rules     []map[string]any `json:"rules"`
	}
	require.NoError(t, json.Unmarshal(greet.RuleSet, &body))
	assert.Equal(t, "greet", body.Name)
	assert.Equal(t, int64(5e9), body.TimeoutNS)
	assert.Len(t, body.Rules, 4)
}

func TestCompile_HashIsStable(t *testing.T) {
	dir := t.TempDir()
	rules := writeFile(t, dir, "greet.cue", greetRules)

	first, _, err := execute(t, "compile", "--format", "json", "--ruleset", "greet", rules)
	require.NoError(t, err)
	second, _, err := execute(t, "compile", "--format", "json", "--ruleset", "greet", rules)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCompile_TextAndOutputFile(t *testing.T) {
	dir := t.TempDir()
	rules := writeFile(t, dir, "greet.cue", greetRules)
	outFile := filepath.Join(dir, "out.json")

	out, _, err := execute(t, "compile", "-o", outFile, rules)
	require.NoError(t, err)
	assert.Contains(t, out, "Compiled 2 rule set(s)")
	assert.Contains(t, out, "greet: 4 rule(s)")
	assert.Contains(t, out, "Wrote canonical rule sets to "+outFile)

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	var result CompilationResult
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Len(t, result.RuleSets, 2)
}

func TestCompile_UnknownRuleSet(t *testing.T) {
	dir := t.TempDir()
	rules := writeFile(t, dir, "greet.cue", greetRules)

	_, _, err := execute(t, "compile", "--ruleset", "nope", rules)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeRuleSetChoice)
}

func TestCompile_Errors(t *testing.T) {
	dir := t.TempDir()
	rules := writeFile(t, dir, "bad.cue", `
ruleset: a: rules: [{expect: "x", stop: "maybe"}]
ruleset: b: rules: [{send: "y"}]
`)

	out, _, err := execute(t, "compile", rules)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Compilation failed")
	assert.Contains(t, out, ErrCodeStopStatus)
	assert.Contains(t, out, ErrCodeRule)
	assert.Contains(t, err.Error(), "2 error(s)")
}
