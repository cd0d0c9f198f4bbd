package compiler

import (
	"testing"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/interact/internal/ir"
)

func compileOne(t *testing.T, src, path string) (*ir.RuleSet, error) {
	t.Helper()
	ctx := cuecontext.New()
	v := ctx.CompileString(src)
	require.NoError(t, v.Err())
	return CompileRuleSet(v.LookupPath(cue.ParsePath(path)))
}

func TestCompileRuleSetBasic(t *testing.T) {
	rs, err := compileOne(t, `
		ruleset: deploy: {
			timeout: "30s"
			rules: [
				{expect: "READY", send: "start"},
				{literal: "ERROR:", stop: "error"},
				{expect: "foo", do: [{delete: "foo"}, {send: "bar"}]},
				{expect: "prompt>", stop: "ok", name: "done"},
				{expect: "slow", sleep: "2s"},
				{expect: "note", print: "saw note"},
				{expect: "quiet"},
				{eof: true},
				{timeout: true},
			]
		}
	`, "ruleset.deploy")
	require.NoError(t, err)

	assert.Equal(t, "deploy", rs.Name)
	assert.Equal(t, 30*time.Second, rs.Timeout)
	require.Len(t, rs.Rules, 9)

	assert.Equal(t, ir.On(ir.Regexp("READY"), ir.Send("start")), rs.Rules[0])
	assert.Equal(t, ir.On(ir.Literal("ERROR:"), ir.StopError()), rs.Rules[1])
	assert.Equal(t, ir.Sequence(ir.Delete(ir.Regexp("foo")), ir.Send("bar")), rs.Rules[2].Action)
	assert.Equal(t, ir.StopOK(), rs.Rules[3].Action)
	assert.Equal(t, "done", rs.Rules[3].Name)
	assert.Equal(t, ir.Sleep(2*time.Second), rs.Rules[4].Action)
	assert.Equal(t, ir.Print("saw note"), rs.Rules[5].Action)
	assert.Equal(t, ir.Noop(), rs.Rules[6].Action, "no action key means noop")
	assert.Equal(t, ir.EOF(), rs.Rules[7].Pattern)
	assert.Equal(t, ir.Timeout(), rs.Rules[8].Pattern)
}

func TestCompileRuleSetNumericDurations(t *testing.T) {
	rs, err := compileOne(t, `
		ruleset: r: {
			timeout: 5
			rules: [{expect: "x", sleep: 0.5}]
		}
	`, "ruleset.r")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, rs.Timeout)
	assert.Equal(t, ir.Sleep(500*time.Millisecond), rs.Rules[0].Action)
}

func TestCompileRuleSetDeleteTargetStruct(t *testing.T) {
	rs, err := compileOne(t, `
		ruleset: r: rules: [
			{literal: "a.b", delete: {literal: "a.b"}},
		]
	`, "ruleset.r")
	require.NoError(t, err)
	assert.Equal(t, ir.Delete(ir.Literal("a.b")), rs.Rules[0].Action)
}

func TestCompileRuleSetUnknownActions(t *testing.T) {
	rs, err := compileOne(t, `
		ruleset: r: rules: [
			{expect: "x", do: [{explode: true}, {send: "y"}]},
			{expect: "z", launch: "rockets"},
		]
	`, "ruleset.r")
	require.NoError(t, err)
	assert.Equal(t, ir.Sequence(ir.Unknown("explode"), ir.Send("y")), rs.Rules[0].Action)
	assert.Equal(t, ir.Unknown("launch"), rs.Rules[1].Action)
}

func TestCompileRuleSetErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantMsg string
	}{
		{"missing rules", `ruleset: r: {timeout: "1s"}`, "rules is required"},
		{"missing pattern", `ruleset: r: rules: [{send: "x"}]`, "a pattern key is required"},
		{"two patterns", `ruleset: r: rules: [{expect: "a", literal: "b"}]`, "more than one pattern key"},
		{"two actions", `ruleset: r: rules: [{expect: "a", send: "b", print: "c"}]`, "more than one action key"},
		{"bad stop", `ruleset: r: rules: [{expect: "a", stop: "maybe"}]`, `stop must be "ok" or "error"`},
		{"eof false", `ruleset: r: rules: [{eof: false}]`, "eof must be true"},
		{"bad duration", `ruleset: r: {timeout: "soon", rules: []}`, "invalid duration"},
		{"two keys in step", `ruleset: r: rules: [{expect: "a", do: [{send: "b", print: "c"}]}]`, "exactly one action key"},
		{"empty step", `ruleset: r: rules: [{expect: "a", do: [{}]}]`, "empty step"},
		{"bad delete target", `ruleset: r: rules: [{expect: "a", delete: {send: "b"}}]`, "not a pattern key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compileOne(t, tt.src, "ruleset.r")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestCompileRuleSetErrorHasPosition(t *testing.T) {
	_, err := compileOne(t, `ruleset: r: rules: [{expect: "a", stop: "maybe"}]`, "ruleset.r")
	require.Error(t, err)

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.True(t, ce.Pos.IsValid())
	assert.Equal(t, "rules[0].stop", ce.Field)
}

func TestCompileRuleSets(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		ruleset: first: rules: [{expect: "a"}]
		ruleset: second: rules: [{expect: "b"}]
	`)

	sets, err := CompileRuleSets(v)
	require.NoError(t, err)
	require.Len(t, sets, 2)
	assert.Equal(t, "first", sets[0].Name)
	assert.Equal(t, "second", sets[1].Name)

	none, err := CompileRuleSets(ctx.CompileString(`other: 1`))
	require.NoError(t, err)
	assert.Nil(t, none)
}
