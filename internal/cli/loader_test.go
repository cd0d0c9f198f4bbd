package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRules_File(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "greet.cue", greetRules)

	res, errs := LoadRules(path, LoadModeFailFast)
	require.Empty(t, errs)
	require.NotNil(t, res)
	assert.Equal(t, 1, res.FileCount)
	require.Len(t, res.RuleSets, 2)
	assert.Equal(t, "greet", res.RuleSets[0].Name)
	assert.Equal(t, "fail", res.RuleSets[1].Name)
}

func TestLoadRules_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name     string
		path     string
		wantCode string
		wantNil  bool
	}{
		{"missing path", filepath.Join(dir, "nope"), ErrCodeNotFound, true},
		{"empty directory", t.TempDir(), ErrCodeNoFiles, true},
		{"no rulesets", writeFile(t, dir, "other.cue", `other: 1`), ErrCodeNoRuleSets, false},
		{"bad stop", writeFile(t, dir, "stop/bad.cue", `ruleset: x: rules: [{expect: "a", stop: "maybe"}]`), ErrCodeStopStatus, false},
		{"bad duration", writeFile(t, dir, "dur/bad.cue", `ruleset: x: {timeout: "soon", rules: []}`), ErrCodeDuration, false},
		{"no pattern", writeFile(t, dir, "pat/bad.cue", `ruleset: x: rules: [{send: "a"}]`), ErrCodeRule, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, errs := LoadRules(tt.path, LoadModeFailFast)
			require.NotEmpty(t, errs)
			assert.Equal(t, tt.wantNil, res == nil)

			var loadErr *LoadError
			require.ErrorAs(t, errs[0], &loadErr)
			assert.Equal(t, tt.wantCode, loadErr.Code, loadErr.Error())
		})
	}
}

func TestLoadRules_CollectAll(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "mixed.cue", `
ruleset: a: rules: [{expect: "x", stop: "nope"}]
ruleset: b: rules: [{expect: "y"}]
ruleset: c: rules: [{send: "z"}]
`)

	res, errs := LoadRules(path, LoadModeFailFast)
	assert.Len(t, errs, 1)
	assert.Empty(t, res.RuleSets)

	res, errs = LoadRules(path, LoadModeCollectAll)
	assert.Len(t, errs, 2)
	require.Len(t, res.RuleSets, 1)
	assert.Equal(t, "b", res.RuleSets[0].Name)
}

func TestLoadRuleSet_Selection(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "greet.cue", greetRules)

	rs, err := loadRuleSet(path, "fail")
	require.NoError(t, err)
	assert.Equal(t, "fail", rs.Name)

	_, err = loadRuleSet(path, "")
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, ErrCodeRuleSetChoice, loadErr.Code)
	assert.Contains(t, loadErr.Message, "choose one of")

	_, err = loadRuleSet(path, "missing")
	require.ErrorAs(t, err, &loadErr)
	assert.Contains(t, loadErr.Message, `"missing" not found`)
}

func TestMapFieldToErrorCode(t *testing.T) {
	tests := map[string]string{
		"cue":                  ErrCodeCUE,
		"rules":                ErrCodeRules,
		"timeout":              ErrCodeDuration,
		"rules[2].sleep":       ErrCodeDuration,
		"rules[0].do[1].sleep": ErrCodeDuration,
		"rules[0].stop":        ErrCodeStopStatus,
		"rules[3]":             ErrCodeRule,
		"rules[0].do[0]":       ErrCodeRule,
		"rules[0].delete":      ErrCodeAction,
		"":                     ErrCodeGeneric,
	}
	for field, want := range tests {
		assert.Equal(t, want, MapFieldToErrorCode(field), field)
	}
}
