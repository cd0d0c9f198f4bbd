package compiler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/interact/internal/ir"
)

func codes(findings []ValidationError) []string {
	out := make([]string, len(findings))
	for i, f := range findings {
		out[i] = f.Code
	}
	return out
}

func TestValidateClean(t *testing.T) {
	rs := &ir.RuleSet{
		Name:    "deploy",
		Timeout: time.Second,
		Rules: []ir.Rule{
			ir.On(ir.Regexp("READY"), ir.Send("start")),
			ir.On(ir.Regexp("foo"), ir.Sequence(ir.Delete(ir.Regexp("foo")), ir.Send("bar"))),
			ir.On(ir.EOF(), ir.Noop()),
		},
	}
	assert.Empty(t, Validate(rs))
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name string
		rs   *ir.RuleSet
		want string
	}{
		{"no name", &ir.RuleSet{}, ErrRuleSetNameEmpty},
		{"bad regexp", &ir.RuleSet{Name: "r", Rules: []ir.Rule{ir.On(ir.Regexp("("), ir.Noop())}}, ErrInvalidRegexp},
		{"empty pattern", &ir.RuleSet{Name: "r", Rules: []ir.Rule{ir.On(ir.Regexp(""), ir.Noop())}}, ErrEmptyPattern},
		{"negative timeout", &ir.RuleSet{Name: "r", Timeout: -time.Second}, ErrNegativeTimeout},
		{"negative sleep", &ir.RuleSet{Name: "r", Rules: []ir.Rule{ir.On(ir.Regexp("x"), ir.Sleep(-1))}}, ErrNegativeSleep},
		{"delete without target", &ir.RuleSet{Name: "r", Rules: []ir.Rule{ir.On(ir.Regexp("x"), ir.Action{Kind: ir.ActionDelete})}}, ErrDeleteNoTarget},
		{"unknown pattern kind", &ir.RuleSet{Name: "r", Rules: []ir.Rule{ir.On(ir.Pattern{Kind: "glob", Expr: "*"}, ir.Noop())}}, ErrUnknownPattern},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			findings := Validate(tt.rs)
			assert.Contains(t, codes(Errors(findings)), tt.want)
		})
	}
}

func TestValidateWarnings(t *testing.T) {
	rs := &ir.RuleSet{
		Name: "r",
		Rules: []ir.Rule{
			ir.On(ir.Regexp("a"), ir.Sequence(ir.Unknown("explode"), ir.Delete(ir.Regexp("missing")))),
			ir.On(ir.Regexp("b"), ir.Delete(ir.Timeout())),
			ir.On(ir.Regexp(".*"), ir.StopError()),
			ir.On(ir.EOF(), ir.Noop()),
			ir.On(ir.EOF(), ir.Print("bye")),
		},
	}

	findings := Validate(rs)
	assert.Empty(t, Errors(findings), "warnings only")
	assert.ElementsMatch(t, []string{
		WarnUnknownAction,
		WarnDeleteNoMatch,
		WarnDeleteSentinel,
		WarnMatchesEmpty,
		WarnDuplicateSentinel,
		WarnSentinelAction,
	}, codes(Warnings(findings)))
}

func TestValidationErrorFormat(t *testing.T) {
	e := ValidationError{Field: "rules[0].pattern", Message: "bad", Code: ErrInvalidRegexp}
	assert.Equal(t, "[E202] rules[0].pattern: bad", e.Error())

	e.Line = 7
	assert.Equal(t, "[E202] line 7: rules[0].pattern: bad", e.Error())
}
