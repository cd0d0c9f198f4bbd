package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/interact/internal/ir"
)

func countSentinels(rules []ir.Rule) (eof, timeout int) {
	for _, r := range rules {
		switch r.Pattern.Kind {
		case ir.PatternEOF:
			eof++
		case ir.PatternTimeout:
			timeout++
		}
	}
	return eof, timeout
}

func TestNormalize_SentinelUniqueness(t *testing.T) {
	tests := []struct {
		name  string
		rules []ir.Rule
	}{
		{"empty", nil},
		{"no sentinels", []ir.Rule{ir.On(ir.Regexp("a"), ir.Send("b"))}},
		{"eof only", []ir.Rule{ir.On(ir.EOF(), ir.Print("bye"))}},
		{"both present", []ir.Rule{ir.On(ir.Timeout(), ir.Noop()), ir.On(ir.EOF(), ir.Noop())}},
		{"duplicated", []ir.Rule{
			ir.On(ir.EOF(), ir.Print("first")),
			ir.On(ir.Timeout(), ir.Noop()),
			ir.On(ir.EOF(), ir.Print("second")),
			ir.On(ir.Timeout(), ir.Noop()),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Normalize(tt.rules)
			require.NoError(t, err)
			eof, timeout := countSentinels(out)
			assert.Equal(t, 1, eof)
			assert.Equal(t, 1, timeout)
		})
	}
}

func TestNormalize_AppendsNoopDefaults(t *testing.T) {
	out, err := Normalize([]ir.Rule{ir.On(ir.Regexp("a"), ir.Send("b"))})
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.Equal(t, ir.On(ir.EOF(), ir.Noop()), out[1])
	assert.Equal(t, ir.On(ir.Timeout(), ir.Noop()), out[2])
}

func TestNormalize_KeepsFirstDuplicate(t *testing.T) {
	rules := []ir.Rule{
		ir.On(ir.EOF(), ir.Print("first")),
		ir.On(ir.EOF(), ir.Print("second")),
	}
	out, err := Normalize(rules)
	require.NoError(t, err)

	assert.Equal(t, ir.Print("first"), out[0].Action)
	assert.Len(t, rules, 2, "input is not modified")
}

func TestNormalize_PreservesOrder(t *testing.T) {
	rules := []ir.Rule{
		ir.On(ir.Regexp("a"), ir.Noop()),
		ir.On(ir.Timeout(), ir.Noop()),
		ir.On(ir.Regexp("b"), ir.Noop()),
	}
	out, err := Normalize(rules)
	require.NoError(t, err)

	assert.Equal(t, []ir.Pattern{ir.Regexp("a"), ir.Timeout(), ir.Regexp("b"), ir.EOF()}, ir.Patterns(out))
}

func TestCheckSentinels(t *testing.T) {
	err := checkSentinels([]ir.Rule{ir.On(ir.Timeout(), ir.Noop())})
	require.Error(t, err)
	assert.True(t, IsMalformedRuleSet(err))
	assert.Contains(t, err.Error(), "EOF")

	err = checkSentinels([]ir.Rule{ir.On(ir.EOF(), ir.Noop())})
	assert.True(t, IsMalformedRuleSet(err))
}
