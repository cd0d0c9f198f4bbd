package compiler

import (
	"fmt"
	"time"

	"cuelang.org/go/cue"

	"github.com/roach88/interact/internal/ir"
)

// Pattern keys: exactly one per rule.
const (
	keyExpect  = "expect"
	keyLiteral = "literal"
	keyEOF     = "eof"
	keyTimeout = "timeout"
)

// Action keys: at most one per rule, exactly one per `do` element.
const (
	keySend   = "send"
	keyStop   = "stop"
	keyDelete = "delete"
	keySleep  = "sleep"
	keyPrint  = "print"
	keyDo     = "do"
)

const keyName = "name"

// CompileRuleSets compiles every rule set under the top-level `ruleset`
// field of v, in declaration order. Returns nil if v has no rule sets.
func CompileRuleSets(v cue.Value) ([]*ir.RuleSet, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	rsVal := v.LookupPath(cue.ParsePath("ruleset"))
	if !rsVal.Exists() {
		return nil, nil
	}

	iter, err := rsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var out []*ir.RuleSet
	for iter.Next() {
		rs, err := CompileRuleSet(iter.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, rs)
	}
	return out, nil
}

// CompileRuleSet parses a CUE value into a RuleSet.
// Uses the CUE SDK's Go API directly (not a CLI subprocess).
//
// The value is the rule set struct itself; its label is the rule set name:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`ruleset: deploy: { rules: [{expect: "READY", send: "start"}] }`)
//	rs, err := CompileRuleSet(v.LookupPath(cue.ParsePath("ruleset.deploy")))
func CompileRuleSet(v cue.Value) (*ir.RuleSet, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	rs := &ir.RuleSet{}

	labels := v.Path().Selectors()
	if len(labels) > 0 {
		rs.Name = labels[len(labels)-1].String()
	}

	if tv := v.LookupPath(cue.ParsePath(keyTimeout)); tv.Exists() {
		d, err := parseDuration(tv, keyTimeout)
		if err != nil {
			return nil, err
		}
		rs.Timeout = d
	}

	rulesVal := v.LookupPath(cue.ParsePath("rules"))
	if !rulesVal.Exists() {
		return nil, &CompileError{
			Field:   "rules",
			Message: "rules is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := rulesVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for i := 0; iter.Next(); i++ {
		rule, err := compileRule(iter.Value(), fmt.Sprintf("rules[%d]", i))
		if err != nil {
			return nil, err
		}
		rs.Rules = append(rs.Rules, rule)
	}

	return rs, nil
}

// compileRule parses one rule struct: a pattern key, an optional action key
// and an optional name. A key that is neither becomes an Unknown action.
func compileRule(v cue.Value, field string) (ir.Rule, error) {
	iter, err := v.Fields()
	if err != nil {
		return ir.Rule{}, formatCUEError(err)
	}

	var (
		rule       ir.Rule
		havePat    bool
		actionKey  string
		actionSeen bool
	)

	for iter.Next() {
		key := iter.Label()
		val := iter.Value()

		switch key {
		case keyExpect, keyLiteral, keyEOF, keyTimeout:
			if havePat {
				return ir.Rule{}, &CompileError{
					Field:   field,
					Message: fmt.Sprintf("more than one pattern key (found %q)", key),
					Pos:     val.Pos(),
				}
			}
			p, err := compilePattern(key, val, field+"."+key)
			if err != nil {
				return ir.Rule{}, err
			}
			rule.Pattern = p
			havePat = true

		case keyName:
			name, err := val.String()
			if err != nil {
				return ir.Rule{}, formatCUEError(err)
			}
			rule.Name = name

		default:
			if actionSeen {
				return ir.Rule{}, &CompileError{
					Field:   field,
					Message: fmt.Sprintf("more than one action key (%q and %q); use do: [...] for several", actionKey, key),
					Pos:     val.Pos(),
				}
			}
			a, err := compileAction(key, val, field+"."+key)
			if err != nil {
				return ir.Rule{}, err
			}
			rule.Action = a
			actionKey = key
			actionSeen = true
		}
	}

	if !havePat {
		return ir.Rule{}, &CompileError{
			Field:   field,
			Message: "a pattern key is required (expect, literal, eof or timeout)",
			Pos:     v.Pos(),
		}
	}
	if !actionSeen {
		rule.Action = ir.Noop()
	}
	return rule, nil
}

func compilePattern(key string, v cue.Value, field string) (ir.Pattern, error) {
	switch key {
	case keyEOF, keyTimeout:
		b, err := v.Bool()
		if err != nil {
			return ir.Pattern{}, formatCUEError(err)
		}
		if !b {
			return ir.Pattern{}, &CompileError{
				Field:   field,
				Message: key + " must be true",
				Pos:     v.Pos(),
			}
		}
		if key == keyEOF {
			return ir.EOF(), nil
		}
		return ir.Timeout(), nil
	}

	s, err := v.String()
	if err != nil {
		return ir.Pattern{}, formatCUEError(err)
	}
	if key == keyLiteral {
		return ir.Literal(s), nil
	}
	return ir.Regexp(s), nil
}

// compileAction parses the value of one action key. Keys nothing understands
// compile to Unknown so the rule still loads and warns at dispatch.
func compileAction(key string, v cue.Value, field string) (ir.Action, error) {
	switch key {
	case keySend:
		s, err := v.String()
		if err != nil {
			return ir.Action{}, formatCUEError(err)
		}
		return ir.Send(s), nil

	case keyPrint:
		s, err := v.String()
		if err != nil {
			return ir.Action{}, formatCUEError(err)
		}
		return ir.Print(s), nil

	case keyStop:
		s, err := v.String()
		if err != nil {
			return ir.Action{}, formatCUEError(err)
		}
		switch s {
		case "ok":
			return ir.StopOK(), nil
		case "error":
			return ir.StopError(), nil
		}
		return ir.Action{}, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("stop must be \"ok\" or \"error\", got %q", s),
			Pos:     v.Pos(),
		}

	case keySleep:
		d, err := parseDuration(v, field)
		if err != nil {
			return ir.Action{}, err
		}
		return ir.Sleep(d), nil

	case keyDelete:
		p, err := compileDeleteTarget(v, field)
		if err != nil {
			return ir.Action{}, err
		}
		return ir.Delete(p), nil

	case keyDo:
		iter, err := v.List()
		if err != nil {
			return ir.Action{}, formatCUEError(err)
		}
		var steps []ir.Action
		for i := 0; iter.Next(); i++ {
			step, err := compileStep(iter.Value(), fmt.Sprintf("%s[%d]", field, i))
			if err != nil {
				return ir.Action{}, err
			}
			steps = append(steps, step)
		}
		return ir.Sequence(steps...), nil

	default:
		return ir.Unknown(key), nil
	}
}

// compileStep parses one `do` element, a struct with a single action key.
func compileStep(v cue.Value, field string) (ir.Action, error) {
	iter, err := v.Fields()
	if err != nil {
		return ir.Action{}, formatCUEError(err)
	}

	var (
		step ir.Action
		n    int
	)
	for iter.Next() {
		n++
		if n > 1 {
			return ir.Action{}, &CompileError{
				Field:   field,
				Message: "each step holds exactly one action key",
				Pos:     iter.Value().Pos(),
			}
		}
		step, err = compileAction(iter.Label(), iter.Value(), field+"."+iter.Label())
		if err != nil {
			return ir.Action{}, err
		}
	}
	if n == 0 {
		return ir.Action{}, &CompileError{
			Field:   field,
			Message: "empty step",
			Pos:     v.Pos(),
		}
	}
	return step, nil
}

// compileDeleteTarget accepts a regexp string or a pattern struct such as
// {literal: "x"}.
func compileDeleteTarget(v cue.Value, field string) (ir.Pattern, error) {
	if s, err := v.String(); err == nil {
		return ir.Regexp(s), nil
	}

	iter, err := v.Fields()
	if err != nil {
		return ir.Pattern{}, &CompileError{
			Field:   field,
			Message: "delete takes a pattern string or a pattern struct",
			Pos:     v.Pos(),
		}
	}

	var (
		p     ir.Pattern
		found bool
	)
	for iter.Next() {
		key := iter.Label()
		switch key {
		case keyExpect, keyLiteral, keyEOF, keyTimeout:
			if found {
				return ir.Pattern{}, &CompileError{
					Field:   field,
					Message: "delete target holds more than one pattern key",
					Pos:     iter.Value().Pos(),
				}
			}
			p, err = compilePattern(key, iter.Value(), field+"."+key)
			if err != nil {
				return ir.Pattern{}, err
			}
			found = true
		default:
			return ir.Pattern{}, &CompileError{
				Field:   field + "." + key,
				Message: "not a pattern key",
				Pos:     iter.Value().Pos(),
			}
		}
	}
	if !found {
		return ir.Pattern{}, &CompileError{
			Field:   field,
			Message: "delete target needs a pattern key",
			Pos:     v.Pos(),
		}
	}
	return p, nil
}

// parseDuration accepts a Go duration string ("1m30s") or a number of seconds.
func parseDuration(v cue.Value, field string) (time.Duration, error) {
	switch v.IncompleteKind() {
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return 0, formatCUEError(err)
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0, &CompileError{Field: field, Message: err.Error(), Pos: v.Pos()}
		}
		return d, nil
	case cue.IntKind, cue.FloatKind, cue.NumberKind:
		f, err := v.Float64()
		if err != nil {
			return 0, formatCUEError(err)
		}
		return time.Duration(f * float64(time.Second)), nil
	}
	return 0, &CompileError{
		Field:   field,
		Message: "duration must be a string like \"30s\" or a number of seconds",
		Pos:     v.Pos(),
	}
}
