package engine

import (
	"log/slog"

	"github.com/roach88/interact/internal/ir"
)

// Normalize returns a copy of rules holding exactly one EOF rule and one
// TIMEOUT rule.
//
// A missing sentinel is appended with a Noop action (EOF first). When a
// sentinel appears more than once the first occurrence is kept and the rest
// are dropped with a warning. The input slice is not modified.
//
// The post-check can only fail if the steps above are broken; callers treat
// the error as a programming error and abort.
func Normalize(rules []ir.Rule) ([]ir.Rule, error) {
	out := make([]ir.Rule, 0, len(rules)+2)
	var haveEOF, haveTimeout bool

	for i, r := range rules {
		switch r.Pattern.Kind {
		case ir.PatternEOF:
			if haveEOF {
				slog.Warn("dropping duplicate EOF rule", "rule", i)
				continue
			}
			haveEOF = true
		case ir.PatternTimeout:
			if haveTimeout {
				slog.Warn("dropping duplicate TIMEOUT rule", "rule", i)
				continue
			}
			haveTimeout = true
		}
		out = append(out, r)
	}

	if !haveEOF {
		out = append(out, ir.On(ir.EOF(), ir.Noop()))
	}
	if !haveTimeout {
		out = append(out, ir.On(ir.Timeout(), ir.Noop()))
	}

	if err := checkSentinels(out); err != nil {
		return nil, err
	}
	return out, nil
}

// checkSentinels verifies exactly one EOF and one TIMEOUT rule exist.
func checkSentinels(rules []ir.Rule) error {
	var eof, timeout int
	for _, r := range rules {
		switch r.Pattern.Kind {
		case ir.PatternEOF:
			eof++
		case ir.PatternTimeout:
			timeout++
		}
	}
	if eof != 1 {
		return NewMalformedRuleSetError("EOF")
	}
	if timeout != 1 {
		return NewMalformedRuleSetError("TIMEOUT")
	}
	return nil
}
