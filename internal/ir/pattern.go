package ir

import (
	"fmt"
	"regexp"
)

// PatternKind distinguishes text matchers from the two sentinel patterns.
type PatternKind string

const (
	// PatternRegexp matches an RE2 regular expression anywhere in the output.
	PatternRegexp PatternKind = "regexp"
	// PatternLiteral matches an exact substring of the output.
	PatternLiteral PatternKind = "literal"
	// PatternEOF is satisfied when the output stream ends.
	PatternEOF PatternKind = "eof"
	// PatternTimeout is satisfied when a wait exceeds its timeout.
	PatternTimeout PatternKind = "timeout"
)

// Pattern is a single matcher in a rule list.
// Sentinel patterns carry no expression.
type Pattern struct {
	Kind PatternKind `json:"kind"`
	Expr string      `json:"expr,omitempty"`
}

// Regexp returns a regular-expression pattern.
func Regexp(expr string) Pattern {
	return Pattern{Kind: PatternRegexp, Expr: expr}
}

// Literal returns an exact-substring pattern.
func Literal(text string) Pattern {
	return Pattern{Kind: PatternLiteral, Expr: text}
}

// EOF returns the end-of-stream sentinel.
func EOF() Pattern {
	return Pattern{Kind: PatternEOF}
}

// Timeout returns the timeout sentinel.
func Timeout() Pattern {
	return Pattern{Kind: PatternTimeout}
}

// IsSentinel reports whether p is the EOF or TIMEOUT sentinel.
func (p Pattern) IsSentinel() bool {
	return p.Kind == PatternEOF || p.Kind == PatternTimeout
}

// Equal reports whether two patterns are exactly the same matcher.
// An empty kind compares as a regexp, the same way Compile treats it.
func (p Pattern) Equal(other Pattern) bool {
	return p.kind() == other.kind() && p.Expr == other.Expr
}

func (p Pattern) kind() PatternKind {
	if p.Kind == "" {
		return PatternRegexp
	}
	return p.Kind
}

// Compile returns the regular expression used to search output for p.
// An empty kind is a regexp. Literal patterns are quoted. Sentinels have no expression and return an error.
func (p Pattern) Compile() (*regexp.Regexp, error) {
	switch p.Kind {
	case PatternRegexp, "":
		return regexp.Compile(p.Expr)
	case PatternLiteral:
		return regexp.Compile(regexp.QuoteMeta(p.Expr))
	case PatternEOF, PatternTimeout:
		return nil, fmt.Errorf("sentinel pattern %s has no expression", p.Kind)
	default:
		return nil, fmt.Errorf("unknown pattern kind %q", p.Kind)
	}
}

// String renders p the way diagnostics print it.
func (p Pattern) String() string {
	switch p.Kind {
	case PatternEOF:
		return "EOF"
	case PatternTimeout:
		return "TIMEOUT"
	case PatternLiteral:
		return fmt.Sprintf("literal(%q)", p.Expr)
	default:
		return fmt.Sprintf("%q", p.Expr)
	}
}
