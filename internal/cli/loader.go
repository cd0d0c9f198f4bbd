package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/token"

	"github.com/roach88/interact/internal/compiler"
	"github.com/roach88/interact/internal/ir"
)

// LoadMode controls how errors are handled during rule loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first rule set that does not compile.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll compiles every rule set and reports all failures.
	LoadModeCollectAll
)

// LoadResult contains the rule sets found under a path.
type LoadResult struct {
	RuleSets  []*ir.RuleSet
	CUEValue  cue.Value
	Files     []string
	FileCount int
}

// LoadError represents an error that occurred during rule loading.
type LoadError struct {
	Code    string
	Message string
	Field   string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Line returns the source line of the error, or 0.
func (e *LoadError) Line() int {
	if e.Pos.IsValid() {
		return e.Pos.Line()
	}
	return 0
}

// LoadRules loads the CUE rule file or directory at path and compiles each
// rule set under `ruleset`. A nil result means nothing could be built.
func LoadRules(path string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("rules path not found: %s", path)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing rules path: %v", err)}}
	}
	if info.IsDir() {
		files, err := compiler.FindCUEFiles(path)
		if err != nil {
			return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
		}
		if len(files) == 0 {
			return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", path)}}
		}
	}

	src, err := compiler.BuildPath(path)
	if err != nil {
		return nil, []error{convertCompileError(err, ErrCodeBuildFailed, "building CUE value")}
	}

	result := &LoadResult{
		CUEValue:  src.Value,
		Files:     src.Files,
		FileCount: len(src.Files),
	}

	rsVal := src.Value.LookupPath(cue.ParsePath("ruleset"))
	if !rsVal.Exists() {
		return result, []error{&LoadError{Code: ErrCodeNoRuleSets, Message: fmt.Sprintf("no rule sets found in %s", path)}}
	}
	iter, err := rsVal.Fields()
	if err != nil {
		return result, []error{&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating rule sets: %v", err)}}
	}

	var errs []error
	for iter.Next() {
		rs, compileErr := compiler.CompileRuleSet(iter.Value())
		if compileErr != nil {
			errs = append(errs, convertCompileError(compileErr, ErrCodeGeneric, "ruleset."+iter.Label()))
			if mode == LoadModeFailFast {
				return result, errs
			}
			continue
		}
		result.RuleSets = append(result.RuleSets, rs)
	}

	if len(result.RuleSets) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeNoRuleSets, Message: fmt.Sprintf("no rule sets found in %s", path)})
	}
	return result, errs
}

// loadRuleSet loads path and picks one rule set by name, failing on the
// first compile error.
func loadRuleSet(path, name string) (*ir.RuleSet, error) {
	res, errs := LoadRules(path, LoadModeFailFast)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	rs, err := compiler.SelectRuleSet(res.RuleSets, name)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeRuleSetChoice, Message: err.Error()}
	}
	return rs, nil
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, fallback, context string) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: compileErr.Message,
			Field:   compileErr.Field,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    fallback,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric       = "E001" // Generic/unknown error
	ErrCodeScanError     = "E002" // Directory scan error
	ErrCodeNoFiles       = "E003" // No CUE files found
	ErrCodeLoadFailed    = "E004" // CUE load failed
	ErrCodeNotFound      = "E005" // Path not found
	ErrCodeBuildFailed   = "E006" // CUE build failed
	ErrCodeWriteFailed   = "E007" // File write error
	ErrCodeNoRuleSets    = "E008" // No ruleset field
	ErrCodeRuleSetChoice = "E009" // Rule set name missing or unknown

	// Rule compile errors
	ErrCodeCUE        = "E101" // CUE evaluation error
	ErrCodeRules      = "E102" // Missing or malformed rules list
	ErrCodeRule       = "E103" // Rule without exactly one pattern or action
	ErrCodeAction     = "E104" // Malformed action value
	ErrCodeDuration   = "E105" // Malformed duration
	ErrCodeStopStatus = "E106" // stop is neither "ok" nor "error"
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch {
	case field == "cue":
		return ErrCodeCUE
	case field == "rules":
		return ErrCodeRules
	case field == "timeout" || strings.HasSuffix(field, ".sleep"):
		return ErrCodeDuration
	case strings.HasSuffix(field, ".stop"):
		return ErrCodeStopStatus
	case strings.HasSuffix(field, "]"):
		return ErrCodeRule
	case field != "":
		return ErrCodeAction
	default:
		return ErrCodeGeneric
	}
}

// blockingFindings returns the validation errors that stop rs from running.
func blockingFindings(rs *ir.RuleSet) []compiler.ValidationError {
	return compiler.Errors(compiler.Validate(rs))
}
