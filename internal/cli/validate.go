package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/interact/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	RuleSets []string                   `json:"rulesets,omitempty"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
	Warnings []compiler.ValidationError `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <rules>",
		Short: "Check rule files without running anything",
		Long: `Compile every rule set in a CUE file or directory and check it.

Errors (E2xx) stop a rule set from running. Warnings (W2xx) point at rules
that load but probably do not do what was meant, such as a delete that
targets no rule or an EOF rule with an action that never runs.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, rulesPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	result, findings, err := validatePath(rulesPath, formatter)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			return outputValidateError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return outputValidateError(formatter, ErrCodeGeneric, err.Error(), nil)
	}

	result.Errors = compiler.Errors(findings)
	result.Warnings = compiler.Warnings(findings)
	result.Valid = len(result.Errors) == 0

	if !result.Valid {
		return outputValidationErrors(formatter, result)
	}
	return outputValidateSuccess(formatter, result)
}

// validatePath compiles every rule set under rulesPath and validates it.
// Compile failures become findings so one bad rule set does not hide the rest.
func validatePath(rulesPath string, formatter *OutputFormatter) (*ValidationResult, []compiler.ValidationError, error) {
	loadResult, loadErrors := LoadRules(rulesPath, LoadModeCollectAll)
	if loadResult == nil {
		return nil, nil, loadErrors[0]
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, rulesPath)

	result := &ValidationResult{}
	var findings []compiler.ValidationError

	for _, err := range loadErrors {
		var loadErr *LoadError
		if !errors.As(err, &loadErr) {
			return nil, nil, err
		}
		field := loadErr.Field
		if field == "" {
			field = "load"
		}
		findings = append(findings, compiler.ValidationError{
			Field:    field,
			Message:  loadErr.Message,
			Code:     loadErr.Code,
			Severity: compiler.SeverityError,
			Line:     loadErr.Line(),
		})
	}

	for _, rs := range loadResult.RuleSets {
		formatter.VerboseLog("Validating rule set: %s (%d rules)", rs.Name, len(rs.Rules))
		result.RuleSets = append(result.RuleSets, rs.Name)
		for _, f := range compiler.Validate(rs) {
			f.Field = "ruleset." + rs.Name + "." + f.Field
			findings = append(findings, f)
		}
	}

	return result, findings, nil
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result *ValidationResult) error {
	if formatter.IsJSON() {
		return formatter.Success(result)
	}

	writeWarnings(formatter.Writer, result.Warnings)
	fmt.Fprintf(formatter.Writer, "✓ %d rule set(s) valid\n", len(result.RuleSets))
	return nil
}

// outputValidateError outputs a single load error.
func outputValidateError(formatter *OutputFormatter, code, message string, details any) error {
	_ = formatter.Error(code, message, details)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs every finding of a failed validation.
func outputValidationErrors(formatter *OutputFormatter, result *ValidationResult) error {
	errs := result.Errors
	if formatter.IsJSON() {
		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}
	writeWarnings(formatter.Writer, result.Warnings)

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}

func writeWarnings(w io.Writer, warnings []compiler.ValidationError) {
	for _, warn := range warnings {
		fmt.Fprintf(w, "warning %s: %s: %s\n", warn.Code, warn.Field, warn.Message)
	}
}

// ValidateRules validates every rule set under rulesPath.
// This is a helper function for external callers.
func ValidateRules(rulesPath string) ([]compiler.ValidationError, error) {
	silent := &OutputFormatter{Format: "text", Writer: io.Discard}
	_, findings, err := validatePath(rulesPath, silent)
	return findings, err
}
