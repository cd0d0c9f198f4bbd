package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/interact/internal/engine"
	"github.com/roach88/interact/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output  string // output file path
	RuleSet string // only this rule set
}

// CompiledRuleSet is one normalized rule set with its content hash.
type CompiledRuleSet struct {
	Name      string          `json:"name"`
	Hash      string          `json:"hash"`
	RuleCount int             `json:"rule_count"`
	RuleSet   json.RawMessage `json:"ruleset"`
}

// CompilationResult holds every compiled rule set.
type CompilationResult struct {
	RuleSets []CompiledRuleSet `json:"rulesets"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <rules>",
		Short: "Compile rule files to canonical JSON",
		Long: `Compile the rule sets in a CUE file or directory and print each one
normalized (EOF and TIMEOUT rules appended) as canonical JSON, with the
hash recorded alongside every session run from it.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")
	cmd.Flags().StringVar(&opts.RuleSet, "ruleset", "", "compile only this rule set")

	return cmd
}

func runCompile(opts *CompileOptions, rulesPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	loadResult, loadErrors := LoadRules(rulesPath, LoadModeCollectAll)
	if loadResult == nil && len(loadErrors) > 0 {
		code, message := parseCompileError(loadErrors[0])
		return outputCompileError(formatter, code, message, nil)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, rulesPath)

	if len(loadErrors) > 0 {
		return outputCompileErrors(formatter, loadErrors)
	}

	result := &CompilationResult{}
	for _, rs := range loadResult.RuleSets {
		if opts.RuleSet != "" && rs.Name != opts.RuleSet {
			continue
		}
		formatter.VerboseLog("Compiling rule set: %s", rs.Name)
		compiled, err := compileRuleSet(rs)
		if err != nil {
			return outputCompileError(formatter, ErrCodeGeneric, fmt.Sprintf("ruleset.%s: %v", rs.Name, err), nil)
		}
		result.RuleSets = append(result.RuleSets, compiled)
	}
	if len(result.RuleSets) == 0 {
		return outputCompileError(formatter, ErrCodeRuleSetChoice, fmt.Sprintf("rule set %q not found", opts.RuleSet), nil)
	}

	if opts.Output != "" {
		if err := writeCompiledToFile(result, opts.Output); err != nil {
			return outputCompileError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	return outputCompileSuccess(formatter, result, opts.Output)
}

// compileRuleSet normalizes rs and renders it as canonical JSON. The hash is
// taken over the rule set as written, matching what run records.
func compileRuleSet(rs *ir.RuleSet) (CompiledRuleSet, error) {
	hash, err := ir.RuleSetHash(*rs)
	if err != nil {
		return CompiledRuleSet{}, err
	}
	normalized, err := engine.Normalize(rs.Rules)
	if err != nil {
		return CompiledRuleSet{}, err
	}
	out := ir.RuleSet{Name: rs.Name, Timeout: rs.Timeout, Rules: normalized}
	data, err := ir.MarshalCanonical(out.Canonical())
	if err != nil {
		return CompiledRuleSet{}, err
	}
	return CompiledRuleSet{
		Name:      rs.Name,
		Hash:      hash,
		RuleCount: len(normalized),
		RuleSet:   data,
	}, nil
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, outputFile string) error {
	if formatter.IsJSON() {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Compiled %d rule set(s)\n\n", len(result.RuleSets))
	for _, rs := range result.RuleSets {
		fmt.Fprintf(formatter.Writer, "%s: %d rule(s), %s\n", rs.Name, rs.RuleCount, rs.Hash)
		fmt.Fprintf(formatter.Writer, "  %s\n", rs.RuleSet)
	}

	if outputFile != "" {
		fmt.Fprintf(formatter.Writer, "\nWrote canonical rule sets to %s\n", outputFile)
	}

	return nil
}

// outputCompileError outputs a single compilation error.
func outputCompileError(formatter *OutputFormatter, code, message string, details any) error {
	_ = formatter.Error(code, message, details)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputCompileErrors outputs multiple compilation errors.
func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	if formatter.IsJSON() {
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			code, message := parseCompileError(err)
			cliErrors[i] = CLIError{Code: code, Message: message}
		}

		response := CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors,
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		code, message := parseCompileError(err)
		var loadErr *LoadError
		if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n",
				loadErr.Pos.Filename(),
				loadErr.Pos.Line(),
				loadErr.Pos.Column())
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", code, message)
	}

	return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
}

// parseCompileError extracts error code and message from an error.
func parseCompileError(err error) (string, string) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	return ErrCodeGeneric, err.Error()
}

// writeCompiledToFile writes the compiled rule sets, indented for reading.
func writeCompiledToFile(result *CompilationResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling rule sets: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}
