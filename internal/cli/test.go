package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/interact/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test [rules-dir] <scenarios-dir>",
		Short: "Run rule sets against scripted scenarios",
		Long: `Run YAML scenarios: each drives a rule set against a scripted child and
checks the outcome, the lines sent and any assertions. When a scenario has
a golden file under <scenarios-dir>/golden, the canonical transcript must
match it too.

Relative rules paths in scenarios resolve against rules-dir when it is
given, otherwise against the scenario's own directory.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  interact test ./scenarios
  interact test ./rules ./scenarios --filter "login-*"
  interact test ./rules ./scenarios --update
  interact test ./scenarios --format json`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			rulesDir, scenariosDir := "", args[0]
			if len(args) == 2 {
				rulesDir, scenariosDir = args[0], args[1]
			}
			return runTests(opts, rulesDir, scenariosDir, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, rulesDir, scenariosDir string, cmd *cobra.Command) error {
	if rulesDir != "" {
		if _, err := os.Stat(rulesDir); os.IsNotExist(err) {
			return NewExitError(ExitCommandError, fmt.Sprintf("rules directory not found: %s", rulesDir))
		}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	result, err := harness.RunSuite(ctx, scenariosDir, harness.SuiteOptions{
		BasePath: rulesDir,
		Filter:   opts.Filter,
		Update:   opts.Update,
	})
	if err != nil {
		var notFound *harness.ScenarioNotFoundError
		if errors.As(err, &notFound) {
			return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
		}
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	if opts.Format == "json" {
		if err := outputTestJSON(cmd, result); err != nil {
			return err
		}
	} else {
		outputTestText(cmd.OutOrStdout(), result)
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenario(s) failed", result.Failed, result.Total))
	}
	return nil
}

// outputTestJSON outputs test results in JSON format.
func outputTestJSON(cmd *cobra.Command, result *harness.SuiteResult) error {
	status := "ok"
	if result.Failed > 0 {
		status = "error"
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(CLIResponse{
		Status: status,
		Data:   result,
	})
}

// outputTestText outputs one line per scenario and a summary.
func outputTestText(w io.Writer, result *harness.SuiteResult) {
	if result.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return
	}

	for _, s := range result.Scenarios {
		mark := "✓"
		if !s.Pass {
			mark = "✗"
		}
		suffix := ""
		if s.Golden == harness.GoldenUpdated {
			suffix = " (golden updated)"
		}
		fmt.Fprintf(w, "%s %s%s\n", mark, s.Name, suffix)
		for _, e := range s.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Results: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
}
