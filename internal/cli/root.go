package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/interact/internal/diag"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbosity int    // -v count, 0..3
	Format    string // "json" | "text"
}

// Verbose reports whether any -v was given.
func (o *RootOptions) Verbose() bool {
	return o.Verbosity > 0
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the interact CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "interact",
		Short: "interact - rule-driven automation of interactive programs",
		Long: `Drive an interactive program through a pseudo-terminal with an ordered
list of pattern/action rules, the way an expect script would.

Rules live in CUE files. Sessions can be recorded to SQLite, traced and
replayed, and rule sets can be tested against scripted YAML scenarios.`,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			configureLogging(opts.Verbosity)
			return nil
		},
	}

	cmd.PersistentFlags().CountVarP(&opts.Verbosity, "verbose", "v", "diagnostic verbosity (repeat up to -vvv)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))

	return cmd
}

// configureLogging installs the process-wide slog handler. Engine logs are
// Debug below -vv so they do not interleave with the transcript.
func configureLogging(verbosity int) {
	level := slog.LevelWarn
	switch {
	case verbosity >= diag.Matches:
		level = slog.LevelDebug
	case verbosity >= diag.Transcript:
		level = slog.LevelInfo
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
