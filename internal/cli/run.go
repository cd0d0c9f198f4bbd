package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/interact/internal/engine"
	"github.com/roach88/interact/internal/ir"
	"github.com/roach88/interact/internal/store"
	"github.com/roach88/interact/internal/transport"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Rules    string
	RuleSet  string
	Timeout  time.Duration
	Database string
	Guard    string
	Send     string
	Cols     uint16
	Rows     uint16
	Dir      string
	Env      []string

	// SessionIDs overrides the session id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	SessionIDs engine.SessionIDGenerator
}

// RunResult is the JSON summary of a finished session.
type RunResult struct {
	SessionID string `json:"session_id"`
	RuleSet   string `json:"ruleset"`
	Outcome   int    `json:"outcome"`
	Status    string `json:"status"`
	ExitCode  int    `json:"exit_code"` // the command's, -1 if it was still running
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run --rules <rules> [flags] -- <command> [args...]",
		Short: "Drive a command with a rule set",
		Long: `Start a command on a pseudo-terminal and drive it with a rule set.

Each time the command's output matches a rule, the rule's action runs:
send a line, sleep, print a message, delete a rule, or stop. The session
ends at end of output, on a timeout, or when a rule stops it.

Exit status: 0 when the session ends at EOF or a rule stops with "ok",
1 when a rule stops with "error" or a wait times out, 2 on bad usage.

Examples:
  interact run --rules deploy.cue -- ./deploy.sh staging
  interact run --rules rules/ --ruleset login --timeout 30s -vv -- ssh host
  interact run --rules shell.cue --guard '\$ $' --send 'make test' -- bash
  interact run --rules deploy.cue --db ./sessions.db -- ./deploy.sh`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(opts, args, cmd)
		},
	}

	cmd.Flags().SetInterspersed(false)
	cmd.Flags().StringVar(&opts.Rules, "rules", "", "CUE rule file or directory (required)")
	_ = cmd.MarkFlagRequired("rules")
	cmd.Flags().StringVar(&opts.RuleSet, "ruleset", "", "rule set to use when the rules hold several")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "bound on each wait for output (overrides the rule set; 0 waits forever)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record the session to this SQLite database")
	cmd.Flags().StringVar(&opts.Guard, "guard", "", "regexp to wait for before --send")
	cmd.Flags().StringVar(&opts.Send, "send", "", "line to send before the rules start")
	cmd.Flags().Uint16Var(&opts.Cols, "cols", 0, "terminal width reported to the command")
	cmd.Flags().Uint16Var(&opts.Rows, "rows", 0, "terminal height reported to the command")
	cmd.Flags().StringVar(&opts.Dir, "dir", "", "working directory of the command")
	cmd.Flags().StringArrayVar(&opts.Env, "env", nil, "extra KEY=VALUE for the command's environment (repeatable)")

	return cmd
}

func runSession(opts *RunOptions, command []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	rs, err := loadRuleSet(opts.Rules, opts.RuleSet)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load rules", err)
	}
	if findings := blockingFindings(rs); len(findings) > 0 {
		return WrapExitError(ExitCommandError, fmt.Sprintf("rule set %s is invalid", rs.Name), findings[0])
	}

	timeout := rs.Timeout
	if cmd.Flags().Changed("timeout") {
		timeout = opts.Timeout
	}
	if timeout < 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("timeout must not be negative, got %s", timeout))
	}

	ids := opts.SessionIDs
	if ids == nil {
		ids = engine.UUIDv7Generator{}
	}
	sessionID := ids.Generate()

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	engOpts := []engine.EngineOption{
		engine.WithTimeout(timeout),
		engine.WithPrinter(formatter.Printer(opts.Verbosity)),
		engine.WithSessionID(sessionID),
	}

	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing database", "error", closeErr)
			}
		}()

		recOpts, err := prepareRecording(ctx, st, rs, sessionID, command, timeout)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to record session", err)
		}
		engOpts = append(engOpts, recOpts...)
	}

	proc, err := transport.Spawn(ctx, command[0], command[1:], spawnOptions(opts)...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start command", err)
	}
	defer func() {
		if closeErr := proc.Close(); closeErr != nil {
			slog.Debug("error closing command", "error", closeErr)
		}
	}()

	// The initial line goes out before the engine takes over; without this
	// the tty echoes it back and rules match it as child output.
	if err := proc.SetEcho(false); err != nil {
		return WrapExitError(ExitCommandError, "failed to disable echo", err)
	}

	if opts.Send != "" {
		guard, err := guardPattern(opts.Guard)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --guard", err)
		}
		if err := engine.SendGuarded(ctx, proc, opts.Send, guard, timeout); err != nil {
			return WrapExitError(ExitFailure, "failed to send initial command", err)
		}
	}

	slog.Info("running rule set", "session", sessionID, "ruleset", rs.Name, "command", command[0], "timeout", timeout)

	outcome, err := engine.New(engOpts...).Run(ctx, proc, rs.Rules)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return WrapExitError(ExitFailure, "interrupted", err)
		}
		return WrapExitError(ExitCommandError, "session failed", err)
	}

	exitCode := -1
	if outcome == ir.OutcomeEOF {
		waitCtx, cancel := context.WithTimeout(ctx, time.Second)
		_ = proc.Wait(waitCtx)
		cancel()
		exitCode = proc.ExitCode()
	}

	result := RunResult{
		SessionID: sessionID,
		RuleSet:   rs.Name,
		Outcome:   int(outcome),
		Status:    outcome.String(),
		ExitCode:  exitCode,
	}
	if err := outputRunResult(formatter, result); err != nil {
		return err
	}

	if code := ExitCodeForOutcome(outcome); code != ExitSuccess {
		return NewExitError(code, fmt.Sprintf("session ended with %s (%d)", outcome, int(outcome)))
	}
	return nil
}

// prepareRecording writes the session header and returns the engine options
// that record its events. The clock continues from the last stored seq.
func prepareRecording(ctx context.Context, st *store.Store, rs *ir.RuleSet, id string, command []string, timeout time.Duration) ([]engine.EngineOption, error) {
	last, err := st.LastSeq(ctx)
	if err != nil {
		return nil, err
	}
	hash, err := ir.RuleSetHash(*rs)
	if err != nil {
		return nil, err
	}
	err = st.WriteSession(ctx, ir.Session{
		ID:          id,
		RuleSet:     rs.Name,
		RuleSetHash: hash,
		Command:     strings.Join(command, " "),
		TimeoutMS:   timeout.Milliseconds(),
		StartedSeq:  last,
	})
	if err != nil {
		return nil, err
	}
	return []engine.EngineOption{
		engine.WithClock(engine.NewClockAt(last)),
		engine.WithRecorder(store.NewRecorder(st)),
	}, nil
}

func spawnOptions(opts *RunOptions) []transport.SpawnOption {
	var out []transport.SpawnOption
	if opts.Dir != "" {
		out = append(out, transport.WithDir(opts.Dir))
	}
	if len(opts.Env) > 0 {
		out = append(out, transport.WithEnv(opts.Env...))
	}
	if opts.Cols > 0 || opts.Rows > 0 {
		cols, rows := opts.Cols, opts.Rows
		if cols == 0 {
			cols = 80
		}
		if rows == 0 {
			rows = 24
		}
		out = append(out, transport.WithSize(cols, rows))
	}
	return out
}

// guardPattern compiles the --guard regexp; empty means no guard.
func guardPattern(expr string) (*ir.Pattern, error) {
	if expr == "" {
		return nil, nil
	}
	p := ir.Regexp(expr)
	if _, err := p.Compile(); err != nil {
		return nil, err
	}
	return &p, nil
}

func outputRunResult(formatter *OutputFormatter, result RunResult) error {
	if formatter.IsJSON() {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "session %s: %s (%d)\n", result.SessionID, result.Status, result.Outcome)
	return nil
}
