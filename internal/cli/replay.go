package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/interact/internal/diag"
	"github.com/roach88/interact/internal/engine"
	"github.com/roach88/interact/internal/ir"
	"github.com/roach88/interact/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database  string
	SessionID string // optional - defaults to the latest session
	Rules     string
	RuleSet   string // optional - defaults to the recorded rule set name
}

// ReplayReport compares one recorded session with its replay.
type ReplayReport struct {
	SessionID    string `json:"session_id"`
	RuleSet      string `json:"ruleset"`
	RuleSetMatch bool   `json:"ruleset_match"` // recorded hash equals the current rules
	Recorded     int    `json:"recorded_outcome"`
	Replayed     int    `json:"replayed_outcome"`
	RecordedHash string `json:"recorded_hash"`
	ReplayedHash string `json:"replayed_hash"`
	Events       int    `json:"events"`
	Match        bool   `json:"match"`
	Divergence   string `json:"divergence,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a recorded session against rules",
		Long: `Rebuild the child's side of a recorded session and run rules against it
again, then check the same transcript and outcome come out.

Use it to confirm that an edited rule set still drives a known session the
same way. Sleep actions are skipped during replay.

Exit codes:
  0 - The replay reproduced the recording
  1 - The replay diverged
  2 - Command error (database not found, unknown session, etc.)

Examples:
  interact replay --db ./sessions.db --rules deploy.cue
  interact replay --db ./sessions.db --session 0190... --rules rules/ --ruleset deploy
  interact replay --db ./sessions.db --rules deploy.cue --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Rules, "rules", "", "CUE rule file or directory (required)")
	_ = cmd.MarkFlagRequired("rules")
	cmd.Flags().StringVar(&opts.SessionID, "session", "", "session to replay (default: latest)")
	cmd.Flags().StringVar(&opts.RuleSet, "ruleset", "", "rule set to replay with (default: the recorded one)")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	sess, err := findSession(ctx, st, opts.SessionID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find session", err)
	}

	name := opts.RuleSet
	if name == "" {
		name = sess.RuleSet
	}
	rs, err := loadRuleSet(opts.Rules, name)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load rules", err)
	}

	events, err := st.ReadEvents(ctx, sess.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read events", err)
	}
	formatter.VerboseLog("Replaying session %s (%d events) with rule set %s", sess.ID, len(events), rs.Name)

	report, err := replaySession(ctx, rs, sess, events, formatter.Printer(opts.Verbosity))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to replay session", err)
	}

	if formatter.IsJSON() {
		if err := outputReplayJSON(cmd, report); err != nil {
			return err
		}
	} else {
		outputReplayText(cmd, report)
	}

	if !report.Match {
		return NewExitError(ExitFailure, fmt.Sprintf("replay of session %s diverged", sess.ID))
	}
	return nil
}

// findSession reads id, or the latest session when id is empty.
func findSession(ctx context.Context, st *store.Store, id string) (ir.Session, error) {
	if id == "" {
		return st.LatestSession(ctx)
	}
	return st.ReadSession(ctx, id)
}

// replaySession runs the replay and folds a divergence into the report.
// Any other failure is returned.
func replaySession(ctx context.Context, rs *ir.RuleSet, sess ir.Session, events []ir.Event, printer *diag.Printer) (ReplayReport, error) {
	report := ReplayReport{
		SessionID: sess.ID,
		RuleSet:   rs.Name,
		Recorded:  sess.Outcome,
	}
	if hash, err := ir.RuleSetHash(*rs); err == nil {
		report.RuleSetMatch = hash == sess.RuleSetHash
	}

	res, err := engine.Replay(ctx, rs.Rules, events, engine.WithReplayPrinter(printer))
	if err != nil && !engine.IsReplayDiverged(err) {
		return report, err
	}

	report.Recorded = int(res.Recorded)
	report.Replayed = int(res.Replayed)
	report.RecordedHash = res.RecordedHash
	report.ReplayedHash = res.ReplayedHash
	report.Events = len(res.Events)
	report.Match = res.Match() && err == nil

	var re *engine.RuntimeError
	if errors.As(err, &re) {
		report.Divergence = re.Error()
	}
	return report, nil
}

func outputReplayJSON(cmd *cobra.Command, report ReplayReport) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(CLIResponse{
		Status:    "ok",
		Data:      report,
		SessionID: report.SessionID,
	})
}

func outputReplayText(cmd *cobra.Command, report ReplayReport) {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Session %s (rule set %s)\n", report.SessionID, report.RuleSet)
	if !report.RuleSetMatch {
		fmt.Fprintln(w, "  note: rules differ from the ones recorded")
	}
	fmt.Fprintf(w, "  outcome: recorded %d, replayed %d\n", report.Recorded, report.Replayed)
	fmt.Fprintf(w, "  transcript: %d events\n", report.Events)

	if report.Match {
		fmt.Fprintln(w, "✓ Replay matches recording")
		return
	}
	fmt.Fprintln(w, "✗ Replay diverged")
	if report.Divergence != "" {
		fmt.Fprintf(w, "  %s\n", report.Divergence)
	}
}
