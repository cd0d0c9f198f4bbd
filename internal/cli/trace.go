package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/interact/internal/ir"
	"github.com/roach88/interact/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database  string
	SessionID string // optional - defaults to the latest session
	Kind      string // optional - filter to one event kind
	List      bool
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Session  ir.Session `json:"session"`
	Timeline []ir.Event `json:"timeline"`
	Stats    TraceStats `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalEvents int            `json:"total_events"`
	Matches     map[string]int `json:"matches"`
	Sent        int            `json:"sent"`
	Deleted     int            `json:"deleted"`
	IsComplete  bool           `json:"is_complete"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show a recorded session",
		Long: `Show the transcript of a session recorded with run --db.

The output includes:
- Session: the rule set, its hash, the command and the outcome
- Timeline: every match, send, delete and dispatch in order
- Stats: matches per pattern and how many lines were sent

Examples:
  interact trace --db ./sessions.db --list
  interact trace --db ./sessions.db
  interact trace --db ./sessions.db --session 0190... --kind match
  interact trace --db ./sessions.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.SessionID, "session", "", "session to show (default: latest)")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "show only events of this kind (match|send|delete|dispatch|outcome)")
	cmd.Flags().BoolVar(&opts.List, "list", false, "list recorded sessions instead")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if opts.List {
		return runTraceList(ctx, st, opts, cmd)
	}

	sess, err := findSession(ctx, st, opts.SessionID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find session", err)
	}

	events, err := st.ReadEvents(ctx, sess.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read events", err)
	}
	matches, err := st.CountMatches(ctx, sess.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to count matches", err)
	}

	result := TraceResult{
		Session:  sess,
		Timeline: filterEvents(events, ir.EventKind(opts.Kind)),
		Stats:    buildStats(events, matches, sess.Finished),
	}

	if opts.Format == "json" {
		return outputTraceJSON(cmd, result)
	}
	outputTraceText(cmd.OutOrStdout(), result, opts.Verbose())
	return nil
}

func runTraceList(ctx context.Context, st *store.Store, opts *TraceOptions, cmd *cobra.Command) error {
	sessions, err := st.ListSessions(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list sessions", err)
	}
	if opts.Format == "json" {
		return outputTraceJSON(cmd, sessions)
	}

	w := cmd.OutOrStdout()
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions found in database.")
		return nil
	}
	for _, s := range sessions {
		fmt.Fprintf(w, "%s  %-12s %-9s %s\n", s.ID, s.RuleSet, sessionStatus(s), s.Command)
	}
	return nil
}

// filterEvents keeps events of kind, or all of them when kind is empty.
func filterEvents(events []ir.Event, kind ir.EventKind) []ir.Event {
	if kind == "" {
		return events
	}
	out := []ir.Event{}
	for _, ev := range events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func buildStats(events []ir.Event, matches map[string]int, finished bool) TraceStats {
	stats := TraceStats{
		TotalEvents: len(events),
		Matches:     matches,
		IsComplete:  finished,
	}
	for _, ev := range events {
		switch ev.Kind {
		case ir.EventSend:
			stats.Sent++
		case ir.EventDelete:
			stats.Deleted++
		}
	}
	return stats
}

func sessionStatus(s ir.Session) string {
	if !s.Finished {
		return "running"
	}
	return ir.Outcome(s.Outcome).String()
}

// outputTraceJSON outputs the trace result as JSON.
func outputTraceJSON(cmd *cobra.Command, data any) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(CLIResponse{
		Status: "ok",
		Data:   data,
	})
}

// outputTraceText outputs the trace result as text.
func outputTraceText(w io.Writer, result TraceResult, verbose bool) {
	sess := result.Session

	fmt.Fprintf(w, "Trace for Session: %s\n", sess.ID)
	fmt.Fprintf(w, "Rule set: %s (%s)\n", sess.RuleSet, truncateHash(sess.RuleSetHash))
	fmt.Fprintf(w, "Command: %s\n", sess.Command)
	fmt.Fprintf(w, "Status: %s\n", sessionStatus(sess))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no events)")
	} else {
		for _, ev := range result.Timeline {
			formatTimelineEvent(w, ev, verbose)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total Events: %d\n", result.Stats.TotalEvents)
	fmt.Fprintf(w, "  Sent:         %d\n", result.Stats.Sent)
	fmt.Fprintf(w, "  Deleted:      %d\n", result.Stats.Deleted)
	fmt.Fprintf(w, "  Matches:      %s\n", formatCounts(result.Stats.Matches))
}

// formatTimelineEvent formats a single transcript event for text output.
func formatTimelineEvent(w io.Writer, ev ir.Event, verbose bool) {
	switch ev.Kind {
	case ir.EventMatch:
		fmt.Fprintf(w, "  [%d] MATCH    rule %d %s", ev.Seq, ev.RuleIndex, ev.Pattern)
		if ev.Text != "" {
			fmt.Fprintf(w, " text=%q", ev.Text)
		}
		fmt.Fprintln(w)
		if verbose && ev.Before != "" {
			fmt.Fprintf(w, "       before=%q\n", ev.Before)
		}
	case ir.EventSend:
		fmt.Fprintf(w, "  [%d] SEND     %q\n", ev.Seq, ev.Line)
	case ir.EventDelete:
		fmt.Fprintf(w, "  [%d] DELETE   rule %d %s\n", ev.Seq, ev.RuleIndex, ev.Pattern)
	case ir.EventDispatch:
		fmt.Fprintf(w, "  [%d] DISPATCH rule %d %s -> %d\n", ev.Seq, ev.RuleIndex, ev.Action, int(ev.Status))
	case ir.EventOutcome:
		fmt.Fprintf(w, "  [%d] OUTCOME  %s (%d)\n", ev.Seq, ev.Status, int(ev.Status))
	default:
		fmt.Fprintf(w, "  [%d] %s\n", ev.Seq, strings.ToUpper(string(ev.Kind)))
	}
}

// formatCounts renders pattern counts with sorted keys for deterministic output.
func formatCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return "{}"
	}

	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, counts[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// truncateHash shortens a hash for display.
func truncateHash(h string) string {
	if len(h) > 16 {
		return h[:16] + "..."
	}
	return h
}
