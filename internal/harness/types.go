package harness

import (
	"time"

	"github.com/roach88/interact/internal/ir"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if the expect clause and every assertion hold.
	Pass bool `json:"pass"`

	// Outcome is what the engine returned.
	Outcome ir.Outcome `json:"outcome"`

	// Trace is the recorded transcript, in seq order.
	Trace []ir.Event `json:"trace"`

	// Sent holds the lines the child received.
	Sent []string `json:"sent"`

	// Diagnostics holds the lines the engine printed, without styling.
	Diagnostics []string `json:"diagnostics,omitempty"`

	// Slept holds the durations of sleep actions, which are recorded
	// instead of waited for.
	Slept []time.Duration `json:"slept,omitempty"`

	// Errors contains failed checks. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []ir.Event{},
		Sent:   []string{},
		Errors: []string{},
	}
}

// AddError adds a failed check and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Matches returns the match events of the trace.
func (r *Result) Matches() []ir.Event {
	var out []ir.Event
	for _, ev := range r.Trace {
		if ev.Kind == ir.EventMatch {
			out = append(out, ev)
		}
	}
	return out
}
