package ir

// Match describes the output consumed by the most recent successful wait.
// For sentinel matches Text is empty and Before holds whatever was buffered.
type Match struct {
	Index  int    `json:"index"`
	Before string `json:"before"`
	Text   string `json:"text"`
}

// EventKind categorises transcript events.
type EventKind string

const (
	EventMatch    EventKind = "match"
	EventDispatch EventKind = "dispatch"
	EventSend     EventKind = "send"
	EventDelete   EventKind = "delete"
	EventOutcome  EventKind = "outcome"
)

// Event is one entry of an interaction transcript.
//
// Events are stamped with a per-session logical seq. Which fields are set
// depends on Kind:
//   - match: RuleIndex, Pattern, Before, Text
//   - dispatch: RuleIndex, Action, Status
//   - send: Line
//   - delete: RuleIndex (of the removed rule), Pattern
//   - outcome: Status
type Event struct {
	SessionID string    `json:"session_id"`
	Seq       int64     `json:"seq"`
	Kind      EventKind `json:"kind"`
	RuleIndex int       `json:"rule_index"`
	Pattern   string    `json:"pattern,omitempty"`
	Before    string    `json:"before,omitempty"`
	Text      string    `json:"text,omitempty"`
	Action    string    `json:"action,omitempty"`
	Status    Outcome   `json:"status"`
	Line      string    `json:"line,omitempty"`
}

// Session is the stored header of one interaction. StartedSeq is the clock
// value before its first event; sessions sharing a store number their events
// after one another.
type Session struct {
	ID          string `json:"id"`
	RuleSet     string `json:"ruleset"`
	RuleSetHash string `json:"ruleset_hash"`
	Command     string `json:"command"`
	TimeoutMS   int64  `json:"timeout_ms"`
	StartedSeq  int64  `json:"started_seq"`
	Outcome     int    `json:"outcome"`
	Finished    bool   `json:"finished"`

	EngineVersion     string `json:"engine_version"`
	TranscriptVersion string `json:"transcript_version"`
}
