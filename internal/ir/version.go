package ir

// Version constants for the transcript schema and engine.
const (
	// TranscriptVersion is the transcript record schema version.
	TranscriptVersion = "1"

	// EngineVersion is the interact engine version.
	EngineVersion = "0.1.0"
)
