package ir

// Version constants for the record schema and engine.
const (
	// RecordVersion is the stored record schema version.
	RecordVersion = "1"

	// EngineVersion is the perks engine version.
	EngineVersion = "0.1.0"
)
