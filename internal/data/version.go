package data

// Version constants for stored records and the engine.
const (
	// SchemaVersion is the version of the stored record layout.
	SchemaVersion = "1"

	// EngineVersion is the trialrun engine version.
	EngineVersion = "0.1.0"
)
