package ir

// Version constants stamped on persisted events.
const (
	// SchemaVersion is the event payload schema version.
	SchemaVersion = "1"

	// RegistryVersion is the crid registry version.
	RegistryVersion = "0.1.0"
)
