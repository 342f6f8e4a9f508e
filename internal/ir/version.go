package ir

// Version constants for the audit schema and the execution host.
const (
	// SchemaVersion is the version of the persisted event and receipt schema.
	SchemaVersion = "1"

	// HostVersion is the exproxy host version.
	HostVersion = "0.1.0"
)
