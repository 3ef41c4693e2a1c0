package ir

// Version constants for the canonical store and the pipeline.
const (
	// SchemaVersion is the canonical store schema version.
	SchemaVersion = "1"

	// PipelineVersion is the pamana pipeline version.
	PipelineVersion = "0.1.0"
)
