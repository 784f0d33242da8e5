// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRunID       = "run_id"
	FieldRecordingID = "recording_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Catalog / rescue fields
	FieldStatus   = "status"
	FieldOutcome  = "outcome"
	FieldSchema   = "schema"
	FieldSegments = "segments"

	// Path fields
	FieldPath       = "path"
	FieldMountPath  = "mount_path"
	FieldDBPath     = "db_path"
	FieldFinalPath  = "final_path"
	FieldOutputPath = "output_dir"
)
