package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Segment domain errors
	ErrSegmentTypeMismatch = errors.New("operation not allowed for this segment type")
	ErrRulesRequired       = errors.New("dynamic segment requires at least one rule condition")
	ErrMetadataKeyRequired = errors.New("metadata_key condition requires a metadataKey")
)
